package pion

import (
	"strings"

	"github.com/chaosgomoku/solive/pkg/config"
	"github.com/chaosgomoku/solive/pkg/engine"
	"github.com/pion/webrtc/v3"
)

func toCodec(c config.Codec) engine.RtpCodec {
	return engine.RtpCodec{
		Kind:        engine.MediaKind(c.Kind),
		MimeType:    c.MimeType,
		ClockRate:   c.ClockRate,
		Channels:    c.Channels,
		PayloadType: c.PayloadType,
		Fmtp:        c.Fmtp,
	}
}

func fromCodec(c engine.RtpCodec) webrtc.RTPCodecCapability {
	return webrtc.RTPCodecCapability{
		MimeType:    c.MimeType,
		ClockRate:   c.ClockRate,
		Channels:    c.Channels,
		SDPFmtpLine: c.Fmtp,
	}
}

func toIceParameters(p webrtc.ICEParameters) engine.IceParameters {
	return engine.IceParameters{UsernameFragment: p.UsernameFragment, Password: p.Password, IceLite: p.ICELite}
}

func fromIceParameters(p engine.IceParameters) webrtc.ICEParameters {
	return webrtc.ICEParameters{UsernameFragment: p.UsernameFragment, Password: p.Password, ICELite: p.IceLite}
}

func toIceCandidates(cc []webrtc.ICECandidate) []engine.IceCandidate {
	out := make([]engine.IceCandidate, 0, len(cc))
	for _, c := range cc {
		out = append(out, engine.IceCandidate{
			Foundation: c.Foundation,
			Priority:   c.Priority,
			Ip:         c.Address,
			Protocol:   c.Protocol.String(),
			Port:       c.Port,
			Type:       c.Typ.String(),
		})
	}
	return out
}

func fromIceCandidates(cc []engine.IceCandidate) ([]webrtc.ICECandidate, error) {
	out := make([]webrtc.ICECandidate, 0, len(cc))
	for _, c := range cc {
		proto, err := webrtc.NewICEProtocol(c.Protocol)
		if err != nil {
			return nil, err
		}
		typ, err := webrtc.NewICECandidateType(c.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, webrtc.ICECandidate{
			Foundation: c.Foundation,
			Priority:   c.Priority,
			Address:    c.Ip,
			Protocol:   proto,
			Port:       c.Port,
			Typ:        typ,
			Component:  1,
		})
	}
	return out, nil
}

func toDtlsParameters(p webrtc.DTLSParameters) engine.DtlsParameters {
	out := engine.DtlsParameters{Role: p.Role.String()}
	for _, f := range p.Fingerprints {
		out.Fingerprints = append(out.Fingerprints, engine.DtlsFingerprint{Algorithm: f.Algorithm, Value: f.Value})
	}
	return out
}

func fromDtlsParameters(p engine.DtlsParameters) webrtc.DTLSParameters {
	out := webrtc.DTLSParameters{Role: webrtc.DTLSRoleAuto}
	switch strings.ToLower(p.Role) {
	case "client":
		out.Role = webrtc.DTLSRoleClient
	case "server":
		out.Role = webrtc.DTLSRoleServer
	}
	for _, f := range p.Fingerprints {
		out.Fingerprints = append(out.Fingerprints, webrtc.DTLSFingerprint{Algorithm: f.Algorithm, Value: f.Value})
	}
	return out
}
