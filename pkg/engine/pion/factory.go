package pion

import (
	"github.com/chaosgomoku/solive/pkg/config"
	"github.com/chaosgomoku/solive/pkg/logger"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
)

// ApiFactory builds the pion API shared by every router of the engine.
type ApiFactory struct {
	api        *webrtc.API
	iceServers []webrtc.ICEServer
	codecs     []config.Codec
}

type ModApiFun func(m *webrtc.MediaEngine, i *interceptor.Registry, s *webrtc.SettingEngine)

func NewApiFactory(conf config.Webrtc, log *logger.Logger, mod ModApiFun) (*ApiFactory, error) {
	codecs := conf.GetCodecs()
	m := &webrtc.MediaEngine{}
	for _, c := range codecs {
		if err := m.RegisterCodec(webrtc.RTPCodecParameters{
			RTPCodecCapability: capability(c),
			PayloadType:        webrtc.PayloadType(c.PayloadType),
		}, webrtc.NewRTPCodecType(c.Kind)); err != nil {
			return nil, err
		}
	}
	i := &interceptor.Registry{}
	if !conf.DisableDefaultInterceptors {
		if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
			return nil, err
		}
	}
	s := webrtc.SettingEngine{LoggerFactory: logger.NewPionLogger(log, conf.LogLevel)}
	if conf.HasPortRange() {
		if err := s.SetEphemeralUDPPortRange(conf.IcePorts.Min, conf.IcePorts.Max); err != nil {
			return nil, err
		}
	}
	if conf.HasIceIpMap() {
		s.SetNAT1To1IPs([]string{conf.IceIpMap}, webrtc.ICECandidateTypeHost)
		log.Info().Msgf("The NAT mapping is active for %v", conf.IceIpMap)
	}
	s.SetLite(conf.IceLite)

	if mod != nil {
		mod(m, i, &s)
	}

	servers := make([]webrtc.ICEServer, 0, len(conf.IceServers))
	for _, server := range conf.IceServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       []string{server.Urls},
			Username:   server.Username,
			Credential: server.Credential,
		})
	}

	return &ApiFactory{
		api:        webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i), webrtc.WithSettingEngine(s)),
		iceServers: servers,
		codecs:     codecs,
	}, nil
}

func capability(c config.Codec) webrtc.RTPCodecCapability {
	return webrtc.RTPCodecCapability{
		MimeType:    c.MimeType,
		ClockRate:   c.ClockRate,
		Channels:    c.Channels,
		SDPFmtpLine: c.Fmtp,
	}
}
