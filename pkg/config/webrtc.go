package config

import (
	"log"
	"strings"
	"time"
)

type Webrtc struct {
	DisableDefaultInterceptors bool
	IceServers                 []IceServer
	IcePorts                   struct {
		Min uint16
		Max uint16
	}
	IceIpMap string
	IceLite  bool
	LogLevel int
	Codecs   []Codec
	// GatherTimeout limits ICE candidate gathering of a new transport.
	GatherTimeout time.Duration `default:"5s"`
}

type IceServer struct {
	Urls       string `json:"urls,omitempty"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

// Codec is a router media codec, one per kind and mime type.
type Codec struct {
	Kind        string `json:"kind"`
	MimeType    string `json:"mimeType"`
	ClockRate   uint32 `json:"clockRate"`
	Channels    uint16 `json:"channels,omitempty"`
	PayloadType uint8  `json:"payloadType"`
	Fmtp        string `json:"fmtp,omitempty"`
}

func (w *Webrtc) HasPortRange() bool { return w.IcePorts.Min > 0 && w.IcePorts.Max > 0 }
func (w *Webrtc) HasIceIpMap() bool  { return w.IceIpMap != "" }

// DefaultCodecs mirror the codecs every router offers when none are configured.
var DefaultCodecs = []Codec{
	{Kind: "audio", MimeType: "audio/opus", ClockRate: 48000, Channels: 2, PayloadType: 111},
	{Kind: "video", MimeType: "video/VP8", ClockRate: 90000, PayloadType: 96, Fmtp: "x-google-start-bitrate=1000"},
}

func (w *Webrtc) GetCodecs() []Codec {
	if len(w.Codecs) == 0 {
		return DefaultCodecs
	}
	return w.Codecs
}

// AddIceServersEnv reads up to five ICE servers from the environment,
// i.e. SOLIVE_ICESERVERS[0]_URLS.
func (w *Webrtc) AddIceServersEnv() {
	cfg := Webrtc{IceServers: []IceServer{{}, {}, {}, {}, {}}}
	_ = LoadConfigEnv(&cfg)
	for i, ice := range cfg.IceServers {
		if ice.Urls == "" {
			continue
		}
		if strings.HasPrefix(ice.Urls, "turn:") || strings.HasPrefix(ice.Urls, "turns:") {
			if ice.Username == "" || ice.Credential == "" {
				log.Fatalf("TURN or TURNS servers should have both username and credential: %+v", ice)
			}
		}
		if i > len(w.IceServers)-1 {
			w.IceServers = append(w.IceServers, ice)
		} else {
			w.IceServers[i] = ice
		}
	}
}
