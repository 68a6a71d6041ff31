package engine

import (
	"errors"
	"testing"
)

func TestUnavailable(t *testing.T) {
	if Unavailable("x", nil) != nil {
		t.Errorf("nil error should stay nil")
	}
	err := Unavailable("create router", errors.New("boom"))
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("%v should match ErrEngineUnavailable", err)
	}
	if again := Unavailable("other", err); again != err {
		t.Errorf("double wrap: %v", again)
	}
}

func TestSupports(t *testing.T) {
	caps := RtpCapabilities{Codecs: []RtpCodec{{MimeType: "audio/opus", ClockRate: 48000}}}

	tests := []struct {
		name  string
		codec RtpCodec
		want  bool
	}{
		{"same", RtpCodec{MimeType: "audio/opus", ClockRate: 48000}, true},
		{"case", RtpCodec{MimeType: "audio/OPUS", ClockRate: 48000}, true},
		{"rate", RtpCodec{MimeType: "audio/opus", ClockRate: 8000}, false},
		{"mime", RtpCodec{MimeType: "video/VP8", ClockRate: 90000}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := caps.Supports(tt.codec); got != tt.want {
				t.Errorf("Supports(%v) = %v, want %v", tt.codec, got, tt.want)
			}
		})
	}
}
