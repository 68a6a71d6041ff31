package api

import (
	"errors"
	"testing"

	"github.com/chaosgomoku/solive/pkg/engine"
	"github.com/goccy/go-json"
)

func TestUnwrap(t *testing.T) {
	tests := []struct {
		name string
		data string
		err  bool
	}{
		{name: "ok", data: `{"roomId":"123456789012"}`},
		{name: "empty", data: ``, err: true},
		{name: "no room", data: `{}`, err: true},
		{name: "not json", data: `{"roomId":`, err: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Unwrap[RoomRequest]([]byte(tt.data))
			if tt.err {
				if !errors.Is(err, ErrMalformed) {
					t.Errorf("expected malformed error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if r.RoomId != "123456789012" {
				t.Errorf("wrong room %v", r.RoomId)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		v    Validator
		ok   bool
	}{
		{"produce", &ProduceRequest{Kind: "video", RtpParameters: rtp()}, true},
		{"produce bad kind", &ProduceRequest{Kind: "screen", RtpParameters: rtp()}, false},
		{"produce no codecs", &ProduceRequest{Kind: "audio"}, false},
		{"step", &StepRequest{I: 3, J: 14}, true},
		{"step off board", &StepRequest{I: -1}, false},
		{"join", &JoinGameRequest{RoomId: "r", Nickname: "n", Profile: Profile{DeviceType: DevicePC, BoardWidth: 15, BoardHeight: 15}}, true},
		{"join no nick", &JoinGameRequest{RoomId: "r"}, false},
		{"join bad device", &JoinGameRequest{RoomId: "r", Nickname: "n", Profile: Profile{DeviceType: 7}}, false},
		{"signal", &SignalRequest{To: "x", Data: json.RawMessage(`{}`)}, true},
		{"signal nobody", &SignalRequest{Data: json.RawMessage(`{}`)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.v.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestPacketFormat(t *testing.T) {
	out, err := json.Marshal(Out{Id: "7", T: EnterRoom, Payload: RoomResponse{RoomId: "1"}})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"id":"7","t":21,"p":{"roomId":"1"}}` {
		t.Errorf("unexpected packet %s", out)
	}

	var in In
	if err = json.Unmarshal(out, &in); err != nil {
		t.Fatal(err)
	}
	if in.T != EnterRoom || in.Id != "7" || string(in.Payload) != `{"roomId":"1"}` {
		t.Errorf("unexpected packet %+v", in)
	}
}

func TestPTString(t *testing.T) {
	if Consume.String() != "Consume" {
		t.Errorf("wrong name %v", Consume)
	}
	if PT(255).String() != "Unknown(255)" {
		t.Errorf("wrong name %v", PT(255))
	}
}

func rtp() engine.RtpParameters {
	return engine.RtpParameters{
		Codecs:    []engine.RtpCodec{{MimeType: "video/VP8", ClockRate: 90000}},
		Encodings: []engine.RtpEncoding{{Ssrc: 1}},
	}
}
