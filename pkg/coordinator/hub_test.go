package coordinator

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/chaosgomoku/solive/pkg/api"
	"github.com/chaosgomoku/solive/pkg/com"
	"github.com/chaosgomoku/solive/pkg/config"
	"github.com/chaosgomoku/solive/pkg/engine"
	"github.com/chaosgomoku/solive/pkg/engine/fake"
	"github.com/chaosgomoku/solive/pkg/logger"
	"github.com/chaosgomoku/solive/pkg/meeting"
	"github.com/chaosgomoku/solive/pkg/monitoring"
	"github.com/chaosgomoku/solive/pkg/network/httpx"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const wait = 3 * time.Second

type fixture struct {
	hub     *Hub
	e       *fake.Engine
	metrics *monitoring.Metrics
	server  *httptest.Server
	addr    url.URL
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conf := config.Config{
		Live:    config.Live{FanOut: 2},
		Meeting: config.Meeting{EngineTimeout: time.Second},
	}
	f := &fixture{e: fake.New(), metrics: monitoring.NewMetrics()}
	f.hub = NewHub(conf, f.e, nil, f.metrics, logger.NewNop())
	f.server = httptest.NewServer(f.hub.routes(httpx.NewServeMux("")))
	addr, _ := url.Parse("ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws")
	f.addr = *addr
	t.Cleanup(func() {
		f.hub.Close()
		f.server.Close()
	})
	return f
}

type peer struct {
	*com.Client
	id string
	in chan api.In
}

func (f *fixture) dial(t *testing.T) *peer {
	t.Helper()
	c, err := com.NewConnector().NewClient(f.addr, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	p := &peer{Client: c, in: make(chan api.In, 256)}
	c.OnPacket(func(in api.In) { p.in <- in })
	c.Listen()
	t.Cleanup(c.Close)

	var init api.InitResponse
	p.wait(t, api.Init, &init)
	if init.Id == "" || init.FanOut != 2 {
		t.Fatalf("bad init %+v", init)
	}
	p.id = init.Id
	return p
}

// wait skips packets until one of the type arrives.
func (p *peer) wait(t *testing.T, pt api.PT, out any) {
	t.Helper()
	timeout := time.After(wait)
	for {
		select {
		case in := <-p.in:
			if in.T != pt {
				continue
			}
			if out != nil {
				if err := json.Unmarshal(in.Payload, out); err != nil {
					t.Fatalf("%v: %v", pt, err)
				}
			}
			return
		case <-timeout:
			t.Fatalf("no %v packet", pt)
		}
	}
}

func (p *peer) call(t *testing.T, pt api.PT, rq any, out any) {
	t.Helper()
	data, err := p.Call(pt, rq)
	if err != nil {
		t.Fatalf("%v: %v", pt, err)
	}
	if out != nil {
		if err = json.Unmarshal(data, out); err != nil {
			t.Fatalf("%v: %v", pt, err)
		}
	}
}

// fails calls the packet and returns the error code of the reply.
func (p *peer) fails(t *testing.T, pt api.PT, rq any) api.ErrorCode {
	t.Helper()
	data, err := p.Call(pt, rq)
	if !errors.Is(err, com.ErrRemote) {
		t.Fatalf("%v: expected an error, got %v", pt, err)
	}
	var e api.ErrorResponse
	_ = json.Unmarshal(data, &e)
	return e.Code
}

var caps = engine.RtpCapabilities{Codecs: []engine.RtpCodec{
	{Kind: engine.Audio, MimeType: "audio/opus", ClockRate: 48000},
}}

var connect = api.ConnectTransportRequest{ConnectParams: engine.ConnectParams{
	IceParameters:  engine.IceParameters{UsernameFragment: "u", Password: "p"},
	DtlsParameters: engine.DtlsParameters{Fingerprints: []engine.DtlsFingerprint{{Algorithm: "sha-256", Value: "AB:CD"}}},
}}

func TestMeetingSession(t *testing.T) {
	f := newFixture(t)
	a, b := f.dial(t), f.dial(t)

	var room api.RoomResponse
	a.call(t, api.CreateRoom, nil, &room)
	if room.RoomId != meeting.RoomId(a.id) {
		t.Errorf("unexpected room %v", room.RoomId)
	}
	b.call(t, api.EnterRoom, api.RoomRequest{RoomId: room.RoomId}, nil)

	var params engine.TransportParams
	a.call(t, api.CreateProducerTransport, nil, &params)
	if params.Id == "" {
		t.Fatalf("no transport id")
	}
	a.call(t, api.ConnectProducerTransport, connect, nil)

	var produced api.ProduceResponse
	a.call(t, api.Produce, api.ProduceRequest{
		Kind:          engine.Audio,
		RtpParameters: engine.RtpParameters{Codecs: caps.Codecs, Encodings: []engine.RtpEncoding{{Ssrc: 1}}},
	}, &produced)

	var notice api.NewProducerNotice
	b.wait(t, api.NewProducer, &notice)
	if notice.PeerId != a.id || notice.ProducerId != produced.Id {
		t.Errorf("unexpected notice %+v", notice)
	}

	b.call(t, api.CreateConsumerTransport, nil, nil)
	var consumers []api.ConsumerInfo
	b.call(t, api.Consume, api.ConsumeRequest{RtpCapabilities: caps}, &consumers)
	if len(consumers) != 1 || consumers[0].ProducerId != produced.Id || consumers[0].PeerId != a.id {
		t.Fatalf("unexpected consumers %+v", consumers)
	}
	if n := f.e.Open(fake.Consumers); n != 1 {
		t.Errorf("%v consumers open", n)
	}

	var count int
	b.call(t, api.CurrentHeadCount, nil, &count)
	if count != 2 {
		t.Errorf("head count %v", count)
	}

	a.Close()
	var closed api.ProducerClosedNotice
	b.wait(t, api.ProducerClosed, &closed)
	if closed.PeerId != a.id || len(closed.ProducerIds) != 1 {
		t.Errorf("unexpected closed notice %+v", closed)
	}
	var left api.PeerNotice
	b.wait(t, api.PeerLeft, &left)
	if left.PeerId != a.id {
		t.Errorf("unexpected peer left %+v", left)
	}
	if n := f.e.Open(fake.Producers); n != 0 {
		t.Errorf("%v producers leaked", n)
	}
	if n := f.e.Open(fake.Consumers); n != 0 {
		t.Errorf("%v consumers leaked", n)
	}
	if n := f.e.Open(fake.Transports); n != 1 {
		t.Errorf("%v transports open, want the consumer one", n)
	}
}

func TestErrorPackets(t *testing.T) {
	f := newFixture(t)
	a := f.dial(t)

	tests := []struct {
		name string
		pt   api.PT
		rq   any
		code api.ErrorCode
	}{
		{"no payload", api.EnterRoom, nil, api.ErrCodeMalformed},
		{"bad kind", api.Produce, api.ProduceRequest{Kind: "text"}, api.ErrCodeMalformed},
		{"no room", api.CreateProducerTransport, nil, api.ErrCodeRoomNotFound},
		{"no live room", api.EnterLiveRoom, api.LiveRoomRequest{LiveRoomId: "00000000"}, api.ErrCodeRoomNotFound},
		{"no game", api.Step, api.StepRequest{I: 1, J: 1}, api.ErrCodeRoomNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := a.fails(t, tt.pt, tt.rq); code != tt.code {
				t.Errorf("code %v, want %v", code, tt.code)
			}
		})
	}

	t.Run("connect without transport is silent", func(t *testing.T) {
		a.call(t, api.CreateRoom, nil, nil)
		a.call(t, api.ConnectProducerTransport, connect, nil)
	})

	t.Run("engine unavailable", func(t *testing.T) {
		f.e.FailRouter.Store(true)
		defer f.e.FailRouter.Store(false)
		if code := a.fails(t, api.EnterRoom, api.RoomRequest{RoomId: "elsewhere"}); code != api.ErrCodeEngineUnavailable {
			t.Errorf("code %v", code)
		}
		if v := testutil.ToFloat64(f.metrics.EngineErrors.WithLabelValues("create router")); v != 1 {
			t.Errorf("engine errors %v", v)
		}
	})
}

func TestLiveSession(t *testing.T) {
	f := newFixture(t)
	anchor, v1, v2, v3 := f.dial(t), f.dial(t), f.dial(t), f.dial(t)

	var room api.LiveRoomResponse
	anchor.call(t, api.CreateLiveRoom, nil, &room)

	var entered api.EnterLiveRoomResponse
	v1.call(t, api.EnterLiveRoom, api.LiveRoomRequest{LiveRoomId: room.LiveRoomId}, &entered)
	if entered.ParentId != anchor.id {
		t.Errorf("v1 parent %v", entered.ParentId)
	}
	var request api.EnterLiveRoomNotice
	anchor.wait(t, api.EnterLiveRoomRequest, &request)
	if request.ViewerId != v1.id || !request.IsAnchor {
		t.Errorf("unexpected request %+v", request)
	}

	v2.call(t, api.EnterLiveRoom, api.LiveRoomRequest{LiveRoomId: room.LiveRoomId}, nil)
	v3.call(t, api.EnterLiveRoom, api.LiveRoomRequest{LiveRoomId: room.LiveRoomId}, &entered)
	if entered.ParentId != v1.id || entered.Depth != 2 {
		t.Errorf("v3 should be under v1, got %+v", entered)
	}
	var relay bool
	v3.call(t, api.IsRelay, api.IsRelayRequest{TargetId: v1.id}, &relay)
	if !relay {
		t.Errorf("v1 is a relay")
	}

	v1.Close()
	var reconnect api.LiveRoomResponse
	v3.wait(t, api.ReconnectLiveRoom, &reconnect)
	if reconnect.LiveRoomId != room.LiveRoomId {
		t.Errorf("unexpected reconnect %+v", reconnect)
	}

	anchor.call(t, api.AnchorOffline, nil, nil)
	in, err := v3.Exchange(api.EnterLiveRoom, api.LiveRoomRequest{LiveRoomId: room.LiveRoomId})
	if err != nil || in.T != api.AnchorOffline {
		t.Fatalf("expected anchor offline, got %v %v", in.T, err)
	}
	anchor.call(t, api.AnchorOnline, nil, nil)
	v3.wait(t, api.AnchorOnline, nil)

	anchor.Close()
	v2.wait(t, api.LiveRoomClosed, nil)
}

func TestGameSession(t *testing.T) {
	f := newFixture(t)
	a, b := f.dial(t), f.dial(t)

	profile := api.Profile{DeviceType: api.DevicePC, BoardWidth: 20, BoardHeight: 20}
	a.call(t, api.MatchRoom, api.MatchRequest{Profile: profile}, nil)
	b.call(t, api.MatchRoom, api.MatchRequest{Profile: profile}, nil)

	var ra, rb string
	a.wait(t, api.MatchedRoomId, &ra)
	b.wait(t, api.MatchedRoomId, &rb)
	if ra == "" || ra != rb {
		t.Errorf("rooms %v %v", ra, rb)
	}

	a.call(t, api.Step, api.StepRequest{I: 7, J: 9}, nil)
	var step api.StepRequest
	b.wait(t, api.Step, &step)
	if step.I != 7 || step.J != 9 {
		t.Errorf("unexpected step %+v", step)
	}

	a.Close()
	b.wait(t, api.OpponentLeft, nil)
}

func TestHeadCount(t *testing.T) {
	f := newFixture(t)
	f.dial(t)
	b := f.dial(t)

	var peak api.HistoryPeek
	b.call(t, api.HistoryPeekUsers, nil, &peak)
	if peak.Peak != 2 || peak.Timestamp == 0 {
		t.Errorf("unexpected peak %+v", peak)
	}

	b.Close()
	deadline := time.Now().Add(wait)
	for testutil.ToFloat64(f.metrics.Connections) != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Get(f.server.URL + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var stats Stats
	if err = json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Connections != 1 || stats.Peak == nil || stats.Peak.Peak != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestEngineGone(t *testing.T) {
	f := newFixture(t)
	a := f.dial(t)
	var room api.RoomResponse
	a.call(t, api.CreateRoom, nil, &room)

	f.e.Stop()
	var closed api.RoomResponse
	a.wait(t, api.RoomClosed, &closed)
	if closed.RoomId != room.RoomId {
		t.Errorf("unexpected room %v", closed.RoomId)
	}
	if f.hub.Stats().MeetingRooms != 0 {
		t.Errorf("rooms left after the engine is gone")
	}
}
