// Package pion is the media engine built on the pion ORTC API.
// A router is a group of ICE/DTLS transports sharing producers,
// a producer fans out received RTP into the local tracks of its consumers.
package pion

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chaosgomoku/solive/pkg/com"
	"github.com/chaosgomoku/solive/pkg/config"
	"github.com/chaosgomoku/solive/pkg/engine"
	"github.com/chaosgomoku/solive/pkg/logger"
	"github.com/gofrs/uuid"
	"github.com/pion/webrtc/v3"
)

type Engine struct {
	factory       *ApiFactory
	gatherTimeout time.Duration
	routers       com.Map[string, *router]
	log           *logger.Logger

	done chan struct{}
	once sync.Once
}

func New(conf config.Webrtc, log *logger.Logger) (*Engine, error) {
	log = log.Module("engine")
	factory, err := NewApiFactory(conf, log, nil)
	if err != nil {
		return nil, err
	}
	return &Engine{
		factory:       factory,
		gatherTimeout: conf.GatherTimeout,
		routers:       com.Map[string, *router]{},
		log:           log,
		done:          make(chan struct{}),
	}, nil
}

func newId() string { return uuid.Must(uuid.NewV4()).String() }

func (e *Engine) Done() <-chan struct{} { return e.done }

// Close stops every router and signals engine death.
func (e *Engine) Close() error {
	e.once.Do(func() {
		e.routers.ForEach(func(r *router) { _ = r.Close() })
		close(e.done)
	})
	return nil
}

func (e *Engine) closed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (e *Engine) CreateRouter(context.Context) (engine.Router, error) {
	if e.closed() {
		return nil, engine.Unavailable("create router", engine.ErrClosed)
	}
	caps := engine.RtpCapabilities{}
	for _, c := range e.factory.codecs {
		caps.Codecs = append(caps.Codecs, toCodec(c))
	}
	r := &router{
		id:         newId(),
		e:          e,
		caps:       caps,
		producers:  map[string]*producer{},
		transports: map[string]*transport{},
	}
	e.routers.Put(r.id, r)
	e.log.Debug().Str("router", r.id).Msg("router created")
	return r, nil
}

type router struct {
	id   string
	e    *Engine
	caps engine.RtpCapabilities

	mu         sync.Mutex
	producers  map[string]*producer
	transports map[string]*transport
	closed     bool
}

func (r *router) Id() string                              { return r.id }
func (r *router) RtpCapabilities() engine.RtpCapabilities { return r.caps }

func (r *router) CreateTransport(ctx context.Context) (engine.Transport, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, engine.ErrClosed
	}

	api := r.e.factory.api
	gatherer, err := api.NewICEGatherer(webrtc.ICEGatherOptions{ICEServers: r.e.factory.iceServers})
	if err != nil {
		return nil, engine.Unavailable("ice gatherer", err)
	}
	ice := api.NewICETransport(gatherer)
	dtls, err := api.NewDTLSTransport(ice, nil)
	if err != nil {
		_ = gatherer.Close()
		return nil, engine.Unavailable("dtls transport", err)
	}

	t := &transport{id: newId(), r: r, gatherer: gatherer, ice: ice, dtls: dtls}

	gathered := make(chan struct{})
	var once sync.Once
	gatherer.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			once.Do(func() { close(gathered) })
		}
	})
	if err = gatherer.Gather(); err != nil {
		t.stop()
		return nil, engine.Unavailable("gather", err)
	}

	timeout := time.NewTimer(r.e.gatherTimeout)
	defer timeout.Stop()
	select {
	case <-gathered:
	case <-timeout.C:
		r.e.log.Warn().Str("transport", t.id).Msg("ICE gathering timeout, using partial candidates")
	case <-ctx.Done():
		t.stop()
		return nil, engine.Unavailable("gather", ctx.Err())
	}

	if err = t.snapshot(); err != nil {
		t.stop()
		return nil, engine.Unavailable("transport params", err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		t.stop()
		return nil, engine.ErrClosed
	}
	r.transports[t.id] = t
	r.mu.Unlock()
	return t, nil
}

func (r *router) producer(id string) *producer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.producers[id]
}

func (r *router) CanConsume(producerId string, caps engine.RtpCapabilities) bool {
	p := r.producer(producerId)
	if p == nil {
		return false
	}
	return caps.Supports(p.codec)
}

func (r *router) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return engine.ErrClosed
	}
	r.closed = true
	transports := make([]*transport, 0, len(r.transports))
	for _, t := range r.transports {
		transports = append(transports, t)
	}
	r.mu.Unlock()

	for _, t := range transports {
		_ = t.Close()
	}
	r.e.routers.Remove(r.id)
	r.e.log.Debug().Str("router", r.id).Msg("router closed")
	return nil
}

type transport struct {
	id       string
	r        *router
	gatherer *webrtc.ICEGatherer
	ice      *webrtc.ICETransport
	dtls     *webrtc.DTLSTransport
	params   engine.TransportParams

	mu        sync.Mutex
	connected bool
	closed    bool
	producers []*producer
	consumers []*consumer
}

func (t *transport) Id() string                      { return t.id }
func (t *transport) Params() engine.TransportParams { return t.params }

func (t *transport) snapshot() error {
	iceParams, err := t.gatherer.GetLocalParameters()
	if err != nil {
		return err
	}
	candidates, err := t.gatherer.GetLocalCandidates()
	if err != nil {
		return err
	}
	dtlsParams, err := t.dtls.GetLocalParameters()
	if err != nil {
		return err
	}
	t.params = engine.TransportParams{
		Id:             t.id,
		IceParameters:  toIceParameters(iceParams),
		IceCandidates:  toIceCandidates(candidates),
		DtlsParameters: toDtlsParameters(dtlsParams),
	}
	return nil
}

var ErrAlreadyConnected = errors.New("transport already connected")

// Connect validates the remote parameters and starts the ICE/DTLS
// handshake in the background.
func (t *transport) Connect(_ context.Context, params engine.ConnectParams) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return engine.ErrClosed
	}
	if t.connected {
		return ErrAlreadyConnected
	}
	candidates, err := fromIceCandidates(params.IceCandidates)
	if err != nil {
		return err
	}
	if err = t.ice.SetRemoteCandidates(candidates); err != nil {
		return engine.Unavailable("remote candidates", err)
	}
	t.connected = true

	log := t.r.e.log.Extend(t.r.e.log.With().Str("transport", t.id))
	ice := fromIceParameters(params.IceParameters)
	dtls := fromDtlsParameters(params.DtlsParameters)
	go func() {
		role := webrtc.ICERoleControlled
		if err := t.ice.Start(nil, ice, &role); err != nil {
			log.Error().Err(err).Msg("ice start")
			return
		}
		if err := t.dtls.Start(dtls); err != nil {
			log.Error().Err(err).Msg("dtls start")
			return
		}
		log.Debug().Msg("transport connected")
	}()
	return nil
}

func (t *transport) Produce(_ context.Context, kind engine.MediaKind, rtp engine.RtpParameters) (engine.Producer, error) {
	codec, ok := rtp.Codec()
	if !ok || len(rtp.Encodings) == 0 {
		return nil, engine.ErrNotConsumable
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, engine.ErrClosed
	}
	t.mu.Unlock()

	recv, err := t.r.e.factory.api.NewRTPReceiver(webrtc.NewRTPCodecType(string(kind)), t.dtls)
	if err != nil {
		return nil, engine.Unavailable("rtp receiver", err)
	}
	p := newProducer(newId(), kind, codec, recv, t)
	enc := rtp.Encodings[0]
	params := webrtc.RTPReceiveParameters{Encodings: []webrtc.RTPDecodingParameters{{
		RTPCodingParameters: webrtc.RTPCodingParameters{
			RID:         enc.Rid,
			SSRC:        webrtc.SSRC(enc.Ssrc),
			PayloadType: webrtc.PayloadType(codec.PayloadType),
		},
	}}}
	go p.run(params, t.r.e.log)

	t.mu.Lock()
	t.producers = append(t.producers, p)
	t.mu.Unlock()
	t.r.mu.Lock()
	t.r.producers[p.id] = p
	t.r.mu.Unlock()
	return p, nil
}

func (t *transport) Consume(_ context.Context, producerId string, caps engine.RtpCapabilities, paused bool) (engine.Consumer, error) {
	p := t.r.producer(producerId)
	if p == nil || !caps.Supports(p.codec) {
		return nil, engine.ErrNotConsumable
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, engine.ErrClosed
	}
	t.mu.Unlock()

	id := newId()
	track, err := webrtc.NewTrackLocalStaticRTP(fromCodec(p.codec), id, producerId)
	if err != nil {
		return nil, engine.Unavailable("local track", err)
	}
	sender, err := t.r.e.factory.api.NewRTPSender(track, t.dtls)
	if err != nil {
		return nil, engine.Unavailable("rtp sender", err)
	}
	c := newConsumer(id, p, track, sender, paused)
	if err = sender.Send(webrtc.RTPSendParameters{Encodings: []webrtc.RTPEncodingParameters{{
		RTPCodingParameters: webrtc.RTPCodingParameters{
			SSRC:        webrtc.SSRC(c.ssrc),
			PayloadType: webrtc.PayloadType(p.codec.PayloadType),
		},
	}}}); err != nil {
		_ = sender.Stop()
		return nil, engine.Unavailable("rtp send", err)
	}
	go c.drainRTCP()
	p.attach(c)

	t.mu.Lock()
	t.consumers = append(t.consumers, c)
	t.mu.Unlock()
	return c, nil
}

func (t *transport) stop() {
	if err := t.dtls.Stop(); err != nil {
		t.r.e.log.Debug().Err(err).Msg("dtls stop")
	}
	if err := t.ice.Stop(); err != nil {
		t.r.e.log.Debug().Err(err).Msg("ice stop")
	}
	_ = t.gatherer.Close()
}

// Close stops every producer and consumer made on the transport.
func (t *transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return engine.ErrClosed
	}
	t.closed = true
	producers, consumers := t.producers, t.consumers
	t.producers, t.consumers = nil, nil
	t.mu.Unlock()

	for _, c := range consumers {
		_ = c.Close()
	}
	for _, p := range producers {
		_ = p.Close()
	}
	t.stop()

	t.r.mu.Lock()
	delete(t.r.transports, t.id)
	t.r.mu.Unlock()
	return nil
}
