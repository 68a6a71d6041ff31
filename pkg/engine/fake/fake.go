// Package fake is an in-memory media engine with failure injection.
package fake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chaosgomoku/solive/pkg/engine"
)

var ErrInjected = errors.New("injected failure")

type Resource string

const (
	Routers    Resource = "router"
	Transports Resource = "transport"
	Producers  Resource = "producer"
	Consumers  Resource = "consumer"
)

// Engine keeps every open resource so tests can check for leaks.
type Engine struct {
	FailRouter    atomic.Bool
	FailTransport atomic.Bool
	FailConnect   atomic.Bool
	FailProduce   atomic.Bool
	FailConsume   atomic.Bool
	// FailConsumeOf fails consumption of one producer id only.
	FailConsumeOf atomic.Value

	Codecs []engine.RtpCodec

	mu   sync.Mutex
	open map[Resource]map[string]struct{}
	seq  atomic.Uint64
	done chan struct{}
	once sync.Once
}

func New() *Engine {
	return &Engine{
		Codecs: []engine.RtpCodec{
			{Kind: engine.Audio, MimeType: "audio/opus", ClockRate: 48000, Channels: 2, PayloadType: 111},
			{Kind: engine.Video, MimeType: "video/VP8", ClockRate: 90000, PayloadType: 96},
		},
		open: map[Resource]map[string]struct{}{},
		done: make(chan struct{}),
	}
}

func (e *Engine) Done() <-chan struct{} { return e.done }

// Stop simulates an engine crash.
func (e *Engine) Stop() { e.once.Do(func() { close(e.done) }) }

// Open returns the number of not closed resources of the kind.
func (e *Engine) Open(r Resource) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.open[r])
}

func (e *Engine) IsOpen(r Resource, id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.open[r][id]
	return ok
}

func (e *Engine) add(r Resource) string {
	id := fmt.Sprintf("%s-%d", r, e.seq.Add(1))
	e.mu.Lock()
	if e.open[r] == nil {
		e.open[r] = map[string]struct{}{}
	}
	e.open[r][id] = struct{}{}
	e.mu.Unlock()
	return id
}

func (e *Engine) remove(r Resource, id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.open[r][id]; !ok {
		return false
	}
	delete(e.open[r], id)
	return true
}

func (e *Engine) stopped() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (e *Engine) CreateRouter(context.Context) (engine.Router, error) {
	if e.FailRouter.Load() || e.stopped() {
		return nil, engine.Unavailable("create router", ErrInjected)
	}
	return &Router{id: e.add(Routers), e: e, producers: map[string]*Producer{}}, nil
}

type Router struct {
	id        string
	e         *Engine
	mu        sync.Mutex
	producers map[string]*Producer
}

func (r *Router) Id() string { return r.id }

func (r *Router) RtpCapabilities() engine.RtpCapabilities {
	return engine.RtpCapabilities{Codecs: append([]engine.RtpCodec(nil), r.e.Codecs...)}
}

func (r *Router) CreateTransport(context.Context) (engine.Transport, error) {
	if r.e.FailTransport.Load() {
		return nil, engine.Unavailable("create transport", ErrInjected)
	}
	if !r.e.IsOpen(Routers, r.id) {
		return nil, engine.ErrClosed
	}
	id := r.e.add(Transports)
	return &Transport{id: id, r: r}, nil
}

func (r *Router) producer(id string) *Producer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.producers[id]
}

func (r *Router) CanConsume(producerId string, caps engine.RtpCapabilities) bool {
	p := r.producer(producerId)
	if p == nil || !r.e.IsOpen(Producers, p.id) {
		return false
	}
	codec, ok := p.rtp.Codec()
	if !ok {
		return false
	}
	return caps.Supports(codec)
}

func (r *Router) Close() error {
	if !r.e.remove(Routers, r.id) {
		return engine.ErrClosed
	}
	return nil
}

type Transport struct {
	id        string
	r         *Router
	connected atomic.Bool
}

func (t *Transport) Id() string { return t.id }

func (t *Transport) Params() engine.TransportParams {
	return engine.TransportParams{
		Id:             t.id,
		IceParameters:  engine.IceParameters{UsernameFragment: "u" + t.id, Password: "p" + t.id},
		IceCandidates:  []engine.IceCandidate{{Foundation: "1", Priority: 1, Ip: "127.0.0.1", Protocol: "udp", Port: 10000, Type: "host"}},
		DtlsParameters: engine.DtlsParameters{Role: "auto", Fingerprints: []engine.DtlsFingerprint{{Algorithm: "sha-256", Value: "00"}}},
	}
}

func (t *Transport) Connected() bool { return t.connected.Load() }

func (t *Transport) Connect(context.Context, engine.ConnectParams) error {
	if t.r.e.FailConnect.Load() {
		return engine.Unavailable("connect", ErrInjected)
	}
	if !t.r.e.IsOpen(Transports, t.id) {
		return engine.ErrClosed
	}
	t.connected.Store(true)
	return nil
}

func (t *Transport) Produce(_ context.Context, kind engine.MediaKind, rtp engine.RtpParameters) (engine.Producer, error) {
	if t.r.e.FailProduce.Load() {
		return nil, engine.Unavailable("produce", ErrInjected)
	}
	if !t.r.e.IsOpen(Transports, t.id) {
		return nil, engine.ErrClosed
	}
	p := &Producer{id: t.r.e.add(Producers), kind: kind, rtp: rtp, r: t.r}
	t.r.mu.Lock()
	t.r.producers[p.id] = p
	t.r.mu.Unlock()
	return p, nil
}

func (t *Transport) Consume(_ context.Context, producerId string, caps engine.RtpCapabilities, paused bool) (engine.Consumer, error) {
	if t.r.e.FailConsume.Load() {
		return nil, engine.Unavailable("consume", ErrInjected)
	}
	if id, _ := t.r.e.FailConsumeOf.Load().(string); id != "" && id == producerId {
		return nil, engine.Unavailable("consume", ErrInjected)
	}
	if !t.r.e.IsOpen(Transports, t.id) {
		return nil, engine.ErrClosed
	}
	if !t.r.CanConsume(producerId, caps) {
		return nil, engine.ErrNotConsumable
	}
	p := t.r.producer(producerId)
	c := &Consumer{id: t.r.e.add(Consumers), p: p, e: t.r.e}
	c.paused.Store(paused)
	return c, nil
}

func (t *Transport) Close() error {
	if !t.r.e.remove(Transports, t.id) {
		return engine.ErrClosed
	}
	return nil
}

type Producer struct {
	id   string
	kind engine.MediaKind
	rtp  engine.RtpParameters
	r    *Router
}

func (p *Producer) Id() string             { return p.id }
func (p *Producer) Kind() engine.MediaKind { return p.kind }
func (p *Producer) Paused() bool           { return false }

func (p *Producer) Close() error {
	p.r.mu.Lock()
	delete(p.r.producers, p.id)
	p.r.mu.Unlock()
	if !p.r.e.remove(Producers, p.id) {
		return engine.ErrClosed
	}
	return nil
}

type Consumer struct {
	id     string
	p      *Producer
	e      *Engine
	paused atomic.Bool
}

func (c *Consumer) Id() string                          { return c.id }
func (c *Consumer) ProducerId() string                  { return c.p.id }
func (c *Consumer) Kind() engine.MediaKind              { return c.p.kind }
func (c *Consumer) RtpParameters() engine.RtpParameters { return c.p.rtp }
func (c *Consumer) Type() string                        { return "simple" }
func (c *Consumer) ProducerPaused() bool                { return c.p.Paused() }
func (c *Consumer) Paused() bool                        { return c.paused.Load() }

func (c *Consumer) Resume(context.Context) error {
	if !c.e.IsOpen(Consumers, c.id) {
		return engine.ErrClosed
	}
	c.paused.Store(false)
	return nil
}

func (c *Consumer) Close() error {
	if !c.e.remove(Consumers, c.id) {
		return engine.ErrClosed
	}
	return nil
}
