package pion

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/chaosgomoku/solive/pkg/engine"
	"github.com/chaosgomoku/solive/pkg/logger"
	"github.com/pion/randutil"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
)

var ssrcGen = randutil.NewMathRandomGenerator()

type producer struct {
	id    string
	kind  engine.MediaKind
	codec engine.RtpCodec
	recv  *webrtc.RTPReceiver
	t     *transport

	ssrc   atomic.Uint32
	mu     sync.RWMutex
	sinks  map[string]*consumer
	closed bool
}

func newProducer(id string, kind engine.MediaKind, codec engine.RtpCodec, recv *webrtc.RTPReceiver, t *transport) *producer {
	return &producer{id: id, kind: kind, codec: codec, recv: recv, t: t, sinks: map[string]*consumer{}}
}

func (p *producer) Id() string             { return p.id }
func (p *producer) Kind() engine.MediaKind { return p.kind }
func (p *producer) Paused() bool           { return false }

// run pumps the received RTP into every unpaused consumer track
// until the receiver stops.
func (p *producer) run(params webrtc.RTPReceiveParameters, log *logger.Logger) {
	log = log.Extend(log.With().Str("producer", p.id))
	if err := p.recv.Receive(params); err != nil {
		log.Error().Err(err).Msg("receive")
		return
	}
	track := p.recv.Track()
	if track == nil {
		log.Warn().Msg("no remote track")
		return
	}
	p.ssrc.Store(uint32(track.SSRC()))
	log.Debug().Str("codec", track.Codec().MimeType).Msg("receiving")

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Msg("read rtp")
			}
			return
		}
		p.mu.RLock()
		for _, c := range p.sinks {
			if c.paused.Load() {
				continue
			}
			if err = c.track.WriteRTP(pkt); err != nil && !errors.Is(err, io.ErrClosedPipe) {
				log.Debug().Err(err).Str("consumer", c.id).Msg("write rtp")
			}
		}
		p.mu.RUnlock()
	}
}

// requestKeyFrame asks the sending peer for a fresh picture.
func (p *producer) requestKeyFrame() {
	ssrc := p.ssrc.Load()
	if p.kind != engine.Video || ssrc == 0 {
		return
	}
	if _, err := p.t.dtls.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: ssrc}}); err != nil {
		p.t.r.e.log.Debug().Err(err).Str("producer", p.id).Msg("pli")
	}
}

func (p *producer) attach(c *consumer) {
	p.mu.Lock()
	if !p.closed {
		p.sinks[c.id] = c
	}
	p.mu.Unlock()
}

func (p *producer) detach(c *consumer) {
	p.mu.Lock()
	delete(p.sinks, c.id)
	p.mu.Unlock()
}

func (p *producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return engine.ErrClosed
	}
	p.closed = true
	p.sinks = map[string]*consumer{}
	p.mu.Unlock()

	if err := p.recv.Stop(); err != nil {
		p.t.r.e.log.Debug().Err(err).Str("producer", p.id).Msg("receiver stop")
	}
	p.t.r.mu.Lock()
	delete(p.t.r.producers, p.id)
	p.t.r.mu.Unlock()
	return nil
}

type consumer struct {
	id     string
	p      *producer
	track  *webrtc.TrackLocalStaticRTP
	sender *webrtc.RTPSender
	ssrc   uint32

	paused atomic.Bool
	closed atomic.Bool
}

func newConsumer(id string, p *producer, track *webrtc.TrackLocalStaticRTP, sender *webrtc.RTPSender, paused bool) *consumer {
	c := &consumer{id: id, p: p, track: track, sender: sender, ssrc: ssrcGen.Uint32()}
	c.paused.Store(paused)
	return c
}

func (c *consumer) Id() string             { return c.id }
func (c *consumer) ProducerId() string     { return c.p.id }
func (c *consumer) Kind() engine.MediaKind { return c.p.kind }
func (c *consumer) Type() string           { return "simple" }
func (c *consumer) ProducerPaused() bool   { return c.p.Paused() }
func (c *consumer) Paused() bool           { return c.paused.Load() }

func (c *consumer) RtpParameters() engine.RtpParameters {
	return engine.RtpParameters{
		Codecs:    []engine.RtpCodec{c.p.codec},
		Encodings: []engine.RtpEncoding{{Ssrc: c.ssrc}},
	}
}

// drainRTCP reads the receiver reports of the consuming peer,
// picture loss goes up to the producer.
func (c *consumer) drainRTCP() {
	for {
		pkts, _, err := c.sender.ReadRTCP()
		if err != nil {
			return
		}
		for _, pkt := range pkts {
			switch pkt.(type) {
			case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
				c.p.requestKeyFrame()
			}
		}
	}
}

func (c *consumer) Resume(_ context.Context) error {
	if c.closed.Load() {
		return engine.ErrClosed
	}
	if c.paused.CompareAndSwap(true, false) {
		c.p.requestKeyFrame()
	}
	return nil
}

func (c *consumer) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return engine.ErrClosed
	}
	c.p.detach(c)
	if err := c.sender.Stop(); err != nil {
		c.p.t.r.e.log.Debug().Err(err).Str("consumer", c.id).Msg("sender stop")
	}
	return nil
}
