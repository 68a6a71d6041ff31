// Package engine defines the contract of the media-relay engine: routers,
// transports, producers and consumers. Every call is a fallible remote call,
// room state is never updated before a call succeeds.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEngineUnavailable = errors.New("engine unavailable")
	ErrNotConsumable     = errors.New("not consumable")
	ErrNotFound          = errors.New("engine resource not found")
	ErrClosed            = errors.New("engine resource closed")
)

// Unavailable wraps an engine failure so callers can match it
// with errors.Is(err, ErrEngineUnavailable).
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrEngineUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", op, ErrEngineUnavailable, err)
}

type MediaKind string

const (
	Audio MediaKind = "audio"
	Video MediaKind = "video"
)

func (k MediaKind) IsValid() bool { return k == Audio || k == Video }

// Direction tells what a transport is used for by its owner.
type Direction string

const (
	Producing Direction = "producer"
	Consuming Direction = "consumer"
)

func (d Direction) IsValid() bool { return d == Producing || d == Consuming }

type (
	RtpCodec struct {
		Kind        MediaKind `json:"kind"`
		MimeType    string    `json:"mimeType"`
		ClockRate   uint32    `json:"clockRate"`
		Channels    uint16    `json:"channels,omitempty"`
		PayloadType uint8     `json:"preferredPayloadType"`
		Fmtp        string    `json:"fmtp,omitempty"`
	}
	RtpCapabilities struct {
		Codecs []RtpCodec `json:"codecs"`
	}
	RtpEncoding struct {
		Ssrc uint32 `json:"ssrc,omitempty"`
		Rid  string `json:"rid,omitempty"`
	}
	RtpParameters struct {
		Mid       string        `json:"mid,omitempty"`
		Codecs    []RtpCodec    `json:"codecs"`
		Encodings []RtpEncoding `json:"encodings"`
	}
	IceParameters struct {
		UsernameFragment string `json:"usernameFragment"`
		Password         string `json:"password"`
		IceLite          bool   `json:"iceLite,omitempty"`
	}
	IceCandidate struct {
		Foundation string `json:"foundation"`
		Priority   uint32 `json:"priority"`
		Ip         string `json:"ip"`
		Protocol   string `json:"protocol"`
		Port       uint16 `json:"port"`
		Type       string `json:"type"`
	}
	DtlsFingerprint struct {
		Algorithm string `json:"algorithm"`
		Value     string `json:"value"`
	}
	DtlsParameters struct {
		Role         string            `json:"role,omitempty"`
		Fingerprints []DtlsFingerprint `json:"fingerprints"`
	}
	// TransportParams is what a client needs to set up its side of a transport.
	TransportParams struct {
		Id             string         `json:"id"`
		IceParameters  IceParameters  `json:"iceParameters"`
		IceCandidates  []IceCandidate `json:"iceCandidates"`
		DtlsParameters DtlsParameters `json:"dtlsParameters"`
	}
	// ConnectParams is the remote side of a transport handshake.
	ConnectParams struct {
		IceParameters  IceParameters  `json:"iceParameters"`
		IceCandidates  []IceCandidate `json:"iceCandidates"`
		DtlsParameters DtlsParameters `json:"dtlsParameters"`
	}
)

// Codec returns the first codec of the parameters or false.
func (p RtpParameters) Codec() (RtpCodec, bool) {
	if len(p.Codecs) == 0 {
		return RtpCodec{}, false
	}
	return p.Codecs[0], true
}

// Supports checks that the capabilities contain a codec with the same
// mime type and clock rate.
func (c RtpCapabilities) Supports(codec RtpCodec) bool {
	for _, cc := range c.Codecs {
		if strings.EqualFold(cc.MimeType, codec.MimeType) && cc.ClockRate == codec.ClockRate {
			return true
		}
	}
	return false
}

type Engine interface {
	CreateRouter(ctx context.Context) (Router, error)
	// Done is closed when the engine stops and every resource it made
	// becomes invalid.
	Done() <-chan struct{}
}

type Router interface {
	Id() string
	RtpCapabilities() RtpCapabilities
	CreateTransport(ctx context.Context) (Transport, error)
	CanConsume(producerId string, caps RtpCapabilities) bool
	Close() error
}

type Transport interface {
	Id() string
	Params() TransportParams
	Connect(ctx context.Context, params ConnectParams) error
	Produce(ctx context.Context, kind MediaKind, rtp RtpParameters) (Producer, error)
	Consume(ctx context.Context, producerId string, caps RtpCapabilities, paused bool) (Consumer, error)
	Close() error
}

type Producer interface {
	Id() string
	Kind() MediaKind
	Paused() bool
	Close() error
}

type Consumer interface {
	Id() string
	ProducerId() string
	Kind() MediaKind
	RtpParameters() RtpParameters
	// Type is the consumer flavor, "simple" for single-stream consumers.
	Type() string
	ProducerPaused() bool
	Paused() bool
	Resume(ctx context.Context) error
	Close() error
}
