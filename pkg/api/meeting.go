package api

import (
	"errors"
	"fmt"

	"github.com/chaosgomoku/solive/pkg/engine"
)

type (
	RoomRequest struct {
		RoomId string `json:"roomId"`
	}
	RoomResponse struct {
		RoomId string `json:"roomId"`
	}
	ConnectTransportRequest struct {
		engine.ConnectParams
	}
	ProduceRequest struct {
		Kind          engine.MediaKind     `json:"kind"`
		RtpParameters engine.RtpParameters `json:"rtpParameters"`
	}
	ProduceResponse struct {
		Id string `json:"id"`
	}
	ConsumeRequest struct {
		RtpCapabilities engine.RtpCapabilities `json:"rtpCapabilities"`
	}
	// ConsumerInfo describes one created consumer.
	ConsumerInfo struct {
		PeerId         string               `json:"peerId"`
		ProducerId     string               `json:"producerId"`
		Id             string               `json:"id"`
		Kind           engine.MediaKind     `json:"kind"`
		RtpParameters  engine.RtpParameters `json:"rtpParameters"`
		Type           string               `json:"type"`
		ProducerPaused bool                 `json:"producerPaused"`
	}
	NewProducerNotice struct {
		PeerId     string           `json:"peerId"`
		ProducerId string           `json:"producerId"`
		Kind       engine.MediaKind `json:"kind"`
	}
	PeerNotice struct {
		PeerId string `json:"peerId"`
	}
	ProducerClosedNotice struct {
		PeerId      string   `json:"peerId"`
		ProducerIds []string `json:"producerIds"`
	}
)

func (r *RoomRequest) Validate() error {
	if r.RoomId == "" {
		return errors.New("no room id")
	}
	if len(r.RoomId) > 64 {
		return errors.New("room id is too long")
	}
	return nil
}

func (r *ConnectTransportRequest) Validate() error {
	if r.IceParameters.UsernameFragment == "" || r.IceParameters.Password == "" {
		return errors.New("no ice parameters")
	}
	if len(r.DtlsParameters.Fingerprints) == 0 {
		return errors.New("no dtls fingerprints")
	}
	return nil
}

func (r *ProduceRequest) Validate() error {
	if !r.Kind.IsValid() {
		return fmt.Errorf("bad media kind %q", r.Kind)
	}
	if len(r.RtpParameters.Codecs) == 0 {
		return errors.New("no codecs")
	}
	if len(r.RtpParameters.Encodings) == 0 {
		return errors.New("no encodings")
	}
	return nil
}

func (r *ConsumeRequest) Validate() error {
	if len(r.RtpCapabilities.Codecs) == 0 {
		return errors.New("no rtp capabilities")
	}
	return nil
}
