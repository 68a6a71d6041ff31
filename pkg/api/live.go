package api

import (
	"errors"

	"github.com/goccy/go-json"
)

type (
	LiveRoomRequest struct {
		LiveRoomId string `json:"liveRoomId"`
	}
	LiveRoomResponse struct {
		LiveRoomId string `json:"liveRoomId"`
	}
	// EnterLiveRoomResponse tells a viewer which node to pull the stream from.
	EnterLiveRoomResponse struct {
		LiveRoomId string `json:"liveRoomId"`
		ParentId   string `json:"parentId"`
		Depth      int    `json:"depth"`
	}
	// EnterLiveRoomNotice asks a parent to start serving a new child.
	EnterLiveRoomNotice struct {
		LiveRoomId string `json:"liveRoomId"`
		ViewerId   string `json:"viewerId"`
		IsAnchor   bool   `json:"isAnchor"`
	}
	IsRelayRequest struct {
		TargetId string `json:"targetId"`
	}
	SignalRequest struct {
		To   string          `json:"to"`
		Data json.RawMessage `json:"data"`
	}
	SignalNotice struct {
		From string          `json:"from"`
		Data json.RawMessage `json:"data"`
	}
	CoHostNotice struct {
		ViewerId string `json:"viewerId"`
		Nickname string `json:"nickname,omitempty"`
	}
	CoHostAnswerRequest struct {
		ViewerId string `json:"viewerId"`
		Accepted bool   `json:"accepted"`
	}
	CoHostAnswerNotice struct {
		AnchorId string `json:"anchorId"`
		Accepted bool   `json:"accepted"`
		// RoomId is the anchor's meeting room used to publish on stage.
		RoomId string `json:"roomId,omitempty"`
	}
)

func (r *LiveRoomRequest) Validate() error {
	if r.LiveRoomId == "" {
		return errors.New("no live room id")
	}
	return nil
}

func (r *IsRelayRequest) Validate() error {
	if r.TargetId == "" {
		return errors.New("no target id")
	}
	return nil
}

func (r *SignalRequest) Validate() error {
	if r.To == "" {
		return errors.New("no recipient")
	}
	if len(r.Data) == 0 {
		return errors.New("no data")
	}
	return nil
}

func (r *CoHostAnswerRequest) Validate() error {
	if r.ViewerId == "" {
		return errors.New("no viewer id")
	}
	return nil
}
