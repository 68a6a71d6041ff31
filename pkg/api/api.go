// Package api defines the signaling API between clients and the server.
//
// Each API call (request and response) is a JSON-encoded "packet" of the following structure:
//
//	id - (optional) a packet id, replies carry the id of the request;
//	 t - (required) one of the predefined unique packet types;
//	 p - (optional) packet payload with arbitrary data.
//
// The packets differentiate by their predefined types with which it is possible
// to unwrap the payload into distinct request/response data structures.
// Every inbound payload is validated before it reaches the room managers.
//
// Example:
//
//	{"id":"1","t":21,"p":{"roomId":"123456789012"}}
package api

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

type PT uint8

type In struct {
	Id      string          `json:"id,omitempty"`
	T       PT              `json:"t"`
	Payload json.RawMessage `json:"p,omitempty"`
}

func (i In) GetId() string      { return i.Id }
func (i In) GetPayload() []byte { return i.Payload }
func (i In) GetType() PT        { return i.T }

type Out struct {
	Id      string `json:"id,omitempty"`
	T       PT     `json:"t"`
	Payload any    `json:"p,omitempty"`
}

// Packet codes:
//
//	1-19    session
//	20-59   meeting rooms
//	60-99   live rooms
//	100-129 game rooms
const (
	Init             PT = 1
	CurrentHeadCount PT = 2
	HistoryPeekUsers PT = 3
	Error            PT = 4
	Message          PT = 5
	SetNickname      PT = 6

	CreateRoom               PT = 20
	EnterRoom                PT = 21
	LeaveRoom                PT = 22
	GetRouterRtpCapabilities PT = 23
	CreateProducerTransport  PT = 24
	CreateConsumerTransport  PT = 25
	ConnectProducerTransport PT = 26
	ConnectConsumerTransport PT = 27
	Produce                  PT = 28
	Consume                  PT = 29
	ConsumeNewProducer       PT = 30
	Resume                   PT = 31
	NewProducer              PT = 32
	PeerLeft                 PT = 33
	RoomClosed               PT = 34
	ProducerClosed           PT = 35

	CreateLiveRoom       PT = 60
	EnterLiveRoom        PT = 61
	LeaveLiveRoom        PT = 62
	EnterLiveRoomRequest PT = 63
	ReconnectLiveRoom    PT = 64
	GetViewerNumber      PT = 65
	AnchorOffline        PT = 66
	AnchorOnline         PT = 67
	LiveRoomClosed       PT = 68
	IsRelay              PT = 69
	LiveSignal           PT = 70
	CoHostRequest        PT = 71
	CoHostResponse       PT = 72
	CoHostExit           PT = 73
	CoHostExited         PT = 74

	MatchRoom         PT = 100
	JoinGameRoom      PT = 101
	Step              PT = 102
	SetPieceType      PT = 103
	SetItemSeed       PT = 104
	SetRoomDeviceType PT = 105
	MatchedRoomId     PT = 106
	OpponentLeft      PT = 107
	OpponentOffline   PT = 108
	RoomFull          PT = 109
	LeaveGame         PT = 110
)

var names = map[PT]string{
	Init:                     "Init",
	CurrentHeadCount:         "CurrentHeadCount",
	HistoryPeekUsers:         "HistoryPeekUsers",
	Error:                    "Error",
	Message:                  "Message",
	SetNickname:              "SetNickname",
	CreateRoom:               "CreateRoom",
	EnterRoom:                "EnterRoom",
	LeaveRoom:                "LeaveRoom",
	GetRouterRtpCapabilities: "GetRouterRtpCapabilities",
	CreateProducerTransport:  "CreateProducerTransport",
	CreateConsumerTransport:  "CreateConsumerTransport",
	ConnectProducerTransport: "ConnectProducerTransport",
	ConnectConsumerTransport: "ConnectConsumerTransport",
	Produce:                  "Produce",
	Consume:                  "Consume",
	ConsumeNewProducer:       "ConsumeNewProducer",
	Resume:                   "Resume",
	NewProducer:              "NewProducer",
	PeerLeft:                 "PeerLeft",
	RoomClosed:               "RoomClosed",
	ProducerClosed:           "ProducerClosed",
	CreateLiveRoom:           "CreateLiveRoom",
	EnterLiveRoom:            "EnterLiveRoom",
	LeaveLiveRoom:            "LeaveLiveRoom",
	EnterLiveRoomRequest:     "EnterLiveRoomRequest",
	ReconnectLiveRoom:        "ReconnectLiveRoom",
	GetViewerNumber:          "GetViewerNumber",
	AnchorOffline:            "AnchorOffline",
	AnchorOnline:             "AnchorOnline",
	LiveRoomClosed:           "LiveRoomClosed",
	IsRelay:                  "IsRelay",
	LiveSignal:               "LiveSignal",
	CoHostRequest:            "CoHostRequest",
	CoHostResponse:           "CoHostResponse",
	CoHostExit:               "CoHostExit",
	CoHostExited:             "CoHostExited",
	MatchRoom:                "MatchRoom",
	JoinGameRoom:             "JoinGameRoom",
	Step:                     "Step",
	SetPieceType:             "SetPieceType",
	SetItemSeed:              "SetItemSeed",
	SetRoomDeviceType:        "SetRoomDeviceType",
	MatchedRoomId:            "MatchedRoomId",
	OpponentLeft:             "OpponentLeft",
	OpponentOffline:          "OpponentOffline",
	RoomFull:                 "RoomFull",
	LeaveGame:                "LeaveGame",
}

func (p PT) String() string {
	if n, ok := names[p]; ok {
		return n
	}
	return fmt.Sprintf("Unknown(%d)", uint8(p))
}

var ErrMalformed = errors.New("malformed")

type Validator interface {
	Validate() error
}

// Unwrap decodes a packet payload and validates it.
func Unwrap[T any, V interface {
	*T
	Validator
}](data []byte) (*T, error) {
	out := new(T)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := V(out).Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return out, nil
}

// Error codes sent with the Error packet.
type ErrorCode int

const (
	ErrCodeRoomNotFound      ErrorCode = 1000
	ErrCodeEngineUnavailable ErrorCode = 1001
	ErrCodeResourceNotFound  ErrorCode = 1002
	ErrCodeAnchorOffline     ErrorCode = 1003
	ErrCodeRoomFull          ErrorCode = 1004
	ErrCodeMalformed         ErrorCode = 1005
	ErrCodeNotConsumable     ErrorCode = 1006
	ErrCodeInternal          ErrorCode = 1099
)

type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}
