package coordinator

import (
	"errors"

	"github.com/chaosgomoku/solive/pkg/api"
	"github.com/chaosgomoku/solive/pkg/engine"
	"github.com/chaosgomoku/solive/pkg/live"
	"github.com/chaosgomoku/solive/pkg/match"
	"github.com/chaosgomoku/solive/pkg/meeting"
)

// anchorOffline is answered with its own packet instead of an error.
type anchorOffline struct{ room string }

func (e anchorOffline) Error() string { return "anchor is offline" }
func (e anchorOffline) Unwrap() error { return live.ErrAnchorOffline }

// errorPacket maps an operation error to the packet sent to the client.
func errorPacket(err error) (api.PT, any) {
	var offline anchorOffline
	if errors.As(err, &offline) {
		return api.AnchorOffline, api.LiveRoomResponse{LiveRoomId: offline.room}
	}
	return api.Error, api.ErrorResponse{Code: errorCode(err), Message: err.Error()}
}

func errorCode(err error) api.ErrorCode {
	switch {
	case errors.Is(err, api.ErrMalformed):
		return api.ErrCodeMalformed
	case errors.Is(err, engine.ErrEngineUnavailable):
		return api.ErrCodeEngineUnavailable
	case errors.Is(err, engine.ErrNotConsumable):
		return api.ErrCodeNotConsumable
	case errors.Is(err, meeting.ErrResourceNotFound):
		return api.ErrCodeResourceNotFound
	case errors.Is(err, meeting.ErrRoomNotFound),
		errors.Is(err, live.ErrRoomNotFound),
		errors.Is(err, live.ErrNotInRoom),
		errors.Is(err, match.ErrNotInRoom):
		return api.ErrCodeRoomNotFound
	case errors.Is(err, live.ErrAnchorOffline):
		return api.ErrCodeAnchorOffline
	case errors.Is(err, match.ErrRoomFull):
		return api.ErrCodeRoomFull
	default:
		return api.ErrCodeInternal
	}
}
