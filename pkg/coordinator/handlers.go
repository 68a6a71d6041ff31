package coordinator

import (
	"context"
	"errors"

	"github.com/chaosgomoku/solive/pkg/api"
	"github.com/chaosgomoku/solive/pkg/directory"
	"github.com/chaosgomoku/solive/pkg/engine"
	"github.com/chaosgomoku/solive/pkg/live"
	"github.com/chaosgomoku/solive/pkg/match"
	"github.com/chaosgomoku/solive/pkg/meeting"
)

// handler serves one packet of the connection, a non-nil result is
// sent back to the caller.
type handler func(ctx context.Context, conn string, in api.In) (any, error)

// payload makes a handler of a validated request type.
func payload[T any, V interface {
	*T
	api.Validator
}](fn func(ctx context.Context, conn string, rq *T) (any, error)) handler {
	return func(ctx context.Context, conn string, in api.In) (any, error) {
		rq, err := api.Unwrap[T, V](in.Payload)
		if err != nil {
			return nil, err
		}
		return fn(ctx, conn, rq)
	}
}

// empty makes a handler of a request without payload.
func empty(fn func(ctx context.Context, conn string) (any, error)) handler {
	return func(ctx context.Context, conn string, _ api.In) (any, error) { return fn(ctx, conn) }
}

func (h *Hub) handlers() map[api.PT]handler {
	return map[api.PT]handler{
		api.CurrentHeadCount: empty(func(context.Context, string) (any, error) { return h.dir.Count(), nil }),
		api.HistoryPeekUsers: empty(func(context.Context, string) (any, error) { return h.peak() }),
		api.SetNickname:      payload(h.setNickname),

		api.CreateRoom:               empty(h.createRoom),
		api.EnterRoom:                payload(h.enterRoom),
		api.LeaveRoom:                empty(h.leaveRoom),
		api.GetRouterRtpCapabilities: empty(h.routerCapabilities),
		api.CreateProducerTransport:  empty(h.createTransport(engine.Producing)),
		api.CreateConsumerTransport:  empty(h.createTransport(engine.Consuming)),
		api.ConnectProducerTransport: payload(h.connectTransport(engine.Producing)),
		api.ConnectConsumerTransport: payload(h.connectTransport(engine.Consuming)),
		api.Produce:                  payload(h.produce),
		api.Consume:                  payload(h.consume(false)),
		api.ConsumeNewProducer:       payload(h.consume(true)),
		api.Resume:                   empty(h.resume),

		api.CreateLiveRoom:  empty(h.createLiveRoom),
		api.EnterLiveRoom:   payload(h.enterLiveRoom),
		api.LeaveLiveRoom:   empty(h.leaveLiveRoom),
		api.GetViewerNumber: empty(func(_ context.Context, conn string) (any, error) { return h.live.ViewerCount(conn) }),
		api.AnchorOffline:   empty(func(_ context.Context, conn string) (any, error) { return nil, h.live.AnchorOffline(conn) }),
		api.AnchorOnline:    empty(func(_ context.Context, conn string) (any, error) { return nil, h.live.AnchorOnline(conn) }),
		api.IsRelay:         payload(h.isRelay),
		api.LiveSignal:      payload(h.signal),
		api.CoHostRequest:   empty(h.requestCoHost),
		api.CoHostResponse:  payload(h.answerCoHost),
		api.CoHostExit:      empty(func(_ context.Context, conn string) (any, error) { return nil, h.live.ExitCoHost(conn) }),

		api.MatchRoom:    payload(h.matchRoom),
		api.JoinGameRoom: payload(h.joinGame),
		api.Step:         payload(h.step),
		api.LeaveGame:    empty(func(_ context.Context, conn string) (any, error) { h.match.Leave(conn); return nil, nil }),
	}
}

func (h *Hub) setNickname(_ context.Context, conn string, rq *api.SetNicknameRequest) (any, error) {
	h.dir.Update(conn, func(s *directory.Session) { s.Nickname = rq.Nickname })
	return nil, nil
}

// meeting

func (h *Hub) createRoom(ctx context.Context, conn string) (any, error) {
	id, err := h.meeting.CreateRoom(ctx, conn)
	if err != nil {
		return nil, err
	}
	h.setRole(conn, directory.RoleMember)
	return api.RoomResponse{RoomId: id}, nil
}

func (h *Hub) enterRoom(ctx context.Context, conn string, rq *api.RoomRequest) (any, error) {
	if err := h.meeting.EnterRoom(ctx, conn, rq.RoomId); err != nil {
		return nil, err
	}
	h.setRole(conn, directory.RoleMember)
	return api.RoomResponse{RoomId: rq.RoomId}, nil
}

func (h *Hub) leaveRoom(_ context.Context, conn string) (any, error) {
	h.meeting.Leave(conn)
	h.setRole(conn, directory.RoleNone)
	return nil, nil
}

func (h *Hub) routerCapabilities(_ context.Context, conn string) (any, error) {
	return h.meeting.RouterCapabilities(conn)
}

func (h *Hub) createTransport(dir engine.Direction) func(context.Context, string) (any, error) {
	return func(ctx context.Context, conn string) (any, error) {
		return h.meeting.CreateTransport(ctx, conn, dir)
	}
}

func (h *Hub) connectTransport(dir engine.Direction) func(context.Context, string, *api.ConnectTransportRequest) (any, error) {
	return func(ctx context.Context, conn string, rq *api.ConnectTransportRequest) (any, error) {
		err := h.meeting.ConnectTransport(ctx, conn, dir, rq.ConnectParams)
		if errors.Is(err, meeting.ErrResourceNotFound) {
			h.log.Debug().Str("dir", string(dir)).Msg("connect without a transport")
			return nil, nil
		}
		return nil, err
	}
}

func (h *Hub) produce(ctx context.Context, conn string, rq *api.ProduceRequest) (any, error) {
	id, err := h.meeting.Produce(ctx, conn, rq.Kind, rq.RtpParameters)
	if err != nil {
		return nil, err
	}
	return api.ProduceResponse{Id: id}, nil
}

func (h *Hub) consume(onlyNew bool) func(context.Context, string, *api.ConsumeRequest) (any, error) {
	return func(ctx context.Context, conn string, rq *api.ConsumeRequest) (any, error) {
		if onlyNew {
			return h.meeting.ConsumeNewProducer(ctx, conn, rq.RtpCapabilities)
		}
		return h.meeting.Consume(ctx, conn, rq.RtpCapabilities)
	}
}

func (h *Hub) resume(ctx context.Context, conn string) (any, error) {
	return nil, h.meeting.Resume(ctx, conn)
}

// live

func (h *Hub) createLiveRoom(_ context.Context, conn string) (any, error) {
	id := h.live.CreateLiveRoom(conn)
	h.setRole(conn, directory.RoleAnchor)
	return api.LiveRoomResponse{LiveRoomId: id}, nil
}

func (h *Hub) enterLiveRoom(_ context.Context, conn string, rq *api.LiveRoomRequest) (any, error) {
	resp, err := h.live.EnterLiveRoom(conn, rq.LiveRoomId)
	if errors.Is(err, live.ErrAnchorOffline) {
		return nil, anchorOffline{room: rq.LiveRoomId}
	}
	if err != nil {
		return nil, err
	}
	h.setRole(conn, directory.RoleViewer)
	return resp, nil
}

func (h *Hub) leaveLiveRoom(_ context.Context, conn string) (any, error) {
	h.live.LeaveLiveRoom(conn)
	h.setRole(conn, directory.RoleNone)
	return nil, nil
}

func (h *Hub) isRelay(_ context.Context, conn string, rq *api.IsRelayRequest) (any, error) {
	return h.live.IsRelay(conn, rq.TargetId)
}

func (h *Hub) signal(_ context.Context, conn string, rq *api.SignalRequest) (any, error) {
	return nil, h.live.Signal(conn, rq.To, rq.Data)
}

func (h *Hub) requestCoHost(_ context.Context, conn string) (any, error) {
	s, _ := h.dir.Session(conn)
	return nil, h.live.RequestCoHost(conn, s.Nickname)
}

func (h *Hub) answerCoHost(_ context.Context, conn string, rq *api.CoHostAnswerRequest) (any, error) {
	return nil, h.live.AnswerCoHost(conn, rq.ViewerId, rq.Accepted)
}

// game

func (h *Hub) matchRoom(_ context.Context, conn string, rq *api.MatchRequest) (any, error) {
	h.dir.Update(conn, func(s *directory.Session) { s.Role, s.Device = directory.RolePlayer, rq.Profile })
	h.match.Match(conn, rq.Profile)
	return nil, nil
}

func (h *Hub) joinGame(_ context.Context, conn string, rq *api.JoinGameRequest) (any, error) {
	err := h.match.Join(conn, rq.RoomId, rq.Nickname, rq.Profile)
	if errors.Is(err, match.ErrRoomFull) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	h.dir.Update(conn, func(s *directory.Session) {
		s.Role, s.Device, s.Nickname = directory.RolePlayer, rq.Profile, rq.Nickname
	})
	return nil, nil
}

func (h *Hub) step(_ context.Context, conn string, rq *api.StepRequest) (any, error) {
	return nil, h.match.Step(conn, *rq)
}

func (h *Hub) setRole(conn string, role directory.Role) {
	h.dir.Update(conn, func(s *directory.Session) { s.Role = role })
}
