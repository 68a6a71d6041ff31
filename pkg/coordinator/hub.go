package coordinator

import (
	"context"
	"errors"
	"net/http"

	"github.com/chaosgomoku/solive/pkg/api"
	"github.com/chaosgomoku/solive/pkg/com"
	"github.com/chaosgomoku/solive/pkg/config"
	"github.com/chaosgomoku/solive/pkg/directory"
	"github.com/chaosgomoku/solive/pkg/engine"
	"github.com/chaosgomoku/solive/pkg/live"
	"github.com/chaosgomoku/solive/pkg/logger"
	"github.com/chaosgomoku/solive/pkg/match"
	"github.com/chaosgomoku/solive/pkg/meeting"
	"github.com/chaosgomoku/solive/pkg/monitoring"
	"github.com/chaosgomoku/solive/pkg/persistence"
)

// Hub owns every connection and routes its packets to the room managers.
type Hub struct {
	conf      config.Config
	connector *com.Connector
	dir       *directory.Directory
	meeting   *meeting.Manager
	live      *live.Manager
	match     *match.Manager
	store     Store
	metrics   *monitoring.Metrics
	packets   map[api.PT]handler
	log       *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(conf config.Config, e engine.Engine, store Store, metrics *monitoring.Metrics, log *logger.Logger) *Hub {
	if store == nil {
		store = &memStore{}
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	log = log.Module("hub")

	var opts []com.Option
	if conf.Server.Origin != "" {
		opts = append(opts, com.WithOrigin(conf.Server.Origin))
	}

	dir := directory.New(log)
	meet := meeting.New(e, dir, store, meeting.Options{
		GlobalProducerBroadcast: conf.Meeting.GlobalProducerBroadcast,
		OnEngineError:           func(op string, _ error) { metrics.EngineErrors.WithLabelValues(op).Inc() },
	}, log)
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		conf:      conf,
		connector: com.NewConnector(opts...),
		dir:       dir,
		meeting:   meet,
		live:      live.New(conf.Live.FanOut, dir, meet, store, log),
		match:     match.New(dir, store, log),
		store:     store,
		metrics:   metrics,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
	h.packets = h.handlers()

	// run in this order on disconnect
	dir.AddReleaser(h.live.LeaveLiveRoom)
	dir.AddReleaser(h.meeting.Leave)
	dir.AddReleaser(h.match.Leave)
	dir.OnHeadCount(h.headCount)

	go h.watch(e)
	return h
}

// watch drops every meeting room once the engine is gone.
func (h *Hub) watch(e engine.Engine) {
	select {
	case <-e.Done():
		h.log.Error().Msg("media engine is gone, closing meeting rooms")
		h.meeting.Invalidate()
		h.gauges()
	case <-h.ctx.Done():
	}
}

func (h *Hub) Close() { h.cancel() }

func (h *Hub) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.connector.NewServer(w, r, h.log)
	if err != nil {
		h.log.Error().Err(err).Msg("socket upgrade")
		return
	}
	h.serve(conn)
}

// serve runs the connection until it is closed.
func (h *Hub) serve(conn *com.Client) {
	id := conn.Id().String()
	log := h.log.Extend(h.log.With().Str(logger.ClientField, conn.Id().Short()))
	log.Info().Msg("connected")

	conn.OnPacket(func(in api.In) { h.handle(conn, in) })
	conn.Notify(api.Init, api.InitResponse{Id: id, Ice: h.conf.Webrtc.IceServers, FanOut: h.live.FanOut()})
	h.dir.Register(id, conn)
	conn.Listen()

	select {
	case <-conn.Done():
	case <-h.ctx.Done():
		conn.Close()
		<-conn.Done()
	}
	h.dir.Unregister(id)
	log.Info().Msg("disconnected")
}

// handle runs the packet handler and answers the caller
// with its result or an error packet.
func (h *Hub) handle(conn *com.Client, in api.In) {
	fn, ok := h.packets[in.T]
	if !ok {
		h.log.Warn().Str(logger.ClientField, conn.Id().Short()).Msgf("unknown packet %v", in.T)
		return
	}
	ctx, cancel := context.WithTimeout(h.ctx, h.conf.Meeting.EngineTimeout)
	defer cancel()

	out, err := fn(ctx, conn.Id().String(), in)
	if err != nil {
		h.fail(conn, in, err)
	} else if out != nil || in.Id != "" {
		conn.Reply(in, out)
	}
	h.gauges()
}

func (h *Hub) fail(conn *com.Client, in api.In, err error) {
	t, payload := errorPacket(err)
	if t == api.Error {
		h.log.Warn().Err(err).Str(logger.ClientField, conn.Id().Short()).Msgf("%v failed", in.T)
	}
	_ = conn.Send(api.Out{Id: in.Id, T: t, Payload: payload})
}

func (h *Hub) headCount(count int) {
	h.dir.Broadcast(api.CurrentHeadCount, count)
	h.metrics.Connections.Set(float64(count))

	peak, err := h.store.UpdatePeak(count)
	if err != nil {
		h.log.Error().Err(err).Msg("peak update")
		return
	}
	h.dir.Broadcast(api.HistoryPeekUsers, historyPeek(peak))
}

func historyPeek(p persistence.Peak) api.HistoryPeek {
	return api.HistoryPeek{Peak: p.Count, Timestamp: p.At.UnixMilli()}
}

func (h *Hub) peak() (api.HistoryPeek, error) {
	p, err := h.store.Peak()
	if errors.Is(err, persistence.ErrNotFound) {
		return api.HistoryPeek{}, nil
	}
	if err != nil {
		return api.HistoryPeek{}, err
	}
	return historyPeek(p), nil
}

func (h *Hub) gauges() {
	h.metrics.MeetingRooms.Set(float64(h.meeting.Rooms()))
	h.metrics.LiveRooms.Set(float64(h.live.Rooms()))
	h.metrics.LiveViewers.Set(float64(h.live.Viewers()))
	h.metrics.GameRooms.Set(float64(h.match.Rooms()))
}

// Stats is a snapshot of the server state.
type Stats struct {
	Connections  int              `json:"connections"`
	MeetingRooms int              `json:"meetingRooms"`
	LiveRooms    int              `json:"liveRooms"`
	LiveViewers  int              `json:"liveViewers"`
	GameRooms    int              `json:"gameRooms"`
	Waiting      int              `json:"waitingPlayers"`
	Peak         *api.HistoryPeek `json:"peak,omitempty"`
}

func (h *Hub) Stats() Stats {
	s := Stats{
		Connections:  h.dir.Count(),
		MeetingRooms: h.meeting.Rooms(),
		LiveRooms:    h.live.Rooms(),
		LiveViewers:  h.live.Viewers(),
		GameRooms:    h.match.Rooms(),
		Waiting:      len(h.match.Queued()),
	}
	if p, err := h.peak(); err == nil && p.Peak > 0 {
		s.Peak = &p
	}
	return s
}
