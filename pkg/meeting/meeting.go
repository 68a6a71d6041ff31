// Package meeting manages multi-party meeting rooms and the media
// resources of their members.
//
// A connection is a member of at most one meeting room. Every resource
// is created through the media engine first and stored only on success,
// releases never fail and always drop the local entry.
package meeting

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chaosgomoku/solive/pkg/api"
	"github.com/chaosgomoku/solive/pkg/com"
	"github.com/chaosgomoku/solive/pkg/engine"
	"github.com/chaosgomoku/solive/pkg/logger"
	"github.com/chaosgomoku/solive/pkg/persistence"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrResourceNotFound = errors.New("resource not found")
)

const idDigits = 12

// RoomId derives the meeting room id of a creator connection.
func RoomId(conn string) string { return com.NumericId("meeting", conn, idDigits) }

// Notifier delivers packets to connections.
type Notifier interface {
	Notify(id string, t api.PT, payload any) bool
	Broadcast(t api.PT, payload any, except ...string)
	BroadcastRoom(room string, t api.PT, payload any, except ...string)
	SetRoom(id string, room string) bool
}

// Auditor receives room creation records.
type Auditor interface {
	SaveRoom(r persistence.Record) (persistence.Record, error)
}

type Options struct {
	// GlobalProducerBroadcast announces new producers to every connection
	// instead of the producer's room.
	GlobalProducerBroadcast bool
	// OnEngineError is called for every failed engine call.
	OnEngineError func(op string, err error)
}

type Manager struct {
	engine engine.Engine
	notify Notifier
	audit  Auditor
	opts   Options
	log    *logger.Logger

	mu      sync.Mutex
	rooms   map[string]*Room
	members map[string]*Room
}

func New(e engine.Engine, n Notifier, audit Auditor, opts Options, log *logger.Logger) *Manager {
	if opts.OnEngineError == nil {
		opts.OnEngineError = func(string, error) {}
	}
	return &Manager{
		engine:  e,
		notify:  n,
		audit:   audit,
		opts:    opts,
		log:     log.Module("meeting"),
		rooms:   map[string]*Room{},
		members: map[string]*Room{},
	}
}

func (m *Manager) clog(conn string) *logger.Logger {
	return m.log.Extend(m.log.With().Str(logger.ClientField, conn))
}

func (m *Manager) engineError(op string, err error) error {
	m.opts.OnEngineError(op, err)
	return engine.Unavailable(op, err)
}

// Rooms returns the number of active meeting rooms.
func (m *Manager) Rooms() int { m.mu.Lock(); defer m.mu.Unlock(); return len(m.rooms) }

// Room returns the room by its id.
func (m *Manager) Room(id string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	return r, ok
}

// RoomOf returns the room id of a member or an empty string.
func (m *Manager) RoomOf(conn string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.members[conn]; ok {
		return r.Id
	}
	return ""
}

func (m *Manager) roomOf(conn string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.members[conn]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// CreateRoom makes a room with the id derived from the caller and joins it.
// On engine failure the caller stays out of any room.
func (m *Manager) CreateRoom(ctx context.Context, conn string) (string, error) {
	id := RoomId(conn)
	if err := m.join(ctx, conn, id); err != nil {
		return "", err
	}
	return id, nil
}

// EnterRoom joins the room, creating it when it doesn't exist.
// The previous room of the caller is left first.
func (m *Manager) EnterRoom(ctx context.Context, conn string, roomId string) error {
	return m.join(ctx, conn, roomId)
}

func (m *Manager) join(ctx context.Context, conn string, id string) error {
	if m.RoomOf(conn) == id {
		return nil
	}
	m.Leave(conn)

	for {
		room, created, err := m.getOrCreate(ctx, conn, id)
		if err != nil {
			return err
		}
		room.mu.Lock()
		if room.closed {
			room.mu.Unlock()
			continue
		}
		room.members[conn] = struct{}{}
		room.mu.Unlock()

		m.mu.Lock()
		m.members[conn] = room
		m.mu.Unlock()
		m.notify.SetRoom(conn, id)
		if created {
			m.saveRoom(conn, id)
		}
		m.clog(conn).Info().Str(logger.RoomField, id).Msg("joined meeting room")
		return nil
	}
}

func (m *Manager) getOrCreate(ctx context.Context, conn string, id string) (*Room, bool, error) {
	m.mu.Lock()
	room, ok := m.rooms[id]
	m.mu.Unlock()
	if ok {
		return room, false, nil
	}

	router, err := m.engine.CreateRouter(ctx)
	if err != nil {
		return nil, false, m.engineError("create router", err)
	}

	m.mu.Lock()
	if existing, ok := m.rooms[id]; ok {
		m.mu.Unlock()
		_ = router.Close()
		return existing, false, nil
	}
	room = newRoom(id, router)
	m.rooms[id] = room
	m.mu.Unlock()
	m.clog(conn).Debug().Str(logger.RoomField, id).Str("router", router.Id()).Msg("meeting room created")
	return room, true, nil
}

func (m *Manager) saveRoom(conn string, id string) {
	if m.audit == nil {
		return
	}
	go func() {
		if _, err := m.audit.SaveRoom(persistence.Record{Kind: persistence.KindMeeting, RoomId: id, A: conn}); err != nil {
			m.log.Warn().Err(err).Msg("room audit")
		}
	}()
}

func (m *Manager) RouterCapabilities(conn string) (engine.RtpCapabilities, error) {
	room, err := m.roomOf(conn)
	if err != nil {
		return engine.RtpCapabilities{}, err
	}
	return room.router.RtpCapabilities(), nil
}

// CreateTransport makes a new transport of the direction for the caller.
// A previous transport of the same direction is closed together with the
// resources made on it.
func (m *Manager) CreateTransport(ctx context.Context, conn string, dir engine.Direction) (engine.TransportParams, error) {
	room, err := m.roomOf(conn)
	if err != nil {
		return engine.TransportParams{}, err
	}
	t, err := room.router.CreateTransport(ctx)
	if err != nil {
		return engine.TransportParams{}, m.engineError("create transport", err)
	}

	log := m.clog(conn)
	var closed []string
	room.mu.Lock()
	if room.closed || !room.has(conn) {
		room.mu.Unlock()
		_ = t.Close()
		return engine.TransportParams{}, ErrRoomNotFound
	}
	if _, ok := room.transports(dir)[conn]; ok {
		if dir == engine.Producing {
			closed = room.closeProducers(conn, log)
		} else {
			room.closeConsumers(conn, log)
		}
		room.closeTransport(conn, dir, log)
		log.Debug().Msgf("%v transport replaced", dir)
	}
	room.transports(dir)[conn] = t
	room.mu.Unlock()

	m.producersClosed(room, conn, closed)
	return t.Params(), nil
}

// ConnectTransport completes the handshake of the caller's transport,
// ErrResourceNotFound when there is no such transport.
func (m *Manager) ConnectTransport(ctx context.Context, conn string, dir engine.Direction, params engine.ConnectParams) error {
	room, err := m.roomOf(conn)
	if err != nil {
		return ErrResourceNotFound
	}
	room.mu.Lock()
	t, ok := room.transports(dir)[conn]
	room.mu.Unlock()
	if !ok {
		return ErrResourceNotFound
	}
	if err = t.Connect(ctx, params); err != nil {
		return m.engineError("connect transport", err)
	}
	return nil
}

// Produce publishes a new media source of the caller and announces it.
func (m *Manager) Produce(ctx context.Context, conn string, kind engine.MediaKind, rtp engine.RtpParameters) (string, error) {
	room, err := m.roomOf(conn)
	if err != nil {
		return "", err
	}
	room.mu.Lock()
	if room.closed || !room.has(conn) {
		room.mu.Unlock()
		return "", ErrRoomNotFound
	}
	t, ok := room.producerTransports[conn]
	if !ok {
		room.mu.Unlock()
		return "", fmt.Errorf("no producer transport: %w", ErrResourceNotFound)
	}
	p, err := t.Produce(ctx, kind, rtp)
	if err != nil {
		room.mu.Unlock()
		if errors.Is(err, engine.ErrNotConsumable) {
			return "", err
		}
		return "", m.engineError("produce", err)
	}
	if room.producers[conn] == nil {
		room.producers[conn] = map[string]engine.Producer{}
	}
	room.producers[conn][p.Id()] = p
	room.mu.Unlock()

	notice := api.NewProducerNotice{PeerId: conn, ProducerId: p.Id(), Kind: kind}
	if m.opts.GlobalProducerBroadcast {
		m.notify.Broadcast(api.NewProducer, notice, conn)
	} else {
		m.notify.BroadcastRoom(room.Id, api.NewProducer, notice, conn)
	}
	m.clog(conn).Debug().Str("producer", p.Id()).Msgf("new %v producer", kind)
	return p.Id(), nil
}

// Consume subscribes the caller to every producer of the other members.
func (m *Manager) Consume(ctx context.Context, conn string, caps engine.RtpCapabilities) ([]api.ConsumerInfo, error) {
	return m.consume(ctx, conn, caps, false)
}

// ConsumeNewProducer subscribes the caller only to producers
// it doesn't consume yet.
func (m *Manager) ConsumeNewProducer(ctx context.Context, conn string, caps engine.RtpCapabilities) ([]api.ConsumerInfo, error) {
	return m.consume(ctx, conn, caps, true)
}

func (m *Manager) consume(ctx context.Context, conn string, caps engine.RtpCapabilities, onlyNew bool) ([]api.ConsumerInfo, error) {
	room, err := m.roomOf(conn)
	if err != nil {
		return nil, err
	}
	log := m.clog(conn)

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed {
		return nil, ErrRoomNotFound
	}
	t, ok := room.consumerTransports[conn]
	if !ok {
		log.Warn().Msg("consume without a consumer transport")
		return []api.ConsumerInfo{}, nil
	}

	out := []api.ConsumerInfo{}
	for _, peer := range room.sortedMembers() {
		if peer == conn {
			continue
		}
		for _, pid := range sortedKeys(room.producers[peer]) {
			p := room.producers[peer][pid]
			old, consumed := room.consumers[conn][pid]
			if onlyNew && consumed {
				continue
			}
			if !room.router.CanConsume(pid, caps) {
				log.Warn().Str("producer", pid).Msg("can't consume")
				continue
			}
			if consumed {
				_ = old.Close()
				delete(room.consumers[conn], pid)
			}
			c, err := t.Consume(ctx, pid, caps, p.Kind() == engine.Video)
			if err != nil {
				if !errors.Is(err, engine.ErrNotConsumable) {
					m.opts.OnEngineError("consume", err)
				}
				log.Warn().Err(err).Str("producer", pid).Msg("consume fail")
				continue
			}
			if room.consumers[conn] == nil {
				room.consumers[conn] = map[string]engine.Consumer{}
			}
			room.consumers[conn][pid] = c
			out = append(out, api.ConsumerInfo{
				PeerId:         peer,
				ProducerId:     pid,
				Id:             c.Id(),
				Kind:           c.Kind(),
				RtpParameters:  c.RtpParameters(),
				Type:           c.Type(),
				ProducerPaused: c.ProducerPaused(),
			})
		}
	}
	return out, nil
}

// Resume resumes every consumer of the caller.
func (m *Manager) Resume(ctx context.Context, conn string) error {
	room, err := m.roomOf(conn)
	if err != nil {
		return err
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	for pid, c := range room.consumers[conn] {
		if err := c.Resume(ctx); err != nil {
			m.opts.OnEngineError("resume", err)
			m.clog(conn).Warn().Err(err).Str("producer", pid).Msg("resume fail")
		}
	}
	return nil
}

// ReleaseProducers closes the caller's producers and their consumers
// but keeps the caller in the room.
func (m *Manager) ReleaseProducers(conn string) {
	room, err := m.roomOf(conn)
	if err != nil {
		return
	}
	room.mu.Lock()
	closed := room.closeProducers(conn, m.clog(conn))
	room.mu.Unlock()
	m.producersClosed(room, conn, closed)
}

// Leave releases everything the caller holds in its room.
// It's safe to call for connections in no room.
func (m *Manager) Leave(conn string) {
	m.mu.Lock()
	room, ok := m.members[conn]
	delete(m.members, conn)
	m.mu.Unlock()
	if !ok {
		return
	}
	log := m.clog(conn)

	room.mu.Lock()
	closed := room.release(conn, log)
	delete(room.members, conn)
	empty := len(room.members) == 0 && !room.closed
	if empty {
		room.closed = true
		if err := room.router.Close(); err != nil {
			log.Debug().Err(err).Msg("router close")
		}
		// a closed room leaves the index before anyone can lock it again
		m.mu.Lock()
		if m.rooms[room.Id] == room {
			delete(m.rooms, room.Id)
		}
		m.mu.Unlock()
	}
	room.mu.Unlock()

	if empty {
		log.Debug().Str(logger.RoomField, room.Id).Msg("meeting room closed")
	}

	m.notify.SetRoom(conn, "")
	m.producersClosed(room, conn, closed)
	m.notify.BroadcastRoom(room.Id, api.PeerLeft, api.PeerNotice{PeerId: conn}, conn)
	log.Info().Str(logger.RoomField, room.Id).Msg("left meeting room")
}

func (m *Manager) producersClosed(room *Room, conn string, ids []string) {
	if len(ids) == 0 {
		return
	}
	m.notify.BroadcastRoom(room.Id, api.ProducerClosed, api.ProducerClosedNotice{PeerId: conn, ProducerIds: ids}, conn)
}

// Invalidate drops every room without engine calls, used when
// the engine is gone together with all of its resources.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	rooms := m.rooms
	m.rooms = map[string]*Room{}
	m.members = map[string]*Room{}
	m.mu.Unlock()

	for _, room := range rooms {
		room.mu.Lock()
		room.closed = true
		members := room.sortedMembers()
		room.mu.Unlock()
		for _, conn := range members {
			m.notify.Notify(conn, api.RoomClosed, api.RoomResponse{RoomId: room.Id})
			m.notify.SetRoom(conn, "")
		}
	}
	m.log.Warn().Msgf("%v meeting rooms invalidated", len(rooms))
}
