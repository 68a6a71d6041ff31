// Package live builds relay trees for one-to-many live broadcasts.
//
// The anchor is the root of the tree of its live room, every viewer pulls
// the stream from its parent and pushes it to at most K children. Viewers
// are placed breadth-first so the tree stays shallow, a leaving relay makes
// every viewer of its subtree enter the room again.
package live

import (
	"errors"
	"sync"

	"github.com/chaosgomoku/solive/pkg/api"
	"github.com/chaosgomoku/solive/pkg/com"
	"github.com/chaosgomoku/solive/pkg/logger"
	"github.com/chaosgomoku/solive/pkg/persistence"
)

var (
	ErrRoomNotFound  = errors.New("live room not found")
	ErrAnchorOffline = errors.New("anchor offline")
	ErrNotInRoom     = errors.New("not in the live room")
)

const idDigits = 8

// RoomId derives the live room id of an anchor connection.
func RoomId(anchor string) string { return com.NumericId("live", anchor, idDigits) }

type Notifier interface {
	Notify(id string, t api.PT, payload any) bool
}

// Stage is the meeting side of co-hosting.
type Stage interface {
	RoomOf(conn string) string
	ReleaseProducers(conn string)
}

type Auditor interface {
	SaveRoom(r persistence.Record) (persistence.Record, error)
}

type Room struct {
	Id     string
	Anchor string

	mu      sync.Mutex
	tree    *Tree
	offline bool
	waiting []string
	pending map[string]struct{}
	coHosts map[string]struct{}
	closed  bool
}

func (r *Room) viewers() int { return r.tree.Len() - 1 }

func (r *Room) isWaiting(conn string) bool {
	for _, w := range r.waiting {
		if w == conn {
			return true
		}
	}
	return false
}

func (r *Room) removeWaiting(conn string) bool {
	for i, w := range r.waiting {
		if w == conn {
			r.waiting = append(r.waiting[:i], r.waiting[i+1:]...)
			return true
		}
	}
	return false
}

// Tree calls fn with the room tree under the room lock.
func (r *Room) Tree(fn func(t *Tree)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.tree)
}

type Manager struct {
	fanOut int
	notify Notifier
	stage  Stage
	audit  Auditor
	log    *logger.Logger

	mu      sync.Mutex
	rooms   map[string]*Room
	members map[string]*Room
}

func New(fanOut int, n Notifier, stage Stage, audit Auditor, log *logger.Logger) *Manager {
	if fanOut < 1 {
		fanOut = 1
	}
	return &Manager{
		fanOut:  fanOut,
		notify:  n,
		stage:   stage,
		audit:   audit,
		log:     log.Module("live"),
		rooms:   map[string]*Room{},
		members: map[string]*Room{},
	}
}

func (m *Manager) clog(conn string) *logger.Logger {
	return m.log.Extend(m.log.With().Str(logger.ClientField, conn))
}

func (m *Manager) FanOut() int { return m.fanOut }

func (m *Manager) Room(id string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	return r, ok
}

func (m *Manager) roomOf(conn string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.members[conn]
	return r, ok
}

// Rooms returns the number of live rooms.
func (m *Manager) Rooms() int { m.mu.Lock(); defer m.mu.Unlock(); return len(m.rooms) }

// Viewers returns the number of viewers in all live rooms.
func (m *Manager) Viewers() int {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()
	n := 0
	for _, r := range rooms {
		r.mu.Lock()
		n += r.viewers()
		r.mu.Unlock()
	}
	return n
}

// ViewerCount returns the number of viewers in the live room of the connection.
func (m *Manager) ViewerCount(conn string) (int, error) {
	room, ok := m.roomOf(conn)
	if !ok {
		return 0, ErrNotInRoom
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.viewers(), nil
}

// CreateLiveRoom starts a live room of the anchor,
// a repeated call returns the same room.
func (m *Manager) CreateLiveRoom(anchor string) string {
	id := RoomId(anchor)
	if prev, ok := m.roomOf(anchor); ok && prev.Id != id {
		m.LeaveLiveRoom(anchor)
	}

	m.mu.Lock()
	if _, ok := m.rooms[id]; ok {
		m.mu.Unlock()
		return id
	}
	room := &Room{
		Id:      id,
		Anchor:  anchor,
		tree:    NewTree(anchor, m.fanOut),
		pending: map[string]struct{}{},
		coHosts: map[string]struct{}{},
	}
	m.rooms[id] = room
	m.members[anchor] = room
	m.mu.Unlock()

	if m.audit != nil {
		go func() {
			if _, err := m.audit.SaveRoom(persistence.Record{Kind: persistence.KindLive, RoomId: id, A: anchor}); err != nil {
				m.log.Warn().Err(err).Msg("room audit")
			}
		}()
	}
	m.clog(anchor).Info().Str(logger.RoomField, id).Msg("live room created")
	return id
}

// EnterLiveRoom puts the viewer into the tree under the first node with
// a free slot and asks that node to serve the viewer. While the anchor is
// offline the viewer waits and gets ErrAnchorOffline.
func (m *Manager) EnterLiveRoom(conn string, id string) (api.EnterLiveRoomResponse, error) {
	room, ok := m.Room(id)
	if !ok {
		return api.EnterLiveRoomResponse{}, ErrRoomNotFound
	}
	if prev, ok := m.roomOf(conn); ok && prev != room {
		m.LeaveLiveRoom(conn)
	}

	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return api.EnterLiveRoomResponse{}, ErrRoomNotFound
	}
	if room.tree.Has(conn) {
		parent, _ := room.tree.Parent(conn)
		resp := api.EnterLiveRoomResponse{LiveRoomId: id, ParentId: parent, Depth: room.tree.Level(conn)}
		room.mu.Unlock()
		return resp, nil
	}
	if room.offline {
		if !room.isWaiting(conn) {
			room.waiting = append(room.waiting, conn)
		}
		m.setMember(conn, room)
		room.mu.Unlock()
		m.clog(conn).Debug().Str(logger.RoomField, id).Msg("waiting for the anchor")
		return api.EnterLiveRoomResponse{}, ErrAnchorOffline
	}
	parent, err := room.tree.Insert(conn)
	if err != nil {
		room.mu.Unlock()
		return api.EnterLiveRoomResponse{}, err
	}
	resp := api.EnterLiveRoomResponse{LiveRoomId: id, ParentId: parent, Depth: room.tree.Level(conn)}
	m.setMember(conn, room)
	room.mu.Unlock()

	m.notify.Notify(parent, api.EnterLiveRoomRequest, api.EnterLiveRoomNotice{
		LiveRoomId: id,
		ViewerId:   conn,
		IsAnchor:   parent == room.Anchor,
	})
	m.clog(conn).Info().Str(logger.RoomField, id).Str("parent", parent).Msgf("entered live room at level %v", resp.Depth)
	m.broadcastViewers(room)
	return resp, nil
}

// setMember must be called with room.mu held, so closing the room or
// detaching a subtree never misses the new member. The lock order is
// room.mu then m.mu.
func (m *Manager) setMember(conn string, room *Room) {
	m.mu.Lock()
	m.members[conn] = room
	m.mu.Unlock()
}

// LeaveLiveRoom detaches the connection from its live room.
// The anchor leaving closes the room for everyone.
func (m *Manager) LeaveLiveRoom(conn string) {
	m.mu.Lock()
	room, ok := m.members[conn]
	delete(m.members, conn)
	m.mu.Unlock()
	if !ok {
		return
	}
	if conn == room.Anchor {
		m.closeRoom(room)
		return
	}

	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return
	}
	delete(room.pending, conn)
	_, wasCoHost := room.coHosts[conn]
	delete(room.coHosts, conn)
	if room.removeWaiting(conn) {
		room.mu.Unlock()
		return
	}
	dropped, err := room.tree.Detach(conn)
	var exited []string
	for _, d := range dropped {
		delete(room.pending, d)
		if _, ok := room.coHosts[d]; ok {
			delete(room.coHosts, d)
			exited = append(exited, d)
		}
	}
	room.mu.Unlock()
	if err != nil {
		return
	}

	m.mu.Lock()
	for _, d := range dropped {
		if m.members[d] == room {
			delete(m.members, d)
		}
	}
	m.mu.Unlock()

	for _, d := range dropped {
		m.notify.Notify(d, api.ReconnectLiveRoom, api.LiveRoomResponse{LiveRoomId: room.Id})
	}
	if wasCoHost {
		m.coHostExited(room, conn)
	}
	for _, d := range exited {
		m.coHostExited(room, d)
	}
	m.clog(conn).Info().Str(logger.RoomField, room.Id).Msgf("left live room, %v to reconnect", len(dropped))
	m.broadcastViewers(room)
}

func (m *Manager) closeRoom(room *Room) {
	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return
	}
	room.closed = true
	members := append(room.tree.Nodes()[1:], room.waiting...)
	room.waiting = nil
	room.mu.Unlock()

	m.mu.Lock()
	if m.rooms[room.Id] == room {
		delete(m.rooms, room.Id)
	}
	for _, c := range members {
		if m.members[c] == room {
			delete(m.members, c)
		}
	}
	m.mu.Unlock()

	for _, c := range members {
		m.notify.Notify(c, api.LiveRoomClosed, api.LiveRoomResponse{LiveRoomId: room.Id})
	}
	m.clog(room.Anchor).Info().Str(logger.RoomField, room.Id).Msg("live room closed")
}

func (m *Manager) anchorRoom(anchor string) (*Room, error) {
	room, ok := m.Room(RoomId(anchor))
	if !ok || room.Anchor != anchor {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// AnchorOffline marks the anchor unavailable, new viewers wait for it.
func (m *Manager) AnchorOffline(anchor string) error {
	room, err := m.anchorRoom(anchor)
	if err != nil {
		return err
	}
	room.mu.Lock()
	room.offline = true
	room.mu.Unlock()
	m.clog(anchor).Info().Str(logger.RoomField, room.Id).Msg("anchor offline")
	return nil
}

// AnchorOnline tells every waiting viewer the anchor is back, they
// should enter the room again.
func (m *Manager) AnchorOnline(anchor string) error {
	room, err := m.anchorRoom(anchor)
	if err != nil {
		return err
	}
	room.mu.Lock()
	room.offline = false
	waiting := room.waiting
	room.waiting = nil
	room.mu.Unlock()

	m.mu.Lock()
	for _, w := range waiting {
		if m.members[w] == room {
			delete(m.members, w)
		}
	}
	m.mu.Unlock()

	for _, w := range waiting {
		m.notify.Notify(w, api.AnchorOnline, api.LiveRoomResponse{LiveRoomId: room.Id})
	}
	m.clog(anchor).Info().Str(logger.RoomField, room.Id).Msgf("anchor online, %v waited", len(waiting))
	return nil
}

// Waiting returns viewers waiting for the anchor.
func (m *Manager) Waiting(id string) []string {
	room, ok := m.Room(id)
	if !ok {
		return nil
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return append([]string(nil), room.waiting...)
}

// IsRelay tells whether the target serves the stream as a relay
// and not as the anchor.
func (m *Manager) IsRelay(conn string, target string) (bool, error) {
	room, ok := m.roomOf(conn)
	if !ok {
		return false, ErrRoomNotFound
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.tree.Has(target) && target != room.tree.Root(), nil
}

// Signal relays negotiation data between two members of the same live room.
func (m *Manager) Signal(from, to string, data []byte) error {
	a, ok := m.roomOf(from)
	if !ok {
		return ErrNotInRoom
	}
	if b, ok := m.roomOf(to); !ok || a != b {
		return ErrNotInRoom
	}
	m.notify.Notify(to, api.LiveSignal, api.SignalNotice{From: from, Data: data})
	return nil
}

// RequestCoHost asks the anchor to let the viewer on stage.
func (m *Manager) RequestCoHost(viewer string, nickname string) error {
	room, ok := m.roomOf(viewer)
	if !ok || viewer == room.Anchor {
		return ErrNotInRoom
	}
	room.mu.Lock()
	if !room.tree.Has(viewer) {
		room.mu.Unlock()
		return ErrNotInRoom
	}
	room.pending[viewer] = struct{}{}
	room.mu.Unlock()
	m.notify.Notify(room.Anchor, api.CoHostRequest, api.CoHostNotice{ViewerId: viewer, Nickname: nickname})
	return nil
}

// AnswerCoHost passes the anchor decision to the viewer, an accepted viewer
// gets the meeting room of the anchor to publish to.
func (m *Manager) AnswerCoHost(anchor string, viewer string, accepted bool) error {
	room, err := m.anchorRoom(anchor)
	if err != nil {
		return err
	}
	room.mu.Lock()
	if _, ok := room.pending[viewer]; !ok {
		room.mu.Unlock()
		return ErrNotInRoom
	}
	delete(room.pending, viewer)
	if accepted {
		room.coHosts[viewer] = struct{}{}
	}
	room.mu.Unlock()

	notice := api.CoHostAnswerNotice{AnchorId: anchor, Accepted: accepted}
	if accepted && m.stage != nil {
		notice.RoomId = m.stage.RoomOf(anchor)
	}
	m.notify.Notify(viewer, api.CoHostResponse, notice)
	return nil
}

// ExitCoHost takes the viewer off stage and closes what it published.
func (m *Manager) ExitCoHost(viewer string) error {
	room, ok := m.roomOf(viewer)
	if !ok {
		return ErrNotInRoom
	}
	room.mu.Lock()
	_, ok = room.coHosts[viewer]
	delete(room.coHosts, viewer)
	room.mu.Unlock()
	if !ok {
		return ErrNotInRoom
	}
	m.coHostExited(room, viewer)
	return nil
}

func (m *Manager) coHostExited(room *Room, viewer string) {
	if m.stage != nil {
		m.stage.ReleaseProducers(viewer)
	}
	room.mu.Lock()
	members := room.tree.Nodes()
	room.mu.Unlock()
	for _, c := range members {
		m.notify.Notify(c, api.CoHostExited, api.PeerNotice{PeerId: viewer})
	}
}

func (m *Manager) broadcastViewers(room *Room) {
	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return
	}
	members := room.tree.Nodes()
	n := room.viewers()
	room.mu.Unlock()
	for _, c := range members {
		m.notify.Notify(c, api.GetViewerNumber, n)
	}
}
