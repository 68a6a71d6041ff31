// Package match pairs players into two-party board game rooms.
package match

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/chaosgomoku/solive/pkg/api"
	"github.com/chaosgomoku/solive/pkg/com"
	"github.com/chaosgomoku/solive/pkg/logger"
	"github.com/chaosgomoku/solive/pkg/persistence"
)

var (
	ErrRoomFull  = errors.New("room is full")
	ErrNotInRoom = errors.New("not in a game room")
)

const (
	PieceBlack = "●"
	PieceWhite = "○"

	seedRows = 20
	seedCols = 20
	idLength = 16
)

type Notifier interface {
	Notify(id string, t api.PT, payload any) bool
}

type Auditor interface {
	SaveRoom(r persistence.Record) (persistence.Record, error)
}

type Player struct {
	Id       string
	Nickname string
	Profile  api.Profile
	Piece    string
}

type Room struct {
	Id      string
	Players []*Player
	Device  api.RoomDevice
	Seeds   []float64
}

func (r *Room) opponent(conn string) *Player {
	for _, p := range r.Players {
		if p.Id != conn {
			return p
		}
	}
	return nil
}

type Manager struct {
	notify Notifier
	audit  Auditor
	rnd    func() float64
	log    *logger.Logger

	mu      sync.Mutex
	queue   []*Player
	rooms   map[string]*Room
	players map[string]*Room
}

func New(n Notifier, audit Auditor, log *logger.Logger) *Manager {
	return &Manager{
		notify:  n,
		audit:   audit,
		rnd:     rand.Float64,
		log:     log.Module("match"),
		rooms:   map[string]*Room{},
		players: map[string]*Room{},
	}
}

// RoomId derives a game room id of two players.
func RoomId(a, b string) string { return com.HexId(idLength, a, b) }

// Negotiate picks the room board: the lower device type wins with its board.
func Negotiate(a, b api.Profile) api.RoomDevice {
	p := b
	if a.DeviceType < b.DeviceType {
		p = a
	}
	return api.RoomDevice{RoomDType: p.DeviceType, BWidth: p.BoardWidth, BHeight: p.BoardHeight}
}

// Seeds makes item seeds of the board, each in [0, 1) with two decimals.
func Seeds(rnd func() float64) []float64 {
	out := make([]float64, 0, seedRows*seedCols)
	for range seedRows * seedCols {
		out = append(out, math.Floor(rnd()*100)/100)
	}
	return out
}

func (m *Manager) Rooms() int { m.mu.Lock(); defer m.mu.Unlock(); return len(m.rooms) }

// Queued returns ids of the players waiting for a match.
func (m *Manager) Queued() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.queue))
	for _, p := range m.queue {
		out = append(out, p.Id)
	}
	return out
}

func (m *Manager) RoomOf(conn string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.players[conn]
	return r, ok
}

// Match pairs the caller with the longest waiting player or puts
// the caller into the queue.
func (m *Manager) Match(conn string, profile api.Profile) {
	m.Leave(conn)

	me := &Player{Id: conn, Nickname: conn, Profile: profile}
	m.mu.Lock()
	if len(m.queue) == 0 {
		m.queue = append(m.queue, me)
		m.mu.Unlock()
		m.notify.Notify(conn, api.Message, "waiting for an opponent")
		m.log.Debug().Str(logger.ClientField, conn).Msg("queued")
		return
	}
	other := m.queue[0]
	m.queue = m.queue[1:]
	room := &Room{Id: RoomId(conn, other.Id), Players: []*Player{me, other}}
	m.rooms[room.Id] = room
	m.players[conn] = room
	m.players[other.Id] = room
	g := m.setup(room)
	m.mu.Unlock()

	m.start(g)
	for _, p := range g.players {
		m.notify.Notify(p.Id, api.MatchedRoomId, g.roomId)
	}
}

// Join puts the caller into the explicitly named room,
// the game starts with the second player.
func (m *Manager) Join(conn string, roomId string, nickname string, profile api.Profile) error {
	if r, ok := m.RoomOf(conn); ok && r.Id == roomId {
		return nil
	}
	m.Leave(conn)

	me := &Player{Id: conn, Nickname: nickname, Profile: profile}
	m.mu.Lock()
	room, ok := m.rooms[roomId]
	if !ok {
		room = &Room{Id: roomId}
		m.rooms[roomId] = room
	}
	if len(room.Players) >= 2 {
		m.mu.Unlock()
		m.notify.Notify(conn, api.RoomFull, api.RoomResponse{RoomId: roomId})
		return ErrRoomFull
	}
	room.Players = append(room.Players[:len(room.Players):len(room.Players)], me)
	m.players[conn] = room
	if len(room.Players) < 2 {
		m.mu.Unlock()
		m.notify.Notify(conn, api.Message, fmt.Sprintf("%v entered room %v, waiting for an opponent", nickname, roomId))
		return nil
	}
	other := room.opponent(conn).Id
	g := m.setup(room)
	m.mu.Unlock()

	m.notify.Notify(other, api.Message, nickname+" entered the room")
	m.start(g)
	return nil
}

// game is a snapshot of a started room, safe to use without the lock.
type game struct {
	roomId  string
	players [2]Player
	device  api.RoomDevice
	seeds   []float64
}

// setup assigns pieces, the board and item seeds of a full room.
// Must be called with m.mu held.
func (m *Manager) setup(room *Room) game {
	a, b := room.Players[0], room.Players[1]
	a.Piece, b.Piece = PieceBlack, PieceWhite
	if m.rnd() > 0.5 {
		a.Piece, b.Piece = b.Piece, a.Piece
	}
	room.Device = Negotiate(a.Profile, b.Profile)
	room.Seeds = Seeds(m.rnd)
	return game{
		roomId:  room.Id,
		players: [2]Player{*a, *b},
		device:  room.Device,
		seeds:   append([]float64(nil), room.Seeds...),
	}
}

// start tells both players about the game and records it.
func (m *Manager) start(g game) {
	a, b := g.players[0], g.players[1]
	text := fmt.Sprintf("game started: %v plays %v, %v plays %v", a.Nickname, a.Piece, b.Nickname, b.Piece)
	for _, p := range g.players {
		m.notify.Notify(p.Id, api.SetPieceType, p.Piece)
		m.notify.Notify(p.Id, api.Message, text)
		m.notify.Notify(p.Id, api.SetItemSeed, g.seeds)
		m.notify.Notify(p.Id, api.SetRoomDeviceType, g.device)
	}
	m.log.Info().Str(logger.RoomField, g.roomId).Msg(text)

	if m.audit != nil {
		rec := persistence.Record{
			Kind:        persistence.KindGame,
			RoomId:      g.roomId,
			A:           a.Id,
			B:           b.Id,
			DeviceType:  int(g.device.RoomDType),
			BoardWidth:  g.device.BWidth,
			BoardHeight: g.device.BHeight,
		}
		go func() {
			if _, err := m.audit.SaveRoom(rec); err != nil {
				m.log.Warn().Err(err).Msg("room audit")
			}
		}()
	}
}

// Step passes a move to the opponent.
func (m *Manager) Step(conn string, step api.StepRequest) error {
	m.mu.Lock()
	room, ok := m.players[conn]
	var other *Player
	if ok {
		other = room.opponent(conn)
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotInRoom
	}
	if other == nil || !m.notify.Notify(other.Id, api.Step, step) {
		m.notify.Notify(conn, api.OpponentOffline, nil)
	}
	return nil
}

// Leave removes the caller from the queue and its room.
func (m *Manager) Leave(conn string) {
	m.mu.Lock()
	for i, p := range m.queue {
		if p.Id == conn {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
	room, ok := m.players[conn]
	delete(m.players, conn)
	var other *Player
	if ok {
		rest := make([]*Player, 0, len(room.Players))
		for _, p := range room.Players {
			if p.Id != conn {
				rest = append(rest, p)
			}
		}
		room.Players = rest
		other = room.opponent(conn)
		if len(room.Players) == 0 {
			delete(m.rooms, room.Id)
		}
	}
	m.mu.Unlock()

	if other != nil {
		m.notify.Notify(other.Id, api.OpponentLeft, api.PeerNotice{PeerId: conn})
	}
}
