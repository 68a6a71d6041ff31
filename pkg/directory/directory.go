// Package directory tracks live connections and their session metadata.
package directory

import (
	"sync"

	"github.com/chaosgomoku/solive/pkg/api"
	"github.com/chaosgomoku/solive/pkg/logger"
)

// Handle is the outbound side of a connection.
type Handle interface {
	Notify(t api.PT, payload any)
}

type Role int

const (
	RoleNone Role = iota
	RoleMember
	RoleAnchor
	RoleViewer
	RolePlayer
)

func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleAnchor:
		return "anchor"
	case RoleViewer:
		return "viewer"
	case RolePlayer:
		return "player"
	default:
		return "none"
	}
}

// Session is per-connection metadata.
type Session struct {
	Id       string
	RoomId   string
	Nickname string
	Role     Role
	Device   api.Profile
	Ready    bool
}

// Releaser frees whatever a component holds for a connection.
// It must be safe to call for unknown ids.
type Releaser func(id string)

type entry struct {
	handle  Handle
	session Session
	leaving bool
}

type Directory struct {
	mu        sync.RWMutex
	conns     map[string]*entry
	releasers []Releaser
	listeners []func(count int)
	log       *logger.Logger
}

func New(log *logger.Logger) *Directory {
	return &Directory{conns: map[string]*entry{}, log: log.Module("dir")}
}

// AddReleaser registers a releaser, releasers run in the order of registration.
func (d *Directory) AddReleaser(r Releaser) {
	d.mu.Lock()
	d.releasers = append(d.releasers, r)
	d.mu.Unlock()
}

// OnHeadCount subscribes to connection count changes.
func (d *Directory) OnHeadCount(fn func(count int)) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

func (d *Directory) Register(id string, h Handle) {
	d.mu.Lock()
	if e, ok := d.conns[id]; ok {
		e.handle = h
	} else {
		d.conns[id] = &entry{handle: h, session: Session{Id: id}}
	}
	d.mu.Unlock()
	d.log.Debug().Str(logger.ClientField, id).Msg("registered")
	d.headCount()
}

func (d *Directory) Lookup(id string) (Handle, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.conns[id]
	if !ok {
		return nil, false
	}
	return e.handle, true
}

func (d *Directory) SetRoom(id string, room string) bool {
	return d.Update(id, func(s *Session) { s.RoomId = room })
}

func (d *Directory) Session(id string) (Session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.conns[id]
	if !ok {
		return Session{}, false
	}
	return e.session, true
}

// Update changes the session metadata under the directory lock,
// fn must not call the directory.
func (d *Directory) Update(id string, fn func(s *Session)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.conns[id]
	if !ok {
		return false
	}
	fn(&e.session)
	return true
}

// Unregister runs every releaser for the id and then drops the connection.
// Repeated or concurrent calls release once.
func (d *Directory) Unregister(id string) {
	d.mu.Lock()
	e, ok := d.conns[id]
	if !ok || e.leaving {
		d.mu.Unlock()
		return
	}
	e.leaving = true
	releasers := append([]Releaser(nil), d.releasers...)
	d.mu.Unlock()

	for _, release := range releasers {
		release(id)
	}

	d.mu.Lock()
	delete(d.conns, id)
	d.mu.Unlock()
	d.log.Debug().Str(logger.ClientField, id).Msg("unregistered")
	d.headCount()
}

func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.conns)
}

// Notify sends a packet to one connection, false if it is unknown.
func (d *Directory) Notify(id string, t api.PT, payload any) bool {
	h, ok := d.Lookup(id)
	if !ok {
		d.log.Debug().Str(logger.ClientField, id).Msgf("no connection for %v", t)
		return false
	}
	h.Notify(t, payload)
	return true
}

// Broadcast sends a packet to every connection except the listed ones.
func (d *Directory) Broadcast(t api.PT, payload any, except ...string) {
	for _, h := range d.handles(func(*Session) bool { return true }, except) {
		h.Notify(t, payload)
	}
}

// BroadcastRoom sends a packet to every connection of the room except the listed ones.
func (d *Directory) BroadcastRoom(room string, t api.PT, payload any, except ...string) {
	if room == "" {
		return
	}
	for _, h := range d.handles(func(s *Session) bool { return s.RoomId == room }, except) {
		h.Notify(t, payload)
	}
}

// Members returns ids of the room connections.
func (d *Directory) Members(room string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []string
	for id, e := range d.conns {
		if e.session.RoomId == room {
			out = append(out, id)
		}
	}
	return out
}

func (d *Directory) handles(filter func(*Session) bool, except []string) []Handle {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Handle, 0, len(d.conns))
next:
	for id, e := range d.conns {
		for _, x := range except {
			if x == id {
				continue next
			}
		}
		if filter(&e.session) {
			out = append(out, e.handle)
		}
	}
	return out
}

func (d *Directory) headCount() {
	d.mu.RLock()
	n := len(d.conns)
	listeners := append(([]func(int))(nil), d.listeners...)
	d.mu.RUnlock()
	for _, fn := range listeners {
		fn(n)
	}
}
