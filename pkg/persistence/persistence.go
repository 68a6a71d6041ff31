// Package persistence keeps room audit records and the head-count peak in sqlite.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

type RoomKind string

const (
	KindMeeting RoomKind = "meeting"
	KindLive    RoomKind = "live"
	KindGame    RoomKind = "game"
)

// Record is one room creation audit entry.
type Record struct {
	Id          string
	Kind        RoomKind
	RoomId      string
	A           string
	B           string
	DeviceType  int
	BoardWidth  int
	BoardHeight int
	CreatedAt   time.Time
}

type Peak struct {
	Count int
	At    time.Time
}

type Store struct {
	db *sql.DB
	mu sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	room_id      TEXT NOT NULL,
	participant1 TEXT NOT NULL,
	participant2 TEXT NOT NULL DEFAULT '',
	device_type  INTEGER NOT NULL DEFAULT 0,
	board_width  INTEGER NOT NULL DEFAULT 0,
	board_height INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS rooms_room_id ON rooms (room_id);
CREATE TABLE IF NOT EXISTS peak (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	count      INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
`

var ErrNotFound = errors.New("not found")

// Open opens (or creates) the database file at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Version returns the linked sqlite library version.
func Version() string {
	v, _, _ := sqlite3.Version()
	return v
}

// SaveRoom writes an audit record, the id and time are filled when empty.
func (s *Store) SaveRoom(r Record) (Record, error) {
	if r.Id == "" {
		r.Id = ulid.Make().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	query := `INSERT INTO rooms (id, kind, room_id, participant1, participant2, device_type, board_width, board_height, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.Exec(query, r.Id, r.Kind, r.RoomId, r.A, r.B, r.DeviceType, r.BoardWidth, r.BoardHeight, r.CreatedAt.UTC()); err != nil {
		return r, fmt.Errorf("failed to insert room %s: %w", r.RoomId, err)
	}
	return r, nil
}

// Rooms returns audit records of a room, oldest first.
func (s *Store) Rooms(roomId string) ([]Record, error) {
	rows, err := s.db.Query(`SELECT id, kind, room_id, participant1, participant2, device_type, board_width, board_height, created_at
		FROM rooms WHERE room_id = ? ORDER BY id`, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to query room %s: %w", roomId, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Id, &r.Kind, &r.RoomId, &r.A, &r.B, &r.DeviceType, &r.BoardWidth, &r.BoardHeight, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over room %s: %w", roomId, err)
	}
	return out, nil
}

// Peak returns the stored head-count peak or ErrNotFound.
func (s *Store) Peak() (Peak, error) {
	var p Peak
	err := s.db.QueryRow(`SELECT count, created_at FROM peak WHERE id = 1`).Scan(&p.Count, &p.At)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, fmt.Errorf("failed to query peak: %w", err)
	}
	return p, nil
}

// UpdatePeak stores count when it exceeds the current peak and
// returns the resulting peak.
func (s *Store) UpdatePeak(count int) (Peak, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.Peak()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return p, err
	}
	if err == nil && count <= p.Count {
		return p, nil
	}
	p = Peak{Count: count, At: time.Now().UTC()}
	if _, err = s.db.Exec(`INSERT INTO peak (id, count, created_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET count = excluded.count, created_at = excluded.created_at`, p.Count, p.At); err != nil {
		return p, fmt.Errorf("failed to update peak: %w", err)
	}
	return p, nil
}
