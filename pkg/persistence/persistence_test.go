package persistence

import (
	"errors"
	"path/filepath"
	"testing"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPeak(t *testing.T) {
	s := open(t)

	if _, err := s.Peak(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no peak, got %v", err)
	}

	tests := []struct {
		count int
		want  int
	}{
		{count: 3, want: 3},
		{count: 2, want: 3},
		{count: 5, want: 5},
		{count: 5, want: 5},
		{count: 1, want: 5},
	}
	for _, tt := range tests {
		p, err := s.UpdatePeak(tt.count)
		if err != nil {
			t.Fatal(err)
		}
		if p.Count != tt.want {
			t.Errorf("UpdatePeak(%v) = %v, want %v", tt.count, p.Count, tt.want)
		}
	}

	p, err := s.Peak()
	if err != nil {
		t.Fatal(err)
	}
	if p.Count != 5 || p.At.IsZero() {
		t.Errorf("unexpected peak %+v", p)
	}
}

func TestSaveRoom(t *testing.T) {
	s := open(t)

	first, err := s.SaveRoom(Record{Kind: KindGame, RoomId: "abc", A: "a", B: "b", DeviceType: 1, BoardWidth: 15, BoardHeight: 15})
	if err != nil {
		t.Fatal(err)
	}
	if first.Id == "" {
		t.Errorf("no id was assigned")
	}
	if _, err = s.SaveRoom(Record{Kind: KindMeeting, RoomId: "abc", A: "c"}); err != nil {
		t.Fatal(err)
	}
	if _, err = s.SaveRoom(Record{Kind: KindLive, RoomId: "other", A: "d"}); err != nil {
		t.Fatal(err)
	}

	rooms, err := s.Rooms("abc")
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 records, got %v", len(rooms))
	}
	if rooms[0].Id != first.Id || rooms[0].B != "b" || rooms[0].BoardWidth != 15 {
		t.Errorf("unexpected first record %+v", rooms[0])
	}
	if rooms[1].Kind != KindMeeting {
		t.Errorf("unexpected second record %+v", rooms[1])
	}
}
