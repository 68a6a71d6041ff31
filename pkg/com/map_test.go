package com

import (
	"sync"
	"sync/atomic"
	"testing"
)

type testClient struct {
	id int
	c  int32
}

func (t *testClient) change(n int) { atomic.AddInt32(&t.c, int32(n)) }

func TestPointerValue(t *testing.T) {
	m := Map[int, *testClient]{}
	c := testClient{id: 1}
	m.Put(c.id, &c)
	fc, _ := m.FindBy(func(c *testClient) bool { return c.id == 1 })
	c.change(100)
	fc2, _ := m.Find(1)

	expected := c.c == fc.c && c.c == fc2.c
	if !expected {
		t.Errorf("not expected change, o: %v != %v != %v", c.c, fc.c, fc2.c)
	}
}

func TestMap(t *testing.T) {
	m := Map[string, int]{}
	if !m.IsEmpty() {
		t.Errorf("new map should be empty")
	}
	if _, err := m.Find("a"); err != ErrNotFound {
		t.Errorf("expected not found, got %v", err)
	}
	m.Put("a", 1)
	if v, ok := m.PutIfAbsent("a", 2); ok || v != 1 {
		t.Errorf("PutIfAbsent should keep the old value, got %v %v", v, ok)
	}
	if v, ok := m.PutIfAbsent("b", 2); !ok || v != 2 {
		t.Errorf("PutIfAbsent should store the new value, got %v %v", v, ok)
	}
	if m.Len() != 2 {
		t.Errorf("expected 2 values, got %v", m.Len())
	}
	if v, ok := m.Pop("a"); !ok || v != 1 {
		t.Errorf("Pop() = %v %v", v, ok)
	}
	if m.Has("a") {
		t.Errorf("a should be removed")
	}
	m.ForEach(func(v int) { m.Remove("b") })
	if !m.IsEmpty() {
		t.Errorf("ForEach should allow removal")
	}
}

func TestConcurrentPut(t *testing.T) {
	m := Map[int, int]{}
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() { defer wg.Done(); m.Put(i, i) }()
	}
	wg.Wait()
	if m.Len() != 100 {
		t.Errorf("expected 100 values, got %v", m.Len())
	}
}
