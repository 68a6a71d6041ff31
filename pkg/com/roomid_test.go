package com

import "testing"

func TestNumericId(t *testing.T) {
	tests := []struct {
		domain string
		digits int
	}{
		{"meeting", 12},
		{"live", 8},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			a := NumericId(tt.domain, "cfv68irdrc3ifu3jn6bg", tt.digits)
			b := NumericId(tt.domain, "cfv68irdrc3ifu3jn6bg", tt.digits)
			if a != b {
				t.Errorf("id is not stable: %v != %v", a, b)
			}
			if len(a) != tt.digits {
				t.Errorf("id %v should have %v digits", a, tt.digits)
			}
			for _, r := range a {
				if r < '0' || r > '9' {
					t.Errorf("id %v is not numeric", a)
				}
			}
		})
	}
	if NumericId("meeting", "x", 8) == NumericId("live", "x", 8) {
		t.Errorf("domains should give different ids")
	}
}

func TestHexId(t *testing.T) {
	id := HexId(16, "a", "b")
	if len(id) != 16 {
		t.Errorf("bad id length %v", id)
	}
	if id == HexId(16, "b", "a") {
		t.Errorf("order of seeds should matter")
	}
}
