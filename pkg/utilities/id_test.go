package utilities

import (
	"testing"

	"github.com/google/uuid"
)

func TestIDGeneratorProducesDistinctIDs(t *testing.T) {
	g, err := NewIDGenerator(1)
	if err != nil {
		t.Fatalf("NewIDGenerator: %v", err)
	}

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := g.PinID()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate pin id %s after %d iterations", id, i)
		}
		seen[id] = struct{}{}
	}

	if _, err := uuid.Parse(g.AccountID()); err != nil {
		t.Fatalf("account id is not a uuid: %v", err)
	}
	if NewKSUID() == NewKSUID() {
		t.Fatalf("expected distinct ksuids")
	}
}

func TestIDGeneratorRejectsInvalidNode(t *testing.T) {
	if _, err := NewIDGenerator(4096); err == nil {
		t.Fatalf("expected error for out-of-range node id")
	}
}
