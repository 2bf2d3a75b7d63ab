package core

import (
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

func TestIDIsEmpty(t *testing.T) {
	if !ID("").IsEmpty() {
		t.Error("Expected empty ID to report IsEmpty")
	}
	if ID("x").IsEmpty() {
		t.Error("Expected non-empty ID to not report IsEmpty")
	}
}

func TestParseBatchID(t *testing.T) {
	if _, err := ParseBatchID("   "); err == nil {
		t.Error("Expected error for blank batch ID")
	}

	id, err := ParseBatchID("batch-1")
	if err != nil {
		t.Fatalf("ParseBatchID failed: %v", err)
	}
	if id.String() != "batch-1" {
		t.Errorf("Expected batch-1, got %s", id)
	}
}
