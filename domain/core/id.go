package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	BatchID   ID
	InsightID ID
)

func (id BatchID) String() string   { return ID(id).String() }
func (id InsightID) String() string { return ID(id).String() }

// NewBatchID creates an identifier for one ingestion batch
func NewBatchID() BatchID { return BatchID(NewID()) }

// NewInsightID creates an identifier for a generated insight
func NewInsightID() InsightID { return InsightID(NewID()) }

// ParseBatchID parses a string into BatchID
func ParseBatchID(s string) (BatchID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("batch ID cannot be empty")
	}
	return BatchID(s), nil
}
