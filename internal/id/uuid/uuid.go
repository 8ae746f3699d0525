// Package uuid provides ID generation helpers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// auditIDLength keeps audit IDs short enough for URLs and log lines while
// staying collision-safe for an in-memory store.
const auditIDLength = 8

// Generator creates audit identifiers from random UUIDs.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns the first 8 hex characters of a UUIDv4.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid4: %w", err)
	}
	return id.String()[:auditIDLength], nil
}

// NewRawID returns a full UUIDv4 string.
func (Generator) NewRawID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid4: %w", err)
	}
	return id.String(), nil
}
