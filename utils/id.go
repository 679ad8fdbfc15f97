package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a 32-character lowercase hex identifier. Chunk and
// artifact ids are opaque strings and never reused.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
