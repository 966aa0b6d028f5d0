package common

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewRunID generates a pipeline run identifier.
// Format: pipeline_<UTC-timestamp>_<random>
func NewRunID() string {
	ts := time.Now().UTC().Format("20060102T150405")
	return fmt.Sprintf("pipeline_%s_%s", ts, uuid.New().String()[:8])
}

// JobID computes the deterministic job identity hash from the normalized
// company, location, and title. Stable across runs; used as the primary key
// in the persistent store.
func JobID(company, location, title string) string {
	key := strings.ToLower(strings.TrimSpace(company)) + "|" +
		strings.ToLower(strings.TrimSpace(location)) + "|" +
		strings.ToLower(strings.TrimSpace(title))
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}
