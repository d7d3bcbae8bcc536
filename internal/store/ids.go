package store

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// VisitIDPrefix starts every runtime-generated visit id.
const VisitIDPrefix = "visit_"

// NewVisitID returns a unique, time-ordered visit id.
func NewVisitID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return VisitIDPrefix + ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
