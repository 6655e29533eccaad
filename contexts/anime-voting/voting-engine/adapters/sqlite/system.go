package sqliteadapter

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Clock implements ports.Clock in UTC. The text layout keeps nanoseconds, so
// readings need no truncation.
type Clock struct{}

func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// IDGenerator implements ports.IDGenerator with random v4 UUIDs.
type IDGenerator struct{}

func (IDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
