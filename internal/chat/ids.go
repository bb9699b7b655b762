// Package chat provides identifier and clock helpers for the coordination
// core.
package chat

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// idGenerator produces message identifiers that stay unique under burst load.
// Wall-clock milliseconds alone collide when several messages arrive in the
// same millisecond, so a process-wide monotonic counter disambiguates.
type idGenerator struct {
	seq atomic.Uint64
}

func (g *idGenerator) messageID(at time.Time) string {
	return fmt.Sprintf("%d-%d", at.UnixMilli(), g.seq.Add(1))
}

// newRoomID generates a unique identifier for a room created without a
// caller-supplied id.
func newRoomID() string {
	return "room_" + uuid.NewString()
}

func utcNow() time.Time {
	return time.Now().UTC()
}
