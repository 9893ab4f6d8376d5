// README: Rider directory entries and presence states.
package rider

import (
	"time"

	"boda/internal/types"
)

type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceOffline Presence = "offline"
)

type Rider struct {
	ID         types.ID
	Name       string
	Phone      string
	Zone       string // empty → no zone membership
	Presence   Presence
	Deliveries int64
	Rating     float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
