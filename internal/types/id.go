// README: Shared ID type; UUID-backed but opaque to callers.
package types

import "github.com/google/uuid"

type ID string

func NewID() ID {
	return ID(uuid.NewString())
}
