package types

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
)

// Actor is the staff member performing an operation. Audit rows and events
// record both the id and the display name.
type Actor struct {
	ID   uuid.UUID
	Name string
	Role enums.Role
}

// Validate rejects actors without an id or display name.
func (a Actor) Validate() error {
	if a.ID == uuid.Nil || strings.TrimSpace(a.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	return nil
}

// Ref converts the actor into the outbox envelope representation.
func (a Actor) Ref() *outbox.ActorRef {
	return &outbox.ActorRef{
		UserID: a.ID,
		Name:   a.Name,
		Role:   string(a.Role),
	}
}
