package models

import (
	"github.com/google/uuid"
)

// ensureID assigns a fresh UUID when the caller left the key empty. IDs are
// generated client side so rows carry their id before the insert returns.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
