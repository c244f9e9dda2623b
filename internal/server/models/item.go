package models

import (
	"time"

	"github.com/google/uuid"
)

// Item is the metadata row for one encrypted item. The ciphertext itself
// lives in the blob store under StorageKey; the envelope metadata lives in
// the item-keys tables.
type Item struct {
	ID          uuid.UUID
	ContentType string
	StorageKey  string
	CreatedAt   time.Time
	ModifiedAt  time.Time
	AccessedAt  time.Time
}
