package models

import "github.com/oklog/ulid/v2"

// NewID returns a lexicographically sortable identifier.
func NewID() string {
	return ulid.Make().String()
}

func ensureID(id *string) {
	if *id == "" {
		*id = NewID()
	}
}
