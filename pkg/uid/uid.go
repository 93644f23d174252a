package uid

import "github.com/google/uuid"

// New generates a new random identifier.
func New() string {
	return uuid.NewString()
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Short returns the first segment of id, used in human-facing notices.
func Short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
