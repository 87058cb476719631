package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// NewOrderedID generates a time-ordered UUIDv7 (used for messages and files).
// Lexical order of the string form follows creation order, which makes it a
// natural tie-breaker next to created_at.
func NewOrderedID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ValidID reports whether s is a UUID string (used for client-assigned message ids).
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// NewTextID generates a new human-readable numeric ID with a prefix (used for projects).
// Format: "prefix-12345-6789" (e.g., "proj-12345-6789")
func NewTextID(prefix string) (string, error) {
	a, err := randInt(10000, 99999)
	if err != nil {
		return "", err
	}
	b, err := randInt(1000, 9999)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%05d-%04d", prefix, a, b), nil
}

func randInt(min, max int64) (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(max-min+1))
	if err != nil {
		return 0, err
	}
	return min + n.Int64(), nil
}
