// Package utils provides utility functions for the application
//
//nolint:revive // Package name 'utils' is intentional and commonly used in Go projects
package utils

import (
	"time"

	"github.com/google/uuid"
)

// GenerateRandomID creates a random identifier string UUID-like
func GenerateRandomID() string {
	return uuid.New().String()
}

// GenerateSessionID creates a time-ordered identifier: a millisecond timestamp
// prefix followed by random bits (UUID version 7).
func GenerateSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return GenerateRandomID()
	}
	return id.String()
}

// ISOTimestamp formats t in UTC with millisecond precision, e.g. 2026-10-18T09:30:00.000Z
func ISOTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
