// Package entity defines the domain entities for the auth feature.
package entity

import "time"

// User is an account allowed to call the analysis and report endpoints.
type User struct {
	ID uint `gorm:"primaryKey"`

	// Email is stored lower-cased and is unique.
	Email string `gorm:"uniqueIndex;size:255;not null"`

	// Password holds the bcrypt hash, never the plaintext.
	Password string `gorm:"size:255;not null"`

	// LastLoginAt is nil until the first successful login.
	LastLoginAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
