// Package models defines the documents stored in the remote document store.
//
// Field names (bson tags) are the wire contract: the store is schemaless and
// nothing but these tags keeps readers and writers in agreement.
package models

import "time"

// User is a document in the "users" collection.
//
// Followers and Following are stored as plain arrays of user IDs; duplicates
// and stale IDs are tolerated, not prevented. Block and warning fields are
// written only by the moderation workflow.
type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	DisplayName  string    `bson:"displayName" json:"displayName"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"passwordHash,omitempty" json:"-"`
	PhotoURL     string    `bson:"photoURL,omitempty" json:"photoURL,omitempty"`
	Bio          string    `bson:"bio,omitempty" json:"bio,omitempty"`
	Followers    []string  `bson:"followers,omitempty" json:"followers,omitempty"`
	Following    []string  `bson:"following,omitempty" json:"following,omitempty"`
	IsAdmin      bool      `bson:"isAdmin" json:"isAdmin"`
	Approved     bool      `bson:"approved" json:"approved"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`

	Blocked       bool       `bson:"blocked" json:"blocked"`
	BlockedReason string     `bson:"blockedReason,omitempty" json:"blockedReason,omitempty"`
	BlockedAt     *time.Time `bson:"blockedAt,omitempty" json:"blockedAt,omitempty"`
	BlockedUntil  *time.Time `bson:"blockedUntil,omitempty" json:"blockedUntil,omitempty"`
	BlockedBy     string     `bson:"blockedBy,omitempty" json:"blockedBy,omitempty"`
	AdminName     string     `bson:"adminName,omitempty" json:"adminName,omitempty"`

	Warnings          int        `bson:"warnings" json:"warnings"`
	LastWarningAt     *time.Time `bson:"lastWarningAt,omitempty" json:"lastWarningAt,omitempty"`
	LastWarningBy     string     `bson:"lastWarningBy,omitempty" json:"lastWarningBy,omitempty"`
	LastWarningReason string     `bson:"lastWarningReason,omitempty" json:"lastWarningReason,omitempty"`
}

// BlockExpired reports whether a temporary block has run out. Nothing enforces
// expiry server-side: a user stays blocked until an admin unblocks them, this
// helper only lets read paths surface the state.
func (u *User) BlockExpired(now time.Time) bool {
	return u.Blocked && u.BlockedUntil != nil && u.BlockedUntil.Before(now)
}
