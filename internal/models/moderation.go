package models

import "time"

// ModerationType enumerates administrative actions recorded in the audit
// trail.
type ModerationType string

const (
	ModerationWarning         ModerationType = "warning"
	ModerationBlock           ModerationType = "block"
	ModerationUnblock         ModerationType = "unblock"
	ModerationPostDeletion    ModerationType = "post_deletion"
	ModerationCommentDeletion ModerationType = "comment_deletion"
)

// ModerationAction is a document in the "moderationActions" collection.
// Append-only: the workflow never updates or deletes these records.
//
// For content deletions, ContentSnapshot holds a full copy of the destroyed
// document. There is no restore capability; the snapshot exists for audit and
// undo-by-inspection.
type ModerationAction struct {
	ID              string         `bson:"_id,omitempty" json:"id"`
	Type            ModerationType `bson:"type" json:"type"`
	UserID          string         `bson:"userId" json:"userId"`
	AdminID         string         `bson:"adminId" json:"adminId"`
	AdminName       string         `bson:"adminName" json:"adminName"`
	Reason          string         `bson:"reason" json:"reason"`
	ContentID       string         `bson:"contentId,omitempty" json:"contentId,omitempty"`
	ContentSnapshot any            `bson:"contentSnapshot,omitempty" json:"contentSnapshot,omitempty"`
	CreatedAt       time.Time      `bson:"createdAt" json:"createdAt"`
	ExpiresAt       *time.Time     `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
}
