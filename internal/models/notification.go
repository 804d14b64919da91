package models

import "time"

// NotificationType enumerates notifiable events.
type NotificationType string

const (
	NotificationLike       NotificationType = "like"
	NotificationComment    NotificationType = "comment"
	NotificationFollow     NotificationType = "follow"
	NotificationMessage    NotificationType = "message"
	NotificationModeration NotificationType = "moderation"
	NotificationSystem     NotificationType = "system"
)

// Notification is a document in the "notifications" collection.
//
// For like, follow and message types at most one "live" notification exists
// per (sender, recipient, type[, post]) tuple: the dispatcher refreshes the
// existing document instead of inserting a duplicate.
type Notification struct {
	ID             string           `bson:"_id,omitempty" json:"id"`
	Type           NotificationType `bson:"type" json:"type"`
	SenderID       string           `bson:"senderId" json:"senderId"`
	SenderName     string           `bson:"senderName" json:"senderName"`
	SenderPhotoURL string           `bson:"senderPhotoURL,omitempty" json:"senderPhotoURL,omitempty"`
	RecipientID    string           `bson:"recipientId" json:"recipientId"`
	PostID         string           `bson:"postId,omitempty" json:"postId,omitempty"`
	CommentID      string           `bson:"commentId,omitempty" json:"commentId,omitempty"`
	Message        string           `bson:"message,omitempty" json:"message,omitempty"`
	Title          string           `bson:"title,omitempty" json:"title,omitempty"`
	Reason         string           `bson:"reason,omitempty" json:"reason,omitempty"`
	AdditionalInfo string           `bson:"additionalInfo,omitempty" json:"additionalInfo,omitempty"`
	Read           bool             `bson:"read" json:"read"`
	CreatedAt      time.Time        `bson:"createdAt" json:"createdAt"`
}
