package models

import "time"

// ChatType distinguishes direct conversations from group chats.
type ChatType string

const (
	ChatPrivate ChatType = "private"
	ChatGroup   ChatType = "group"
)

// SystemSenderID is the sentinel sender for synthetic messages that narrate
// membership and configuration changes.
const SystemSenderID = "system"

// LastMessage is the denormalized snapshot kept on a chat for list ordering.
// It is refreshed on every send independently of the messages collection, so
// the two can drift if an update fails.
type LastMessage struct {
	Text      string    `bson:"text" json:"text"`
	SenderID  string    `bson:"senderId" json:"senderId"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// Chat is a document in the "chats" collection.
//
// Invariants for group chats: Admins is a subset of Participants, and
// CreatedBy is a participant at creation time. Both are enforced only by the
// membership workflow, never by the store.
type Chat struct {
	ID           string      `bson:"_id,omitempty" json:"id"`
	Type         ChatType    `bson:"type" json:"type"`
	Participants []string    `bson:"participants" json:"participants"`
	Name         string      `bson:"name,omitempty" json:"name,omitempty"`
	PhotoURL     string      `bson:"photoURL,omitempty" json:"photoURL,omitempty"`
	Admins       []string    `bson:"admins,omitempty" json:"admins,omitempty"`
	CreatedBy    string      `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt    time.Time   `bson:"createdAt" json:"createdAt"`
	LastMessage  LastMessage `bson:"lastMessage" json:"lastMessage"`
}

// HasParticipant reports whether userID is in the participants array.
func (c *Chat) HasParticipant(userID string) bool {
	return containsID(c.Participants, userID)
}

// HasAdmin reports whether userID is in the admins array.
func (c *Chat) HasAdmin(userID string) bool {
	return containsID(c.Admins, userID)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Message is a document in the "messages" collection. System messages use
// SystemSenderID and are created already read.
type Message struct {
	ID              string    `bson:"_id,omitempty" json:"id"`
	ChatID          string    `bson:"chatId" json:"chatId"`
	SenderID        string    `bson:"senderId" json:"senderId"`
	Text            string    `bson:"text" json:"text"`
	FileURL         string    `bson:"fileUrl,omitempty" json:"fileUrl,omitempty"`
	FileType        string    `bson:"fileType,omitempty" json:"fileType,omitempty"`
	Read            bool      `bson:"read" json:"read"`
	Edited          bool      `bson:"edited" json:"edited"`
	IsSystemMessage bool      `bson:"isSystemMessage" json:"isSystemMessage"`
	Timestamp       time.Time `bson:"timestamp" json:"timestamp"`
}
