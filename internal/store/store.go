// Package store abstracts the remote document database behind a generic
// CRUD/query gateway. Collections are named sets of schemaless documents;
// consistency across collections is advisory and maintained by the services
// layered on top.
package store

import (
	"context"
	"errors"
)

// Collection names used across the application.
const (
	ColUsers             = "users"
	ColPosts             = "posts"
	ColComments          = "comments"
	ColChats             = "chats"
	ColMessages          = "messages"
	ColNotifications     = "notifications"
	ColModerationActions = "moderationActions"
)

// ErrNotFound is returned when a referenced document is absent.
var ErrNotFound = errors.New("document not found")

// Op is a predicate operator.
type Op string

const (
	OpEq            Op = "=="
	OpLt            Op = "<"
	OpLte           Op = "<="
	OpGt            Op = ">"
	OpGte           Op = ">="
	OpArrayContains Op = "array-contains"
)

// Predicate filters a query by a single field. Field may be a dotted path
// into a nested document ("lastMessage.timestamp").
type Predicate struct {
	Field string
	Op    Op
	Value any
}

// Where builds a predicate.
func Where(field string, op Op, value any) Predicate {
	return Predicate{Field: field, Op: op, Value: value}
}

// Query describes a filtered, optionally ordered and limited read.
type Query struct {
	Predicates []Predicate
	OrderField string
	OrderDesc  bool
	Limit      int
}

// EventType identifies the mutation behind a subscription event.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event is delivered to subscription callbacks. Doc is nil for deletions.
type Event struct {
	Type       EventType
	Collection string
	ID         string
	Doc        map[string]any
}

// CancelFunc tears down a subscription.
type CancelFunc func()

// Store is the Record Store Gateway.
//
// ArrayUnion and ArrayRemove are atomic at the field level and must be used
// for membership arrays (participants, admins, likes, followers) instead of
// whole-document overwrite: they are the only operations safe against
// concurrent writers. Every other update is last-writer-wins on the fields
// it touches.
type Store interface {
	// Get decodes the document id in collection into out, or ErrNotFound.
	Get(ctx context.Context, collection, id string, out any) error

	// Query decodes all matching documents into out, which must be a
	// pointer to a slice.
	Query(ctx context.Context, collection string, q Query, out any) error

	// Create inserts doc and returns its id, assigning one when the
	// document carries none.
	Create(ctx context.Context, collection string, doc any) (string, error)

	// Update applies a partial update. A nil field value clears the field.
	// Returns ErrNotFound if the document is absent.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Delete removes the document. Deleting an absent document is not an
	// error.
	Delete(ctx context.Context, collection, id string) error

	// ArrayUnion adds values to an array field with set semantics.
	ArrayUnion(ctx context.Context, collection, id, field string, values ...any) error

	// ArrayRemove removes values from an array field.
	ArrayRemove(ctx context.Context, collection, id, field string, values ...any) error

	// Count returns the number of documents matching the predicates.
	Count(ctx context.Context, collection string, preds ...Predicate) (int64, error)

	// Subscribe invokes fn for every mutation of a matching document until
	// the cancel func is called or ctx ends.
	Subscribe(ctx context.Context, collection string, preds []Predicate, fn func(Event)) (CancelFunc, error)
}
