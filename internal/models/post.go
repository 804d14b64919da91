package models

import "time"

// Post is a document in the "posts" collection.
//
// Author fields are a snapshot taken at write time and are not kept in sync
// with later edits to the User document. FileURLs and FileTypes are parallel
// arrays. Likes holds user IDs with set semantics assumed, not enforced.
type Post struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	AuthorID       string    `bson:"authorId" json:"authorId"`
	AuthorName     string    `bson:"authorName" json:"authorName"`
	AuthorPhotoURL string    `bson:"authorPhotoURL,omitempty" json:"authorPhotoURL,omitempty"`
	Content        string    `bson:"content" json:"content"`
	Tags           []string  `bson:"tags,omitempty" json:"tags,omitempty"`
	FileURLs       []string  `bson:"fileUrls,omitempty" json:"fileUrls,omitempty"`
	FileTypes      []string  `bson:"fileTypes,omitempty" json:"fileTypes,omitempty"`
	Likes          []string  `bson:"likes,omitempty" json:"likes,omitempty"`
	CommentsCount  int       `bson:"commentsCount" json:"commentsCount"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
}

// HasAttachments reports whether the post carries any uploaded files.
func (p *Post) HasAttachments() bool {
	return len(p.FileURLs) > 0
}

// Comment is a document in the "comments" collection. PostID is a
// back-reference with no cascade enforced by the store.
type Comment struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	PostID         string    `bson:"postId" json:"postId"`
	AuthorID       string    `bson:"authorId" json:"authorId"`
	AuthorName     string    `bson:"authorName" json:"authorName"`
	AuthorPhotoURL string    `bson:"authorPhotoURL,omitempty" json:"authorPhotoURL,omitempty"`
	Text           string    `bson:"text" json:"text"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
}
