package note

import "time"

// Content kinds stored by the notebook source-of-truth.
const (
	KindNote     = "NOTE"
	KindSnapshot = "SNAPSHOT"
	KindDelta    = "DELTA"
	KindBoard    = "BOARD"
)

// Document is a row of the notebook content table as seen by the indexing
// pipeline. The body carries rich HTML markup.
type Document struct {
	ID        int64
	OwnerID   int64
	Title     string
	Body      string
	UpdatedAt time.Time
	Kind      string
	Hidden    bool
	External  bool
}
