package database

import "time"

// HistoryRecord is one completed conversion. Records are immutable once
// written.
type HistoryRecord struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"userId"`
	FileName     string    `json:"fileName"`
	SourceFormat string    `json:"originalFormat"`
	TargetFormat string    `json:"convertedFormat"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"date"`
}

// HistoryQuery selects history records. An empty UserID selects all users.
type HistoryQuery struct {
	UserID string
	Limit  int
	Offset int
}

// DefaultHistoryLimit caps history listings when no limit is given.
const DefaultHistoryLimit = 100

// MaxHistoryLimit is the largest page size a caller may request.
const MaxHistoryLimit = 1000
