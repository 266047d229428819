package models

import "time"

// Content rows are tenant-scoped by OwnerID (the effective principal at
// creation time).

type Prompt struct {
	ID        string
	OwnerID   string
	Title     string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Bookmark struct {
	ID        string
	OwnerID   string
	Title     string
	URL       string
	CreatedAt time.Time
}

// Document metadata. The payload itself lives in object storage under
// StorageKey; clients upload and download through presigned URLs.
type Document struct {
	ID          string
	OwnerID     string
	Title       string
	StorageKey  string
	ContentType string
	SizeBytes   int64
	CreatedAt   time.Time
}
