package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FileRecord tracks one uploaded PDF for one user. A record with zero
// chunks means the PDF was registered but no text could be extracted.
type FileRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     string             `bson:"user_id" json:"user_id"`
	Filename   string             `bson:"filename" json:"filename"`
	ChunkCount int                `bson:"chunk_count" json:"chunk_count"`
	PageCount  int                `bson:"page_count" json:"page_count"`
	BlobURL    string             `bson:"blob_url,omitempty" json:"blob_url,omitempty"`
	SizeBytes  int64              `bson:"size_bytes" json:"size_bytes"`
	UploadedAt time.Time          `bson:"uploaded_at" json:"uploaded_at"`
}

// Upload statuses reported per file in an ingestion batch.
const (
	UploadStatusSuccess = "success"
	UploadStatusNoText  = "no_text_extracted"
	UploadStatusFailed  = "failed"
)

// UploadFileResult is the per-file outcome of an ingestion batch.
type UploadFileResult struct {
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	PageCount  int    `json:"page_count"`
	Error      string `json:"error,omitempty"`
}
