// Package image manages uploaded image metadata and the upload pipeline.
package image

import (
	"errors"
	"time"
)

// Status is the processing state of an uploaded image. Only StatusPending is
// written today; the other values are reserved for a future processing stage.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusProcessed Status = "PROCESSED"
	StatusFailed    Status = "FAILED"
)

// Image is the metadata record for one stored object. All fields are immutable
// after creation; records are only ever inserted and deleted.
type Image struct {
	ID               string    `json:"id"`
	FilenameOriginal string    `json:"filename_original"`
	FilenameStored   string    `json:"filename_stored"`
	ContentType      string    `json:"content_type"`
	Size             int64     `json:"size"`
	UploadDate       time.Time `json:"upload_date"`
	UserID           string    `json:"user_id"`
	DiagnosisID      *string   `json:"diagnosis_id"`
	Status           Status    `json:"status"`
}

// ErrNotFound is returned when no record exists for the requested id.
var ErrNotFound = errors.New("image not found")

// ErrForbidden is returned when the caller does not own the record.
var ErrForbidden = errors.New("forbidden")

// ErrNoFile is returned when the upload carries no file payload.
var ErrNoFile = errors.New("no file part")

// ErrEmptyFilename is returned when the payload has no filename.
var ErrEmptyFilename = errors.New("no selected file")

// ErrInvalidFileType is returned for extensions outside the accepted set.
var ErrInvalidFileType = errors.New("invalid file type")

// ErrInvalidOwner is returned when the token subject is not a well-formed id.
var ErrInvalidOwner = errors.New("invalid owner id")

// ErrStorage marks object-store failures.
var ErrStorage = errors.New("object storage failure")

// ErrPersistence marks metadata-store failures.
var ErrPersistence = errors.New("metadata persistence failure")
