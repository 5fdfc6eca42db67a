package upload

import (
	"errors"

	"uploadflow/internal/preview"
)

// Status is the lifecycle state of a single staged file within a batch.
type Status int

const (
	StatusPending Status = iota
	StatusUploading
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusUploading:
		return "uploading"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition can happen without a clear.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ReasonSlotNotFound is the failure reason for a staged file the resolver
// returned no upload slot for.
const ReasonSlotNotFound = "Presigned URL not found"

// ErrConfirmation wraps every error reported for a failed confirmation call.
var ErrConfirmation = errors.New("upload confirmation failed")

// FileStatus is the tracked state of one staged file
type FileStatus struct {
	Filename string  `json:"filename"`
	Status   Status  `json:"status"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`
}

// MaxCommitMsgLength bounds the optional comment sent with a batch, in
// characters.
const MaxCommitMsgLength = 225

// PresignRequest asks the catalog for one upload slot per filename
type PresignRequest struct {
	Filenames  []string `json:"filenames"`
	ParentUUID string   `json:"parent_uuid"`
	// CommitMsg is an optional comment stored with every file of the batch.
	CommitMsg string `json:"commit_msg,omitempty"`
}

// UploadSlot is a one-time upload destination for a single filename
type UploadSlot struct {
	Filename  string `json:"filename"`
	UploadURL string `json:"upload_url"`
	FileUUID  string `json:"file_uuid"`
}

// ConfirmRequest tells the catalog which uploaded files should be kept
type ConfirmRequest struct {
	FileUUIDs []string `json:"file_uuids"`
}

// ConfirmResponse carries the number of files the catalog accepted
type ConfirmResponse struct {
	ConfirmedCount int `json:"confirmed_count"`
}

// ErrorResponse represents error responses from the upload API
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// Standard error codes
const (
	ErrUnauthorized   = "unauthorized"
	ErrBadRequest     = "bad_request"
	ErrStorageDenied  = "storage_denied"
	ErrNotFound       = "not_found"
	ErrInternal       = "internal"
	ErrTooManyEntries = "too_many_entries"
)

// Snapshot is a detached copy of the orchestrator state for rendering.
type Snapshot struct {
	Generation  int
	InFlight    bool
	AllTerminal bool
	Files       []FileStatus
	Success     int
	Failure     int
	Previews    map[string]preview.Preview
}
