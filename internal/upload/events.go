package upload

import (
	"uploadflow/internal/preview"
	"uploadflow/internal/staging"
)

// Input is a user-facing event consumed by the orchestrator.
type Input interface {
	input()
}

// FilesSelected carries the files of a picker change.
type FilesSelected struct {
	Files []staging.File
}

// FilesDropped carries the files of a drag-and-drop event. It is filtered
// exactly like FilesSelected.
type FilesDropped struct {
	Files []staging.File
}

// FileRemoved removes a Pending file by name.
type FileRemoved struct {
	Name string
}

// Cleared wipes the batch. Transfers already issued are not cancelled.
type Cleared struct{}

// UploadRequested starts a batch with everything currently staged.
type UploadRequested struct{}

// ConfirmRetried re-sends a confirmation that previously failed.
type ConfirmRetried struct{}

func (FilesSelected) input()   {}
func (FilesDropped) input()    {}
func (FileRemoved) input()     {}
func (Cleared) input()         {}
func (UploadRequested) input() {}
func (ConfirmRetried) input()  {}

// Hooks are called from the orchestrator goroutine, in order. They must not
// block and must not call Dispatch synchronously.
type Hooks struct {
	// FilenamesStaged fires when a batch starts, with every staged name.
	FilenamesStaged func(names []string)
	StatusChanged   func(st FileStatus)
	PreviewReady    func(name string, p preview.Preview)
	// Confirmed fires once per batch after the confirmation succeeded.
	Confirmed func(count int)
	Error     func(err error)
}

// internal mailbox messages

type inputMsg struct {
	in Input
}

type snapshotMsg struct {
	reply chan Snapshot
}

type resolvedMsg struct {
	batch int
	slots []UploadSlot
	err   error
}

type progressMsg struct {
	batch    int
	name     string
	fraction float64
}

type transferredMsg struct {
	batch    int
	name     string
	fileUUID string
	err      error
}

type committedMsg struct {
	batch int
	count int
	err   error
}

type previewMsg struct {
	seq     int
	name    string
	preview preview.Preview
	err     error
}
