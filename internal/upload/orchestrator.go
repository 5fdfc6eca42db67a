// Package upload coordinates a multi-file upload batch: staging, slot
// resolution, concurrent transfers, per-file status tracking and the final
// confirmation.
//
// All state is owned by a single goroutine (Run) that drains one mailbox.
// Inputs, transfer progress, transfer results and remote responses are all
// delivered as messages, so state is only ever mutated serially.
package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"uploadflow/internal/preview"
	"uploadflow/internal/staging"
)

const defaultMailboxSize = 64

// ErrStopped is returned by calls made after Run has returned.
var ErrStopped = errors.New("orchestrator stopped")

// Options configure an Orchestrator.
type Options struct {
	Filter     staging.Filter
	ParentUUID string
	// CommitMsg is sent with the slot request of every batch.
	CommitMsg string
	// Concurrency bounds simultaneous transfers. Zero or less starts every
	// transfer of a batch at once.
	Concurrency int
	// ProgressInterval throttles progress samples per transfer. Zero
	// forwards every sample.
	ProgressInterval time.Duration
	// Previewer, when set, renders previews for staged images.
	Previewer   Previewer
	Hooks       Hooks
	MailboxSize int
}

type Orchestrator struct {
	log       logrus.FieldLogger
	resolver  Resolver
	committer Committer
	transport Transport
	opts      Options

	mailbox chan any
	done    chan struct{}

	// owned by the Run goroutine
	staged        *staging.Staging
	tracker       *Tracker
	slots         map[string]UploadSlot
	confirm       []string
	previews      map[string]preview.Preview
	// token of the render allowed to attach a preview, per name
	previewSeq    map[string]int
	seq           int
	batch         int
	inFlight      bool
	committed     bool
	confirmFailed bool
}

func New(
	log logrus.FieldLogger,
	resolver Resolver,
	committer Committer,
	transport Transport,
	opts Options,
) *Orchestrator {
	size := opts.MailboxSize
	if size <= 0 {
		size = defaultMailboxSize
	}

	return &Orchestrator{
		log:        log.WithField("component", "upload-orchestrator"),
		resolver:   resolver,
		committer:  committer,
		transport:  transport,
		opts:       opts,
		mailbox:    make(chan any, size),
		done:       make(chan struct{}),
		staged:     staging.New(opts.Filter),
		tracker:    NewTracker(),
		slots:      make(map[string]UploadSlot),
		previews:   make(map[string]preview.Preview),
		previewSeq: make(map[string]int),
	}
}

// Run drains the mailbox until ctx is done. It must be called exactly once.
// Transfers and remote calls started by the orchestrator use ctx, so
// cancelling it abandons them; Cleared does not.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-o.mailbox:
			o.handle(ctx, msg)
		}
	}
}

// Dispatch delivers a user-facing input to the mailbox.
func (o *Orchestrator) Dispatch(ctx context.Context, in Input) error {
	if o.stopped() {
		return ErrStopped
	}

	select {
	case o.mailbox <- inputMsg{in: in}:
		return nil
	case <-o.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot(ctx context.Context) (Snapshot, error) {
	if o.stopped() {
		return Snapshot{}, ErrStopped
	}

	reply := make(chan Snapshot, 1)

	select {
	case o.mailbox <- snapshotMsg{reply: reply}:
	case <-o.done:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}

	select {
	case s := <-reply:
		return s, nil
	case <-o.done:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (o *Orchestrator) stopped() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

// post is used by background work to report back. It gives up once Run has
// returned.
func (o *Orchestrator) post(msg any) {
	select {
	case o.mailbox <- msg:
	case <-o.done:
	}
}

func (o *Orchestrator) handle(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case inputMsg:
		o.handleInput(ctx, m.in)
	case snapshotMsg:
		m.reply <- o.snapshot()
	case resolvedMsg:
		o.onResolved(ctx, m)
	case progressMsg:
		o.onProgress(m)
	case transferredMsg:
		o.onTransferred(ctx, m)
	case committedMsg:
		o.onCommitted(m)
	case previewMsg:
		o.onPreview(m)
	default:
		o.log.WithField("type", fmt.Sprintf("%T", msg)).Warn("Unknown mailbox message")
	}
}

func (o *Orchestrator) handleInput(ctx context.Context, in Input) {
	switch ev := in.(type) {
	case FilesSelected:
		o.stage(ctx, ev.Files)
	case FilesDropped:
		o.stage(ctx, ev.Files)
	case FileRemoved:
		o.remove(ev.Name)
	case Cleared:
		o.clear()
	case UploadRequested:
		o.startBatch(ctx)
	case ConfirmRetried:
		o.retryConfirm(ctx)
	}
}

func (o *Orchestrator) stage(ctx context.Context, files []staging.File) {
	if o.inFlight {
		o.log.WithField("files", len(files)).Debug("Batch in flight, ignoring selection")
		return
	}

	if o.opts.Filter.Replace {
		o.reset()
	}

	accepted := o.staged.Stage(files)
	for _, f := range accepted {
		o.tracker.Stage(f.Name)
		o.emitStatus(f.Name)

		if o.opts.Previewer != nil && staging.IsImage(f.Name) {
			o.renderPreview(ctx, f)
		}
	}

	o.log.WithFields(logrus.Fields{
		"offered":  len(files),
		"accepted": len(accepted),
		"staged":   o.staged.Len(),
	}).Debug("Files staged")
}

func (o *Orchestrator) remove(name string) {
	st, ok := o.tracker.StatusOf(name)
	if !ok || st.Status != StatusPending {
		return
	}

	if !o.staged.Remove(name) {
		return
	}

	// another staged file may still share the name
	if !o.staged.Contains(name) {
		o.tracker.Forget(name)
		delete(o.previews, name)
		delete(o.previewSeq, name)
	}

	o.log.WithField("filename", name).Debug("File removed")
}

func (o *Orchestrator) clear() {
	if o.inFlight {
		o.log.WithField("batch", o.batch).Info("Clearing batch with transfers in flight")
	}

	o.reset()
}

// reset drops all local bookkeeping and invalidates results of any
// outstanding work.
func (o *Orchestrator) reset() {
	o.staged.Clear()
	o.tracker.Reset()
	o.slots = make(map[string]UploadSlot)
	o.confirm = nil
	o.previews = make(map[string]preview.Preview)
	o.previewSeq = make(map[string]int)
	o.batch++
	o.inFlight = false
	o.committed = false
	o.confirmFailed = false
}

func (o *Orchestrator) startBatch(ctx context.Context) {
	if o.inFlight || o.staged.Len() == 0 {
		return
	}

	o.batch++
	o.inFlight = true
	o.committed = false
	o.confirmFailed = false
	o.slots = make(map[string]UploadSlot)
	o.confirm = nil
	o.tracker.ResetCounters()

	names := o.staged.Names()
	for _, name := range names {
		if o.tracker.Begin(name) {
			o.emitStatus(name)
		}
	}

	o.log.WithFields(logrus.Fields{
		"batch": o.batch,
		"files": len(names),
	}).Info("Upload batch started")

	if o.opts.Hooks.FilenamesStaged != nil {
		o.opts.Hooks.FilenamesStaged(names)
	}

	req := &PresignRequest{Filenames: names, ParentUUID: o.opts.ParentUUID, CommitMsg: o.opts.CommitMsg}
	batch := o.batch

	go func() {
		slots, err := o.resolver.Presign(ctx, req)
		o.post(resolvedMsg{batch: batch, slots: slots, err: err})
	}()
}

func (o *Orchestrator) onResolved(ctx context.Context, m resolvedMsg) {
	if !o.current(m.batch) {
		return
	}

	if m.err != nil {
		for _, name := range o.staged.Names() {
			if o.tracker.Fail(name, m.err.Error()) {
				o.emitStatus(name)
			}
		}
		o.reportError(fmt.Errorf("resolving upload slots: %w", m.err))
		o.checkTerminal(ctx)

		return
	}

	for _, slot := range m.slots {
		o.slots[slot.Filename] = slot
	}

	var tasks []transferTask
	for _, f := range o.staged.Files() {
		slot, ok := o.slots[f.Name]
		if !ok {
			if o.tracker.Fail(f.Name, ReasonSlotNotFound) {
				o.log.WithField("filename", f.Name).Warn("No upload slot returned for file")
				o.emitStatus(f.Name)
			}
			continue
		}
		tasks = append(tasks, transferTask{file: f, slot: slot})
	}

	o.launch(ctx, m.batch, tasks)
	o.checkTerminal(ctx)
}

func (o *Orchestrator) onProgress(m progressMsg) {
	if !o.current(m.batch) {
		return
	}

	if o.tracker.Progress(m.name, m.fraction) {
		o.emitStatus(m.name)
	}
}

func (o *Orchestrator) onTransferred(ctx context.Context, m transferredMsg) {
	if !o.current(m.batch) {
		o.log.WithField("filename", m.name).Debug("Dropping result of a cleared batch")
		return
	}

	log := o.log.WithFields(logrus.Fields{"batch": m.batch, "filename": m.name})

	if m.err != nil {
		if o.tracker.Fail(m.name, m.err.Error()) {
			log.WithError(m.err).Warn("File upload failed")
			o.emitStatus(m.name)
			o.reportError(fmt.Errorf("uploading %s: %w", m.name, m.err))
		}
	} else if o.tracker.Complete(m.name) {
		log.Debug("File uploaded")
		o.confirm = append(o.confirm, m.fileUUID)
		o.emitStatus(m.name)
	}

	o.checkTerminal(ctx)
}

// checkTerminal triggers the confirmation the first time every file of the
// current batch reached a terminal state.
func (o *Orchestrator) checkTerminal(ctx context.Context) {
	if !o.inFlight || o.committed || !o.tracker.AllTerminal() {
		return
	}

	o.committed = true
	o.commit(ctx)
}

func (o *Orchestrator) commit(ctx context.Context) {
	uuids := make([]string, len(o.confirm))
	copy(uuids, o.confirm)

	success, failure := o.tracker.Counters()
	o.log.WithFields(logrus.Fields{
		"batch":     o.batch,
		"succeeded": success,
		"failed":    failure,
	}).Info("Upload batch finished, confirming")

	if len(uuids) == 0 {
		o.finish(0)
		return
	}

	batch := o.batch

	go func() {
		resp, err := o.committer.Confirm(ctx, &ConfirmRequest{FileUUIDs: uuids})
		msg := committedMsg{batch: batch, err: err}
		if err == nil && resp != nil {
			msg.count = resp.ConfirmedCount
		}
		o.post(msg)
	}()
}

func (o *Orchestrator) onCommitted(m committedMsg) {
	if !o.current(m.batch) {
		return
	}

	if m.err != nil {
		o.confirmFailed = true
		o.reportError(fmt.Errorf("%w: %w", ErrConfirmation, m.err))

		return
	}

	o.finish(m.count)
}

func (o *Orchestrator) retryConfirm(ctx context.Context) {
	if !o.inFlight || !o.confirmFailed {
		return
	}

	o.confirmFailed = false
	o.commit(ctx)
}

func (o *Orchestrator) finish(count int) {
	o.log.WithFields(logrus.Fields{
		"batch":     o.batch,
		"confirmed": count,
	}).Info("Upload batch confirmed")

	o.reset()

	if o.opts.Hooks.Confirmed != nil {
		o.opts.Hooks.Confirmed(count)
	}
}

func (o *Orchestrator) renderPreview(ctx context.Context, f staging.File) {
	o.seq++
	seq := o.seq
	o.previewSeq[f.Name] = seq
	delete(o.previews, f.Name)
	previewer := o.opts.Previewer

	go func() {
		if ctx.Err() != nil {
			return
		}

		data, err := f.ReadAll()
		if err != nil {
			o.post(previewMsg{seq: seq, name: f.Name, err: err})
			return
		}

		p, err := previewer.Preview(f.Name, data)
		o.post(previewMsg{seq: seq, name: f.Name, preview: p, err: err})
	}()
}

func (o *Orchestrator) onPreview(m previewMsg) {
	if seq, ok := o.previewSeq[m.name]; !ok || seq != m.seq {
		return
	}

	if m.err != nil {
		o.log.WithError(m.err).WithField("filename", m.name).Debug("Preview not available")
		return
	}

	o.previews[m.name] = m.preview

	if o.opts.Hooks.PreviewReady != nil {
		o.opts.Hooks.PreviewReady(m.name, m.preview)
	}
}

func (o *Orchestrator) current(batch int) bool {
	return o.inFlight && batch == o.batch
}

func (o *Orchestrator) emitStatus(name string) {
	if o.opts.Hooks.StatusChanged == nil {
		return
	}

	if st, ok := o.tracker.StatusOf(name); ok {
		o.opts.Hooks.StatusChanged(st)
	}
}

func (o *Orchestrator) reportError(err error) {
	if o.opts.Hooks.Error != nil {
		o.opts.Hooks.Error(err)
	}
}

func (o *Orchestrator) snapshot() Snapshot {
	success, failure := o.tracker.Counters()

	previews := make(map[string]preview.Preview, len(o.previews))
	for k, v := range o.previews {
		previews[k] = v
	}

	return Snapshot{
		Generation:  o.batch,
		InFlight:    o.inFlight,
		AllTerminal: o.tracker.AllTerminal(),
		Files:       o.tracker.Snapshot(),
		Success:     success,
		Failure:     failure,
		Previews:    previews,
	}
}
