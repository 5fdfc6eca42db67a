package upload

// Tracker holds per-file statuses, last known progress and batch counters.
// It is not safe for concurrent use; the orchestrator owns it from its
// mailbox goroutine.
type Tracker struct {
	order    []string
	statuses map[string]*FileStatus
	progress map[string]float64
	success  int
	failure  int
}

func NewTracker() *Tracker {
	return &Tracker{
		statuses: make(map[string]*FileStatus),
		progress: make(map[string]float64),
	}
}

// Stage registers name as Pending. A name that is already tracked is
// overwritten, so two staged files sharing a name share one status.
func (t *Tracker) Stage(name string) {
	if _, ok := t.statuses[name]; !ok {
		t.order = append(t.order, name)
	}
	t.statuses[name] = &FileStatus{Filename: name, Status: StatusPending}
	delete(t.progress, name)
}

// Begin moves name from Pending to Uploading.
func (t *Tracker) Begin(name string) bool {
	st, ok := t.statuses[name]
	if !ok || st.Status != StatusPending {
		return false
	}
	st.Status = StatusUploading
	t.progress[name] = 0

	return true
}

// Progress records the latest fraction for an Uploading file.
func (t *Tracker) Progress(name string, fraction float64) bool {
	st, ok := t.statuses[name]
	if !ok || st.Status != StatusUploading {
		return false
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	t.progress[name] = fraction

	return true
}

// Complete moves name from Uploading to Completed.
func (t *Tracker) Complete(name string) bool {
	st, ok := t.statuses[name]
	if !ok || st.Status != StatusUploading {
		return false
	}
	st.Status = StatusCompleted
	delete(t.progress, name)
	t.success++

	return true
}

// Fail moves name from Uploading to Failed with reason.
func (t *Tracker) Fail(name, reason string) bool {
	st, ok := t.statuses[name]
	if !ok || st.Status != StatusUploading {
		return false
	}
	st.Status = StatusFailed
	st.Error = reason
	delete(t.progress, name)
	t.failure++

	return true
}

// Forget drops a Pending file from tracking.
func (t *Tracker) Forget(name string) bool {
	st, ok := t.statuses[name]
	if !ok || st.Status != StatusPending {
		return false
	}
	delete(t.statuses, name)
	delete(t.progress, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}

	return true
}

func (t *Tracker) StatusOf(name string) (FileStatus, bool) {
	st, ok := t.statuses[name]
	if !ok {
		return FileStatus{}, false
	}

	return t.view(st), true
}

// AllTerminal reports whether every tracked file is Completed or Failed.
// An empty tracker is never terminal.
func (t *Tracker) AllTerminal() bool {
	if len(t.statuses) == 0 {
		return false
	}
	for _, st := range t.statuses {
		if !st.Status.Terminal() {
			return false
		}
	}

	return true
}

func (t *Tracker) Counters() (success, failure int) {
	return t.success, t.failure
}

func (t *Tracker) ResetCounters() {
	t.success = 0
	t.failure = 0
}

// Reset wipes all statuses, progress and counters unconditionally.
func (t *Tracker) Reset() {
	t.order = nil
	t.statuses = make(map[string]*FileStatus)
	t.progress = make(map[string]float64)
	t.ResetCounters()
}

// Snapshot returns copies of all statuses in staging order, one per name.
func (t *Tracker) Snapshot() []FileStatus {
	out := make([]FileStatus, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.view(t.statuses[name]))
	}

	return out
}

func (t *Tracker) view(st *FileStatus) FileStatus {
	v := *st
	switch st.Status {
	case StatusUploading:
		v.Progress = t.progress[st.Filename]
	case StatusCompleted:
		v.Progress = 1
	default:
		v.Progress = 0
	}

	return v
}
