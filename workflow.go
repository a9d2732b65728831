package pilive

import (
	"sync"

	"github.com/baduanjin-lab/pilive/shared"
	"go.uber.org/zap"
)

// WorkflowPhase is the save/discard state machine phase.
type WorkflowPhase int

const (
	WorkflowIdle WorkflowPhase = iota
	WorkflowAwaitingSave
	WorkflowSaving
	WorkflowSaved
	WorkflowDiscarding
	WorkflowDiscarded
)

func (p WorkflowPhase) String() string {
	switch p {
	case WorkflowIdle:
		return "idle"
	case WorkflowAwaitingSave:
		return "awaiting_save"
	case WorkflowSaving:
		return "saving"
	case WorkflowSaved:
		return "saved"
	case WorkflowDiscarding:
		return "discarding"
	case WorkflowDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// SaveOptions drives one save attempt. Recording names the device-side file
// to transfer when TransferVideo is set.
type SaveOptions struct {
	Title         string
	Description   string
	BrocadeType   string
	TransferVideo bool
	Recording     string
}

// SaveOutcome reports a completed save. Warning is set when the video
// transfer failed and the session was persisted without it.
type SaveOutcome struct {
	Record           *SavedSession
	VideoTransferred bool
	Warning          string
}

// ConfirmFunc guards the irreversible discard action. Returning false aborts
// the discard without touching anything.
type ConfirmFunc func() bool

// Workflow is the post-session save/discard state machine. It is entered via
// Begin with the summary of a just-stopped session.
type Workflow struct {
	logger  shared.LoggerAdapter
	client  *Client
	confirm ConfirmFunc

	mu      sync.Mutex
	phase   WorkflowPhase
	summary *SessionSummary
}

func newWorkflow(logger shared.LoggerAdapter, client *Client) *Workflow {
	return &Workflow{
		logger: logger,
		client: client,
		phase:  WorkflowIdle,
	}
}

// SetConfirmFunc installs the discard confirmation guard. Without one,
// Discard always refuses.
func (w *Workflow) SetConfirmFunc(confirm ConfirmFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.confirm = confirm
}

func (w *Workflow) Phase() WorkflowPhase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

// Summary returns a copy of the pending session summary, or nil.
func (w *Workflow) Summary() *SessionSummary {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.summary == nil {
		return nil
	}
	s := *w.summary
	s.Recordings = append([]RecordingInfo(nil), w.summary.Recordings...)
	return &s
}

// Begin enters AwaitingSave with the summary of a stopped session. A summary
// already pending is replaced; its artifacts stay on the device.
func (w *Workflow) Begin(summary *SessionSummary) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.summary != nil && (w.phase == WorkflowAwaitingSave || w.phase == WorkflowSaving) {
		w.logger.Warn(
			"replacing pending session summary",
			zap.String("previousSessionId", w.summary.Session.ID),
		)
	}
	w.phase = WorkflowAwaitingSave
	w.summary = summary
}

// Save persists the pending session's metadata, optionally transferring a
// recording to permanent storage first. A failed transfer does not fail the
// save: the metadata is persisted without the video and a warning is
// reported. After a successful save with a transferred video, the redundant
// device-side copy is deleted best-effort.
func (w *Workflow) Save(opts SaveOptions) (*SaveOutcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.phase != WorkflowAwaitingSave {
		return nil, shared.ErrNotAwaitingSave
	}
	if opts.Title == "" {
		// Validation error: no transition, the dialog stays open.
		return nil, shared.ErrEmptyTitle
	}
	w.phase = WorkflowSaving

	outcome := &SaveOutcome{}
	videoFilename := ""
	if opts.TransferVideo && opts.Recording != "" {
		stored, err := w.client.TransferVideo(opts.Recording)
		if err != nil {
			outcome.Warning = "video transfer failed, session saved without video: " + err.Error()
			w.logger.Warn("video transfer failed", zap.Error(err), zap.String("recording", opts.Recording))
		} else {
			videoFilename = stored
			outcome.VideoTransferred = true
		}
	}

	record, err := w.client.SaveSession(&SaveSessionRequest{
		Title:           opts.Title,
		Description:     opts.Description,
		BrocadeType:     opts.BrocadeType,
		SessionID:       w.summary.Session.ID,
		VideoFilename:   videoFilename,
		HasVideoFile:    outcome.VideoTransferred,
		DurationSeconds: w.summary.Duration.Seconds(),
	})
	if err != nil {
		w.phase = WorkflowAwaitingSave
		w.logger.Error("saving session", err, zap.String("sessionId", w.summary.Session.ID))
		return nil, err
	}

	if outcome.VideoTransferred {
		if err := w.client.DeleteRecording(opts.Recording); err != nil {
			w.logger.Warn("deleting device-side recording after save", zap.Error(err), zap.String("recording", opts.Recording))
		}
	}

	w.phase = WorkflowSaved
	outcome.Record = record
	w.logger.Info(
		"session saved",
		zap.String("sessionId", w.summary.Session.ID),
		zap.Bool("hasVideo", outcome.VideoTransferred),
	)
	return outcome, nil
}

// Discard drops the pending session without persisting it and deletes its
// device-side recordings. The confirm guard must approve: without
// confirmation nothing is deleted and no transition happens.
func (w *Workflow) Discard() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.phase != WorkflowAwaitingSave {
		return shared.ErrNotAwaitingSave
	}
	if w.confirm == nil || !w.confirm() {
		return shared.ErrDiscardNotConfirmed
	}
	w.phase = WorkflowDiscarding
	for _, rec := range w.summary.Recordings {
		if err := w.client.DeleteRecording(rec.Filename); err != nil {
			w.logger.Warn("deleting recording on discard", zap.Error(err), zap.String("recording", rec.Filename))
		}
	}
	w.phase = WorkflowDiscarded
	w.logger.Info("session discarded", zap.String("sessionId", w.summary.Session.ID))
	return nil
}

// Cancel returns to Idle without persisting or deleting anything. The
// summary is dropped but device-side artifacts are untouched; a caller can
// re-enter via Begin with a retained summary.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.phase = WorkflowIdle
	w.summary = nil
}
