package pilive

import (
	"context"
	"sync"
	"time"

	"github.com/baduanjin-lab/pilive/shared"
	"go.uber.org/zap"
)

// Phase is the coordinator's lifecycle phase. Recording and exercise tracking
// are only reachable inside PhaseActive, so a recording without a session is
// unrepresentable through the coordinator's API.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseActive
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseActive:
		return "active"
	default:
		return "unknown"
	}
}

// State is the single consolidated record shared with presentation code.
// It is owned by the Coordinator and mutated only through its methods;
// consumers read copies via Snapshot or the registered update handler.
//
// Frame and Poses hold only the latest value: every poll tick replaces them,
// nothing is queued.
type State struct {
	Phase              Phase
	Session            *SessionInfo
	Connected          bool
	ConnectionError    string
	Recording          bool
	RecordingStartedAt time.Time
	Recordings         []RecordingInfo
	Exercise           *ExerciseInfo
	Feedback           *ExerciseFeedback
	Frame              string
	Poses              []PersonPose
	Status             *DeviceStatus
}

func (s State) clone() State {
	if s.Session != nil {
		sess := *s.Session
		s.Session = &sess
	}
	if s.Exercise != nil {
		ex := *s.Exercise
		s.Exercise = &ex
	}
	if s.Feedback != nil {
		fb := *s.Feedback
		fb.FeedbackMessages = append([]string(nil), fb.FeedbackMessages...)
		fb.Corrections = append([]string(nil), fb.Corrections...)
		s.Feedback = &fb
	}
	if s.Status != nil {
		st := *s.Status
		s.Status = &st
	}
	s.Recordings = append([]RecordingInfo(nil), s.Recordings...)
	s.Poses = append([]PersonPose(nil), s.Poses...)
	return s
}

// SessionSummary is handed to the save/discard workflow after a session stops.
// Duration comes from the client-observed start time.
type SessionSummary struct {
	Session    SessionInfo
	Duration   time.Duration
	Recordings []RecordingInfo
}

// UpdateHandler receives a state copy after every coordinator mutation.
// It is called outside the coordinator lock.
type UpdateHandler func(state State)

// Coordinator owns the consolidated state, the unified poller, and the
// session/recording/exercise lifecycles. One coordinator serves one view of
// one device.
type Coordinator struct {
	logger shared.LoggerAdapter
	client *Client

	pollInterval time.Duration
	settleDelay  time.Duration
	onUpdate     UpdateHandler

	mu    sync.Mutex
	state State
	// epoch invalidates in-flight async completions: any tick or delayed
	// refresh started before a cleanup sees a stale epoch and discards its
	// result instead of resurrecting cleared state.
	epoch      uint64
	pollCancel context.CancelFunc
	pollDone   chan struct{}

	workflow *Workflow
}

const (
	DefaultPollInterval = 500 * time.Millisecond
	// DefaultSettleDelay gives the device time to finalize a stopped
	// recording file before the recordings list is refreshed.
	DefaultSettleDelay = 1 * time.Second
)

func NewCoordinator(logger shared.LoggerAdapter, client *Client) (*Coordinator, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if client == nil {
		return nil, shared.ErrClientNotInitialized
	}
	co := &Coordinator{
		logger:       logger,
		client:       client,
		pollInterval: DefaultPollInterval,
		settleDelay:  DefaultSettleDelay,
	}
	co.workflow = newWorkflow(logger, client)
	return co, nil
}

// SetIntervals overrides the poll interval and recording settle delay.
// Zero values keep the current setting. Must be called before StartSession.
func (co *Coordinator) SetIntervals(poll, settle time.Duration) error {
	co.mu.Lock()
	defer co.mu.Unlock()
	if co.state.Phase != PhaseIdle {
		return shared.ErrSessionActive
	}
	if poll > 0 {
		co.pollInterval = poll
	}
	if settle >= 0 {
		co.settleDelay = settle
	}
	return nil
}

// RegisterUpdateHandler sets the handler notified after every state change.
// Must be called before StartSession.
func (co *Coordinator) RegisterUpdateHandler(handler UpdateHandler) error {
	co.mu.Lock()
	defer co.mu.Unlock()
	if co.state.Phase != PhaseIdle {
		return shared.ErrSessionActive
	}
	co.onUpdate = handler
	return nil
}

// Workflow returns the save/discard workflow fed by StopSession.
func (co *Coordinator) Workflow() *Workflow {
	return co.workflow
}

// Snapshot returns a copy of the consolidated state.
func (co *Coordinator) Snapshot() State {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.state.clone()
}

// notifyLocked must be called with co.mu held; it snapshots the state and
// returns a closure the caller invokes after unlocking.
func (co *Coordinator) notifyLocked() func() {
	if co.onUpdate == nil {
		return func() {}
	}
	snap := co.state.clone()
	handler := co.onUpdate
	return func() { handler(snap) }
}

// DismissConnectionError clears the connection error banner field.
func (co *Coordinator) DismissConnectionError() {
	co.mu.Lock()
	co.state.ConnectionError = ""
	notify := co.notifyLocked()
	co.mu.Unlock()
	notify()
}

// StartSession opens a named session on the device and starts the unified
// poller. On failure the state is left unchanged: no partial session.
func (co *Coordinator) StartSession(name string) (*SessionInfo, error) {
	co.mu.Lock()
	if co.state.Phase != PhaseIdle {
		co.mu.Unlock()
		return nil, shared.ErrSessionActive
	}
	info, err := co.client.StartSession(name)
	if err != nil {
		co.state.ConnectionError = err.Error()
		co.logger.Error("starting session", err, zap.String("name", name))
		notify := co.notifyLocked()
		co.mu.Unlock()
		notify()
		return nil, err
	}
	co.state.Phase = PhaseActive
	co.state.Session = info
	co.state.ConnectionError = ""
	co.startPollerLocked()
	co.logger.Info(
		"session started",
		zap.String("sessionId", info.ID),
		zap.String("name", info.Name),
	)
	notify := co.notifyLocked()
	infoCopy := *info
	co.mu.Unlock()
	notify()
	return &infoCopy, nil
}

// StopSession closes the active session. An open recording is stopped first
// so the file is finalized before the session closes. The device stop request
// is best-effort: local resources (poller, timers) are always released, and
// the resulting summary is handed to the save/discard workflow.
func (co *Coordinator) StopSession() (*SessionSummary, error) {
	co.mu.Lock()
	if co.state.Session == nil {
		co.mu.Unlock()
		return nil, shared.ErrNoActiveSession
	}
	session := *co.state.Session

	// Recording must be finalized before the session-stop request goes out.
	if co.state.Recording {
		if _, err := co.client.StopRecording(session.ID); err != nil {
			co.logger.Warn("stopping recording during session stop", zap.Error(err))
		}
		co.state.Recording = false
		co.state.RecordingStartedAt = time.Time{}
	}

	duration := time.Since(session.StartedAt)
	summary := &SessionSummary{
		Session:    session,
		Duration:   duration,
		Recordings: append([]RecordingInfo(nil), co.state.Recordings...),
	}

	if err := co.client.StopSession(session.ID); err != nil {
		co.logger.Warn("stopping session on device", zap.Error(err), zap.String("sessionId", session.ID))
	}

	co.cleanupLocked()
	co.logger.Info(
		"session stopped",
		zap.String("sessionId", session.ID),
		zap.Duration("duration", duration),
	)
	notify := co.notifyLocked()
	co.mu.Unlock()
	notify()

	co.workflow.Begin(summary)
	return summary, nil
}

// cleanupLocked releases the poller and clears all session-scoped state.
// Must be called with co.mu held.
func (co *Coordinator) cleanupLocked() {
	co.epoch++
	if co.pollCancel != nil {
		co.pollCancel()
		co.pollCancel = nil
	}
	co.state = State{
		Phase:      PhaseIdle,
		Recordings: co.state.Recordings,
	}
}

// Close stops any active session (best effort) and releases the poller.
// The workflow is not entered: Close models teardown, not a user stop.
func (co *Coordinator) Close() error {
	co.mu.Lock()
	if co.state.Session != nil {
		session := *co.state.Session
		if co.state.Recording {
			if _, err := co.client.StopRecording(session.ID); err != nil {
				co.logger.Warn("stopping recording during close", zap.Error(err))
			}
		}
		if err := co.client.StopSession(session.ID); err != nil {
			co.logger.Warn("stopping session during close", zap.Error(err))
		}
	}
	co.cleanupLocked()
	done := co.pollDone
	co.mu.Unlock()
	if done != nil {
		<-done
	}
	return nil
}
