package pilive

import (
	"time"

	"github.com/baduanjin-lab/pilive/shared"
	"go.uber.org/zap"
)

// StartRecording begins video capture inside the active session. Requires an
// active session: calling without one is a usage error, not a transient
// failure, and is rejected locally.
func (co *Coordinator) StartRecording() error {
	co.mu.Lock()
	if co.state.Session == nil {
		co.mu.Unlock()
		return shared.ErrNoActiveSession
	}
	if co.state.Recording {
		co.mu.Unlock()
		return shared.ErrRecordingActive
	}
	sessionID := co.state.Session.ID
	if err := co.client.StartRecording(sessionID); err != nil {
		co.state.ConnectionError = err.Error()
		co.logger.Error("starting recording", err, zap.String("sessionId", sessionID))
		notify := co.notifyLocked()
		co.mu.Unlock()
		notify()
		return err
	}
	co.state.Recording = true
	co.state.RecordingStartedAt = time.Now()
	co.logger.Info("recording started", zap.String("sessionId", sessionID))
	notify := co.notifyLocked()
	co.mu.Unlock()
	notify()
	return nil
}

// StopRecording ends video capture. On success the recording flags are
// cleared and, after a settle delay, the recordings list is refreshed: the
// device finalizes the file asynchronously after acknowledging the stop, so
// an immediate refresh could race the file write.
func (co *Coordinator) StopRecording() (*RecordingInfo, error) {
	co.mu.Lock()
	if co.state.Session == nil {
		co.mu.Unlock()
		return nil, shared.ErrNoActiveSession
	}
	if !co.state.Recording {
		co.mu.Unlock()
		return nil, shared.ErrNoActiveRecording
	}
	sessionID := co.state.Session.ID
	info, err := co.client.StopRecording(sessionID)
	if err != nil {
		co.state.ConnectionError = err.Error()
		co.logger.Error("stopping recording", err, zap.String("sessionId", sessionID))
		notify := co.notifyLocked()
		co.mu.Unlock()
		notify()
		return nil, err
	}
	duration := time.Since(co.state.RecordingStartedAt)
	co.state.Recording = false
	co.state.RecordingStartedAt = time.Time{}
	co.logger.Info("recording stopped", zap.String("sessionId", sessionID), zap.Duration("duration", duration))
	epoch := co.epoch
	settle := co.settleDelay
	notify := co.notifyLocked()
	co.mu.Unlock()
	notify()

	go func() {
		time.Sleep(settle)
		co.refreshRecordings(epoch)
	}()
	if info == nil {
		info = &RecordingInfo{}
	}
	return info, nil
}

// RefreshRecordings re-reads the device's recording list. Failures are
// swallowed: the listing is best-effort and never blocks session work.
func (co *Coordinator) RefreshRecordings() []RecordingInfo {
	co.mu.Lock()
	epoch := co.epoch
	co.mu.Unlock()
	return co.refreshRecordings(epoch)
}

func (co *Coordinator) refreshRecordings(epoch uint64) []RecordingInfo {
	recordings, err := co.client.Recordings()
	if err != nil {
		co.logger.Warn("listing recordings", zap.Error(err))
		recordings = []RecordingInfo{}
	}
	co.mu.Lock()
	if co.epoch != epoch {
		co.mu.Unlock()
		return recordings
	}
	co.state.Recordings = recordings
	notify := co.notifyLocked()
	co.mu.Unlock()
	notify()
	return recordings
}
