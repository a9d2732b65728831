package pilive

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// startPollerLocked launches the unified poll loop for the session that just
// became active. Exactly one loop runs per active session; it is torn down by
// cleanupLocked via the cancel func and invalidated by the epoch bump.
// Must be called with co.mu held.
func (co *Coordinator) startPollerLocked() {
	ctx, cancel := context.WithCancel(co.client.ctx)
	co.pollCancel = cancel
	done := make(chan struct{})
	co.pollDone = done
	go co.pollLoop(ctx, co.epoch, co.pollInterval, done)
}

// pollLoop runs one tick immediately, then one per interval until cancelled.
// Ticks are strictly sequential: a slow tick simply delays the next one, and
// ticker signals that arrive meanwhile are dropped rather than queued.
func (co *Coordinator) pollLoop(ctx context.Context, epoch uint64, interval time.Duration, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	co.tick(ctx, epoch)
	for {
		select {
		case <-ctx.Done():
			co.logger.Debug("poll loop stopped")
			return
		case <-ticker.C:
			co.tick(ctx, epoch)
		}
	}
}

// tick fetches status, frame, and (while tracking) feedback concurrently,
// then folds all results into the shared state in a single update. A tick
// that completes after cleanup began sees a stale epoch and discards its
// results.
func (co *Coordinator) tick(ctx context.Context, epoch uint64) {
	co.mu.Lock()
	if co.epoch != epoch || co.state.Session == nil {
		co.mu.Unlock()
		return
	}
	tracking := co.state.Exercise != nil
	co.mu.Unlock()

	var (
		wg          sync.WaitGroup
		status      *DeviceStatus
		statusErr   error
		frame       *Frame
		frameErr    error
		feedback    *ExerciseFeedback
		feedbackErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		status, statusErr = co.client.Status()
	}()
	go func() {
		defer wg.Done()
		frame, frameErr = co.client.CurrentFrame()
	}()
	if tracking {
		wg.Add(1)
		go func() {
			defer wg.Done()
			feedback, feedbackErr = co.client.Feedback()
		}()
	}
	wg.Wait()

	select {
	case <-ctx.Done():
		return
	default:
	}

	co.mu.Lock()
	if co.epoch != epoch || co.state.Session == nil {
		co.mu.Unlock()
		return
	}
	tickErr := firstErr(statusErr, frameErr, feedbackErr)
	if tickErr != nil {
		// Stale visual data must not linger after connectivity loss, but a
		// transient blip must not end the user's session or recording.
		co.state.Connected = false
		co.state.ConnectionError = tickErr.Error()
		co.state.Frame = ""
		co.state.Poses = nil
		co.state.Feedback = nil
		co.logger.Warn("poll tick failed", zap.Error(tickErr))
	} else {
		co.state.Connected = true
		co.state.ConnectionError = ""
		co.state.Status = status
		co.state.Frame = frame.Image
		co.state.Poses = frame.Poses
		if tracking && co.state.Exercise != nil && feedback != nil {
			co.state.Feedback = feedback
		}
		if status.IsRecording != co.state.Recording {
			co.logger.Warn(
				"device recording flag disagrees with local state",
				zap.Bool("device", status.IsRecording),
				zap.Bool("local", co.state.Recording),
			)
		}
	}
	notify := co.notifyLocked()
	co.mu.Unlock()
	notify()
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
