package pilive

import (
	"github.com/baduanjin-lab/pilive/shared"
	"go.uber.org/zap"
)

// StartTracking begins server-side form tracking for the given exercise.
// An empty id is a no-op: nothing is selected, nothing is sent.
func (co *Coordinator) StartTracking(exerciseID string) error {
	if exerciseID == "" {
		co.logger.Debug("start tracking skipped, no exercise selected")
		return nil
	}
	co.mu.Lock()
	if co.state.Session == nil {
		co.mu.Unlock()
		return shared.ErrNoActiveSession
	}
	info, err := co.client.StartExercise(exerciseID)
	if err != nil {
		co.state.ConnectionError = err.Error()
		co.logger.Error("starting exercise tracking", err, zap.String("exerciseId", exerciseID))
		notify := co.notifyLocked()
		co.mu.Unlock()
		notify()
		return err
	}
	co.state.Exercise = info
	co.state.Feedback = nil
	co.logger.Info("exercise tracking started", zap.String("exerciseId", info.ID))
	notify := co.notifyLocked()
	co.mu.Unlock()
	notify()
	return nil
}

// StopTracking ends server-side form tracking. The local exercise state and
// feedback are cleared whether or not the device acknowledges: a
// user-initiated stop must never leave stale "currently tracking" state.
func (co *Coordinator) StopTracking() (*ExerciseSummary, error) {
	co.mu.Lock()
	if co.state.Exercise == nil {
		co.mu.Unlock()
		return nil, nil
	}
	exerciseID := co.state.Exercise.ID
	summary, err := co.client.StopExercise()
	if err != nil {
		co.logger.Warn("stopping exercise tracking", zap.Error(err), zap.String("exerciseId", exerciseID))
	}
	co.state.Exercise = nil
	co.state.Feedback = nil
	co.logger.Info("exercise tracking stopped", zap.String("exerciseId", exerciseID))
	notify := co.notifyLocked()
	co.mu.Unlock()
	notify()
	return summary, err
}

// ChangeTracking switches to a new exercise. The current tracking run is
// stopped and its feedback cleared before the new one is started, so two
// exercises are never simultaneously current, even transiently.
func (co *Coordinator) ChangeTracking(newExerciseID string) error {
	if _, err := co.StopTracking(); err != nil {
		return err
	}
	if newExerciseID == "" {
		return nil
	}
	return co.StartTracking(newExerciseID)
}
