package shared

import "errors"

var (
	ErrNoLogger             = errors.New("no logger provided")
	ErrNoToken              = errors.New("no access token provided")
	ErrNoConfig             = errors.New("no config provided")
	ErrClientNotInitialized = errors.New("client not initialized")
	ErrSessionActive        = errors.New("session already active")
	ErrNoActiveSession      = errors.New("no active session")
	ErrRecordingActive      = errors.New("recording already active")
	ErrNoActiveRecording    = errors.New("no active recording")
	ErrNoExerciseSelected   = errors.New("no exercise selected")
	ErrEmptyTitle           = errors.New("title must not be empty")
	ErrNotAwaitingSave      = errors.New("no session summary awaiting save")
	ErrDiscardNotConfirmed  = errors.New("discard not confirmed")
	ErrUnknownAnalysisType  = errors.New("unknown analysis type")
)
