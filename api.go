package pilive

import (
	"fmt"
	"time"
)

// APIError is an authoritative failure reported by the device relay: either a
// non-2xx status or an explicit success=false payload. Transport-level
// failures (timeouts, refused connections) are returned as plain wrapped
// errors instead.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("device relay returned status %d", e.Status)
	}
	return fmt.Sprintf("device relay: %s (status %d)", e.Message, e.Status)
}

// DeviceStatus mirrors GET /status. Counters are live values sampled on the
// device at request time.
type DeviceStatus struct {
	PiConnected     bool    `json:"pi_connected"`
	IsRecording     bool    `json:"is_recording"`
	CameraAvailable bool    `json:"camera_available"`
	YoloAvailable   bool    `json:"yolo_available"`
	IsRunning       bool    `json:"is_running"`
	PersonsDetected int     `json:"persons_detected"`
	CurrentFPS      float64 `json:"current_fps"`
	CPUUsage        float64 `json:"cpu_usage,omitempty"`
	MemoryUsage     float64 `json:"memory_usage,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// Keypoint is one detected pose landmark. The device reports the standard
// 17-point COCO skeleton (nose, eyes, ears, shoulders, elbows, wrists, hips,
// knees, ankles), pixel coordinates plus confidence.
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// PersonPose is the keypoint set for one detected person in a frame.
type PersonPose struct {
	PersonID  int        `json:"person_id"`
	Keypoints []Keypoint `json:"keypoints"`
}

type FrameStats struct {
	PersonsDetected int     `json:"persons_detected"`
	ProcessingTime  float64 `json:"processing_time,omitempty"`
	FPS             float64 `json:"fps,omitempty"`
}

// Frame is the decoded GET /current-frame payload: the latest encoded image
// and whatever pose data accompanied it.
type Frame struct {
	Image     string
	Poses     []PersonPose
	Stats     *FrameStats
	Timestamp float64
}

type frameEnvelope struct {
	Success   bool         `json:"success"`
	Image     string       `json:"image,omitempty"`
	PoseData  []PersonPose `json:"pose_data,omitempty"`
	Stats     *FrameStats  `json:"stats,omitempty"`
	Timestamp float64      `json:"timestamp"`
	Error     string       `json:"error,omitempty"`
}

// SessionInfo identifies an open session on the device. StartedAt is the
// client-observed start time; elapsed durations are computed from it rather
// than trusted to the device clock.
type SessionInfo struct {
	ID        string
	Name      string
	StartedAt time.Time
}

type startSessionRequest struct {
	SessionName string `json:"session_name"`
}

type startSessionEnvelope struct {
	Success     bool   `json:"success"`
	SessionID   string `json:"session_id"`
	SessionName string `json:"session_name"`
	Error       string `json:"error,omitempty"`
}

type ackEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RecordingInfo describes one recording file as listed by the device.
type RecordingInfo struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size"`
}

type recordingEnvelope struct {
	Success       bool           `json:"success"`
	Message       string         `json:"message,omitempty"`
	RecordingInfo *RecordingInfo `json:"recording_info,omitempty"`
	Error         string         `json:"error,omitempty"`
}

type recordingsEnvelope struct {
	Success    bool            `json:"success"`
	Recordings []RecordingInfo `json:"recordings"`
	Error      string          `json:"error,omitempty"`
}

// ExerciseInfo describes the exercise the device is currently form-tracking.
type ExerciseInfo struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type exerciseEnvelope struct {
	Success      bool             `json:"success"`
	ExerciseInfo *ExerciseInfo    `json:"exercise_info,omitempty"`
	Summary      *ExerciseSummary `json:"summary,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// ExerciseSummary is the device's wrap-up for a finished tracking run.
type ExerciseSummary struct {
	ExerciseID   string  `json:"exercise_id,omitempty"`
	AverageScore float64 `json:"average_score,omitempty"`
	Repetitions  int     `json:"repetitions,omitempty"`
}

// ExerciseFeedback is one scored form report from GET /baduanjin/feedback.
type ExerciseFeedback struct {
	FormScore            float64  `json:"form_score"`
	CompletionPercentage float64  `json:"completion_percentage"`
	CurrentPhase         string   `json:"current_phase"`
	FeedbackMessages     []string `json:"feedback_messages"`
	Corrections          []string `json:"corrections"`
}

type feedbackEnvelope struct {
	Feedback *ExerciseFeedback `json:"feedback,omitempty"`
	Error    string            `json:"error,omitempty"`
}

type transferEnvelope struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	Error    string `json:"error,omitempty"`
}

// SaveSessionRequest is the metadata persisted by POST /save-session.
type SaveSessionRequest struct {
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	BrocadeType     string  `json:"brocade_type"`
	SessionID       string  `json:"session_id"`
	VideoFilename   string  `json:"video_filename,omitempty"`
	HasVideoFile    bool    `json:"has_video_file"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// SavedSession is the persisted record returned by POST /save-session.
type SavedSession struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	BrocadeType     string  `json:"brocade_type,omitempty"`
	SessionID       string  `json:"session_id,omitempty"`
	VideoFilename   string  `json:"video_filename,omitempty"`
	HasVideoFile    bool    `json:"has_video_file"`
	DurationSeconds float64 `json:"duration_seconds"`
}
