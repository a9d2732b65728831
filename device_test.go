package pilive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/baduanjin-lab/pilive/shared"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

// mockDevice fakes the device relay with just enough mutable state to
// exercise the coordinator: sessions, recordings with a delayed listing,
// exercise tracking, and switchable poll failures.
type mockDevice struct {
	mu sync.Mutex

	sessionID    string
	sessionSeq   int
	recording    bool
	persons      int
	fps          float64
	failPolls    bool
	failTransfer bool

	recordings     []RecordingInfo
	pendingFile    string
	pendingVisible time.Time
	listDelay      time.Duration

	exerciseID string
	feedback   *ExerciseFeedback

	saved   []SaveSessionRequest
	deleted []string
	calls   []string
}

func (d *mockDevice) record(call string) {
	d.calls = append(d.calls, call)
}

func (d *mockDevice) callsSnapshot() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *mockDevice) setPersons(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.persons = n
}

func (d *mockDevice) setFailPolls(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failPolls = fail
}

func (d *mockDevice) setFeedback(fb *ExerciseFeedback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.feedback = fb
}

func (d *mockDevice) visibleRecordings() []RecordingInfo {
	recs := append([]RecordingInfo(nil), d.recordings...)
	if d.pendingFile != "" && time.Now().After(d.pendingVisible) {
		recs = append(recs, RecordingInfo{Filename: d.pendingFile, SizeBytes: 1024})
	}
	return recs
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (d *mockDevice) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.record("GET /status")
		if d.failPolls {
			http.Error(w, "device unreachable", http.StatusBadGateway)
			return
		}
		writeJSON(w, map[string]any{
			"pi_connected":     true,
			"is_recording":     d.recording,
			"camera_available": true,
			"yolo_available":   true,
			"is_running":       true,
			"persons_detected": d.persons,
			"current_fps":      d.fps,
		})
	})

	mux.HandleFunc("GET /current-frame", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.record("GET /current-frame")
		if d.failPolls {
			http.Error(w, "device unreachable", http.StatusBadGateway)
			return
		}
		writeJSON(w, map[string]any{
			"success":   true,
			"image":     "ZnJhbWU=",
			"timestamp": float64(time.Now().UnixMilli()) / 1000,
			"pose_data": []map[string]any{
				{
					"person_id": 0,
					"keypoints": []map[string]float64{{"x": 100, "y": 50, "confidence": 0.92}},
				},
			},
		})
	})

	mux.HandleFunc("POST /start-session", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.record("POST /start-session")
		var req struct {
			SessionName string `json:"session_name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		d.sessionSeq++
		d.sessionID = fmt.Sprintf("sess-%03d", d.sessionSeq)
		writeJSON(w, map[string]any{
			"success":      true,
			"session_id":   d.sessionID,
			"session_name": req.SessionName,
		})
	})

	mux.HandleFunc("POST /stop-session/{id}", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.record("POST /stop-session/" + r.PathValue("id"))
		d.sessionID = ""
		d.recording = false
		writeJSON(w, map[string]any{"success": true})
	})

	mux.HandleFunc("POST /recording/start/{id}", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.record("POST /recording/start/" + r.PathValue("id"))
		d.recording = true
		writeJSON(w, map[string]any{"success": true, "message": "recording started"})
	})

	mux.HandleFunc("POST /recording/stop/{id}", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.record("POST /recording/stop/" + r.PathValue("id"))
		d.recording = false
		d.pendingFile = "rec-" + r.PathValue("id") + ".mp4"
		d.pendingVisible = time.Now().Add(d.listDelay)
		writeJSON(w, map[string]any{
			"success":        true,
			"message":        "recording stopped",
			"recording_info": map[string]any{"filename": d.pendingFile, "size": 1024},
		})
	})

	mux.HandleFunc("GET /recordings", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.record("GET /recordings")
		writeJSON(w, map[string]any{"success": true, "recordings": d.visibleRecordings()})
	})

	mux.HandleFunc("POST /baduanjin/start/{id}", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.record("POST /baduanjin/start/" + r.PathValue("id"))
		d.exerciseID = r.PathValue("id")
		writeJSON(w, map[string]any{
			"success":       true,
			"exercise_info": map[string]any{"id": d.exerciseID, "name": "Brocade " + d.exerciseID},
		})
	})

	mux.HandleFunc("POST /baduanjin/stop", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.record("POST /baduanjin/stop")
		stopped := d.exerciseID
		d.exerciseID = ""
		d.feedback = nil
		writeJSON(w, map[string]any{
			"success": true,
			"summary": map[string]any{"exercise_id": stopped, "average_score": 81.5, "repetitions": 6},
		})
	})

	mux.HandleFunc("GET /baduanjin/feedback", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.record("GET /baduanjin/feedback")
		if d.feedback == nil {
			writeJSON(w, map[string]any{})
			return
		}
		writeJSON(w, map[string]any{"feedback": d.feedback})
	})

	mux.HandleFunc("POST /transfer-video/{filename}", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.record("POST /transfer-video/" + r.PathValue("filename"))
		if d.failTransfer {
			writeJSON(w, map[string]any{"success": false, "error": "tunnel timeout during transfer"})
			return
		}
		writeJSON(w, map[string]any{"success": true, "filename": r.PathValue("filename")})
	})

	mux.HandleFunc("POST /save-session", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.record("POST /save-session")
		var req SaveSessionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		d.saved = append(d.saved, req)
		writeJSON(w, map[string]any{
			"id":               "saved-1",
			"title":            req.Title,
			"description":      req.Description,
			"brocade_type":     req.BrocadeType,
			"session_id":       req.SessionID,
			"video_filename":   req.VideoFilename,
			"has_video_file":   req.HasVideoFile,
			"duration_seconds": req.DurationSeconds,
		})
	})

	mux.HandleFunc("GET /analysis/{kind}", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.record("GET /analysis/" + r.PathValue("kind"))
		writeJSON(w, map[string]any{
			"success": true,
			"data": map[string]any{
				"analysis_type": r.PathValue("kind"),
				"title":         "Master reference",
				"timestamps":    []float64{0, 0.5, 1},
				"series": []map[string]any{
					{"label": "left_elbow", "values": []float64{90, 110, 130}},
				},
			},
		})
	})

	mux.HandleFunc("DELETE /recordings/{filename}", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.record("DELETE /recordings/" + r.PathValue("filename"))
		d.deleted = append(d.deleted, r.PathValue("filename"))
		writeJSON(w, map[string]any{"success": true})
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func newMockDevice(t *testing.T) (*mockDevice, *httptest.Server) {
	t.Helper()
	device := &mockDevice{fps: 15.0, persons: 1, listDelay: 20 * time.Millisecond}
	srv := httptest.NewServer(device.handler())
	t.Cleanup(srv.Close)
	return device, srv
}

func newTestClient(t *testing.T, baseUrl string) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), shared.NewNopLogger(), testToken, baseUrl)
	require.NoError(t, err)
	client.SetTimeouts(2*time.Second, 2*time.Second)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newTestCoordinator(t *testing.T, client *Client) *Coordinator {
	t.Helper()
	co, err := NewCoordinator(shared.NewNopLogger(), client)
	require.NoError(t, err)
	require.NoError(t, co.SetIntervals(30*time.Millisecond, 50*time.Millisecond))
	t.Cleanup(func() { _ = co.Close() })
	return co
}
