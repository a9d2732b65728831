package pilive

import (
	"testing"
	"time"

	"github.com/baduanjin-lab/pilive/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSummary() *SessionSummary {
	return &SessionSummary{
		Session: SessionInfo{
			ID:        "sess-001",
			Name:      "Morning",
			StartedAt: time.Now().Add(-65 * time.Second),
		},
		Duration:   65 * time.Second,
		Recordings: []RecordingInfo{{Filename: "rec-sess-001.mp4", SizeBytes: 1024}},
	}
}

func newTestWorkflow(t *testing.T, client *Client) *Workflow {
	t.Helper()
	return newWorkflow(shared.NewNopLogger(), client)
}

func TestSaveRequiresTitle(t *testing.T) {
	device, srv := newMockDevice(t)
	w := newTestWorkflow(t, newTestClient(t, srv.URL))
	w.Begin(testSummary())

	_, err := w.Save(SaveOptions{Title: ""})
	assert.ErrorIs(t, err, shared.ErrEmptyTitle)
	assert.Equal(t, WorkflowAwaitingSave, w.Phase(), "validation error must not transition")
	assert.Empty(t, device.callsSnapshot(), "validation error must not reach the network")
}

func TestSaveWithoutPendingSummary(t *testing.T) {
	_, srv := newMockDevice(t)
	w := newTestWorkflow(t, newTestClient(t, srv.URL))

	_, err := w.Save(SaveOptions{Title: "Morning practice"})
	assert.ErrorIs(t, err, shared.ErrNotAwaitingSave)
}

func TestSaveWithVideoTransfer(t *testing.T) {
	device, srv := newMockDevice(t)
	w := newTestWorkflow(t, newTestClient(t, srv.URL))
	w.Begin(testSummary())

	outcome, err := w.Save(SaveOptions{
		Title:         "Morning practice",
		Description:   "first brocade",
		BrocadeType:   "brocade-1",
		TransferVideo: true,
		Recording:     "rec-sess-001.mp4",
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Record)
	assert.True(t, outcome.VideoTransferred)
	assert.Empty(t, outcome.Warning)
	assert.Equal(t, WorkflowSaved, w.Phase())

	device.mu.Lock()
	defer device.mu.Unlock()
	require.Len(t, device.saved, 1)
	assert.True(t, device.saved[0].HasVideoFile)
	assert.Equal(t, "rec-sess-001.mp4", device.saved[0].VideoFilename)
	assert.InDelta(t, 65.0, device.saved[0].DurationSeconds, 0.01)
	// The device-side copy is redundant after a successful transfer.
	assert.Contains(t, device.deleted, "rec-sess-001.mp4")
}

func TestSaveContinuesWhenTransferFails(t *testing.T) {
	device, srv := newMockDevice(t)
	device.failTransfer = true
	w := newTestWorkflow(t, newTestClient(t, srv.URL))
	w.Begin(testSummary())

	outcome, err := w.Save(SaveOptions{
		Title:         "Morning practice",
		TransferVideo: true,
		Recording:     "rec-sess-001.mp4",
	})
	require.NoError(t, err, "a transfer hiccup must not lose the save")
	require.NotNil(t, outcome.Record)
	assert.False(t, outcome.VideoTransferred)
	assert.NotEmpty(t, outcome.Warning)
	assert.Equal(t, WorkflowSaved, w.Phase())

	device.mu.Lock()
	defer device.mu.Unlock()
	require.Len(t, device.saved, 1)
	assert.False(t, device.saved[0].HasVideoFile)
	assert.Empty(t, device.saved[0].VideoFilename)
	assert.Empty(t, device.deleted, "nothing was transferred, nothing to clean up")
}

func TestSaveFailureReturnsToAwaitingSave(t *testing.T) {
	_, srv := newMockDevice(t)
	client := newTestClient(t, srv.URL)
	w := newTestWorkflow(t, client)
	w.Begin(testSummary())
	srv.Close()

	_, err := w.Save(SaveOptions{Title: "Morning practice"})
	require.Error(t, err)
	assert.Equal(t, WorkflowAwaitingSave, w.Phase(), "a failed save must stay retryable")
}

func TestDiscardRequiresConfirmation(t *testing.T) {
	device, srv := newMockDevice(t)
	w := newTestWorkflow(t, newTestClient(t, srv.URL))
	w.Begin(testSummary())

	// No confirm func installed at all.
	err := w.Discard()
	assert.ErrorIs(t, err, shared.ErrDiscardNotConfirmed)
	assert.Equal(t, WorkflowAwaitingSave, w.Phase())

	// Confirm func declines.
	w.SetConfirmFunc(func() bool { return false })
	err = w.Discard()
	assert.ErrorIs(t, err, shared.ErrDiscardNotConfirmed)
	assert.Equal(t, WorkflowAwaitingSave, w.Phase())
	assert.Empty(t, device.callsSnapshot(), "declined discard must not delete anything")

	// Confirm func approves.
	w.SetConfirmFunc(func() bool { return true })
	require.NoError(t, w.Discard())
	assert.Equal(t, WorkflowDiscarded, w.Phase())

	device.mu.Lock()
	defer device.mu.Unlock()
	assert.Contains(t, device.deleted, "rec-sess-001.mp4")
}

func TestCancelDropsSummaryWithoutDeleting(t *testing.T) {
	device, srv := newMockDevice(t)
	w := newTestWorkflow(t, newTestClient(t, srv.URL))
	w.Begin(testSummary())
	require.NotNil(t, w.Summary())

	w.Cancel()
	assert.Equal(t, WorkflowIdle, w.Phase())
	assert.Nil(t, w.Summary())
	assert.Empty(t, device.callsSnapshot(), "cancel must not touch device-side artifacts")
}
