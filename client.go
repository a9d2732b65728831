package pilive

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/baduanjin-lab/pilive/shared"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const (
	// DefaultPollTimeout bounds status/frame/feedback polls and one-shot
	// lifecycle actions.
	DefaultPollTimeout = 5 * time.Second
	// DefaultTransferTimeout bounds video transfers, which move whole
	// recording files through the tunnel.
	DefaultTransferTimeout = 2 * time.Minute
)

// Client is a typed HTTP client for the Pi device-relay API. All requests
// carry the bearer token and a generated X-Request-ID for log correlation.
// Methods return *APIError for authoritative failures (non-2xx or explicit
// success=false) and plain wrapped errors for transport failures.
type Client struct {
	logger  shared.LoggerAdapter
	baseUrl *url.URL
	token   string

	pollTimeout     time.Duration
	transferTimeout time.Duration

	http *fasthttp.Client

	ctx    context.Context
	cancel context.CancelCauseFunc
}

func NewClient(ctx context.Context, logger shared.LoggerAdapter, token, baseUrl string) (c *Client, err error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if token == "" {
		return nil, shared.ErrNoToken
	}
	if baseUrl == "" {
		return nil, errors.New("base URL is required")
	}
	baseUrl_, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	ctx, cancel := context.WithCancelCause(ctx)
	c = &Client{
		logger:          logger,
		baseUrl:         baseUrl_,
		token:           token,
		pollTimeout:     DefaultPollTimeout,
		transferTimeout: DefaultTransferTimeout,
		http:            &fasthttp.Client{},
		ctx:             ctx,
		cancel:          cancel,
	}
	return c, nil
}

// SetTimeouts overrides the per-class request timeouts. Zero values keep the
// current setting.
func (c *Client) SetTimeouts(poll, transfer time.Duration) {
	if poll > 0 {
		c.pollTimeout = poll
	}
	if transfer > 0 {
		c.transferTimeout = transfer
	}
}

func (c *Client) Close() error {
	if c.cancel != nil {
		c.cancel(errors.New("client closed"))
	}
	return nil
}

func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *Client) respectCtx() error {
	select {
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
	}
	return nil
}

func (c *Client) do(method, path string, body []byte, timeout time.Duration) (status int, respBody []byte, err error) {
	if err := c.respectCtx(); err != nil {
		return 0, nil, fmt.Errorf("respecting client context: %w", err)
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseUrl.JoinPath(path).String())
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	errC := make(chan error)
	go func() {
		defer close(errC)
		errC <- c.http.DoTimeout(req, resp, timeout)
	}()
	select {
	case <-c.ctx.Done():
		return 0, nil, c.ctx.Err()
	case err := <-errC:
		if err != nil {
			return 0, nil, fmt.Errorf("performing HTTP request: %w", err)
		}
	}
	return resp.StatusCode(), append([]byte(nil), resp.Body()...), nil
}

func (c *Client) doJSON(method, path string, reqBody any, timeout time.Duration, out any) error {
	var bodyBytes []byte
	if reqBody != nil {
		var err error
		bodyBytes, err = sonic.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
	}
	status, respBody, err := c.do(method, path, bodyBytes, timeout)
	if err != nil {
		return err
	}
	c.logger.Trace(
		"device relay request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
	)
	if status < fasthttp.StatusOK || status >= fasthttp.StatusMultipleChoices {
		apiErr := &APIError{Status: status}
		var env ackEnvelope
		if err := sonic.Unmarshal(respBody, &env); err == nil {
			if env.Error != "" {
				apiErr.Message = env.Error
			} else {
				apiErr.Message = env.Message
			}
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshaling response body: %w", err)
	}
	return nil
}

// envelopeErr folds an explicit success=false payload into an *APIError.
func envelopeErr(message string) error {
	if message == "" {
		message = "request rejected by device relay"
	}
	return &APIError{Status: fasthttp.StatusOK, Message: message}
}

// Status fetches the device status record.
func (c *Client) Status() (*DeviceStatus, error) {
	st := new(DeviceStatus)
	if err := c.doJSON(fasthttp.MethodGet, "status", nil, c.pollTimeout, st); err != nil {
		return nil, err
	}
	return st, nil
}

// CurrentFrame fetches the most recent encoded frame plus pose data.
func (c *Client) CurrentFrame() (*Frame, error) {
	var env frameEnvelope
	if err := c.doJSON(fasthttp.MethodGet, "current-frame", nil, c.pollTimeout, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, envelopeErr(env.Error)
	}
	return &Frame{
		Image:     env.Image,
		Poses:     env.PoseData,
		Stats:     env.Stats,
		Timestamp: env.Timestamp,
	}, nil
}

// StartSession opens a named session on the device. StartedAt in the returned
// info is the client-observed start time.
func (c *Client) StartSession(name string) (*SessionInfo, error) {
	var env startSessionEnvelope
	err := c.doJSON(fasthttp.MethodPost, "start-session", &startSessionRequest{SessionName: name}, c.pollTimeout, &env)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, envelopeErr(env.Error)
	}
	return &SessionInfo{
		ID:        env.SessionID,
		Name:      env.SessionName,
		StartedAt: time.Now(),
	}, nil
}

// StopSession asks the device to close a session. The acknowledgement is
// best-effort: callers clean up locally whether or not this succeeds.
func (c *Client) StopSession(sessionID string) error {
	var env ackEnvelope
	if err := c.doJSON(fasthttp.MethodPost, "stop-session/"+sessionID, nil, c.pollTimeout, &env); err != nil {
		return err
	}
	if !env.Success {
		return envelopeErr(env.Error)
	}
	return nil
}

func (c *Client) StartRecording(sessionID string) error {
	var env recordingEnvelope
	if err := c.doJSON(fasthttp.MethodPost, "recording/start/"+sessionID, nil, c.pollTimeout, &env); err != nil {
		return err
	}
	if !env.Success {
		return envelopeErr(env.Error)
	}
	return nil
}

func (c *Client) StopRecording(sessionID string) (*RecordingInfo, error) {
	var env recordingEnvelope
	if err := c.doJSON(fasthttp.MethodPost, "recording/stop/"+sessionID, nil, c.pollTimeout, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, envelopeErr(env.Error)
	}
	return env.RecordingInfo, nil
}

// Recordings lists the recording files currently present on the device.
func (c *Client) Recordings() ([]RecordingInfo, error) {
	var env recordingsEnvelope
	if err := c.doJSON(fasthttp.MethodGet, "recordings", nil, c.pollTimeout, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, envelopeErr(env.Error)
	}
	return env.Recordings, nil
}

func (c *Client) StartExercise(exerciseID string) (*ExerciseInfo, error) {
	var env exerciseEnvelope
	if err := c.doJSON(fasthttp.MethodPost, "baduanjin/start/"+exerciseID, nil, c.pollTimeout, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, envelopeErr(env.Error)
	}
	if env.ExerciseInfo == nil {
		return &ExerciseInfo{ID: exerciseID}, nil
	}
	return env.ExerciseInfo, nil
}

func (c *Client) StopExercise() (*ExerciseSummary, error) {
	var env exerciseEnvelope
	if err := c.doJSON(fasthttp.MethodPost, "baduanjin/stop", nil, c.pollTimeout, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, envelopeErr(env.Error)
	}
	return env.Summary, nil
}

// Feedback fetches the latest scored form feedback. A nil result with nil
// error means the device has no feedback yet for the current tracking run.
func (c *Client) Feedback() (*ExerciseFeedback, error) {
	var env feedbackEnvelope
	if err := c.doJSON(fasthttp.MethodGet, "baduanjin/feedback", nil, c.pollTimeout, &env); err != nil {
		return nil, err
	}
	if env.Error != "" {
		return nil, envelopeErr(env.Error)
	}
	return env.Feedback, nil
}

// TransferVideo moves a recording file from the device to permanent storage
// and returns the stored filename. Uses the long transfer timeout.
func (c *Client) TransferVideo(filename string) (string, error) {
	var env transferEnvelope
	if err := c.doJSON(fasthttp.MethodPost, "transfer-video/"+filename, nil, c.transferTimeout, &env); err != nil {
		return "", err
	}
	if !env.Success {
		return "", envelopeErr(env.Error)
	}
	return env.Filename, nil
}

// SaveSession persists session metadata and returns the stored record.
func (c *Client) SaveSession(req *SaveSessionRequest) (*SavedSession, error) {
	rec := new(SavedSession)
	if err := c.doJSON(fasthttp.MethodPost, "save-session", req, c.pollTimeout, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteRecording removes a recording file from the device. Cleanup callers
// treat failures as log-only.
func (c *Client) DeleteRecording(filename string) error {
	var env ackEnvelope
	if err := c.doJSON(fasthttp.MethodDelete, "recordings/"+filename, nil, c.pollTimeout, &env); err != nil {
		return err
	}
	if !env.Success {
		return envelopeErr(env.Error)
	}
	return nil
}
