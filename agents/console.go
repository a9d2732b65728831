package agents

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pkg "github.com/baduanjin-lab/pilive"
	"github.com/baduanjin-lab/pilive/shared"
	"github.com/baduanjin-lab/pilive/tools"
	"github.com/goccy/go-yaml"
	"go.uber.org/zap"
)

// ConsoleAgent drives one live practice session from a terminal: it spawns a
// client and coordinator against the configured device relay, starts a named
// session with recording, and renders status updates through the printer.
type ConsoleAgent struct {
	logger      shared.LoggerAdapter
	printer     *shared.Printer
	client      *pkg.Client
	coordinator *pkg.Coordinator

	mu       sync.Mutex
	lastLine string
}

func (a *ConsoleAgent) Spawn(
	ctx context.Context,
	logger shared.LoggerAdapter,
	token string,
	cfg *pkg.Config,
	sessionName string,
	printer *shared.Printer,
) error {
	if logger == nil {
		return shared.ErrNoLogger
	}
	if token == "" {
		return shared.ErrNoToken
	}
	if cfg == nil {
		return shared.ErrNoConfig
	}
	if printer == nil {
		return errors.New("no printer provided")
	}
	if sessionName == "" {
		return errors.New("no session name provided")
	}
	a.logger = logger
	a.printer = printer
	a.logger.Info("spawning console agent")
	if err := a.printer.Writeln("🧘 Spawning Baduanjin console agent...\n", 0); err != nil {
		a.logger.Error("printing spawning message", err)
	}

	// Echoing the effective config
	if err := a.printer.Writeln("📋 Config\n", 0); err != nil {
		a.logger.Error("printing config header", err)
	}
	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		a.logger.Error("marshaling config to yaml", err)
		return err
	}
	if err := a.printer.Write(string(yamlBytes), 1); err != nil {
		a.logger.Error("printing config", err)
		return err
	}

	// Creating client
	a.client, err = pkg.NewClient(ctx, a.logger, token, cfg.BaseURL)
	if err != nil {
		a.logger.Error("creating client", err)
		return err
	}
	a.client.SetTimeouts(cfg.PollTimeout, cfg.TransferTimeout)
	a.logger.Info("client created successfully")

	// Probing the device before opening a session
	if err := a.printer.Writeln("\n\n📡 Probing device relay...", 0); err != nil {
		a.logger.Error("printing probe message", err)
	}
	status, err := a.client.Status()
	if err != nil {
		a.logger.Error("probing device status", err)
		if err := a.printer.Writeln("❌ Device relay unreachable. Check the base URL, the token, and that the Pi tunnel is up.\n", 0); err != nil {
			a.logger.Error("printing probe failure message", err)
		}
		return err
	}
	a.printDeviceStatus(status)

	// Creating coordinator
	a.coordinator, err = pkg.NewCoordinator(a.logger, a.client)
	if err != nil {
		a.logger.Error("creating coordinator", err)
		return err
	}
	if err := a.coordinator.SetIntervals(cfg.PollInterval, cfg.SettleDelay); err != nil {
		a.logger.Error("setting coordinator intervals", err)
		return err
	}
	if err := a.coordinator.RegisterUpdateHandler(a.render); err != nil {
		a.logger.Error("registering update handler", err)
		return err
	}
	a.coordinator.Workflow().SetConfirmFunc(a.confirmDiscard)

	// Opening the session and starting recording
	if err := a.printer.Writeln("\n🎬 Starting session \""+sessionName+"\"...", 0); err != nil {
		a.logger.Error("printing session start message", err)
	}
	info, err := a.coordinator.StartSession(sessionName)
	if err != nil {
		a.logger.Error("starting session", err)
		if err := a.printer.Writeln("❌ Could not start a session on the device.\n", 0); err != nil {
			a.logger.Error("printing session failure message", err)
		}
		return err
	}
	a.logger.Info("session started", zap.String("sessionId", info.ID))
	if err := a.coordinator.StartRecording(); err != nil {
		a.logger.Error("starting recording", err)
		if stopErr := a.coordinator.Close(); stopErr != nil {
			a.logger.Error("closing coordinator after failed recording start", stopErr)
		}
		return err
	}
	if err := a.printer.Writeln("✅ Session \""+info.Name+"\" is live and recording.\n", 0); err != nil {
		a.logger.Error("printing session live message", err)
	}
	return nil
}

func (a *ConsoleAgent) printDeviceStatus(status *pkg.DeviceStatus) {
	lines := fmt.Sprintf(
		"Pi connected: %t\nCamera: %t\nPose model: %t\nStreaming: %t",
		status.PiConnected, status.CameraAvailable, status.YoloAvailable, status.IsRunning,
	)
	if err := a.printer.Writeln("✅ Device relay reachable.\n", 0); err != nil {
		a.logger.Error("printing device status header", err)
	}
	if err := a.printer.Writeln(lines, 1); err != nil {
		a.logger.Error("printing device status", err)
	}
}

// render is the coordinator's update handler. It collapses each state
// snapshot into one status line and prints it only when it changed.
func (a *ConsoleAgent) render(state pkg.State) {
	line := a.statusLine(state)
	a.mu.Lock()
	changed := line != a.lastLine
	a.lastLine = line
	a.mu.Unlock()
	if !changed {
		return
	}
	if err := a.printer.Writeln(line, 0); err != nil {
		a.logger.Error("printing status line", err)
	}
	if state.Feedback != nil {
		for _, msg := range state.Feedback.FeedbackMessages {
			if err := a.printer.Writeln("💬 "+msg, 1); err != nil {
				a.logger.Error("printing feedback message", err)
			}
		}
	}
}

func (a *ConsoleAgent) statusLine(state pkg.State) string {
	if !state.Connected {
		if state.ConnectionError != "" {
			return "⚠️  Disconnected: " + state.ConnectionError
		}
		return "⚠️  Disconnected"
	}
	line := "🟢"
	if state.Recording {
		line = "🔴 REC " + tools.FormatElapsed(time.Since(state.RecordingStartedAt))
	}
	if state.Status != nil {
		line += fmt.Sprintf(" | Persons: %d | FPS: %.1f", state.Status.PersonsDetected, state.Status.CurrentFPS)
	}
	if state.Exercise != nil && state.Feedback != nil {
		line += fmt.Sprintf(" | %s %.0f%%", state.Feedback.CurrentPhase, state.Feedback.CompletionPercentage)
	}
	return line
}

func (a *ConsoleAgent) confirmDiscard() bool {
	if err := a.printer.Write("Discard this session and delete its recordings? [y/N] ", 0); err != nil {
		a.logger.Error("printing discard prompt", err)
	}
	var input string
	if _, err := fmt.Scanln(&input); err != nil {
		return false
	}
	return input == "y" || input == "Y"
}

// Done closes when the underlying client context ends.
func (a *ConsoleAgent) Done() <-chan struct{} {
	return a.client.Done()
}

// Close stops the session, prints its summary, and releases everything. The
// pending summary stays in the workflow so the caller can save or discard.
func (a *ConsoleAgent) Close() error {
	if a.coordinator == nil {
		return nil
	}
	summary, err := a.coordinator.StopSession()
	if err != nil {
		if !errors.Is(err, shared.ErrNoActiveSession) {
			a.logger.Error("stopping session", err)
		}
	} else {
		line := fmt.Sprintf(
			"🏁 Session \"%s\" finished after %s with %d recording(s).",
			summary.Session.Name,
			tools.FormatElapsed(summary.Duration),
			len(summary.Recordings),
		)
		if printErr := a.printer.Writeln("\n"+line, 0); printErr != nil {
			a.logger.Error("printing session summary", printErr)
		}
	}
	if closeErr := a.coordinator.Close(); closeErr != nil {
		a.logger.Error("closing coordinator", closeErr)
	}
	return a.client.Close()
}
