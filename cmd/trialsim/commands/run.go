package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/ema-trial/cmd/trialsim/tui"
	orchestration "github.com/koscakluka/ema-trial/core"
	"github.com/koscakluka/ema-trial/core/audio/miniaudio"
	"github.com/koscakluka/ema-trial/core/audio/portaudio"
	"github.com/koscakluka/ema-trial/core/capture"
	"github.com/koscakluka/ema-trial/core/casefile"
	"github.com/koscakluka/ema-trial/core/live/gemini"
	"github.com/koscakluka/ema-trial/core/trial"
	"github.com/koscakluka/ema-trial/core/uistate"
	"github.com/koscakluka/ema-trial/internal/uiserver"
	"github.com/spf13/cobra"
)

var (
	flagCase         string
	flagPhase        string
	flagMode         string
	flagModel        string
	flagVoice        string
	flagCapture      string
	flagListen       string
	flagObjectionTTL time.Duration
	flagAutostart    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the simulation for a case",
	Long: `Open the simulation for a case file and rehearse a trial phase.

The case file is YAML or JSON with the case title, client, opposing counsel,
judge and a summary. Press enter in the terminal UI to start or stop a
session. With --listen the session state is also served to browsers over a
websocket at /ws, and browsers may start and stop sessions too.`,
	Args: cobra.NoArgs,
	RunE: runSimulation,
}

func init() {
	runCmd.Flags().StringVar(&flagCase, "case", "", "case file (required)")
	runCmd.Flags().StringVarP(&flagPhase, "phase", "p", string(trial.PhaseCrossExamination), "trial phase to rehearse")
	runCmd.Flags().StringVarP(&flagMode, "mode", "m", string(trial.ModePractice), "simulation mode (learn, practice, trial)")
	runCmd.Flags().StringVar(&flagModel, "model", gemini.DefaultModel, "live model")
	runCmd.Flags().StringVar(&flagVoice, "voice", gemini.DefaultVoice, "prebuilt voice of opposing counsel")
	runCmd.Flags().StringVar(&flagCapture, "capture", "miniaudio", "capture backend (miniaudio, portaudio)")
	runCmd.Flags().StringVar(&flagListen, "listen", "", "address to serve the websocket state mirror on, :port binds loopback only")
	runCmd.Flags().DurationVar(&flagObjectionTTL, "objection-ttl", uistate.DefaultObjectionTTL, "how long objection alerts stay visible")
	runCmd.Flags().BoolVar(&flagAutostart, "start", false, "start a session right away")
	_ = runCmd.MarkFlagRequired("case")
}

func apiKey() (string, error) {
	for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if key := os.Getenv(name); key != "" {
			return key, nil
		}
	}
	return "", errors.New("no API key, set GEMINI_API_KEY or GOOGLE_API_KEY")
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	phase, mode := trial.Phase(flagPhase), trial.Mode(flagMode)
	if !phase.Valid() {
		return fmt.Errorf("unknown phase %q, see '%s phases'", flagPhase, appName)
	}
	if !mode.Valid() {
		return fmt.Errorf("unknown mode %q, see '%s phases'", flagMode, appName)
	}

	courtCase, err := casefile.Load(flagCase)
	if err != nil {
		return err
	}
	setup := courtCase.Setup(phase, mode)

	key, err := apiKey()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := gemini.NewClient(ctx, key)
	if err != nil {
		return err
	}

	audioClient, err := miniaudio.NewClient()
	if err != nil {
		return err
	}
	defer audioClient.Close()

	var microphone capture.Device
	switch flagCapture {
	case "miniaudio":
		microphone = audioClient.Microphone()
	case "portaudio":
		microphone = portaudio.NewMicrophone(0)
	default:
		return fmt.Errorf("unknown capture backend %q", flagCapture)
	}

	controller := orchestration.NewController(
		orchestration.WithDialer(gemini.NewDialer(client)),
		orchestration.WithCaptureDevice(microphone),
		orchestration.WithOutputDevice(audioClient.Speaker()),
		orchestration.WithModel(flagModel),
		orchestration.WithVoice(flagVoice),
		orchestration.WithObjectionTTL(flagObjectionTTL),
	)
	defer controller.StopSession()

	if flagListen != "" {
		shutdown := serveMirror(ctx, controller, setup)
		defer shutdown()
	}

	if flagAutostart {
		go func() {
			if err := controller.StartSession(ctx, setup); err != nil {
				slog.Warn("failed to start session", "error", err)
			}
		}()
	}

	program := tea.NewProgram(
		tui.New(controller, controller.Store(), setup, courtCase.Title),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}

// listenAddr binds a bare :port to loopback. Browsers may start sessions
// through the mirror, so other hosts must be named explicitly.
func listenAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || host != "" {
		return addr
	}
	return net.JoinHostPort("127.0.0.1", port)
}

func serveMirror(ctx context.Context, controller *orchestration.Controller, setup trial.Setup) func() {
	hub := uiserver.NewHub(controller.Store(), controller, setup)
	hubCtx, cancel := context.WithCancel(ctx)
	go hub.Run(hubCtx)

	addr := listenAddr(flagListen)
	server := &http.Server{
		Addr:              addr,
		Handler:           hub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("serving session state", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("state mirror stopped", "error", err)
		}
	}()

	return func() {
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("failed to shut down state mirror", "error", err)
		}
	}
}
