package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const appName = "trialsim"

var (
	envFile  string
	logFile  string
	logLevel string

	// logOutput is closed when the command finishes.
	logOutput io.Closer
	// loggerProvider receives the records of the core packages, which log
	// through the OpenTelemetry bridge.
	loggerProvider *sdklog.LoggerProvider
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Live courtroom rehearsal against an AI opposing counsel",
	Long: `trialsim connects your microphone to a live AI model that plays opposing
counsel for a chosen trial phase. While you speak it transcribes both sides,
raises objections and pushes coaching tips to the terminal.

The Gemini API key is read from GEMINI_API_KEY or GOOGLE_API_KEY.`,
	SilenceUsage:       true,
	PersistentPreRunE:  initRuntime,
	PersistentPostRunE: teardown,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", appName+".log", "file to write logs to, - for stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(phasesCmd)
}

func initRuntime(*cobra.Command, []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(logLevel))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}

	var out io.Writer = os.Stderr
	if logFile != "-" && logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		out, logOutput = f, f
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))

	exporter, err := stdoutlog.New(stdoutlog.WithWriter(out))
	if err != nil {
		return fmt.Errorf("failed to create log exporter: %w", err)
	}
	loggerProvider = sdklog.NewLoggerProvider(sdklog.WithProcessor(minSeverity{
		Processor: sdklog.NewSimpleProcessor(exporter),
		min:       severity(level),
	}))
	global.SetLoggerProvider(loggerProvider)
	return nil
}

func teardown(*cobra.Command, []string) error {
	var errs []error
	if loggerProvider != nil {
		if err := loggerProvider.Shutdown(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush logs: %w", err))
		}
		loggerProvider = nil
	}
	if logOutput != nil {
		errs = append(errs, logOutput.Close())
		logOutput = nil
	}
	return errors.Join(errs...)
}

// minSeverity drops records below min before they reach the exporter.
type minSeverity struct {
	sdklog.Processor
	min otellog.Severity
}

func (p minSeverity) OnEmit(ctx context.Context, record *sdklog.Record) error {
	if record.Severity() < p.min {
		return nil
	}
	return p.Processor.OnEmit(ctx, record)
}

// severity maps a slog level the way the otelslog bridge does.
func severity(level slog.Level) otellog.Severity {
	return otellog.Severity(level + 9)
}
