// nexusctl is the NexusMena operator CLI.
//
// It talks to the same internal packages as the server, without HTTP:
//
//	nexusctl summarize "long article text" --lang ar
//	nexusctl translate --to ar < post.txt
//	nexusctl market --category Crypto --insight
//	nexusctl speak "Welcome to NexusMena" --out welcome.wav
//	nexusctl speak --play < intro.txt
//	nexusctl chat
//	nexusctl ingest --feed https://example.com/rss --kind startup
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sakif/nexusmena/internal/audio"
	"github.com/sakif/nexusmena/internal/config"
	"github.com/sakif/nexusmena/internal/gateway"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// app carries what every command needs once the root has loaded config.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger

	// gen replaces the Gemini client and sink the audio device when set.
	gen  gateway.Generator
	sink audio.Sink

	in  io.Reader
	out io.Writer
	err io.Writer
}

func main() {
	// Ctrl+C cancels in-flight requests.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{in: os.Stdin, out: os.Stdout, err: os.Stderr}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "nexusctl",
		Short: "NexusMena operator CLI",
		Long: `nexusctl runs NexusMena's AI, market and ingest operations from a terminal.
It reads the same config.yaml, .env and NEXUSMENA_* variables as the server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if a.logLevel != "" {
				cfg.Logging.Level = a.logLevel
			}
			a.cfg = cfg
			// Logs go to stderr so command output stays pipeable.
			a.logger = cfg.Logging.NewLogger(a.err)
			return nil
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.err)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file path (default: ./config.yaml if present)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newVersionCmd(a),
		newSummarizeCmd(a),
		newTranslateCmd(a),
		newSpeakCmd(a),
		newChatCmd(a),
		newMarketCmd(a),
		newIngestCmd(a),
	)
	return root
}

// --- Version Command ---

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.out, "nexusctl %s\n", version)
			fmt.Fprintf(a.out, "  commit:  %s\n", commit)
			fmt.Fprintf(a.out, "  built:   %s\n", date)
		},
	}
}

// gateway builds the AI gateway from the loaded config.
func (a *app) gateway(ctx context.Context) (*gateway.Gateway, error) {
	gcfg := gateway.Config{
		APIKey:      a.cfg.AI.APIKey,
		TextModel:   a.cfg.AI.TextModel,
		SpeechModel: a.cfg.AI.SpeechModel,
		Voice:       a.cfg.AI.Voice,
	}
	if a.gen != nil {
		return gateway.NewWithGenerator(a.gen, gcfg, a.logger), nil
	}
	return gateway.New(ctx, gcfg, a.logger)
}
