package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vigil/internal/config"
	"vigil/internal/crisis"
	"vigil/internal/inference"
	"vigil/internal/logging"
	"vigil/internal/prompt"
	"vigil/internal/session"
	"vigil/internal/state"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "vigil - on-device clinical risk orchestration engine",
	Long: `vigil runs daily mental-health check-ins entirely on-device.

Each check-in fuses a structured screening questionnaire, session signals
(transcript, voice prosody, behavioral telemetry), and biometric baselines,
classifies a risk tier with a local model, and degrades to deterministic
fallbacks whenever the model is slow, unavailable, or unparsable. The
questionnaire floor is a hard lower bound the model can never undercut.

No clinical data ever leaves the device.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		if err := logging.Initialize(level, cfg.Logging.JSONFormat); err != nil {
			return fmt.Errorf("initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

// engine bundles everything a subcommand needs for one invocation.
type engine struct {
	orch  *session.Orchestrator
	store *state.Store
	close func()
}

// bootstrap wires the full pipeline from configuration. The returned close
// function releases the store handle.
func bootstrap(ctx context.Context) (*engine, error) {
	pack := prompt.NewPack()
	if cfg.Templates.Path != "" {
		loaded, err := prompt.LoadPack(cfg.Templates.Path)
		if err != nil {
			return nil, fmt.Errorf("load template pack: %w", err)
		}
		pack = loaded
		if cfg.Templates.WatchForChanges {
			go func() {
				if err := pack.Watch(ctx, cfg.Templates.Path); err != nil && ctx.Err() == nil {
					logging.Get(logging.CategoryBoot).Warnw("template watch stopped", "error", err)
				}
			}()
		}
	}

	store, err := state.NewStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	// The scripted backend stands in until a model binding is wired up
	// behind inference.Backend; every task then runs its deterministic
	// fallback, which is the designed degraded mode.
	backend := inference.NewScriptedBackend("")
	exec := inference.NewExecutor(backend)

	machine := crisis.NewMachine(cfg.Crisis.RecheckCountdown, store, consoleEscalator{})

	orch := session.NewOrchestrator(cfg, prompt.NewAssembler(pack), exec, store, machine, nil, nil)
	return &engine{
		orch:  orch,
		store: store,
		close: func() { store.Close() },
	}, nil
}

// consoleEscalator surfaces the emergency-contact action on the terminal.
// A deployment replaces this with the platform's notification channel.
type consoleEscalator struct{}

func (consoleEscalator) TriggerEmergencyContact(sessionID string) {
	fmt.Println()
	fmt.Println("*** ESCALATION: emergency contact is being notified now. ***")
	fmt.Println("*** If you are in immediate danger, call your local emergency number. ***")
	fmt.Println()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "vigil.yaml", "path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(checkinCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
