package main

import (
	"fmt"
	"os"
	"time"

	"pipeboard/internal/config"
	"pipeboard/internal/crm"
	"pipeboard/internal/logging"
	"pipeboard/internal/pipeline"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose   bool
	workspace string
	apiKey    string
	crmURL    string
	timeout   time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pipeboard",
	Short: "pipeboard - CRM pipeline board from the terminal",
	Long: `pipeboard keeps a local, staleness-controlled view of a CRM sales
pipeline and edits it optimistically: mutations land on the board
immediately and are rolled back if the remote CRM rejects them.

Stages are kanban columns backed by CRM tags; columns discovered on the
server are merged into the board and never dropped for the session.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			workspace, _ = os.Getwd()
		}
		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// buildStore wires config -> gateway client -> pipeline store.
func buildStore() (*pipeline.Store, *config.Config, error) {
	cfg, err := config.Load(config.Path(workspace))
	if err != nil {
		return nil, nil, err
	}
	if apiKey != "" {
		cfg.CRM.APIKey = apiKey
	}
	if crmURL != "" {
		cfg.CRM.BaseURL = crmURL
	}
	if timeout > 0 {
		cfg.CRM.Timeout = timeout.String()
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	gw := crm.NewClient(cfg.CRM.BaseURL, cfg.CRM.APIKey, cfg.GetCRMTimeout(),
		crm.WithLogger(logger))

	store := pipeline.NewStore(gw, pipeline.Options{
		DefaultStages: cfg.Pipeline.DefaultStages,
		CacheTTL:      cfg.GetCacheTTL(),
		Reporter:      &consoleReporter{},
	})
	return store, cfg, nil
}

// consoleReporter surfaces mutation outcomes on stdout/stderr.
type consoleReporter struct{}

func (consoleReporter) Success(op, message string) {
	if message != "" {
		fmt.Printf("ok: %s (%s)\n", op, message)
		return
	}
	fmt.Printf("ok: %s\n", op)
}

func (consoleReporter) Failure(op string, err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "CRM API key (overrides config and PIPEBOARD_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&crmURL, "crm-url", "", "CRM base URL (overrides config)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "CRM request timeout (overrides config)")

	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(retagCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
