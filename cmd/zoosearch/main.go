package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/zoosearch/internal/config"
	"github.com/san-kum/zoosearch/internal/logging"
)

const usageMessage = "zoosearch: Invalid command line arguments."

var (
	configFile string
	dataDir    string
	logLevel   string
	logFormat  string

	cfg *config.Config
	log = zap.NewNop()
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	hitStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

// usageError marks a bad verb, argument or flag.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// usageArgs reports argument validation failures as usage errors.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "zoosearch",
		Short:         "brute-force search for bounded three-dimensional vector fields",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError{fmt.Errorf("unknown verb %q", args[0])}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return usageError{errors.New("missing verb")}
		},
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = log.Sync()
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory (overrides data_dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console or json")

	rootCmd.AddCommand(
		newTestCmd(),
		newSearchCmd(),
		newFlyCmd(),
		newSweepCmd(),
		newEnumerateCmd(),
		newHitsCmd(),
		newLedgerCmd(),
		newPresetsCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

// setup loads the configuration and builds the logger for every verb.
func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if dataDir != "" {
		c.DataDir = dataDir
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if logFormat != "" {
		c.Log.Format = logFormat
	}

	l, err := logging.New(c.Log.Level, c.Log.Format)
	if err != nil {
		return usageError{err}
	}
	cfg, log = c, l
	log.Debug("configuration loaded",
		zap.String("file", configFile),
		zap.String("data_dir", cfg.DataDir),
		zap.String("integrator", cfg.Integrator))
	return nil
}

// run executes the CLI and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(stderr, usageMessage)
			fmt.Fprintf(stderr, "%v\n", ue.err)
			return 1
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
