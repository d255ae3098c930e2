package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"github.com/san-kum/zoosearch/internal/config"
	"github.com/san-kum/zoosearch/internal/expr"
	"github.com/san-kum/zoosearch/internal/selftest"
)

var (
	testOutDir   string
	testDemoTime float64
)

func newTestCmd() *cobra.Command {
	testCmd := &cobra.Command{
		Use:   "test",
		Short: "run the self-test suite",
		Args:  usageArgs(cobra.NoArgs),
		RunE:  runSelfTest,
	}
	testCmd.Flags().StringVar(&testOutDir, "out", ".", "directory for "+selftest.ExpressionsFile)
	testCmd.Flags().Float64Var(&testDemoTime, "demo", selftest.DefaultDemoDuration, "simulated seconds of the demo flight")
	return testCmd
}

func runSelfTest(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	err := selftest.Run(selftest.Options{
		Config:       cfg,
		Dir:          testOutDir,
		Out:          out,
		Log:          log,
		DemoDuration: testDemoTime,
	})
	if err != nil {
		fmt.Fprintln(out, "UnitTests: FAIL")
		return err
	}
	fmt.Fprintln(out, "UnitTests: PASS")
	return nil
}

func newEnumerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enumerate [opcount]",
		Short: "print the canonical expressions with the given operator count",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return usageError{fmt.Errorf("opcount must be a non-negative integer, got %q", args[0])}
			}
			// Opcounts past cache_opcount are empty, not built.
			e, err := expr.NewEnumerator(cfg.Alphabet, min(n, cfg.CacheOpCount))
			if err != nil {
				return err
			}
			if n > cfg.CacheOpCount {
				log.Warn("opcount beyond cache_opcount", zap.Int("opcount", n), zap.Int("cache_opcount", cfg.CacheOpCount))
			}
			out := cmd.OutOrStdout()
			for _, s := range e.ExpressionsOf(n) {
				fmt.Fprintln(out, s)
			}
			return nil
		},
	}
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "list the reference systems",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(out, "%s %s\n", headerStyle.Render(fmt.Sprintf("%-10s", name)), p.Description)
				for ch, src := range p.Expressions {
					fmt.Fprintf(out, "  %s' = %s\n", config.DefaultStateSymbols[ch:ch+1], src)
				}
			}
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "inspect or write the effective configuration",
	}
	configCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "print the effective configuration as yaml",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			},
		},
		&cobra.Command{
			Use:   "init [path]",
			Short: "write the effective configuration to a yaml file",
			Args:  usageArgs(cobra.ExactArgs(1)),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := config.Save(args[0], cfg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
				return nil
			},
		},
	)
	configCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return usageError{errors.New("config needs a subcommand: show or init")}
	}
	configCmd.Args = usageArgs(cobra.NoArgs)
	return configCmd
}
