package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/carriercomm/firelet/internal/appconfig"
	"github.com/carriercomm/firelet/internal/logging"
	"github.com/carriercomm/firelet/internal/orchestrator"
	"github.com/carriercomm/firelet/internal/store"
	"github.com/carriercomm/firelet/internal/transport"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "firelet",
	Short: "firelet manages a fleet of iptables firewalls from a tabular ruleset",
}

func init() {
	rootCmd.PersistentFlags().String("config", "firelet.yaml", "path to the options file")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "output logs in JSON format")
	rootCmd.PersistentFlags().Bool("versioned", false, "use the versioned store backend instead of the simple one")
	rootCmd.PersistentFlags().String("author", "firelet", "author recorded against versioned saves")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(rollbackCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")
	logging.Init(logging.Config{Level: logging.Level(level), JSONOutput: jsonOutput})
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "fetch live fleet state and report drift against the compiled policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := buildOrchestrator(cmd)
		if err != nil {
			return err
		}
		result, err := o.Check(context.Background())
		if err != nil {
			return err
		}
		printCheckResult(result)
		return nil
	},
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "compile, project, deliver, and activate the current policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := buildOrchestrator(cmd)
		if err != nil {
			return err
		}
		status, err := o.Deploy(context.Background())
		printStatus(status)
		return err
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback [n]",
	Short: "restore the n-th previous version and redeploy it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var n int
		if _, err := fmt.Sscanf(args[0], "%d", &n); err != nil {
			return fmt.Errorf("invalid version index %q: %w", args[0], err)
		}
		o, err := buildOrchestrator(cmd)
		if err != nil {
			return err
		}
		status, err := o.Rollback(context.Background(), n)
		printStatus(status)
		return err
	},
}

func buildOrchestrator(cmd *cobra.Command) (*orchestrator.Orchestrator, error) {
	configPath, _ := cmd.Flags().GetString("config")
	versioned, _ := cmd.Flags().GetBool("versioned")
	author, _ := cmd.Flags().GetString("author")

	cfg, err := appconfig.Load(configPath)
	if err != nil {
		return nil, err
	}

	var backend store.Backend
	if versioned {
		backend, err = store.NewVersioned(cfg.RepoDir, author)
		if err != nil {
			return nil, err
		}
	} else {
		backend = store.NewSimple(cfg.RepoDir)
	}

	var dialer transport.Dialer
	switch cfg.Mode {
	case appconfig.ModeMock:
		dialer = &transport.MockDialer{Dir: cfg.MockDir}
	default:
		dialer = &transport.SSHDialer{}
	}

	fleet := transport.NewFleet(cfg.Targets, cfg.Username, dialer)
	return orchestrator.New(backend, fleet), nil
}

func printCheckResult(result *orchestrator.CheckResult) {
	hosts := make([]string, 0, len(result.Diffs))
	for h := range result.Diffs {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)

	for _, h := range hosts {
		diff := result.Diffs[h]
		if diff.InSync() {
			fmt.Printf("%s: in sync\n", h)
			continue
		}
		fmt.Printf("%s: drift detected\n", h)
		for _, d := range diff.Missing {
			fmt.Printf("  - missing: %s\n", d)
		}
		for _, d := range diff.Extra {
			fmt.Printf("  - extra:   %s\n", d)
		}
	}
	for _, h := range result.Incomplete {
		fmt.Printf("%s: unreachable, skipped\n", h)
	}
}

func printStatus(status map[string]string) {
	hosts := make([]string, 0, len(status))
	for h := range status {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	for _, h := range hosts {
		fmt.Printf("%s: %s\n", h, status[h])
	}
}
