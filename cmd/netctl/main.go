// netctl is the command frontend over the C1-C7 core: it lexes and
// parses the command language (§4.5), validates and executes each
// command in order (§4.6), and runs the connectivity/health analyzers
// (§4.7) on demand. Exit code is 0 on success, non-zero on any
// validation or execution failure, per spec.md §6.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/EsteSystems/netctl/analyze"
	"github.com/EsteSystems/netctl/cmdlang"
	"github.com/EsteSystems/netctl/config"
	"github.com/EsteSystems/netctl/executor"
	"github.com/EsteSystems/netctl/netns"
	"github.com/EsteSystems/netctl/nlsock"
)

func main() {
	// Must run before any flag parsing: a re-exec'd helper child only
	// ever performs the bind mount and exits, it never reaches cobra.
	netns.RunHelperIfRequested()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:   "netctl",
		Short: "Linux network configuration over rtnetlink",
		Long: `netctl configures interfaces, addresses, routes, neighbors, bonds,
bridges, VLANs, veths, tunnels, traffic control and namespaces by
speaking NETLINK_ROUTE directly to the kernel.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to netctl's TOML settings file")
	root.AddCommand(newApplyCmd())
	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newNetnsCmd(&configPath))
	return root
}

// loadConfig reads the settings file, falling back to the defaults
// when it is simply absent (the file is optional).
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func newNetnsCmd(configPath *string) *cobra.Command {
	root := &cobra.Command{
		Use:   "netns",
		Short: "List, create, and delete named network namespaces",
	}
	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List named namespaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			names, err := netns.List(cfg.Netns.Dir)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Create a named namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return netns.Create(cfg.Netns.Dir, args[0])
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a named namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return netns.Delete(cfg.Netns.Dir, args[0])
		},
	})
	root.AddCommand(newNetnsWatchCmd())
	return root
}

// newNetnsWatchCmd reports network namespaces held open by running
// processes (as opposed to the named namespaces under the netns
// directory), printing each newly observed inode once until interrupted.
func newNetnsWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch /proc for namespaces held open by running processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt)
			defer signal.Stop(sigCh)
			go func() {
				<-sigCh
				cancel()
			}()

			nsChan := make(chan string)
			errCh := make(chan error, 1)
			go func() {
				errCh <- netns.WatchProcessNamespaces(ctx, "/proc", nsChan)
			}()

			seen := make(map[string]bool)
			for inode := range nsChan {
				if seen[inode] {
					continue
				}
				seen[inode] = true
				fmt.Println(inode)
			}
			return <-errCh
		},
	}
}

func newApplyCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "apply [command line...]",
		Short: "Execute one or more command-language lines",
		Long: `Reads command-language source (§4.5) either from --file, one
command per line, or from the remaining arguments joined into a single
line, and executes each resulting command in order against the live
kernel state.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := sourceFor(file, args)
			if err != nil {
				return err
			}
			return runSource(src)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to a command-language config file")
	return cmd
}

func sourceFor(file string, args []string) (string, error) {
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %q: %w", file, err)
		}
		return string(b), nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("no command given: pass --file or a command line")
	}
	return strings.Join(args, " "), nil
}

// runSource lexes, parses, validates and executes every command found
// in src, stopping at the first validation or execution failure so a
// config file behaves as an ordered transaction list.
func runSource(src string) error {
	commands := cmdlang.Parse(cmdlang.Lex(src))

	s, err := nlsock.Open()
	if err != nil {
		return fmt.Errorf("opening transactor socket: %w", err)
	}
	defer s.Close()

	for _, c := range commands {
		snap, err := executor.TakeSnapshot()
		if err != nil {
			return fmt.Errorf("line %d: taking snapshot: %w", c.Line, err)
		}

		result := executor.Execute(s, snap, c)
		if len(result.Errors) > 0 {
			for _, e := range result.Errors {
				if e.Warning {
					fmt.Fprintln(os.Stderr, "warning:", e.Error())
					continue
				}
				fmt.Fprintln(os.Stderr, "error:", e.Error())
			}
			if anyFatal(result.Errors) {
				return fmt.Errorf("line %d: %s %s failed validation", c.Line, c.Subject, c.Verb)
			}
		}
		if result.Message != "" {
			fmt.Println(result.Message)
		}
	}
	return nil
}

func anyFatal(errs []cmdlang.ValidationError) bool {
	for _, e := range errs {
		if !e.Warning {
			return true
		}
	}
	return false
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "analyze {connectivity|health}",
		Short:     "Run a C7 analyzer over a live snapshot and print its findings",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"connectivity", "health"},
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := executor.TakeSnapshot()
			if err != nil {
				return fmt.Errorf("taking snapshot: %w", err)
			}

			var records []analyze.Record
			switch args[0] {
			case "connectivity":
				records = analyze.Connectivity(snap)
			case "health":
				records = analyze.Health(snap)
			default:
				return fmt.Errorf("unknown analyzer %q", args[0])
			}

			failed := false
			for _, r := range records {
				fmt.Printf("%s: %s\n", r.Status, r.Message)
				if r.Recommendation != "" {
					fmt.Printf("  recommendation: %s\n", r.Recommendation)
				}
				switch r.Status {
				case analyze.StatusError, analyze.StatusUnhealthy:
					failed = true
				}
			}
			if failed {
				return fmt.Errorf("%s analyzer reported a failing condition", args[0])
			}
			return nil
		},
	}
	return cmd
}
