package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/countdown/internal/model"
	"github.com/tinytelemetry/countdown/internal/socketrpc"
)

// ctl holds the flags shared by every subcommand.
type ctl struct {
	configPath string
	socketPath string
	jsonOut    bool
}

func newRootCommand() *cobra.Command {
	c := &ctl{}

	root := &cobra.Command{
		Use:   "countdownctl",
		Short: "Control a running countdown service",
		Long: `countdownctl talks to the countdown service over its Unix socket.

Examples:
  countdownctl set 90        # stage a 90 second countdown
  countdownctl start         # start it
  countdownctl watch         # follow transitions until Ctrl+C
  countdownctl runs -n 5     # show the five most recent runs`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig(cmd)
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default is $HOME/.config/countdown/config.yml)")
	root.PersistentFlags().StringVar(&c.socketPath, "socket", "", "socket path of the countdown service")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "print JSON instead of text")

	root.AddCommand(
		c.newStatusCommand(),
		c.newSetCommand(),
		c.newStartCommand(),
		c.newStopCommand(),
		c.newWatchCommand(),
		c.newRunsCommand(),
		c.newStatsCommand(),
		newVersionCommand(),
	)
	return root
}

// loadConfig resolves the socket path from the flag, COUNTDOWN_SOCKET_PATH
// or the shared config file, in that order.
func (c *ctl) loadConfig(cmd *cobra.Command) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("COUNTDOWN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())
	if err := v.BindPFlag("socket-path", cmd.Root().PersistentFlags().Lookup("socket")); err != nil {
		return err
	}

	if c.configPath != "" {
		v.SetConfigFile(c.configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "countdown", "config.yml"))
	}
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return err
		}
	}

	c.socketPath = v.GetString("socket-path")
	if strings.HasPrefix(c.socketPath, "~/") {
		c.socketPath = filepath.Join(home, c.socketPath[2:])
	}
	return nil
}

func (c *ctl) dial() (*socketrpc.Client, error) {
	client, err := socketrpc.Dial(c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to countdown service at %s: %w", c.socketPath, err)
	}
	return client, nil
}

// withClient dials, runs fn and closes the connection.
func (c *ctl) withClient(fn func(*socketrpc.Client) error) error {
	client, err := c.dial()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func (c *ctl) printState(w io.Writer, st model.State) error {
	if c.jsonOut {
		return json.NewEncoder(w).Encode(st)
	}
	_, err := fmt.Fprintln(w, formatState(st))
	return err
}

// stateCommand builds a subcommand that performs one call and prints the
// resulting state.
func (c *ctl) stateCommand(use, short string, call func(*socketrpc.Client) (model.State, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(func(client *socketrpc.Client) error {
				st, err := call(client)
				if err != nil {
					return err
				}
				return c.printState(cmd.OutOrStdout(), st)
			})
		},
	}
}

func (c *ctl) newStatusCommand() *cobra.Command {
	return c.stateCommand("status", "Show the current timer state", (*socketrpc.Client).StateE)
}

func (c *ctl) newStartCommand() *cobra.Command {
	return c.stateCommand("start", "Start the countdown (ignored unless idle with a duration)", (*socketrpc.Client).StartE)
}

func (c *ctl) newStopCommand() *cobra.Command {
	return c.stateCommand("stop", "Stop the countdown and reset to idle", (*socketrpc.Client).StopE)
}

func (c *ctl) newSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <seconds>",
		Short: "Stage the countdown duration (ignored while running)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := parseSeconds(args[0])
			if err != nil {
				return err
			}
			return c.withClient(func(client *socketrpc.Client) error {
				st, err := client.SetDurationE(seconds)
				if err != nil {
					return err
				}
				return c.printState(cmd.OutOrStdout(), st)
			})
		},
	}
}

func parseSeconds(raw string) (int, error) {
	seconds, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid seconds %q: not a whole number", raw)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("invalid seconds %q: must not be negative", raw)
	}
	return seconds, nil
}

func (c *ctl) newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print every transition until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := c.dial()
			if err != nil {
				return err
			}
			defer client.Close()

			current, events, err := client.Watch(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			if !c.jsonOut {
				fmt.Fprintf(out, "watching %s\n", formatState(current))
			}
			for t := range events {
				if c.jsonOut {
					if err := enc.Encode(t); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(out, "%s  %-12s %s -> %s\n", t.At.Local().Format("15:04:05"), t.Cause, formatState(t.From), formatState(t.To))
			}
			if ctx.Err() == nil {
				return errors.New("connection to countdown service closed")
			}
			return nil
		},
	}
}

func (c *ctl) newRunsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("invalid limit %d: must be positive", limit)
			}
			return c.withClient(func(client *socketrpc.Client) error {
				runs, err := client.RecentRuns(limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if c.jsonOut {
					return json.NewEncoder(out).Encode(runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "no runs recorded")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "STARTED\tOUTCOME\tTOTAL\tELAPSED")
				for _, r := range runs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
						r.StartedAt.Local().Format("2006-01-02 15:04:05"),
						r.Outcome,
						formatSeconds(r.TotalSeconds),
						formatSeconds(r.Elapsed()))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", model.DefaultHistoryLimit, "number of runs to show")
	return cmd
}

func (c *ctl) newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show run totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(func(client *socketrpc.Client) error {
				st, err := client.RunStats()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if c.jsonOut {
					return json.NewEncoder(out).Encode(st)
				}
				_, err = fmt.Fprintf(out, "%d runs, %d completed, %d stopped, %s counted\n",
					st.Total(), st.Completed, st.Stopped, formatSeconds(int(st.SecondsCounted)))
				return err
			})
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "countdownctl\n")
			fmt.Fprintf(out, "  Version:    %s\n", version)
			fmt.Fprintf(out, "  Commit:     %s\n", commit)
			fmt.Fprintf(out, "  Built:      %s\n", buildTime)
			fmt.Fprintf(out, "  Go version: %s\n", goVersion)
		},
	}
}

func formatState(st model.State) string {
	if st.IsRunning() {
		return fmt.Sprintf("running %s of %s", formatSeconds(st.RemainingSeconds), formatSeconds(st.TotalSeconds))
	}
	return fmt.Sprintf("idle %s", formatSeconds(st.ConfiguredSeconds))
}

func formatSeconds(sec int) string {
	return (time.Duration(sec) * time.Second).String()
}
