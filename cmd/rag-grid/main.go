// Package main provides the rag-grid CLI, a thin client for the RAG Grid
// server.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/raggrid/rag-grid/internal/client"
	"github.com/raggrid/rag-grid/internal/engine"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rag-grid",
		Short: "RAG Grid - experiment matrix evaluation client",
		Long: `rag-grid drives a RAG Grid server: inspect the experiment matrix,
toggle parameter selections, trigger evaluations, and read aggregates.

Run 'rag-grid grid' to print the current grid state.
Run 'rag-grid --help' for available commands.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "server base URL")
	rootCmd.PersistentFlags().String("format", "text", "output format (text, json)")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "request timeout")

	rootCmd.AddCommand(
		healthCmd(),
		gridCmd(),
		autofillCmd(),
		sweepCmd(),
		toggleCmd(),
		retryCmd(),
		metricCmd(),
		sortCmd(),
		aggregatesCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newClient(cmd *cobra.Command) *client.Client {
	baseURL, _ := cmd.Flags().GetString("server")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return client.New(client.Config{BaseURL: baseURL, Timeout: timeout})
}

func outputJSON(cmd *cobra.Command) bool {
	format, _ := cmd.Flags().GetString("format")
	return format == "json"
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient(cmd).Health(cmd.Context())
			if err != nil {
				return err
			}
			if outputJSON(cmd) {
				return printJSON(resp)
			}
			fmt.Printf("%s (version %s)\n", resp.Status, resp.Version)
			return nil
		},
	}
}

func gridCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grid",
		Short: "Print the current grid state",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := newClient(cmd).Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			if outputJSON(cmd) {
				return printJSON(snap)
			}
			printGrid(snap)
			return nil
		},
	}
}

func printGrid(snap *engine.Snapshot) {
	fmt.Printf("epoch %d, metric %s, sort %s, %d columns\n\n",
		snap.Epoch, snap.Metric, snap.SortMode, len(snap.Columns))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COL\tSTATUS\tVALUE\tSELECTION")
	for _, idx := range snap.Order {
		c := snap.Columns[idx]

		status := string(c.Status)
		if status == "" {
			if c.Complete {
				status = "resolving"
			} else {
				status = "-"
			}
		}

		value := "-"
		if c.Status == engine.StatusDone && c.Metrics != nil {
			if v, ok := c.Metrics.Value(snap.Metric); ok {
				value = strconv.FormatFloat(v, 'f', 4, 64)
			}
		}

		sel, _ := json.Marshal(c.Selected)
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.Index, status, value, sel)
	}
	w.Flush()
}

func autofillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "autofill",
		Short: "Fill every column with its canonical combination",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient(cmd).AutoFill(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("autofill accepted; evaluations scheduled")
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Autofill the grid and wait for every evaluation to settle",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(cmd)
			interval, _ := cmd.Flags().GetDuration("poll-interval")
			wait, _ := cmd.Flags().GetDuration("wait")

			if err := c.AutoFill(cmd.Context()); err != nil {
				return err
			}

			deadline := time.Now().Add(wait)
			for {
				resp, err := c.Columns(cmd.Context())
				if err != nil {
					return err
				}

				done, failed, pending := 0, 0, 0
				for _, col := range resp.Columns {
					switch col.Status {
					case engine.StatusDone:
						done++
					case engine.StatusError:
						failed++
					default:
						pending++
					}
				}
				fmt.Printf("%d done, %d failed, %d pending\n", done, failed, pending)

				if pending == 0 {
					if failed > 0 {
						return fmt.Errorf("sweep finished with %d failed columns; run 'rag-grid retry <column>'", failed)
					}
					fmt.Println("sweep complete")
					return nil
				}
				if wait > 0 && time.Now().After(deadline) {
					return fmt.Errorf("sweep did not settle within %s", wait)
				}
				time.Sleep(interval)
			}
		},
	}
	cmd.Flags().Duration("poll-interval", 2*time.Second, "polling interval")
	cmd.Flags().Duration("wait", 0, "maximum time to wait (0 means forever)")
	return cmd
}

func toggleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toggle <column> <dimension> <value-index>",
		Short: "Toggle one cell of a column",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			column, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid column: %s", args[0])
			}
			valueIndex, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid value index: %s", args[2])
			}

			resp, err := newClient(cmd).Toggle(cmd.Context(), column, args[1], valueIndex)
			if err != nil {
				return err
			}
			if outputJSON(cmd) {
				return printJSON(resp)
			}
			fmt.Printf("column %d: %s\n", resp.Column, resp.Transition)
			return nil
		},
	}
	return cmd
}

func retryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <column>",
		Short: "Re-schedule a failed evaluation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			column, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid column: %s", args[0])
			}
			if err := newClient(cmd).Retry(cmd.Context(), column); err != nil {
				return err
			}
			fmt.Printf("retry accepted for column %d\n", column)
			return nil
		},
	}
}

func metricCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metric <accuracy|recall|mrr|map>",
		Short: "Switch the active display metric",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient(cmd).SetMetric(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("metric set to %s\n", args[0])
			return nil
		},
	}
}

func sortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sort <natural|sorted>",
		Short: "Switch the display order mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient(cmd).SetSortMode(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("sort mode set to %s\n", args[0])
			return nil
		},
	}
}

func aggregatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "aggregates",
		Short: "Print per-value means of the active metric",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient(cmd).Aggregates(cmd.Context())
			if err != nil {
				return err
			}
			if outputJSON(cmd) {
				return printJSON(resp)
			}

			fmt.Printf("metric: %s\n\n", resp.Metric)
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DIMENSION\tVALUE\tMEAN\tCOUNT")
			for _, a := range resp.Aggregates {
				fmt.Fprintf(w, "%s\t%d\t%.4f\t%d\n", a.Dimension, a.ValueIndex, a.Mean, a.Count)
			}
			return w.Flush()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rag-grid %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}
