package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lyrix/internal/arbiter"
	"lyrix/internal/lyrics"
	"lyrix/internal/session"
)

var replayCmd = &cobra.Command{
	Use:   "replay <trace.yaml>",
	Short: "Replay a recorded sync trace and print the resulting timeline",
	Long: `Replay feeds every event of a YAML trace (time samples, edits, selections, transport
gestures, watchdog ticks) into a fresh session on a simulated clock and prints what the
session did after each one. Nothing is written to the database.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

var (
	resetGuardMs int64
	contentionMs int64
	throttleMs   int64
	showLines    bool
)

func init() {
	defaults := arbiter.DefaultConfig()

	replayCmd.Flags().Int64Var(&resetGuardMs, "reset-guard", defaults.ResetGuardMs, "ignore zero samples this soon after a real position (ms)")
	replayCmd.Flags().Int64Var(&contentionMs, "contention", defaults.ContentionWindowMs, "host priority window over local samples (ms)")
	replayCmd.Flags().Int64Var(&throttleMs, "throttle", defaults.ThrottleMs, "minimum spacing between accepted samples (ms)")
	replayCmd.Flags().BoolVar(&showLines, "lines", true, "print the final line timecodes")

	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	trace, err := session.LoadTrace(args[0])
	if err != nil {
		return err
	}

	cfg := arbiter.DefaultConfig()
	cfg.ResetGuardMs = resetGuardMs
	cfg.ContentionWindowMs = contentionMs
	cfg.ThrottleMs = throttleMs

	timeline, s := session.Replay(trace, cfg)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n--- 🧪 REPLAY: %s (%d events) ---\n", trace.Song.Title, len(trace.Events))
	printTimeline(out, timeline)
	if showLines {
		fmt.Fprintln(out)
		printLines(out, s.Snapshot())
	}
	return nil
}

func printTimeline(out io.Writer, timeline []session.TimelineEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "AT\tEVENT\tOUTCOME\tACTIVE\tTRANSPORT\tDISPLAY")
	fmt.Fprintln(w, "--\t-----\t-------\t------\t---------\t-------")
	for _, e := range timeline {
		active := "-"
		if e.Active >= 0 {
			active = fmt.Sprint(e.Active)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			lyrics.FormatClock(e.AtMs),
			e.Event,
			e.Outcome,
			active,
			e.Transport,
			e.Display,
		)
	}
}

func printLines(out io.Writer, snap session.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "#\tTIME\tTEXT")
	fmt.Fprintln(w, "-\t----\t----")
	for _, l := range snap.Lines {
		marker := " "
		if l.Index == snap.ActiveIndex {
			marker = "▶"
		}
		fmt.Fprintf(w, "%s%d\t%s\t%s\n", marker, l.Index, l.Clock, truncate(l.Text, 40))
	}
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
