package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/setevik/faultwatch/internal/fault"
	"github.com/setevik/faultwatch/internal/format"
)

func statsCmd() *cobra.Command {
	var (
		output   string
		severity string
		last     string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "List occurrence records",
		Long: `List every fingerprint in the stats store with its counts and throttle state.

Examples:
  # Records seen in the last day, as YAML
  faultwatch stats --last 1d -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			now := time.Now()
			records := a.stats.All(now)

			if severity != "" {
				floor, err := fault.ParseSeverity(severity)
				if err != nil {
					return err
				}
				records = filter(records, func(o fault.Occurrence) bool { return o.Info.Severity >= floor })
			}
			if last != "" {
				d, err := format.ParseDuration(last)
				if err != nil {
					return fmt.Errorf("invalid --last value %q: %w", last, err)
				}
				cutoff := now.Add(-d)
				records = filter(records, func(o fault.Occurrence) bool { return o.LastSeenAt.After(cutoff) })
			}

			return printRecords(cmd.OutOrStdout(), output, records, now)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json, yaml")
	cmd.Flags().StringVar(&severity, "severity", "", "only records at or above this severity")
	cmd.Flags().StringVar(&last, "last", "", "only records seen within this window (e.g. 24h, 7d)")

	return cmd
}

func findCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "find <fingerprint>",
		Short: "Show one occurrence record",
		Long: `Show the record for a fingerprint. A unique prefix of the fingerprint is enough.

Examples:
  faultwatch find 5f2c9a -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			now := time.Now()
			rec, err := findByPrefix(a.stats.All(now), args[0])
			if err != nil {
				return err
			}
			if output == "text" {
				printRecord(cmd.OutOrStdout(), rec, now)
				return nil
			}
			return printRecords(cmd.OutOrStdout(), output, []fault.Occurrence{rec}, now)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json, yaml")
	return cmd
}

func gcCmd() *cobra.Command {
	var retention string

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove records outside the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			now := time.Now()
			var removed int
			if retention != "" {
				d, err := format.ParseDuration(retention)
				if err != nil {
					return fmt.Errorf("invalid --retention value %q: %w", retention, err)
				}
				removed = a.store.GC(now, d)
			} else {
				removed = a.stats.GC(now)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d record(s), %d remaining.\n", removed, len(a.stats.All(now)))
			return nil
		},
	}

	cmd.Flags().StringVar(&retention, "retention", "", "override stats.retention for this sweep (e.g. 12h, 7d)")
	return cmd
}

func flushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Delete every occurrence record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			a.stats.Flush()
			fmt.Fprintf(cmd.OutOrStdout(), "Flushed %s.\n", a.store.Location())
			return nil
		},
	}
}

func filter(records []fault.Occurrence, keep func(fault.Occurrence) bool) []fault.Occurrence {
	out := records[:0]
	for _, o := range records {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

func findByPrefix(records []fault.Occurrence, prefix string) (fault.Occurrence, error) {
	var matches []fault.Occurrence
	for _, o := range records {
		if strings.HasPrefix(o.Fingerprint, prefix) {
			matches = append(matches, o)
		}
	}
	switch len(matches) {
	case 0:
		return fault.Occurrence{}, fmt.Errorf("no record matches %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return fault.Occurrence{}, fmt.Errorf("%d records match %q, use a longer prefix", len(matches), prefix)
	}
}

func printRecords(w io.Writer, output string, records []fault.Occurrence, now time.Time) error {
	switch output {
	case "json":
		if records == nil {
			records = []fault.Occurrence{}
		}
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(records)
	case "text", "":
		printTable(w, records, now)
		return nil
	default:
		return fmt.Errorf("invalid output format %q: must be text, json or yaml", output)
	}
}

func printTable(w io.Writer, records []fault.Occurrence, now time.Time) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FINGERPRINT\tSEVERITY\tCOUNT\tSUPPRESSED\tLAST SEEN\tMESSAGE")
	for _, o := range records {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s ago\t%s\n",
			o.Fingerprint[:min(12, len(o.Fingerprint))],
			o.Info.Severity,
			o.Count,
			o.Notification.SuppressedSinceNotify,
			format.Age(now.Sub(o.LastSeenAt)),
			format.Truncate(o.Info.Message, 60),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\nTotal: %d record(s)\n", len(records))
}

func printRecord(w io.Writer, o fault.Occurrence, now time.Time) {
	fmt.Fprintf(w, "Fingerprint:  %s\n", o.Fingerprint)
	fmt.Fprintf(w, "Severity:     %s\n", o.Info.Severity.Label())
	fmt.Fprintf(w, "Message:      %s\n", o.Info.Message)
	fmt.Fprintf(w, "Location:     %s:%d\n", o.Info.File, o.Info.Line)
	fmt.Fprintf(w, "Count:        %d\n", o.Count)
	fmt.Fprintf(w, "First seen:   %s (%s ago)\n", o.FirstSeenAt.Local().Format(time.DateTime), format.Age(now.Sub(o.FirstSeenAt)))
	fmt.Fprintf(w, "Last seen:    %s (%s ago)\n", o.LastSeenAt.Local().Format(time.DateTime), format.Age(now.Sub(o.LastSeenAt)))
	if ts := o.Notification.LastNotifiedAt; ts != nil {
		fmt.Fprintf(w, "Notified:     %s to %s\n", ts.Local().Format(time.DateTime), o.Notification.LastNotifiedTo)
	} else {
		fmt.Fprintln(w, "Notified:     never")
	}
	fmt.Fprintf(w, "Suppressed:   %d since last notification\n", o.Notification.SuppressedSinceNotify)
}
