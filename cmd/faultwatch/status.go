package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/setevik/faultwatch/internal/fault"
	"github.com/setevik/faultwatch/internal/format"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and store health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			w := cmd.OutOrStdout()
			now := time.Now()
			cfg := a.cfg

			destination := cfg.Notify.Destination
			if destination == "" {
				destination = "(none, notifications disabled)"
			}
			throttle := cfg.ThrottleWindow().String()
			if cfg.ThrottleWindow() == 0 {
				throttle = "disabled"
			}

			fmt.Fprintf(w, "Instance:     %s\n", cfg.Instance.ID)
			fmt.Fprintf(w, "Transport:    %s -> %s\n", cfg.Notify.Transport, destination)
			fmt.Fprintf(w, "Throttle:     %s (summary %s)\n", throttle, onOff(cfg.Notify.Summary))
			fmt.Fprintf(w, "Store:        %s %s\n", cfg.Stats.Backend, a.store.Location())

			if info, err := os.Stat(a.store.Location()); err == nil {
				fmt.Fprintf(w, "Store size:   %s\n", format.Bytes(info.Size()))
			}
			if a.store.Degraded() {
				fmt.Fprintln(w, "Store state:  UNAVAILABLE, running in memory")
			}

			records := a.stats.All(now)
			bySeverity := make(map[fault.Severity]int)
			var latest time.Time
			for _, o := range records {
				bySeverity[o.Info.Severity]++
				if o.LastSeenAt.After(latest) {
					latest = o.LastSeenAt
				}
			}
			pending := len(a.stats.SummaryCandidates(now, cfg.ThrottleWindow()))

			fmt.Fprintf(w, "Records:      %d (%d fatal, %d error, %d warning, %d notice)\n",
				len(records),
				bySeverity[fault.SevFatal],
				bySeverity[fault.SevError],
				bySeverity[fault.SevWarning],
				bySeverity[fault.SevNotice],
			)
			fmt.Fprintf(w, "Summary due:  %d record(s)\n", pending)
			if latest.IsZero() {
				fmt.Fprintln(w, "Last fault:   none")
			} else {
				fmt.Fprintf(w, "Last fault:   %s ago\n", format.Age(now.Sub(latest)))
			}
			return nil
		},
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
