package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/setevik/faultwatch/internal/reporter"
)

func testNotifyCmd() *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		Long: `Send a synthetic notification through the configured transport to check
that delivery works.

Examples:
  faultwatch test-notify --to https://ntfy.sh/my-topic`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			if to == "" {
				to = a.cfg.Notify.Destination
			}
			if to == "" {
				return errors.New("notify.destination not configured")
			}

			sender, err := a.sender()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			if err := sender.Send(ctx, reporter.TestMessage(a.cfg.Instance.ID, to)); err != nil {
				return fmt.Errorf("sending test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent successfully.")
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "destination to use instead of notify.destination")
	return cmd
}
