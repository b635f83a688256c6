package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanupCommand(opts *rootOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete records created more than N days ago",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if !cmd.Flags().Changed("days") {
				days = a.cfg.RetentionDays
			}
			n, err := a.svc.Cleanup(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d glebas removidas.\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "retention in days; when omitted the configured retentiondays is used")
	return cmd
}
