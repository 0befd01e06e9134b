package commands

import (
	"fmt"
	"strconv"

	"github.com/benvon/smart-pantry/internal/calendar"
	"github.com/spf13/cobra"
)

func newBulkCmd(with wrapFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Apply reminder settings to every item",
	}

	for _, enabled := range []bool{true, false} {
		use, short, verb := "enable", "Turn every item's reminder on", "Enabled"
		if !enabled {
			use, short, verb = "disable", "Turn every item's reminder off", "Disabled"
		}
		cmd.AddCommand(&cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: with(func(cmd *cobra.Command, s *Session, _ []string) error {
				n, _ := s.Core.SetEnableAll(cmd.Context(), enabled)
				fmt.Fprintf(cmd.OutOrStdout(), "%s reminders on %d items\n", verb, n)
				return nil
			}),
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "time HH:MM",
		Short: "Set the reminder time of day on every item",
		Args:  cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, s *Session, args []string) error {
			tod, err := calendar.ParseTimeOfDay(args[0])
			if err != nil {
				return err
			}
			n, err := s.Core.ApplyNotifyTimeToAll(cmd.Context(), tod)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reminder time %s on %d items\n", tod, n)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "days N",
		Short: "Set the days before expiration on every item",
		Args:  cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, s *Session, args []string) error {
			days, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("days must be a number: %w", err)
			}
			n, err := s.Core.ApplyPriorDaysToAll(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d days before expiration on %d items\n", days, n)
			return nil
		}),
	})

	return cmd
}
