package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/benvon/smart-pantry/internal/calendar"
	"github.com/benvon/smart-pantry/internal/models"
	"github.com/spf13/cobra"
)

func newSettingsCmd(with wrapFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and change the defaults for new items",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the defaults",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, s *Session, _ []string) error {
			printSettings(cmd.OutOrStdout(), s.Core.Settings())
			return nil
		}),
	})

	var enabled bool
	var days int
	var at string
	set := &cobra.Command{
		Use:   "set",
		Short: "Change the defaults. Existing items keep their values.",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, s *Session, _ []string) error {
			flags := cmd.Flags()
			if !flags.Changed("enabled") && !flags.Changed("days") && !flags.Changed("time") {
				return fmt.Errorf("nothing to set: pass --enabled, --days or --time")
			}
			ctx := cmd.Context()
			current := s.Core.Settings()
			var err error
			if flags.Changed("time") {
				tod, err := calendar.ParseTimeOfDay(at)
				if err != nil {
					return err
				}
				if current, err = s.Core.SetDefaultNotifyTime(ctx, tod); err != nil {
					return err
				}
			}
			if flags.Changed("days") {
				if current, err = s.Core.SetDefaultPriorDays(ctx, days); err != nil {
					return err
				}
			}
			if flags.Changed("enabled") {
				if current, err = s.Core.SetDefaultEnableNotify(ctx, enabled); err != nil {
					return err
				}
			}
			printSettings(cmd.OutOrStdout(), current)
			return nil
		}),
	}
	set.Flags().BoolVar(&enabled, "enabled", false, "Enable reminders on new items")
	set.Flags().IntVar(&days, "days", 0, "Days before expiration for new items")
	set.Flags().StringVar(&at, "time", "", "Reminder time of day for new items (HH:MM)")
	cmd.AddCommand(set)

	return cmd
}

func printSettings(w io.Writer, s models.Settings) {
	fmt.Fprintf(w, "Reminders on new items: %s\n", onOff(s.DefaultEnableNotify))
	fmt.Fprintf(w, "Days before expiration: %s\n", strconv.Itoa(s.DefaultPriorDays))
	fmt.Fprintf(w, "Reminder time:          %s\n", s.DefaultNotifyTime)
}
