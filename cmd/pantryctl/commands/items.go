package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/benvon/smart-pantry/internal/calendar"
	"github.com/benvon/smart-pantry/internal/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type wrapFunc func(run runFunc) func(cmd *cobra.Command, args []string) error

func newItemsCmd(with wrapFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List and edit pantry items",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List items ordered by expiration date",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, s *Session, _ []string) error {
			return printItems(cmd.OutOrStdout(), s.Core.Items(), "No items")
		}),
	})

	var name, expires string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add an item with the current defaults",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, s *Session, _ []string) error {
			var expiration *time.Time
			if expires != "" {
				d, err := calendar.ParseDate(expires, s.Clock.Now().Location())
				if err != nil {
					return fmt.Errorf("--expires must be yyyy-mm-dd: %w", err)
				}
				expiration = &d
			}
			item, err := s.Core.AddItem(cmd.Context(), name, expiration)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", item.Name, item.ID)
			return nil
		}),
	}
	add.Flags().StringVar(&name, "name", "", "Item name")
	add.Flags().StringVar(&expires, "expires", "", "Expiration date (yyyy-mm-dd)")
	_ = add.MarkFlagRequired("name")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an item and cancel its reminder",
		Args:  cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, s *Session, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid item id: %w", err)
			}
			if err := s.Core.RemoveItem(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
			return nil
		}),
	})

	var deleteExpired bool
	expired := &cobra.Command{
		Use:   "expired",
		Short: "List items that expired before today",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, s *Session, _ []string) error {
			now := s.Clock.Now()
			if !deleteExpired {
				return printItems(cmd.OutOrStdout(), expiredItems(s.Core.Items(), now), "No expired items")
			}
			removed := s.Core.RemoveAllExpired(cmd.Context(), now)
			if len(removed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No expired items to delete")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d expired items\n", len(removed))
			return nil
		}),
	}
	expired.Flags().BoolVar(&deleteExpired, "delete", false, "Delete the expired items")
	cmd.AddCommand(expired)

	var days int
	var at string
	notify := &cobra.Command{
		Use:   "notify <id>",
		Short: "Set an item's prior days and reminder time",
		Args:  cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, s *Session, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid item id: %w", err)
			}
			tod, err := calendar.ParseTimeOfDay(at)
			if err != nil {
				return err
			}
			item, err := s.Core.UpdateItemNotification(cmd.Context(), id, days, tod)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s reminder at %s\n", item.Name, formatInstant(item.NotificationTime))
			return nil
		}),
	}
	notify.Flags().IntVar(&days, "days", 0, "Days before expiration")
	notify.Flags().StringVar(&at, "time", "", "Time of day (HH:MM)")
	_ = notify.MarkFlagRequired("time")
	cmd.AddCommand(notify)

	var on, off bool
	toggle := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Turn an item's reminder on or off",
		Args:  cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, s *Session, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid item id: %w", err)
			}
			item, err := s.Core.SetItemNotificationEnabled(cmd.Context(), id, on)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s reminder %s\n", item.Name, onOff(item.IsNotificationEnabled))
			return nil
		}),
	}
	toggle.Flags().BoolVar(&on, "on", false, "Enable the reminder")
	toggle.Flags().BoolVar(&off, "off", false, "Disable the reminder")
	toggle.MarkFlagsMutuallyExclusive("on", "off")
	toggle.MarkFlagsOneRequired("on", "off")
	cmd.AddCommand(toggle)

	return cmd
}

// expiredItems returns the items whose expiration date is before now's day
func expiredItems(items []models.Item, now time.Time) []models.Item {
	today := calendar.StartOfDay(now)
	var out []models.Item
	for _, item := range items {
		if item.ExpirationDate != nil && item.ExpirationDate.Before(today) {
			out = append(out, item)
		}
	}
	return out
}

func printItems(w io.Writer, items []models.Item, empty string) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, empty)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEXPIRES\tREMINDER\tENABLED\tDAYS")
	for _, item := range items {
		expires := "-"
		if item.ExpirationDate != nil {
			expires = calendar.FormatDate(*item.ExpirationDate)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			item.ID, item.Name, expires, formatInstant(item.NotificationTime),
			onOff(item.IsNotificationEnabled), item.PriorDays)
	}
	return tw.Flush()
}

func formatInstant(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
