package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRecipesCmd(with wrapFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipes",
		Short: "Saved recipes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved recipes",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, s *Session, _ []string) error {
			favorites := s.Core.Favorites()
			if len(favorites) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved recipes")
				return nil
			}
			for _, r := range favorites {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n%s\n\n", r.ID, r.Name, r.Information)
			}
			return nil
		}),
	})

	return cmd
}
