package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"bookmybox-cli/api"
	"bookmybox-cli/storage"

	"github.com/spf13/cobra"
)

// FavouriteRow is a server favourite joined with the local aliases that
// point at it.
type FavouriteRow struct {
	api.FavouriteBox
	Aliases []string `json:"aliases,omitempty"`
}

func favouritesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "favourites",
		Aliases: []string{"fav"},
		Short:   "Manage favourite boxes",
	}

	cmd.AddCommand(favouritesListCmd())
	cmd.AddCommand(favouritesAddCmd())
	cmd.AddCommand(favouritesRemoveCmd())
	cmd.AddCommand(favouritesAliasCmd())
	cmd.AddCommand(favouritesUnaliasCmd())
	return cmd
}

func joinAliases(favourites []api.FavouriteBox, aliases map[int64][]string) []FavouriteRow {
	rows := make([]FavouriteRow, 0, len(favourites))
	for _, favourite := range favourites {
		rows = append(rows, FavouriteRow{FavouriteBox: favourite, Aliases: aliases[favourite.ID]})
	}
	return rows
}

func favouritesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List favourite boxes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if _, err := app.requireUser(ctx); err != nil {
				return err
			}
			favourites, err := app.Client.Favourites(ctx)
			if err != nil {
				return describeFailure(api.Normalize(err, "Failed to load favourites."))
			}
			aliases, err := storage.AliasesByBox(app.DB)
			if err != nil {
				app.Logger.Warn("load aliases", "error", err)
			}
			rows := joinAliases(favourites, aliases)

			if outputJSON {
				return writeJSON(rows)
			}

			if len(rows) == 0 {
				fmt.Println("No favourites saved.")
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			if !outputCompact {
				fmt.Fprintln(writer, "ID\tNAME\tLOCATION\tPRICE\tADDED\tALIASES")
			}
			for _, row := range rows {
				fmt.Fprintf(writer, "%d\t%s\t%s\t%.0f\t%s\t%s\n",
					row.ID, row.Name, row.Location, row.PricePerHour.Float64(), row.AddedOn, strings.Join(row.Aliases, ","))
			}
			return writer.Flush()
		},
	}

	return cmd
}

func favouritesAddCmd() *cobra.Command {
	var alias string

	cmd := &cobra.Command{
		Use:   "add <box-id|alias>",
		Short: "Save a box to your favourites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveBoxID(args[0])
			if err != nil {
				return err
			}
			ctx := context.Background()
			if _, err := app.requireUser(ctx); err != nil {
				return err
			}

			favourite, err := app.Client.AddFavourite(ctx, id)
			if err != nil {
				return describeFailure(api.Normalize(err, "Failed to save favourite."))
			}
			if favourite.ID == 0 {
				favourite.ID = id
			}
			if alias = strings.TrimSpace(alias); alias != "" {
				if err := storage.SetAlias(app.DB, alias, favourite.ID); err != nil {
					return err
				}
			}

			if outputJSON {
				return writeJSON(favourite)
			}
			name := favourite.Name
			if name == "" {
				name = fmt.Sprintf("box %d", favourite.ID)
			}
			if alias != "" {
				fmt.Printf("Saved favourite %s as %s.\n", name, alias)
				return nil
			}
			fmt.Printf("Saved favourite %s.\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&alias, "alias", "", "Short local name for the box")
	return cmd
}

func favouritesRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <box-id|alias>",
		Short: "Remove a box from your favourites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveBoxID(args[0])
			if err != nil {
				return err
			}
			ctx := context.Background()
			if _, err := app.requireUser(ctx); err != nil {
				return err
			}

			if err := app.Client.RemoveFavourite(ctx, id); err != nil {
				return describeFailure(api.Normalize(err, "Failed to remove favourite."))
			}
			if _, err := storage.RemoveAliasesFor(app.DB, id); err != nil {
				app.Logger.Warn("drop aliases", "box", id, "error", err)
			}

			fmt.Printf("Removed favourite %d.\n", id)
			return nil
		},
	}

	return cmd
}

func favouritesAliasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alias <box-id> <name>",
		Short: "Name a box locally so commands accept the name in place of its id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "box")
			if err != nil {
				return err
			}
			name := strings.TrimSpace(args[1])
			if _, err := parseID(name, "box"); err == nil {
				return fmt.Errorf("alias %q would shadow a box id", name)
			}
			if err := storage.SetAlias(app.DB, name, id); err != nil {
				return err
			}
			fmt.Printf("%s now refers to box %d.\n", name, id)
			return nil
		},
	}

	return cmd
}

func favouritesUnaliasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unalias <name>",
		Short: "Forget a local box alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := storage.RemoveAlias(app.DB, args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("alias %q not found", strings.TrimSpace(args[0]))
			}
			fmt.Printf("Removed alias %s.\n", strings.TrimSpace(args[0]))
			return nil
		},
	}

	return cmd
}
