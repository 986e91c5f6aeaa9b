package cmd

import (
	"context"
	"fmt"
	"strings"

	"bookmybox-cli/api"
	"bookmybox-cli/listings"

	"github.com/spf13/cobra"
)

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Review box submissions",
	}

	cmd.AddCommand(adminPendingCmd())
	cmd.AddCommand(adminApproveCmd())
	cmd.AddCommand(adminRejectCmd())
	return cmd
}

func adminPendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List boxes waiting for approval",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if _, err := app.requireRole(ctx, api.RoleAdmin); err != nil {
				return err
			}
			if err := app.Listings.FetchPending(ctx); err != nil {
				return err
			}
			return printBoxes(app.Listings.View(listings.ViewPending), nil)
		},
	}

	return cmd
}

func adminApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending box",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "box")
			if err != nil {
				return err
			}
			ctx := context.Background()
			if _, err := app.requireRole(ctx, api.RoleAdmin); err != nil {
				return err
			}
			if err := app.Listings.Approve(ctx, id); err != nil {
				return describeFailure(err)
			}
			fmt.Printf("Approved box %d.\n", id)
			return nil
		},
	}

	return cmd
}

func adminRejectCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending box",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "box")
			if err != nil {
				return err
			}
			reason = strings.TrimSpace(reason)
			if reason == "" {
				return fmt.Errorf("--reason is required")
			}
			ctx := context.Background()
			if _, err := app.requireRole(ctx, api.RoleAdmin); err != nil {
				return err
			}
			if err := app.Listings.Reject(ctx, id, reason); err != nil {
				return describeFailure(err)
			}
			fmt.Printf("Rejected box %d: %s\n", id, reason)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason shown to the owner")
	return cmd
}
