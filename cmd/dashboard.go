package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"bookmybox-cli/api"

	"github.com/spf13/cobra"
)

func dashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show account analytics from the server",
	}

	cmd.AddCommand(dashboardAnalyticsCmd())
	cmd.AddCommand(dashboardAchievementsCmd())
	cmd.AddCommand(dashboardOwnerCmd())
	return cmd
}

func dashboardAnalyticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Spending, hours and habits across your bookings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if _, err := app.requireUser(ctx); err != nil {
				return err
			}
			analytics, err := app.Client.Analytics(ctx)
			if err != nil {
				return describeFailure(api.Normalize(err, "Failed to load analytics."))
			}

			if outputJSON {
				return writeJSON(analytics)
			}

			writer := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			fmt.Fprintf(writer, "Total spent\t%.2f\n", analytics.TotalSpent.Float64())
			fmt.Fprintf(writer, "Bookings this month\t%d\n", analytics.ThisMonthBookings)
			fmt.Fprintf(writer, "Hours played\t%d\n", analytics.TotalHoursPlayed)
			fmt.Fprintf(writer, "Average per session\t%.2f\n", analytics.AverageCostPerSession.Float64())
			fmt.Fprintf(writer, "Average rating\t%.1f\n", analytics.AverageRating.Float64())
			fmt.Fprintf(writer, "Cancellation rate\t%.1f%%\n", analytics.CancellationRate.Float64())
			if sports := describeSportShares(analytics.SportDistribution); sports != "" {
				fmt.Fprintf(writer, "Sports\t%s\n", sports)
			}
			if busiest := busiestDay(analytics.ActivityByDay); busiest != "" {
				fmt.Fprintf(writer, "Busiest day\t%s\n", busiest)
			}
			if peak := peakHours(analytics.PeakBookingHours); peak != "" {
				fmt.Fprintf(writer, "Peak hours\t%s\n", peak)
			}
			if err := writer.Flush(); err != nil {
				return err
			}

			if outputCompact || len(analytics.MonthlySpending) == 0 {
				return nil
			}
			fmt.Println()
			writer = tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			fmt.Fprintln(writer, "MONTH\tSPENT")
			for _, month := range analytics.MonthlySpending {
				fmt.Fprintf(writer, "%s\t%.2f\n", month.Month, month.TotalSpent.Float64())
			}
			return writer.Flush()
		},
	}

	return cmd
}

func dashboardAchievementsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "achievements",
		Short: "List achievements and whether you have earned them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if _, err := app.requireUser(ctx); err != nil {
				return err
			}
			achievements, err := app.Client.Achievements(ctx)
			if err != nil {
				return describeFailure(api.Normalize(err, "Failed to load achievements."))
			}

			if outputJSON {
				return writeJSON(achievements)
			}
			if len(achievements) == 0 {
				fmt.Println("No achievements yet.")
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			if !outputCompact {
				fmt.Fprintln(writer, "EARNED\tNAME\tDESCRIPTION")
			}
			for _, achievement := range achievements {
				mark := "-"
				if achievement.Earned {
					mark = "yes"
				}
				fmt.Fprintf(writer, "%s\t%s\t%s\n", mark, achievement.Name, achievement.Description)
			}
			return writer.Flush()
		},
	}

	return cmd
}

func dashboardOwnerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owner",
		Short: "Revenue and booking totals across the boxes you own",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if _, err := app.requireRole(ctx, api.RoleOwner, api.RoleAdmin); err != nil {
				return err
			}
			stats, err := app.Client.OwnerStats(ctx)
			if err != nil {
				return describeFailure(api.Normalize(err, "Failed to load owner statistics."))
			}

			if outputJSON {
				return writeJSON(stats)
			}

			writer := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			fmt.Fprintf(writer, "Revenue\t%.2f\n", stats.TotalRevenue.Float64())
			fmt.Fprintf(writer, "Bookings\t%d\n", stats.TotalBookings)
			fmt.Fprintf(writer, "Boxes\t%d active, %d pending, %d rejected\n", stats.ActiveBoxes, stats.PendingBoxes, stats.RejectedBoxes)
			fmt.Fprintf(writer, "Average rating\t%.1f\n", stats.AvgRating.Float64())
			if sports := describeSportCounts(stats.SportsDistribution); sports != "" {
				fmt.Fprintf(writer, "Sports\t%s\n", sports)
			}
			if err := writer.Flush(); err != nil {
				return err
			}

			if outputCompact || len(stats.RecentBookings) == 0 {
				return nil
			}
			fmt.Println()
			writer = tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tBOX\tUSER\tDATE\tTIME\tAMOUNT\tSTATUS")
			for _, booking := range stats.RecentBookings {
				fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%s\t%.2f\t%s\n",
					booking.ID, booking.BoxName, booking.User, booking.Date, booking.StartTime,
					booking.TotalAmount.Float64(), booking.BookingStatus)
			}
			return writer.Flush()
		},
	}

	return cmd
}

func describeSportShares(shares []api.SportShare) string {
	parts := make([]string, 0, len(shares))
	for _, share := range shares {
		parts = append(parts, fmt.Sprintf("%s %.0f%%", share.Sport, share.Percentage.Float64()))
	}
	return strings.Join(parts, ", ")
}

// describeSportCounts orders sports by count, then by name.
func describeSportCounts(counts map[string]int) string {
	sports := make([]string, 0, len(counts))
	for sport := range counts {
		sports = append(sports, sport)
	}
	sort.Slice(sports, func(i, j int) bool {
		if counts[sports[i]] != counts[sports[j]] {
			return counts[sports[i]] > counts[sports[j]]
		}
		return sports[i] < sports[j]
	})
	parts := make([]string, 0, len(sports))
	for _, sport := range sports {
		parts = append(parts, fmt.Sprintf("%s %d", sport, counts[sport]))
	}
	return strings.Join(parts, ", ")
}

// busiestDay returns the first day with the most hours, or "" when no hours
// were played.
func busiestDay(days []api.DayActivity) string {
	best := ""
	hours := 0
	for _, day := range days {
		if day.TotalHours > hours {
			best = day.DayOfWeek
			hours = day.TotalHours
		}
	}
	if best == "" {
		return ""
	}
	return fmt.Sprintf("%s (%dh)", best, hours)
}

func peakHours(shares []api.HourShare) string {
	best := ""
	percentage := 0.0
	for _, share := range shares {
		if share.Percentage.Float64() > percentage {
			best = share.HourRange
			percentage = share.Percentage.Float64()
		}
	}
	if best == "" {
		return ""
	}
	return fmt.Sprintf("%s (%.0f%%)", best, percentage)
}
