package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"bookmybox-cli/api"
	"bookmybox-cli/bookings"
	"bookmybox-cli/storage"

	"github.com/spf13/cobra"
)

type BookingStats struct {
	TotalBookings     int     `json:"total_bookings"`
	CancelledBookings int     `json:"cancelled_bookings"`
	TotalSpent        float64 `json:"total_spent"`
	TotalHours        int     `json:"total_hours"`
	FavouriteBox      string  `json:"favourite_box"`
	FavouriteBoxCount int     `json:"favourite_box_count"`
	UsualTime         string  `json:"usual_time"`
	LastPlayed        string  `json:"last_played"`
}

func bookingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "Manage your bookings",
	}

	cmd.AddCommand(bookingsListCmd())
	cmd.AddCommand(bookingsSyncCmd())
	cmd.AddCommand(bookingsCancelCmd())
	cmd.AddCommand(bookingsUpdateCmd())
	cmd.AddCommand(bookingsDeleteCmd())
	cmd.AddCommand(bookingsStatsCmd())
	return cmd
}

// syncBookings fetches the signed-in user's bookings and replaces the local
// cache with them.
func syncBookings(ctx context.Context) (int, error) {
	user, err := app.requireUser(ctx)
	if err != nil {
		return 0, err
	}
	if err := app.Bookings.Fetch(ctx, user.ID); err != nil {
		return 0, err
	}

	now := time.Now()
	fetched := app.Bookings.Bookings()
	rows := make([]storage.Booking, 0, len(fetched))
	for _, booking := range fetched {
		rows = append(rows, cachedBooking(booking, now))
	}
	if err := storage.ReplaceBookings(app.DB, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func bookingsListCmd() *cobra.Command {
	var past bool
	var from string
	var to string
	var status string
	var offline bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bookings",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := storage.BookingFilter{Status: status}

			if from != "" {
				date, err := parseDateInput(from)
				if err != nil {
					return err
				}
				filter.From = date.Format(dateLayout)
			}
			if to != "" {
				date, err := parseDateInput(to)
				if err != nil {
					return err
				}
				filter.To = date.Format(dateLayout)
			}
			if filter.From != "" && filter.To != "" && filter.From > filter.To {
				return fmt.Errorf("--from must be on or before --to")
			}

			now := time.Now()
			filter.NowDate = now.Format(dateLayout)
			filter.NowTime = now.Format("15:04")

			if filter.From == "" && filter.To == "" {
				if past {
					filter.Past = true
				} else {
					filter.Upcoming = true
				}
			}

			if !offline {
				if _, err := syncBookings(context.Background()); err != nil {
					return err
				}
			}

			rows, err := storage.ListBookings(app.DB, filter)
			if err != nil {
				return err
			}

			if outputJSON {
				return writeJSON(rows)
			}

			if len(rows) == 0 {
				fmt.Println("No bookings found.")
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			if !outputCompact {
				fmt.Fprintln(writer, "ID\tDATE\tTIME\tBOX\tHOURS\tAMOUNT\tSTATUS")
			}
			for _, row := range rows {
				fmt.Fprintf(writer, "%d\t%s\t%s-%s\t%s\t%d\t%s\t%s\n", row.ID, row.Date, row.StartTime, row.EndTime, row.BoxName, row.Duration, formatINR(row.TotalAmount), row.BookingStatus)
			}
			return writer.Flush()
		},
	}

	cmd.Flags().BoolVar(&past, "past", false, "List past bookings")
	cmd.Flags().StringVar(&from, "from", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "End date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&status, "status", "", "Only bookings with this status (Confirmed, Completed, Cancelled)")
	cmd.Flags().BoolVar(&offline, "offline", false, "Read the local cache without contacting the server")
	return cmd
}

func bookingsSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync bookings from BookMyBox",
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := syncBookings(context.Background())
			if err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(map[string]int{"synced": count})
			}
			fmt.Printf("Sync complete. %d bookings cached.\n", count)
			return nil
		},
	}

	return cmd
}

func bookingsCancelCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "booking")
			if err != nil {
				return err
			}
			ctx := context.Background()
			if _, err := app.requireUser(ctx); err != nil {
				return err
			}

			if !force {
				cached, ok := findCachedBooking(id)
				if ok && strings.EqualFold(cached.BookingStatus, api.BookingCancelled) {
					return fmt.Errorf("booking %d is already cancelled", id)
				}
				pending := api.Booking{ID: id, Date: cached.Date, StartTime: cached.StartTime, BookingStatus: cached.BookingStatus}
				if ok && !bookings.CancellationOpen(pending, time.Now()) {
					return fmt.Errorf("booking %d starts within %.0f hours and can no longer be cancelled (use --force to ask the server anyway)", id, bookings.CancellationCutoff.Hours())
				}
			}

			booking, err := app.Bookings.Cancel(ctx, id)
			if err != nil {
				return describeFailure(err)
			}
			if booking.Date != "" {
				if err := storage.UpsertBooking(app.DB, cachedBooking(booking, time.Now())); err != nil {
					app.Logger.Warn("cache booking", "id", id, "error", err)
				}
			} else if _, err := storage.RemoveBooking(app.DB, id); err != nil {
				app.Logger.Warn("uncache booking", "id", id, "error", err)
			}

			if outputJSON {
				return writeJSON(booking)
			}
			fmt.Printf("Cancelled booking %d.\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Send the request even inside the cancellation cutoff")
	return cmd
}

// findCachedBooking looks a booking up in the local cache.
func findCachedBooking(id int64) (storage.Booking, bool) {
	rows, err := storage.ListBookings(app.DB, storage.BookingFilter{})
	if err != nil {
		return storage.Booking{}, false
	}
	for _, row := range rows {
		if row.ID == id {
			return row, true
		}
	}
	return storage.Booking{}, false
}

func bookingsUpdateCmd() *cobra.Command {
	var date string
	var timeValue string
	var duration int

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Move or resize a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "booking")
			if err != nil {
				return err
			}

			fields := map[string]any{}
			if date != "" {
				day, err := parseDateInput(date)
				if err != nil {
					return err
				}
				fields["date"] = day.Format(dateLayout)
			}
			if cmd.Flags().Changed("duration") {
				if duration < bookings.MinDuration || duration > bookings.MaxDuration {
					return bookings.ErrInvalidDuration
				}
				fields["duration"] = duration
			}
			if timeValue != "" {
				if _, err := parseClock(timeValue); err != nil {
					return err
				}
				fields["start_time"] = timeValue
			}
			if len(fields) == 0 {
				return fmt.Errorf("nothing to update: pass --date, --time or --duration")
			}

			ctx := context.Background()
			if _, err := app.requireUser(ctx); err != nil {
				return err
			}

			// The end time follows from start and duration, so resend it when
			// either changes.
			if _, ok := fields["start_time"]; ok || cmd.Flags().Changed("duration") {
				start, hours := timeValue, duration
				if cached, ok := findCachedBooking(id); ok {
					if start == "" {
						start = cached.StartTime
					}
					if !cmd.Flags().Changed("duration") {
						hours = cached.Duration
					}
				}
				if start != "" && hours > 0 {
					end, err := bookings.EndTime(start, hours)
					if err != nil {
						return err
					}
					fields["end_time"] = end
				}
			}

			booking, err := app.Bookings.Update(ctx, id, fields)
			if err != nil {
				return describeFailure(err)
			}
			if booking.Date != "" {
				if err := storage.UpsertBooking(app.DB, cachedBooking(booking, time.Now())); err != nil {
					app.Logger.Warn("cache booking", "id", id, "error", err)
				}
			}

			if outputJSON {
				return writeJSON(booking)
			}
			fmt.Printf("Updated booking %d.\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "New date (YYYY-MM-DD, today, tomorrow)")
	cmd.Flags().StringVar(&timeValue, "time", "", "New start time (HH:MM)")
	cmd.Flags().IntVar(&duration, "duration", 0, "New duration in hours (1-6)")
	return cmd
}

func bookingsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a booking record (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "booking")
			if err != nil {
				return err
			}
			ctx := context.Background()
			if _, err := app.requireRole(ctx, api.RoleAdmin); err != nil {
				return err
			}
			if err := app.Bookings.Delete(ctx, id); err != nil {
				return describeFailure(err)
			}
			if _, err := storage.RemoveBooking(app.DB, id); err != nil {
				app.Logger.Warn("uncache booking", "id", id, "error", err)
			}
			fmt.Printf("Deleted booking %d.\n", id)
			return nil
		},
	}

	return cmd
}

func bookingsStatsCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show booking stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !offline {
				if _, err := syncBookings(context.Background()); err != nil {
					return err
				}
			}
			rows, err := storage.ListBookings(app.DB, storage.BookingFilter{})
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("No bookings found.")
				return nil
			}

			stats := computeBookingStats(rows, time.Now())
			if outputJSON {
				return writeJSON(stats)
			}

			fmt.Printf("Total bookings: %d (%d cancelled)\n", stats.TotalBookings, stats.CancelledBookings)
			fmt.Printf("Total spent: %s over %d hours\n", formatINR(stats.TotalSpent), stats.TotalHours)
			fmt.Printf("Favourite box: %s (%d bookings)\n", stats.FavouriteBox, stats.FavouriteBoxCount)
			fmt.Printf("Usual time: %s\n", stats.UsualTime)
			fmt.Printf("Last played: %s\n", stats.LastPlayed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use the local cache without contacting the server")
	return cmd
}

// computeBookingStats summarises bookings. Cancelled bookings are counted
// but add nothing to spend, hours or habits.
func computeBookingStats(rows []storage.Booking, now time.Time) BookingStats {
	stats := BookingStats{TotalBookings: len(rows)}

	active := make([]storage.Booking, 0, len(rows))
	boxCounts := map[string]int{}
	for _, row := range rows {
		if strings.EqualFold(row.BookingStatus, api.BookingCancelled) {
			stats.CancelledBookings++
			continue
		}
		active = append(active, row)
		stats.TotalSpent += row.TotalAmount
		stats.TotalHours += row.Duration
		boxCounts[row.BoxName]++
	}

	stats.FavouriteBox, stats.FavouriteBoxCount = topBox(boxCounts)
	stats.UsualTime = mostCommonTime(active)
	stats.LastPlayed = lastPlayedDate(active, now)
	return stats
}

func topBox(counts map[string]int) (string, int) {
	top := ""
	max := 0
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if counts[key] > max {
			max = counts[key]
			top = key
		}
	}
	if top == "" {
		return "N/A", 0
	}
	return top, max
}

func mostCommonTime(rows []storage.Booking) string {
	counts := map[string]int{}
	for _, row := range rows {
		label, ok := bookingTimeLabel(row)
		if !ok {
			continue
		}
		counts[label]++
	}
	if len(counts) == 0 {
		return "N/A"
	}

	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	best := keys[0]
	for _, key := range keys {
		if counts[key] > counts[best] {
			best = key
		}
	}
	return best
}

func bookingTimeLabel(row storage.Booking) (string, bool) {
	if row.Date == "" || row.StartTime == "" {
		return "", false
	}
	parsed, err := time.Parse("2006-01-02 15:04", fmt.Sprintf("%s %s", row.Date, timeLabel(row.StartTime)))
	if err != nil {
		return "", false
	}
	weekday := parsed.Weekday().String()
	if row.EndTime != "" {
		return fmt.Sprintf("%s %s-%s", weekday, timeLabel(row.StartTime), timeLabel(row.EndTime)), true
	}
	return fmt.Sprintf("%s %s", weekday, timeLabel(row.StartTime)), true
}

func lastPlayedDate(rows []storage.Booking, now time.Time) string {
	var last time.Time
	found := false
	for _, row := range rows {
		if row.Date == "" {
			continue
		}
		clock := timeLabel(row.StartTime)
		if clock == "" {
			clock = "00:00"
		}
		parsed, err := time.ParseInLocation("2006-01-02 15:04", row.Date+" "+clock, now.Location())
		if err != nil {
			continue
		}
		if parsed.After(now) {
			continue
		}
		if !found || parsed.After(last) {
			last = parsed
			found = true
		}
	}
	if !found {
		return "N/A"
	}
	return last.Format(dateLayout)
}
