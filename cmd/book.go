package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookmybox-cli/bookings"
	"bookmybox-cli/storage"

	"github.com/spf13/cobra"
)

func bookCmd() *cobra.Command {
	var date string
	var timeValue string
	var duration int

	cmd := &cobra.Command{
		Use:   "book <id|alias>",
		Short: "Book a box",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = "today"
			}
			if !cmd.Flags().Changed("duration") {
				duration = cfg.duration()
			}
			id, err := resolveBoxID(args[0])
			if err != nil {
				return err
			}
			day, err := parseDateInput(date)
			if err != nil {
				return err
			}

			ctx := context.Background()
			// Anonymous users are turned away before anything else is checked.
			user, err := app.requireUser(ctx)
			if err != nil {
				return fmt.Errorf("%w: %v", bookings.ErrNotAuthenticated, err)
			}

			box, err := app.Listings.Get(ctx, id)
			if err != nil {
				return err
			}
			var booked []string
			if timeValue != "" {
				booked, err = app.Bookings.Slots(ctx, id, day.Format(dateLayout))
				if err != nil {
					return err
				}
			}

			payload, err := bookings.NewRequest(bookings.Selection{
				User:        user,
				Listing:     box,
				Date:        day,
				StartTime:   timeValue,
				Duration:    duration,
				BookedSlots: booked,
			})
			if err != nil {
				if errors.Is(err, bookings.ErrSlotUnavailable) {
					printSlots(slotStatesFor(booked, duration))
				}
				return err
			}

			booking, err := app.Bookings.Create(ctx, payload)
			if err != nil {
				return describeFailure(err)
			}
			if booking.BoxName == "" {
				booking.BoxName = box.Name
			}
			if err := storage.UpsertBooking(app.DB, cachedBooking(booking, time.Now())); err != nil {
				app.Logger.Warn("cache booking", "id", booking.ID, "error", err)
			}

			if outputJSON {
				return writeJSON(booking)
			}
			fmt.Printf("Booked: %s %s-%s %s\n", box.Name, payload.StartTime, payload.EndTime, day.Format("Mon 2 Jan"))
			fmt.Printf("%dh | %s\n", payload.Duration, formatINR(payload.TotalAmount))
			fmt.Printf("Booking ID: %d\n", booking.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Date (YYYY-MM-DD, today, tomorrow)")
	cmd.Flags().StringVar(&timeValue, "time", "", "Start time (HH:MM)")
	cmd.Flags().IntVar(&duration, "duration", 1, "Duration in hours (1-6)")
	return cmd
}
