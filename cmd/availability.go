package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"bookmybox-cli/bookings"

	"github.com/spf13/cobra"
)

type slotState struct {
	Time      string `json:"time"`
	Booked    bool   `json:"booked"`
	Available bool   `json:"available"`
}

type AvailabilityOutput struct {
	BoxID    int64       `json:"box_id"`
	BoxName  string      `json:"box_name"`
	Date     string      `json:"date"`
	Duration int         `json:"duration"`
	Slots    []slotState `json:"slots"`
}

func slotStates(booked []string) []slotState {
	return slotStatesFor(booked, bookings.MinDuration)
}

// slotStatesFor marks each offered start time as booked, and as available
// when a booking of duration hours starting there fits.
func slotStatesFor(booked []string, duration int) []slotState {
	taken := map[string]bool{}
	for _, slot := range booked {
		taken[timeLabel(slot)] = true
	}
	states := make([]slotState, 0, len(bookings.DefaultTimeSlots))
	for _, slot := range bookings.DefaultTimeSlots {
		states = append(states, slotState{
			Time:      slot,
			Booked:    taken[slot],
			Available: bookings.SlotAvailable(slot, duration, booked),
		})
	}
	return states
}

func printSlots(states []slotState) {
	writer := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
	if !outputCompact {
		fmt.Fprintln(writer, "TIME\tSTATUS")
	}
	for _, state := range states {
		status := "free"
		switch {
		case state.Booked:
			status = "booked"
		case !state.Available:
			status = "too short"
		}
		if outputCompact && status != "free" {
			continue
		}
		fmt.Fprintf(writer, "%s\t%s\n", state.Time, status)
	}
	_ = writer.Flush()
}

func availabilityCmd() *cobra.Command {
	var date string
	var duration int

	cmd := &cobra.Command{
		Use:   "availability <id|alias>",
		Short: "Show free slots for a box on a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				return fmt.Errorf("--date is required")
			}
			if !cmd.Flags().Changed("duration") {
				duration = cfg.duration()
			}
			if duration < bookings.MinDuration || duration > bookings.MaxDuration {
				return bookings.ErrInvalidDuration
			}
			id, err := resolveBoxID(args[0])
			if err != nil {
				return err
			}
			target, err := parseDateInput(date)
			if err != nil {
				return err
			}

			ctx := context.Background()
			box, err := app.Listings.Get(ctx, id)
			if err != nil {
				return err
			}
			booked, err := app.Bookings.Slots(ctx, id, target.Format(dateLayout))
			if err != nil {
				return err
			}

			output := AvailabilityOutput{
				BoxID:    id,
				BoxName:  box.Name,
				Date:     target.Format(dateLayout),
				Duration: duration,
				Slots:    slotStatesFor(booked, duration),
			}
			if outputJSON {
				return writeJSON(output)
			}

			fmt.Printf("%s on %s (%dh)\n", output.BoxName, target.Format("Mon 2 Jan"), duration)
			printSlots(output.Slots)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Date (YYYY-MM-DD, today, tomorrow)")
	cmd.Flags().IntVar(&duration, "duration", 1, "Duration in hours (1-6)")
	return cmd
}
