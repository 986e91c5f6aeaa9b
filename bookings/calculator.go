package bookings

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"bookmybox-cli/api"
)

const (
	MinDuration = 1
	MaxDuration = 6

	// CancellationCutoff mirrors the server rule: no cancellation within
	// this long before the start.
	CancellationCutoff = 2 * time.Hour

	PaymentNotRequired = "Not Required"
	dateLayout         = "2006-01-02"
)

var (
	ErrNotAuthenticated = errors.New("please login to book a box")
	ErrNoTimeSlot       = errors.New("please select a time slot")
	ErrNoDate           = errors.New("please select a date")
	ErrInvalidDuration  = fmt.Errorf("duration must be between %d and %d hours", MinDuration, MaxDuration)
	ErrSlotUnavailable  = errors.New("selected time slot is not available, please choose a different time")
)

// DefaultTimeSlots are the hourly start times offered for a listing.
var DefaultTimeSlots = func() []string {
	slots := make([]string, 0, 17)
	for h := 6; h <= 22; h++ {
		slots = append(slots, fmt.Sprintf("%02d:00", h))
	}
	return slots
}()

// ParseClock parses "HH:MM" (seconds, if present, are ignored).
func ParseClock(value string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, fmt.Errorf("invalid time %q (expected HH:MM)", value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour, minute, nil
}

// EndTime adds hours to a start time, wrapping past midnight.
func EndTime(start string, hours int) (string, error) {
	hour, minute, err := ParseClock(start)
	if err != nil {
		return "", err
	}
	end := ((hour+hours)%24 + 24) % 24
	return fmt.Sprintf("%02d:%02d", end, minute), nil
}

// TotalAmount is price times hours, rounded to cents.
func TotalAmount(price float64, hours int) float64 {
	return math.Round(price*float64(hours)*100) / 100
}

// SlotAvailable reports whether none of the hours covered by a booking of
// duration starting at start is already taken.
func SlotAvailable(start string, duration int, booked []string) bool {
	if len(booked) == 0 {
		return true
	}
	hour, _, err := ParseClock(start)
	if err != nil {
		return false
	}
	taken := make(map[string]bool, len(booked))
	for _, slot := range booked {
		if h, _, err := ParseClock(slot); err == nil {
			taken[fmt.Sprintf("%02d:00", h)] = true
		}
	}
	for i := 0; i < duration; i++ {
		if taken[fmt.Sprintf("%02d:00", (hour+i)%24)] {
			return false
		}
	}
	return true
}

// Selection is what a user picked on a listing before confirming.
type Selection struct {
	User        *api.User
	Listing     api.Listing
	Date        time.Time
	StartTime   string
	Duration    int
	BookedSlots []string
}

// NewRequest checks a selection and builds the creation payload. The checks
// run in order: signed in, slot chosen, date chosen, duration in range, slot
// free.
func NewRequest(sel Selection) (api.BookingRequest, error) {
	if sel.User == nil || sel.User.ID == 0 {
		return api.BookingRequest{}, ErrNotAuthenticated
	}
	if strings.TrimSpace(sel.StartTime) == "" {
		return api.BookingRequest{}, ErrNoTimeSlot
	}
	if sel.Date.IsZero() {
		return api.BookingRequest{}, ErrNoDate
	}
	if sel.Duration < MinDuration || sel.Duration > MaxDuration {
		return api.BookingRequest{}, ErrInvalidDuration
	}
	end, err := EndTime(sel.StartTime, sel.Duration)
	if err != nil {
		return api.BookingRequest{}, err
	}
	if !SlotAvailable(sel.StartTime, sel.Duration, sel.BookedSlots) {
		return api.BookingRequest{}, ErrSlotUnavailable
	}
	hour, minute, _ := ParseClock(sel.StartTime)

	return api.BookingRequest{
		User:          sel.User.ID,
		Box:           sel.Listing.ID,
		Date:          sel.Date.Format(dateLayout),
		StartTime:     fmt.Sprintf("%02d:%02d", hour, minute),
		EndTime:       end,
		Duration:      sel.Duration,
		TotalAmount:   TotalAmount(sel.Listing.Price.Float64(), sel.Duration),
		PaymentStatus: PaymentNotRequired,
		BookingStatus: api.BookingConfirmed,
	}, nil
}

// StartsAt resolves a booking's date and start time in loc.
func StartsAt(b api.Booking, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, b.Date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid booking date %q: %w", b.Date, err)
	}
	hour, minute, err := ParseClock(b.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}

// CancellationOpen reports whether a cancel request is worth sending at now.
// The server applies the same cutoff and has the final word; bookings whose
// start cannot be parsed are left to it.
func CancellationOpen(b api.Booking, now time.Time) bool {
	if strings.EqualFold(b.BookingStatus, api.BookingCancelled) {
		return false
	}
	start, err := StartsAt(b, now.Location())
	if err != nil {
		return true
	}
	return !now.After(start.Add(-CancellationCutoff))
}
