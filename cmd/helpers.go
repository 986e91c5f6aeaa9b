package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"bookmybox-cli/api"
	"bookmybox-cli/storage"

	"golang.org/x/term"
)

const dateLayout = "2006-01-02"

func resolveLocation(ctx context.Context, input string) (float64, float64, error) {
	if lat, lon, ok := parseCoordinate(input); ok {
		return lat, lon, nil
	}
	place, err := app.Client.Geocode(ctx, input)
	if err != nil {
		return 0, 0, err
	}
	app.Logger.Debug("resolved location", "input", input, "place", place.Name)
	return place.Latitude, place.Longitude, nil
}

func parseCoordinate(input string) (float64, float64, bool) {
	parts := strings.Split(input, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

func parseDateInput(input string) (time.Time, error) {
	return parseDateInputAt(input, time.Now())
}

func parseDateInputAt(input string, now time.Time) (time.Time, error) {
	if input == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	switch strings.ToLower(input) {
	case "today":
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()), nil
	case "tomorrow":
		t := now.AddDate(0, 0, 1)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()), nil
	}
	parsed, err := time.ParseInLocation(dateLayout, input, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", input)
	}
	return parsed, nil
}

func parseClock(input string) (int, error) {
	parsed, err := time.Parse("15:04", input)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q (expected HH:MM)", input)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// splitList turns "Cricket, Football" into its trimmed, non-empty parts.
func splitList(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func timeLabel(startTime string) string {
	if len(startTime) >= 5 {
		return startTime[:5]
	}
	return startTime
}

func formatINR(amount float64) string {
	return fmt.Sprintf("INR %.2f", amount)
}

func formatRating(rating *api.Number) string {
	if rating == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", rating.Float64())
}

// resolveBoxID accepts a numeric listing id or a local box alias.
func resolveBoxID(input string) (int64, error) {
	input = strings.TrimSpace(input)
	if id, err := strconv.ParseInt(input, 10, 64); err == nil && id > 0 {
		return id, nil
	}
	id, ok, err := storage.ResolveAlias(app.DB, input)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%q is neither a box id nor a saved alias", input)
	}
	return id, nil
}

func parseID(input, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, input)
	}
	return id, nil
}

// cachedBooking converts a server booking to its local cache row.
func cachedBooking(b api.Booking, syncedAt time.Time) storage.Booking {
	name := b.BoxName
	if name == "" && b.Box != 0 {
		name = fmt.Sprintf("Box #%d", int64(b.Box))
	}
	return storage.Booking{
		ID:            b.ID,
		BoxID:         int64(b.Box),
		BoxName:       name,
		Date:          b.Date,
		StartTime:     timeLabel(b.StartTime),
		EndTime:       timeLabel(b.EndTime),
		Duration:      b.Duration,
		TotalAmount:   b.TotalAmount.Float64(),
		PaymentStatus: b.PaymentStatus,
		BookingStatus: b.BookingStatus,
		SyncedAt:      syncedAt.UTC().Format(time.RFC3339),
	}
}

// describeFailure renders a normalized failure with its field messages.
func describeFailure(err error) error {
	var failure *api.Failure
	if !errors.As(err, &failure) || len(failure.Fields) < 2 {
		return err
	}
	keys := make([]string, 0, len(failure.Fields))
	for key := range failure.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	lines := []string{failure.Message}
	for _, key := range keys {
		lines = append(lines, fmt.Sprintf("  %s: %s", key, failure.Fields[key]))
	}
	return errors.New(strings.Join(lines, "\n"))
}

var stdin = bufio.NewReader(os.Stdin)

func prompt(label string) (string, error) {
	fmt.Print(label)
	value, err := stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && value != "") {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func promptSecret(label string) (string, error) {
	fmt.Print(label)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		value, err := stdin.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && value != "") {
			return "", err
		}
		return strings.TrimSpace(value), nil
	}
	bytes, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(bytes)), nil
}
