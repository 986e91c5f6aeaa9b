package bookings

import (
	"errors"
	"testing"
	"time"

	"bookmybox-cli/api"
)

func TestEndTime(t *testing.T) {
	cases := []struct {
		start string
		hours int
		want  string
	}{
		{"22:00", 3, "01:00"},
		{"09:00", 2, "11:00"},
		{"23:30", 1, "00:30"},
		{"06:00", 6, "12:00"},
		{"7:05", 1, "08:05"},
	}
	for _, tc := range cases {
		got, err := EndTime(tc.start, tc.hours)
		if err != nil {
			t.Fatalf("EndTime(%q, %d): %v", tc.start, tc.hours, err)
		}
		if got != tc.want {
			t.Fatalf("EndTime(%q, %d) = %q, want %q", tc.start, tc.hours, got, tc.want)
		}
	}

	for _, bad := range []string{"", "9", "25:00", "09:61", "ab:cd"} {
		if _, err := EndTime(bad, 1); err == nil {
			t.Fatalf("EndTime(%q) accepted", bad)
		}
	}
}

func TestTotalAmount(t *testing.T) {
	cases := []struct {
		price float64
		hours int
		want  float64
	}{
		{500, 3, 1500.00},
		{499.99, 1, 499.99},
		{333.333, 3, 1000.00},
		{0.1, 3, 0.3},
	}
	for _, tc := range cases {
		if got := TotalAmount(tc.price, tc.hours); got != tc.want {
			t.Fatalf("TotalAmount(%v, %d) = %v, want %v", tc.price, tc.hours, got, tc.want)
		}
	}
}

func TestSlotAvailable(t *testing.T) {
	booked := []string{"10:00", "14:00:00"}
	cases := []struct {
		start    string
		duration int
		want     bool
	}{
		{"08:00", 2, true},
		{"08:00", 3, false},
		{"10:00", 1, false},
		{"11:00", 3, true},
		{"13:00", 2, false},
	}
	for _, tc := range cases {
		if got := SlotAvailable(tc.start, tc.duration, booked); got != tc.want {
			t.Fatalf("SlotAvailable(%s, %d) = %v, want %v", tc.start, tc.duration, got, tc.want)
		}
	}
	if !SlotAvailable("bogus", 1, nil) {
		t.Fatal("nothing booked should always be available")
	}
}

func TestNewRequest(t *testing.T) {
	user := &api.User{ID: 7, Email: "user@demo.com"}
	listing := api.Listing{ID: 3, Price: 499.99}
	day := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)

	t.Run("valid selection", func(t *testing.T) {
		req, err := NewRequest(Selection{User: user, Listing: listing, Date: day, StartTime: "22:00", Duration: 3})
		if err != nil {
			t.Fatalf("NewRequest: %v", err)
		}
		want := api.BookingRequest{
			User:          7,
			Box:           3,
			Date:          "2026-10-20",
			StartTime:     "22:00",
			EndTime:       "01:00",
			Duration:      3,
			TotalAmount:   1499.97,
			PaymentStatus: PaymentNotRequired,
			BookingStatus: api.BookingConfirmed,
		}
		if req != want {
			t.Fatalf("request = %+v, want %+v", req, want)
		}
	})

	failures := []struct {
		name string
		sel  Selection
		want error
	}{
		{"anonymous", Selection{Listing: listing, Date: day, StartTime: "09:00", Duration: 1}, ErrNotAuthenticated},
		{"anonymous wins over missing slot", Selection{Listing: listing, Duration: 1}, ErrNotAuthenticated},
		{"no slot", Selection{User: user, Listing: listing, Date: day, Duration: 1}, ErrNoTimeSlot},
		{"no date", Selection{User: user, Listing: listing, StartTime: "09:00", Duration: 1}, ErrNoDate},
		{"zero hours", Selection{User: user, Listing: listing, Date: day, StartTime: "09:00"}, ErrInvalidDuration},
		{"seven hours", Selection{User: user, Listing: listing, Date: day, StartTime: "09:00", Duration: 7}, ErrInvalidDuration},
		{"taken", Selection{User: user, Listing: listing, Date: day, StartTime: "09:00", Duration: 2, BookedSlots: []string{"10:00"}}, ErrSlotUnavailable},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewRequest(tc.sel); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCancellationOpen(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	booking := api.Booking{ID: 1, Date: "2026-10-20", StartTime: "18:00", BookingStatus: api.BookingConfirmed}

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"day before", time.Date(2026, 10, 19, 18, 0, 0, 0, loc), true},
		{"exactly at cutoff", time.Date(2026, 10, 20, 16, 0, 0, 0, loc), true},
		{"inside cutoff", time.Date(2026, 10, 20, 16, 1, 0, 0, loc), false},
		{"after start", time.Date(2026, 10, 20, 19, 0, 0, 0, loc), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CancellationOpen(booking, tc.now); got != tc.want {
				t.Fatalf("CancellationOpen = %v, want %v", got, tc.want)
			}
		})
	}

	cancelled := booking
	cancelled.BookingStatus = api.BookingCancelled
	if CancellationOpen(cancelled, time.Date(2026, 10, 1, 0, 0, 0, 0, loc)) {
		t.Fatal("cancelled booking reported open")
	}
	if !CancellationOpen(api.Booking{Date: "soon", StartTime: "18:00"}, time.Now()) {
		t.Fatal("unparseable booking should defer to the server")
	}
}

func TestDefaultTimeSlots(t *testing.T) {
	if len(DefaultTimeSlots) != 17 || DefaultTimeSlots[0] != "06:00" || DefaultTimeSlots[16] != "22:00" {
		t.Fatalf("slots = %v", DefaultTimeSlots)
	}
}
