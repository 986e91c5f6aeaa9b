// Package bookings keeps the signed-in user's bookings and derives new
// booking requests from a slot selection.
package bookings

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"bookmybox-cli/api"
)

type ActionKind int

const (
	SetAll ActionKind = iota
	AddOne
	ReplaceOne
	RemoveOne
)

func (k ActionKind) String() string {
	switch k {
	case SetAll:
		return "set_all"
	case AddOne:
		return "add_one"
	case ReplaceOne:
		return "replace_one"
	case RemoveOne:
		return "remove_one"
	default:
		return "unknown"
	}
}

// Action is one state transition. SetAll uses Bookings, AddOne and
// ReplaceOne use Booking, RemoveOne uses ID.
type Action struct {
	Kind     ActionKind
	Bookings []api.Booking
	Booking  api.Booking
	ID       int64
}

// Apply returns the state after action. The input slice is not modified.
func Apply(state []api.Booking, action Action) []api.Booking {
	switch action.Kind {
	case SetAll:
		if action.Bookings == nil {
			return []api.Booking{}
		}
		return append([]api.Booking(nil), action.Bookings...)
	case AddOne:
		out := make([]api.Booking, 0, len(state)+1)
		out = append(out, state...)
		return append(out, action.Booking)
	case ReplaceOne:
		out := make([]api.Booking, len(state))
		for i, b := range state {
			if b.ID == action.Booking.ID {
				b = action.Booking
			}
			out[i] = b
		}
		return out
	case RemoveOne:
		out := make([]api.Booking, 0, len(state))
		for _, b := range state {
			if b.ID != action.ID {
				out = append(out, b)
			}
		}
		return out
	default:
		return state
	}
}

// Coerce extracts the booking list from a list payload. It looks at
// "results", then "data", then the payload itself; anything else is an empty
// list. Elements that do not decode as bookings are skipped.
func Coerce(raw json.RawMessage) []api.Booking {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []api.Booking{}
	}
	if raw[0] == '{' {
		var wrapped struct {
			Results json.RawMessage `json:"results"`
			Data    json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return []api.Booking{}
		}
		if items, ok := decodeArray(wrapped.Results); ok {
			return items
		}
		if items, ok := decodeArray(wrapped.Data); ok {
			return items
		}
		return []api.Booking{}
	}
	if items, ok := decodeArray(raw); ok {
		return items
	}
	return []api.Booking{}
}

func decodeArray(raw json.RawMessage) ([]api.Booking, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, false
	}
	out := make([]api.Booking, 0, len(elems))
	for _, elem := range elems {
		var b api.Booking
		if err := json.Unmarshal(elem, &b); err != nil {
			continue
		}
		out = append(out, b)
	}
	return out, true
}

type Gateway interface {
	ListBookings(ctx context.Context, userID int64) (json.RawMessage, error)
	CreateBooking(ctx context.Context, payload api.BookingRequest) (api.Booking, error)
	UpdateBooking(ctx context.Context, id int64, fields map[string]any) (api.Booking, error)
	CancelBooking(ctx context.Context, id int64) (api.Booking, bool, error)
	DeleteBooking(ctx context.Context, id int64) error
	BookedSlots(ctx context.Context, listingID int64, date string) ([]string, error)
}

// Store holds bookings in server order. Every mutation goes through Apply
// after the server confirmed it.
type Store struct {
	gateway Gateway
	logger  *slog.Logger

	mu       sync.Mutex
	bookings []api.Booking
	inflight int
	lastErr  string
}

func NewStore(gateway Gateway, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		gateway:  gateway,
		logger:   logger.With("component", "bookings"),
		bookings: []api.Booking{},
	}
}

func (s *Store) Bookings() []api.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Booking(nil), s.bookings...)
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) Dispatch(action Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings = Apply(s.bookings, action)
	s.logger.Debug("bookings transition", "action", action.Kind.String(), "count", len(s.bookings))
}

func (s *Store) Fetch(ctx context.Context, userID int64) error {
	s.begin()
	defer s.end()

	raw, err := s.gateway.ListBookings(ctx, userID)
	if err != nil {
		return s.fail("fetch bookings", err, "Failed to fetch bookings.")
	}
	s.Dispatch(Action{Kind: SetAll, Bookings: Coerce(raw)})
	return nil
}

func (s *Store) Create(ctx context.Context, payload api.BookingRequest) (api.Booking, error) {
	s.begin()
	defer s.end()

	booking, err := s.gateway.CreateBooking(ctx, payload)
	if err != nil {
		return api.Booking{}, s.fail("create booking", err, "Failed to create booking.")
	}
	s.Dispatch(Action{Kind: AddOne, Booking: booking})
	s.logger.Info("booking created", "id", booking.ID, "box", int64(booking.Box), "date", booking.Date, "start", booking.StartTime)
	return booking, nil
}

func (s *Store) Update(ctx context.Context, id int64, fields map[string]any) (api.Booking, error) {
	s.begin()
	defer s.end()

	booking, err := s.gateway.UpdateBooking(ctx, id, fields)
	if err != nil {
		return api.Booking{}, s.fail("update booking", err, "Failed to update booking.")
	}
	if booking.ID == 0 {
		booking.ID = id
	}
	s.Dispatch(Action{Kind: ReplaceOne, Booking: booking})
	return booking, nil
}

// Cancel asks the server to cancel a booking. The cancelled booking replaces
// the cached one; when the server answers without it the booking is dropped.
func (s *Store) Cancel(ctx context.Context, id int64) (api.Booking, error) {
	s.begin()
	defer s.end()

	booking, ok, err := s.gateway.CancelBooking(ctx, id)
	if err != nil {
		return api.Booking{}, s.fail("cancel booking", err, "Failed to cancel booking.")
	}
	if !ok {
		s.Dispatch(Action{Kind: RemoveOne, ID: id})
		return api.Booking{ID: id, BookingStatus: api.BookingCancelled}, nil
	}
	s.Dispatch(Action{Kind: ReplaceOne, Booking: booking})
	s.logger.Info("booking cancelled", "id", id)
	return booking, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	s.begin()
	defer s.end()

	if err := s.gateway.DeleteBooking(ctx, id); err != nil {
		return s.fail("delete booking", err, "Failed to delete booking.")
	}
	s.Dispatch(Action{Kind: RemoveOne, ID: id})
	return nil
}

// Slots returns the start times already taken at a listing on date
// (YYYY-MM-DD).
func (s *Store) Slots(ctx context.Context, listingID int64, date string) ([]string, error) {
	slots, err := s.gateway.BookedSlots(ctx, listingID, date)
	if err != nil {
		s.logger.Warn("fetch booked slots", "box", listingID, "date", date, "error", err)
		return nil, api.Normalize(err, "Failed to load booked slots.")
	}
	return slots, nil
}

func (s *Store) fail(op string, err error, fallback string) *api.Failure {
	failure := api.Normalize(err, fallback)
	s.logger.Warn(op, "error", err)
	s.mu.Lock()
	s.lastErr = failure.Message
	s.mu.Unlock()
	return failure
}

func (s *Store) begin() {
	s.mu.Lock()
	s.inflight++
	s.lastErr = ""
	s.mu.Unlock()
}

func (s *Store) end() {
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
}
