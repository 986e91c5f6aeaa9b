package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"bookmybox-cli/api"
)

func TestCoerce(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []int64
	}{
		{"paginated results", `{"count":2,"results":[{"id":1},{"id":2}]}`, []int64{1, 2}},
		{"data envelope", `{"data":[{"id":3}]}`, []int64{3}},
		{"raw array", `[{"id":4},{"id":5}]`, []int64{4, 5}},
		{"unexpected object", `{}`, nil},
		{"results not an array", `{"results":{"id":1}}`, nil},
		{"string", `"nope"`, nil},
		{"null", `null`, nil},
		{"empty body", ``, nil},
		{"broken json", `{"results":[`, nil},
		{"skips malformed elements", `[{"id":6},"junk",{"id":7}]`, []int64{6, 7}},
		{"serialized records", `[{"id":7,"user":"user@demo.com","user_id":1,"box":3,"box_name":"Arena","box_location":"Satellite, Ahmedabad","box_sport":"Cricket","box_image":null,"date":"2026-10-20","start_time":"09:00","end_time":"11:00","duration":2,"total_amount":"1000.00","payment_status":"Not Required","payment_id":null,"booking_status":"Confirmed","created_at":"2026-10-16T09:12:44.120391Z"},{"id":8,"user":"user@demo.com","user_id":1,"box":4,"box_name":"Arena","box_location":"Satellite, Ahmedabad","box_sport":"Cricket","box_image":null,"date":"2026-10-20","start_time":"09:00","end_time":"11:00","duration":2,"total_amount":"1000.00","payment_status":"Not Required","payment_id":null,"booking_status":"Confirmed","created_at":"2026-10-16T09:12:44.120391Z"}]`, []int64{7, 8}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Coerce(json.RawMessage(tc.raw))
			if got == nil {
				t.Fatal("Coerce returned nil slice")
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d bookings, want %d", len(got), len(tc.want))
			}
			for i, id := range tc.want {
				if got[i].ID != id {
					t.Fatalf("booking %d id = %d, want %d", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestApply(t *testing.T) {
	state := Apply(nil, Action{Kind: SetAll, Bookings: []api.Booking{{ID: 1, Date: "2026-10-20"}, {ID: 2}}})
	if len(state) != 2 {
		t.Fatalf("set all = %+v", state)
	}

	added := Apply(state, Action{Kind: AddOne, Booking: api.Booking{ID: 3}})
	if len(added) != 3 || added[2].ID != 3 || len(state) != 2 {
		t.Fatalf("add one = %+v (input %d)", added, len(state))
	}

	replaced := Apply(added, Action{Kind: ReplaceOne, Booking: api.Booking{ID: 1, BookingStatus: api.BookingCancelled}})
	if replaced[0].BookingStatus != api.BookingCancelled || replaced[0].Date != "" || added[0].BookingStatus != "" {
		t.Fatalf("replace one = %+v", replaced[0])
	}

	unknown := Apply(replaced, Action{Kind: ReplaceOne, Booking: api.Booking{ID: 99}})
	for _, b := range unknown {
		if b.ID == 99 {
			t.Fatal("replace inserted an unknown booking")
		}
	}

	removed := Apply(replaced, Action{Kind: RemoveOne, ID: 2})
	if len(removed) != 2 || removed[0].ID != 1 || removed[1].ID != 3 {
		t.Fatalf("remove one = %+v", removed)
	}

	if got := Apply(removed, Action{Kind: SetAll}); got == nil || len(got) != 0 {
		t.Fatalf("set all with nil = %#v", got)
	}
}

type fakeGateway struct {
	list      string
	listErr   error
	created   api.BookingRequest
	createErr error
	cancel    api.Booking
	cancelOK  bool
	cancelErr error
	deleted   []int64
	slots     []string
}

func (g *fakeGateway) ListBookings(ctx context.Context, userID int64) (json.RawMessage, error) {
	return json.RawMessage(g.list), g.listErr
}

func (g *fakeGateway) CreateBooking(ctx context.Context, payload api.BookingRequest) (api.Booking, error) {
	g.created = payload
	if g.createErr != nil {
		return api.Booking{}, g.createErr
	}
	return api.Booking{ID: 10, Box: api.Ref(payload.Box), Date: payload.Date, StartTime: payload.StartTime, BookingStatus: api.BookingConfirmed}, nil
}

func (g *fakeGateway) UpdateBooking(ctx context.Context, id int64, fields map[string]any) (api.Booking, error) {
	return api.Booking{ID: id, Duration: 3}, nil
}

func (g *fakeGateway) CancelBooking(ctx context.Context, id int64) (api.Booking, bool, error) {
	return g.cancel, g.cancelOK, g.cancelErr
}

func (g *fakeGateway) DeleteBooking(ctx context.Context, id int64) error {
	g.deleted = append(g.deleted, id)
	return nil
}

func (g *fakeGateway) BookedSlots(ctx context.Context, listingID int64, date string) ([]string, error) {
	return g.slots, nil
}

func TestStoreLifecycle(t *testing.T) {
	g := &fakeGateway{list: `{"results":[{"id":1,"booking_status":"Confirmed"},{"id":2,"booking_status":"Confirmed"}]}`}
	s := NewStore(g, nil)
	ctx := context.Background()

	if err := s.Fetch(ctx, 7); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n := len(s.Bookings()); n != 2 {
		t.Fatalf("bookings = %d", n)
	}

	created, err := s.Create(ctx, api.BookingRequest{Box: 3, Date: "2026-10-20", StartTime: "09:00"})
	if err != nil || created.ID != 10 {
		t.Fatalf("Create = %+v, %v", created, err)
	}
	if got := s.Bookings(); len(got) != 3 || got[2].ID != 10 {
		t.Fatalf("after create = %+v", got)
	}

	if _, err := s.Update(ctx, 2, map[string]any{"duration": 3}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := s.Bookings()[1]; got.Duration != 3 {
		t.Fatalf("after update = %+v", got)
	}

	g.cancel = api.Booking{ID: 1, BookingStatus: api.BookingCancelled}
	g.cancelOK = true
	if _, err := s.Cancel(ctx, 1); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got := s.Bookings()[0]; got.BookingStatus != api.BookingCancelled {
		t.Fatalf("after cancel = %+v", got)
	}

	g.cancelOK = false
	if _, err := s.Cancel(ctx, 2); err != nil {
		t.Fatalf("Cancel without body: %v", err)
	}
	if err := s.Delete(ctx, 10); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got := s.Bookings()
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("after removals = %+v", got)
	}
	if s.Loading() {
		t.Fatal("loading left set")
	}
}

func TestStoreFailures(t *testing.T) {
	g := &fakeGateway{
		list:      `[{"id":1}]`,
		createErr: &api.APIError{StatusCode: http.StatusBadRequest, Body: []byte(`["This time slot is already booked for this box."]`)},
		cancelErr: &api.APIError{StatusCode: http.StatusBadRequest, Body: []byte(`{"detail":"Cancellation not allowed within 2 hours of booking time."}`)},
	}
	s := NewStore(g, nil)
	ctx := context.Background()
	_ = s.Fetch(ctx, 1)

	_, err := s.Create(ctx, api.BookingRequest{Box: 3})
	var failure *api.Failure
	if !errors.As(err, &failure) || failure.Message != "This time slot is already booked for this box." {
		t.Fatalf("Create err = %v", err)
	}

	_, err = s.Cancel(ctx, 1)
	if !errors.As(err, &failure) || failure.Message != "Cancellation not allowed within 2 hours of booking time." {
		t.Fatalf("Cancel err = %v", err)
	}
	if s.Err() != failure.Message {
		t.Fatalf("store err = %q", s.Err())
	}
	if got := s.Bookings(); len(got) != 1 || got[0].BookingStatus != "" {
		t.Fatalf("failed cancel touched state: %+v", got)
	}
	if s.Loading() {
		t.Fatal("loading left set after failure")
	}

	g.listErr = errors.New("connection refused")
	if err := s.Fetch(ctx, 1); err == nil || err.Error() != "Failed to fetch bookings." {
		t.Fatalf("Fetch err = %v", err)
	}
	if n := len(s.Bookings()); n != 1 {
		t.Fatalf("failed fetch replaced state: %d", n)
	}
}
