package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
)

// ListBookings returns the raw bookings payload. Its shape varies between
// backends and is left to the caller to coerce.
func (c *Client) ListBookings(ctx context.Context, userID int64) (json.RawMessage, error) {
	q := url.Values{}
	if userID > 0 {
		q.Set("userId", strconv.FormatInt(userID, 10))
	}
	body, err := c.do(ctx, request{method: http.MethodGet, path: "/bookings/", query: q, auth: true})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (c *Client) CreateBooking(ctx context.Context, payload BookingRequest) (Booking, error) {
	req, err := jsonRequest(http.MethodPost, "/bookings/", payload, true)
	if err != nil {
		return Booking{}, err
	}
	var booking Booking
	if err := c.doJSON(ctx, req, &booking); err != nil {
		return Booking{}, err
	}
	return booking, nil
}

func (c *Client) UpdateBooking(ctx context.Context, id int64, fields map[string]any) (Booking, error) {
	req, err := jsonRequest(http.MethodPatch, bookingPath(id), fields, true)
	if err != nil {
		return Booking{}, err
	}
	var booking Booking
	if err := c.doJSON(ctx, req, &booking); err != nil {
		return Booking{}, err
	}
	return booking, nil
}

// CancelBooking asks the backend to cancel a booking. The returned flag is
// false when the backend answered without a booking body.
func (c *Client) CancelBooking(ctx context.Context, id int64) (Booking, bool, error) {
	req, err := jsonRequest(http.MethodPost, bookingPath(id)+"cancel/", nil, true)
	if err != nil {
		return Booking{}, false, err
	}
	body, err := c.do(ctx, req)
	if err != nil {
		return Booking{}, false, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return Booking{}, false, nil
	}
	var booking Booking
	if err := json.Unmarshal(body, &booking); err != nil {
		return Booking{}, false, err
	}
	return booking, booking.ID != 0, nil
}

func (c *Client) DeleteBooking(ctx context.Context, id int64) error {
	return c.doStatus(ctx, request{method: http.MethodDelete, path: bookingPath(id), auth: true})
}

func (c *Client) BookedSlots(ctx context.Context, listingID int64, date string) ([]string, error) {
	q := url.Values{}
	q.Set("box_id", strconv.FormatInt(listingID, 10))
	q.Set("date", date)

	var resp BookedSlots
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "/bookings/booked_slots/", query: q}, &resp); err != nil {
		return nil, err
	}
	if resp.BookedSlots == nil {
		return []string{}, nil
	}
	return resp.BookedSlots, nil
}

func bookingPath(id int64) string {
	return "/bookings/" + strconv.FormatInt(id, 10) + "/"
}
