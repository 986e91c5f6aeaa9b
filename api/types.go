package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	RoleUser  = "user"
	RoleOwner = "owner"
	RoleAdmin = "admin"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

const (
	BookingConfirmed = "Confirmed"
	BookingCompleted = "Completed"
	BookingCancelled = "Cancelled"
)

type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	FullName     string `json:"full_name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Role         string `json:"role"`
	BusinessName string `json:"business_name,omitempty"`
	Location     string `json:"location,omitempty"`
	IsVerified   bool   `json:"is_verified,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return u.Email
}

type Registration struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Phone           string `json:"phone,omitempty"`
	Role            string `json:"role"`
	BusinessName    string `json:"business_name,omitempty"`
	Location        string `json:"location,omitempty"`
}

type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type LoginResponse struct {
	Access  string          `json:"access"`
	Refresh string          `json:"refresh"`
	User    json.RawMessage `json:"user"`
}

type RegisterResponse struct {
	User   json.RawMessage `json:"user"`
	Tokens Tokens          `json:"tokens"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Listing struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	FullDescription string   `json:"full_description,omitempty"`
	Sport           string   `json:"sport,omitempty"`
	Sports          []string `json:"sports"`
	Location        string   `json:"location"`
	Latitude        *Number  `json:"latitude"`
	Longitude       *Number  `json:"longitude"`
	Price           Number   `json:"price"`
	Capacity        int      `json:"capacity"`
	Amenities       []string `json:"amenities"`
	Rules           []string `json:"rules,omitempty"`
	Rating          *Number  `json:"rating"`
	ImageURL        string   `json:"image_url,omitempty"`
	Images          []string `json:"images,omitempty"`
	IsFeatured      bool     `json:"is_featured,omitempty"`
	Status          string   `json:"status,omitempty"`
	RejectionReason string   `json:"rejection_reason,omitempty"`
	Owner           Ref      `json:"owner,omitempty"`
}

// Coordinates reports the listing position. Listings without both a latitude
// and a longitude have none.
func (l Listing) Coordinates() (Coordinates, bool) {
	if l.Latitude == nil || l.Longitude == nil {
		return Coordinates{}, false
	}
	return Coordinates{Lat: float64(*l.Latitude), Lon: float64(*l.Longitude)}, true
}

func (l Listing) SportLabel() string {
	if len(l.Sports) > 0 {
		return strings.Join(l.Sports, ", ")
	}
	return l.Sport
}

type Review struct {
	ID      int64  `json:"id,omitempty"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
	Date    string `json:"date,omitempty"`
}

// Booking mirrors the backend booking record. User is the display string
// the backend renders for the booker (their email); UserID is the key.
type Booking struct {
	ID            int64  `json:"id"`
	User          Label  `json:"user,omitempty"`
	UserID        Ref    `json:"user_id,omitempty"`
	Box           Ref    `json:"box"`
	BoxName       string `json:"box_name,omitempty"`
	BoxLocation   string `json:"box_location,omitempty"`
	BoxSport      string `json:"box_sport,omitempty"`
	BoxImage      string `json:"box_image,omitempty"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Duration      int    `json:"duration"`
	TotalAmount   Number `json:"total_amount"`
	PaymentStatus string `json:"payment_status"`
	PaymentID     string `json:"payment_id,omitempty"`
	BookingStatus string `json:"booking_status"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// BookingRequest is the creation payload. The backend reads the booking
// fields in camelCase except end_time.
type BookingRequest struct {
	User          int64   `json:"user,omitempty"`
	Box           int64   `json:"boxId"`
	Date          string  `json:"date"`
	StartTime     string  `json:"startTime"`
	EndTime       string  `json:"end_time"`
	Duration      int     `json:"duration"`
	TotalAmount   float64 `json:"totalAmount"`
	PaymentStatus string  `json:"paymentStatus"`
	BookingStatus string  `json:"bookingStatus"`
}

type BookedSlots struct {
	BoxID       string   `json:"box_id"`
	Date        string   `json:"date"`
	BookedSlots []string `json:"booked_slots"`
}

// Number decodes decimal fields that the backend may send either as JSON
// numbers or as strings ("500.00").
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	text := string(data)
	if data[0] == '"' {
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(unquoted)
		if text == "" {
			*n = 0
			return nil
		}
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", string(data), err)
	}
	*n = Number(value)
	return nil
}

func (n Number) Float64() float64 {
	return float64(n)
}

// Ref is a foreign key that the backend renders either as a bare id or as a
// nested object carrying an "id". A related record rendered as its display
// string carries no key and decodes to zero.
type Ref int64

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = 0
		return nil
	}
	switch data[0] {
	case '{':
		var nested struct {
			ID Number `json:"id"`
		}
		if err := json.Unmarshal(data, &nested); err != nil {
			return err
		}
		*r = Ref(nested.ID)
		return nil
	case '"':
		var n Number
		if err := n.UnmarshalJSON(data); err != nil {
			*r = 0
			return nil
		}
		*r = Ref(n)
		return nil
	default:
		var n Number
		if err := n.UnmarshalJSON(data); err != nil {
			return err
		}
		*r = Ref(n)
		return nil
	}
}

// Label is a related record rendered for display. The backend sends a string
// for most endpoints and a bare id for some; both are kept as text.
type Label string

func (l *Label) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*l = ""
	case data[0] == '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*l = Label(text)
	case data[0] == '{' || data[0] == '[':
		*l = ""
	default:
		*l = Label(data)
	}
	return nil
}
