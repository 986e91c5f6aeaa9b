package storage

import (
	"database/sql"
	"fmt"
	"strings"
)

// Booking is the locally cached copy of a server booking.
type Booking struct {
	ID            int64   `json:"id"`
	BoxID         int64   `json:"box_id"`
	BoxName       string  `json:"box_name"`
	Date          string  `json:"date"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	Duration      int     `json:"duration"`
	TotalAmount   float64 `json:"total_amount"`
	PaymentStatus string  `json:"payment_status"`
	BookingStatus string  `json:"booking_status"`
	SyncedAt      string  `json:"synced_at"`
}

type BookingFilter struct {
	From     string
	To       string
	Past     bool
	Upcoming bool
	Status   string
	NowDate  string
	NowTime  string
}

func ensureBookingsSchema(db *sql.DB) error {
	createTable := `
CREATE TABLE IF NOT EXISTS bookings (
  id INTEGER PRIMARY KEY,
  box_id INTEGER,
  box_name TEXT,
  date TEXT,
  start_time TEXT,
  end_time TEXT,
  duration INTEGER,
  total_amount REAL,
  payment_status TEXT,
  booking_status TEXT,
  synced_at TEXT
);`

	if _, err := db.Exec(createTable); err != nil {
		return fmt.Errorf("create bookings table: %w", err)
	}

	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date);"); err != nil {
		return fmt.Errorf("create bookings index: %w", err)
	}
	return nil
}

// ReplaceBookings swaps the whole cache for bookings in one transaction.
func ReplaceBookings(db *sql.DB, bookings []Booking) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM bookings"); err != nil {
		return fmt.Errorf("clear bookings: %w", err)
	}
	for _, booking := range bookings {
		if err := upsertBooking(tx, booking); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func UpsertBooking(db *sql.DB, booking Booking) error {
	return upsertBooking(db, booking)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsertBooking(db execer, booking Booking) error {
	query := `
INSERT OR REPLACE INTO bookings (
  id, box_id, box_name, date, start_time, end_time, duration, total_amount, payment_status, booking_status, synced_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

	_, err := db.Exec(
		query,
		booking.ID,
		booking.BoxID,
		booking.BoxName,
		booking.Date,
		booking.StartTime,
		booking.EndTime,
		booking.Duration,
		booking.TotalAmount,
		booking.PaymentStatus,
		booking.BookingStatus,
		booking.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("store booking %d: %w", booking.ID, err)
	}
	return nil
}

func RemoveBooking(db *sql.DB, id int64) (bool, error) {
	res, err := db.Exec("DELETE FROM bookings WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func ListBookings(db *sql.DB, filter BookingFilter) ([]Booking, error) {
	base := `
SELECT id, box_id, box_name, date, start_time, end_time, duration, total_amount, payment_status, booking_status, synced_at
FROM bookings`

	conds := []string{}
	args := []any{}

	if filter.From != "" {
		conds = append(conds, "date >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		conds = append(conds, "date <= ?")
		args = append(args, filter.To)
	}
	if filter.Status != "" {
		conds = append(conds, "booking_status = ?")
		args = append(args, filter.Status)
	}
	if filter.From == "" && filter.To == "" {
		if filter.Past {
			conds = append(conds, "date <= ?")
			args = append(args, filter.NowDate)
		}
		if filter.Upcoming {
			conds = append(conds, "date >= ?")
			args = append(args, filter.NowDate)
		}
	}

	query := base
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date, start_time"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := []Booking{}
	for rows.Next() {
		var booking Booking
		var boxName, paymentStatus, syncedAt sql.NullString
		if err := rows.Scan(
			&booking.ID,
			&booking.BoxID,
			&boxName,
			&booking.Date,
			&booking.StartTime,
			&booking.EndTime,
			&booking.Duration,
			&booking.TotalAmount,
			&paymentStatus,
			&booking.BookingStatus,
			&syncedAt,
		); err != nil {
			return nil, err
		}
		booking.BoxName = boxName.String
		booking.PaymentStatus = paymentStatus.String
		booking.SyncedAt = syncedAt.String
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if filter.From == "" && filter.To == "" {
		if filter.Past || filter.Upcoming {
			return filterByTime(bookings, filter), nil
		}
	}
	return bookings, nil
}

func filterByTime(bookings []Booking, filter BookingFilter) []Booking {
	filtered := make([]Booking, 0, len(bookings))
	for _, booking := range bookings {
		if booking.Date != filter.NowDate || filter.NowTime == "" {
			filtered = append(filtered, booking)
			continue
		}
		if filter.Past {
			if booking.StartTime < filter.NowTime {
				filtered = append(filtered, booking)
			}
			continue
		}
		if filter.Upcoming && booking.StartTime >= filter.NowTime {
			filtered = append(filtered, booking)
		}
	}
	return filtered
}
