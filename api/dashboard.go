package api

import (
	"context"
	"net/http"
	"strconv"
)

// FavouriteBox is a saved box as the dashboard renders it: the box fields
// flattened into the favourite record.
type FavouriteBox struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Location     string `json:"location"`
	PricePerHour Number `json:"price_per_hour"`
	Description  string `json:"description,omitempty"`
	AddedOn      string `json:"added_on,omitempty"`
}

type SportShare struct {
	Sport      string `json:"sport"`
	Percentage Number `json:"percentage"`
}

type MonthlySpend struct {
	Month      string `json:"month"`
	TotalSpent Number `json:"total_spent"`
}

type DayActivity struct {
	DayOfWeek  string `json:"day_of_week"`
	TotalHours int    `json:"total_hours"`
}

type HourShare struct {
	HourRange  string `json:"hour_range"`
	Percentage Number `json:"percentage"`
}

// Analytics is the signed-in user's booking summary. Money and hours count
// confirmed bookings only.
type Analytics struct {
	TotalSpent            Number         `json:"total_spent"`
	ThisMonthBookings     int            `json:"this_month_bookings"`
	TotalHoursPlayed      int            `json:"total_hours_played"`
	AverageRating         Number         `json:"average_rating"`
	AverageCostPerSession Number         `json:"average_cost_per_session"`
	CancellationRate      Number         `json:"cancellation_rate"`
	SportDistribution     []SportShare   `json:"sport_distribution"`
	MonthlySpending       []MonthlySpend `json:"monthly_spending"`
	ActivityByDay         []DayActivity  `json:"activity_by_day"`
	PeakBookingHours      []HourShare    `json:"peak_booking_hours"`
}

type Achievement struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Earned      bool   `json:"earned"`
}

// OwnerStats is the facility owner's overview across their boxes.
type OwnerStats struct {
	TotalRevenue        Number         `json:"total_revenue"`
	TotalBookings       int            `json:"total_bookings"`
	ActiveBoxes         int            `json:"active_boxes_count"`
	PendingBoxes        int            `json:"pending_boxes_count"`
	RejectedBoxes       int            `json:"rejected_boxes_count"`
	AvgRating           Number         `json:"avg_rating"`
	SportsDistribution  map[string]int `json:"sports_distribution"`
	RevenueChartLabels  []string       `json:"revenue_chart_labels"`
	RevenueChartData    []Number       `json:"revenue_chart_data"`
	BookingsChartLabels []string       `json:"bookings_chart_labels"`
	BookingsChartData   []int          `json:"bookings_chart_data"`
	RecentBookings      []Booking      `json:"recent_bookings"`
	Boxes               []Listing      `json:"all_owner_boxes"`
}

func (c *Client) Favourites(ctx context.Context) ([]FavouriteBox, error) {
	var favourites []FavouriteBox
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "/dashboard/favorites/", auth: true}, &favourites); err != nil {
		return nil, err
	}
	if favourites == nil {
		return []FavouriteBox{}, nil
	}
	return favourites, nil
}

// AddFavourite saves a box for the user. Saving a box twice is not an error;
// the existing favourite is returned.
func (c *Client) AddFavourite(ctx context.Context, boxID int64) (FavouriteBox, error) {
	req, err := jsonRequest(http.MethodPost, "/dashboard/favorites/", map[string]int64{"box_id": boxID}, true)
	if err != nil {
		return FavouriteBox{}, err
	}
	var favourite FavouriteBox
	if err := c.doJSON(ctx, req, &favourite); err != nil {
		return FavouriteBox{}, err
	}
	return favourite, nil
}

func (c *Client) RemoveFavourite(ctx context.Context, boxID int64) error {
	path := "/dashboard/favorites/" + strconv.FormatInt(boxID, 10) + "/remove/"
	return c.doStatus(ctx, request{method: http.MethodDelete, path: path, auth: true})
}

func (c *Client) Analytics(ctx context.Context) (Analytics, error) {
	var analytics Analytics
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "/dashboard/analytics/", auth: true}, &analytics); err != nil {
		return Analytics{}, err
	}
	return analytics, nil
}

func (c *Client) Achievements(ctx context.Context) ([]Achievement, error) {
	var achievements []Achievement
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "/dashboard/achievements/", auth: true}, &achievements); err != nil {
		return nil, err
	}
	return achievements, nil
}

func (c *Client) OwnerStats(ctx context.Context) (OwnerStats, error) {
	var stats OwnerStats
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "/owner_dashboard/stats/", auth: true}, &stats); err != nil {
		return OwnerStats{}, err
	}
	return stats, nil
}
