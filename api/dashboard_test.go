package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
)

func TestClient_Favourites(t *testing.T) {
	t.Run("decodes the flattened favourite records", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || r.URL.Path != "/api/dashboard/favorites/" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			_, _ = io.WriteString(w, `[{"id":3,"name":"Arena","location":"Pune","price_per_hour":"500.00","description":"","added_on":"2025-06-01T10:00:00Z"}]`)
		})

		favourites, err := client.Favourites(context.Background())
		if err != nil {
			t.Fatalf("Favourites returned error: %v", err)
		}
		if len(favourites) != 1 {
			t.Fatalf("unexpected favourites: %+v", favourites)
		}
		got := favourites[0]
		if got.ID != 3 || got.Name != "Arena" || got.PricePerHour != 500 || got.AddedOn == "" {
			t.Fatalf("unexpected favourite: %+v", got)
		}
	})

	t.Run("empty list is not nil", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `null`)
		})
		favourites, err := client.Favourites(context.Background())
		if err != nil || favourites == nil || len(favourites) != 0 {
			t.Fatalf("Favourites = %v, %v", favourites, err)
		}
	})
}

func TestClient_AddFavourite(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/dashboard/favorites/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer stale" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		var body map[string]int64
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["box_id"] != 3 {
			t.Errorf("unexpected body %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":3,"name":"Arena","location":"Pune","price_per_hour":"500.00","added_on":"2025-06-01T10:00:00Z"}`)
	})

	favourite, err := client.AddFavourite(context.Background(), 3)
	if err != nil {
		t.Fatalf("AddFavourite returned error: %v", err)
	}
	if favourite.ID != 3 || favourite.Location != "Pune" {
		t.Fatalf("unexpected favourite: %+v", favourite)
	}
}

func TestClient_RemoveFavourite(t *testing.T) {
	var method, path string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.RemoveFavourite(context.Background(), 3); err != nil {
		t.Fatalf("RemoveFavourite returned error: %v", err)
	}
	if method != http.MethodDelete || path != "/api/dashboard/favorites/3/remove/" {
		t.Fatalf("unexpected request %s %s", method, path)
	}
}

func TestClient_Analytics(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dashboard/analytics/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{
  "total_spent": "2500.00",
  "this_month_bookings": 2,
  "total_hours_played": 5,
  "average_rating": 4.5,
  "average_cost_per_session": "833.33",
  "cancellation_rate": 25.0,
  "sport_distribution": [{"sport":"cricket","percentage":66.7},{"sport":"football","percentage":33.3}],
  "monthly_spending": [{"month":"Jun 2025","total_spent":"2500.00"}],
  "activity_by_day": [{"day_of_week":"Sat","total_hours":3}],
  "peak_booking_hours": [{"hour_range":"6-9 PM","percentage":50}]
}`)
	})

	analytics, err := client.Analytics(context.Background())
	if err != nil {
		t.Fatalf("Analytics returned error: %v", err)
	}
	if analytics.TotalSpent != 2500 || analytics.AverageCostPerSession != 833.33 || analytics.TotalHoursPlayed != 5 {
		t.Fatalf("unexpected totals: %+v", analytics)
	}
	if len(analytics.SportDistribution) != 2 || analytics.SportDistribution[0].Sport != "cricket" {
		t.Fatalf("unexpected sport distribution: %+v", analytics.SportDistribution)
	}
	if len(analytics.MonthlySpending) != 1 || analytics.MonthlySpending[0].TotalSpent != 2500 {
		t.Fatalf("unexpected monthly spending: %+v", analytics.MonthlySpending)
	}
	if analytics.ActivityByDay[0].TotalHours != 3 || analytics.PeakBookingHours[0].HourRange != "6-9 PM" {
		t.Fatalf("unexpected activity: %+v", analytics)
	}
}

func TestClient_Achievements(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dashboard/achievements/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `[{"id":1,"name":"First Booking","description":"Book your first box","earned":true},{"id":2,"name":"Regular","description":"Book ten times","earned":false}]`)
	})

	achievements, err := client.Achievements(context.Background())
	if err != nil {
		t.Fatalf("Achievements returned error: %v", err)
	}
	if len(achievements) != 2 || !achievements[0].Earned || achievements[1].Earned {
		t.Fatalf("unexpected achievements: %+v", achievements)
	}
}

func TestClient_OwnerStats(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/owner_dashboard/stats/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{
  "total_revenue": "12000.00",
  "total_bookings": 14,
  "active_boxes_count": 2,
  "pending_boxes_count": 1,
  "rejected_boxes_count": 0,
  "avg_rating": 4.2,
  "sports_distribution": {"cricket": 2, "football": 1},
  "revenue_chart_labels": ["May", "Jun"],
  "revenue_chart_data": ["4000.00", "8000.00"],
  "bookings_chart_labels": ["May", "Jun"],
  "bookings_chart_data": [5, 9],
  "recent_bookings": [` + serializedBooking + `],
  "all_owner_boxes": [{"id":3,"name":"Arena","price":"500.00"}]
}`)
	})

	stats, err := client.OwnerStats(context.Background())
	if err != nil {
		t.Fatalf("OwnerStats returned error: %v", err)
	}
	if stats.TotalRevenue != 12000 || stats.TotalBookings != 14 || stats.PendingBoxes != 1 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.SportsDistribution["cricket"] != 2 || len(stats.RevenueChartData) != 2 || stats.RevenueChartData[1] != 8000 {
		t.Fatalf("unexpected charts: %+v", stats)
	}
	if len(stats.RecentBookings) != 1 || stats.RecentBookings[0].User != "user@demo.com" || stats.RecentBookings[0].Box != 3 {
		t.Fatalf("unexpected recent bookings: %+v", stats.RecentBookings)
	}
	if len(stats.Boxes) != 1 || stats.Boxes[0].Price != 500 {
		t.Fatalf("unexpected boxes: %+v", stats.Boxes)
	}
}
