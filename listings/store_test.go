package listings

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bookmybox-cli/api"
)

type fakeGateway struct {
	mu sync.Mutex

	all      []api.Listing
	featured []api.Listing
	nearby   []api.Listing
	owner    []api.Listing
	pending  []api.Listing

	featuredErr error

	listCalls    []api.ListingFilter
	nearbyRadius float64
	created      []api.ListingForm
	ownerCalls   int
	reviews      []api.Review
}

func (g *fakeGateway) ListListings(ctx context.Context, filter api.ListingFilter) ([]api.Listing, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls = append(g.listCalls, filter)
	return g.all, nil
}

func (g *fakeGateway) GetListing(ctx context.Context, id int64) (api.Listing, error) {
	for _, l := range g.all {
		if l.ID == id {
			return l, nil
		}
	}
	return api.Listing{}, &api.APIError{StatusCode: 404, Body: []byte(`{"detail":"Not found."}`)}
}

func (g *fakeGateway) NearbyListings(ctx context.Context, lat, lon, radiusKm float64) ([]api.Listing, error) {
	g.nearbyRadius = radiusKm
	return g.nearby, nil
}

func (g *fakeGateway) FeaturedListings(ctx context.Context) ([]api.Listing, error) {
	return g.featured, g.featuredErr
}

func (g *fakeGateway) PopularListings(ctx context.Context) ([]api.Listing, error) {
	return nil, nil
}

func (g *fakeGateway) OwnerListings(ctx context.Context) ([]api.Listing, error) {
	g.ownerCalls++
	return g.owner, nil
}

func (g *fakeGateway) PendingListings(ctx context.Context) ([]api.Listing, error) {
	return g.pending, nil
}

func (g *fakeGateway) CreateOwnerListing(ctx context.Context, form api.ListingForm) (api.Listing, error) {
	g.created = append(g.created, form)
	listing := api.Listing{ID: 99, Name: form.Name, Status: api.StatusPending}
	g.owner = append(g.owner, listing)
	return listing, nil
}

func (g *fakeGateway) ApproveListing(ctx context.Context, id int64) (api.Listing, error) {
	return api.Listing{}, nil
}

func (g *fakeGateway) RejectListing(ctx context.Context, id int64, reason string) (api.Listing, error) {
	return api.Listing{ID: id, Name: "Echoed", Status: api.StatusRejected}, nil
}

func (g *fakeGateway) AddReview(ctx context.Context, listingID int64, review api.Review) (api.Review, error) {
	g.reviews = append(g.reviews, review)
	review.ID = 7
	return review, nil
}

func (g *fakeGateway) listFilters() []api.ListingFilter {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]api.ListingFilter(nil), g.listCalls...)
}

func num(v float64) *api.Number {
	n := api.Number(v)
	return &n
}

func TestViewsShareOneEntity(t *testing.T) {
	g := &fakeGateway{
		all:      []api.Listing{{ID: 1, Name: "Arena", Price: 500}, {ID: 2, Name: "Court"}},
		featured: []api.Listing{{ID: 1, Name: "Arena", Price: 650}},
	}
	s := NewStore(g, nil)
	ctx := context.Background()

	if err := s.FetchAll(ctx); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if err := s.FetchFeatured(ctx); err != nil {
		t.Fatalf("FetchFeatured: %v", err)
	}

	all := s.View(ViewAll)
	if len(all) != 2 || all[0].ID != 1 || all[1].ID != 2 {
		t.Fatalf("all view = %+v", all)
	}
	if all[0].Price != 650 {
		t.Fatalf("all view price = %v, want refreshed 650", all[0].Price)
	}
	if got := s.View(ViewFeatured)[0].Price; got != 650 {
		t.Fatalf("featured price = %v", got)
	}
}

func TestSetFiltersFetchesOnceWithCompleteFilter(t *testing.T) {
	g := &fakeGateway{}
	s := NewStore(g, nil)
	ctx := context.Background()

	f := Filters{Search: "arena", Sport: "Cricket"}
	if err := s.SetFilters(ctx, f); err != nil {
		t.Fatalf("SetFilters: %v", err)
	}
	f.MinPrice = 200
	if err := s.SetFilters(ctx, f); err != nil {
		t.Fatalf("SetFilters: %v", err)
	}

	calls := g.listFilters()
	if len(calls) != 2 {
		t.Fatalf("fetches = %d, want 2", len(calls))
	}
	want := Filters{Search: "arena", Sport: "Cricket", MinPrice: 200}
	if calls[1] != want {
		t.Fatalf("second fetch filter = %+v, want %+v", calls[1], want)
	}
	if s.Filters() != want {
		t.Fatalf("stored filters = %+v", s.Filters())
	}
}

func TestDebouncerCoalescesRapidUpdates(t *testing.T) {
	g := &fakeGateway{}
	s := NewStore(g, nil)
	done := make(chan Filters, 4)
	d := NewDebouncer(context.Background(), s, 30*time.Millisecond, func(f Filters, err error) {
		if err != nil {
			t.Errorf("apply: %v", err)
		}
		done <- f
	})
	defer d.Stop()

	d.Update(func(f *Filters) { f.Search = "are" })
	d.Update(func(f *Filters) { f.Search = "arena" })
	d.Update(func(f *Filters) { f.Location = "Ahmedabad" })

	select {
	case got := <-done:
		want := Filters{Search: "arena", Location: "Ahmedabad"}
		if got != want {
			t.Fatalf("applied %+v, want %+v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("debounced fetch never fired")
	}

	select {
	case extra := <-done:
		t.Fatalf("unexpected second fetch with %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
	if n := len(g.listFilters()); n != 1 {
		t.Fatalf("fetches = %d, want 1", n)
	}
}

func TestDebouncerFlushAndStop(t *testing.T) {
	g := &fakeGateway{}
	s := NewStore(g, nil)
	d := NewDebouncer(context.Background(), s, time.Hour, nil)

	d.Flush()
	if n := len(g.listFilters()); n != 0 {
		t.Fatalf("flush without changes fetched %d times", n)
	}

	d.Update(func(f *Filters) { f.Sport = "Football" })
	d.Flush()
	calls := g.listFilters()
	if len(calls) != 1 || calls[0].Sport != "Football" {
		t.Fatalf("flush calls = %+v", calls)
	}

	d.Stop()
	d.Update(func(f *Filters) { f.Sport = "Tennis" })
	d.Flush()
	if n := len(g.listFilters()); n != 1 {
		t.Fatalf("stopped debouncer fetched, calls = %d", n)
	}
}

func TestFetchNearby(t *testing.T) {
	g := &fakeGateway{nearby: []api.Listing{
		{ID: 1, Name: "Located", Latitude: num(23.03), Longitude: num(72.58)},
		{ID: 2, Name: "Nowhere"},
		{ID: 3, Name: "Half", Latitude: num(23.0)},
	}}
	s := NewStore(g, nil)

	if err := s.FetchNearby(context.Background(), 23.02, 72.57, 0); err != nil {
		t.Fatalf("FetchNearby: %v", err)
	}
	if g.nearbyRadius != DefaultRadiusKm {
		t.Fatalf("radius = %v, want %v", g.nearbyRadius, DefaultRadiusKm)
	}
	got := s.View(ViewNearby)
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("nearby = %+v", got)
	}

	if err := s.FetchNearby(context.Background(), 0, 0, 5); err == nil {
		t.Fatal("expected error for missing location")
	}
	if s.Err(ViewNearby) == "" {
		t.Fatal("nearby error not recorded")
	}
}

func TestViewErrorsAreIndependent(t *testing.T) {
	g := &fakeGateway{
		all:         []api.Listing{{ID: 1}},
		featuredErr: &api.APIError{StatusCode: 500, Body: []byte(`{"detail":"boom"}`)},
	}
	s := NewStore(g, nil)

	err := s.RefreshAll(context.Background())
	var failure *api.Failure
	if !errors.As(err, &failure) || failure.Message != "boom" {
		t.Fatalf("RefreshAll err = %v", err)
	}
	if s.Err(ViewFeatured) != "boom" {
		t.Fatalf("featured err = %q", s.Err(ViewFeatured))
	}
	if s.Err(ViewAll) != "" || len(s.View(ViewAll)) != 1 {
		t.Fatalf("all view affected: err=%q listings=%d", s.Err(ViewAll), len(s.View(ViewAll)))
	}
	if s.Loading() {
		t.Fatal("loading left set")
	}
}

func TestApproveAndReject(t *testing.T) {
	g := &fakeGateway{
		all:     []api.Listing{{ID: 1, Name: "Arena", Status: api.StatusPending}},
		pending: []api.Listing{{ID: 1, Name: "Arena", Status: api.StatusPending}, {ID: 2, Name: "Court", Status: api.StatusPending}},
	}
	s := NewStore(g, nil)
	ctx := context.Background()
	_ = s.FetchAll(ctx)
	_ = s.FetchPending(ctx)

	if err := s.Approve(ctx, 1); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	pending := s.View(ViewPending)
	if len(pending) != 1 || pending[0].ID != 2 {
		t.Fatalf("pending after approve = %+v", pending)
	}
	if got := s.View(ViewAll)[0]; got.Status != api.StatusApproved || got.Name != "Arena" {
		t.Fatalf("all view entity = %+v", got)
	}

	if err := s.Reject(ctx, 2, "Blurry photos"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if n := len(s.View(ViewPending)); n != 0 {
		t.Fatalf("pending after reject = %d", n)
	}
}

func TestAddListingUploadsFirstImageAndRefreshesOwner(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "front.jpg")
	second := filepath.Join(dir, "side.jpg")
	if err := os.WriteFile(first, []byte("front"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte("side"), 0o600); err != nil {
		t.Fatal(err)
	}

	g := &fakeGateway{}
	s := NewStore(g, nil)
	err := s.AddListing(context.Background(), NewListing{
		Name:   "Arena",
		Sports: []string{"Cricket", "Football"},
		Price:  500,
		Images: []string{first, second},
	})
	if err != nil {
		t.Fatalf("AddListing: %v", err)
	}
	if len(g.created) != 1 {
		t.Fatalf("created = %d", len(g.created))
	}
	form := g.created[0]
	if form.Image == nil || form.Image.Filename != "front.jpg" || string(form.Image.Data) != "front" {
		t.Fatalf("image = %+v", form.Image)
	}
	if g.ownerCalls != 1 {
		t.Fatalf("owner refreshes = %d", g.ownerCalls)
	}
	owner := s.View(ViewOwner)
	if len(owner) != 1 || owner[0].Status != api.StatusPending {
		t.Fatalf("owner view = %+v", owner)
	}
}

func TestAddListingMissingImage(t *testing.T) {
	g := &fakeGateway{}
	s := NewStore(g, nil)
	err := s.AddListing(context.Background(), NewListing{Name: "Arena", Images: []string{filepath.Join(t.TempDir(), "gone.jpg")}})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(g.created) != 0 {
		t.Fatal("listing submitted without image")
	}
	if s.Err(ViewOwner) == "" {
		t.Fatal("owner error not recorded")
	}
}

func TestAddReviewValidatesRating(t *testing.T) {
	g := &fakeGateway{}
	s := NewStore(g, nil)
	ctx := context.Background()

	for _, rating := range []int{0, 6} {
		if _, err := s.AddReview(ctx, 1, rating, "meh"); err == nil {
			t.Fatalf("rating %d accepted", rating)
		}
	}
	review, err := s.AddReview(ctx, 1, 5, "Great turf")
	if err != nil {
		t.Fatalf("AddReview: %v", err)
	}
	if review.ID != 7 || len(g.reviews) != 1 || g.reviews[0].Comment != "Great turf" {
		t.Fatalf("review = %+v sent=%+v", review, g.reviews)
	}
}

func TestGetNormalizesNotFound(t *testing.T) {
	s := NewStore(&fakeGateway{}, nil)
	_, err := s.Get(context.Background(), 42)
	var failure *api.Failure
	if !errors.As(err, &failure) || failure.Message != "Not found." {
		t.Fatalf("Get err = %v", err)
	}
}

func TestDistance(t *testing.T) {
	cases := []struct {
		name string
		a, b api.Coordinates
		want float64
	}{
		{"same point", api.Coordinates{Lat: 23, Lon: 72}, api.Coordinates{Lat: 23, Lon: 72}, 0},
		{"one degree of longitude at the equator", api.Coordinates{}, api.Coordinates{Lon: 1}, 111.195},
		{"pole to pole", api.Coordinates{Lat: 90}, api.Coordinates{Lat: -90}, math.Pi * earthRadiusKm},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Distance(tc.a, tc.b); math.Abs(got-tc.want) > 0.01 {
				t.Fatalf("Distance = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestByDistance(t *testing.T) {
	origin := api.Coordinates{Lat: 23.0, Lon: 72.5}
	placed := ByDistance(origin, []api.Listing{
		{ID: 1, Latitude: num(23.2), Longitude: num(72.5)},
		{ID: 2},
		{ID: 3, Latitude: num(23.01), Longitude: num(72.5)},
	})
	if len(placed) != 2 || placed[0].Listing.ID != 3 || placed[1].Listing.ID != 1 {
		t.Fatalf("placed = %+v", placed)
	}
}
