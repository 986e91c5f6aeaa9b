// Package listings caches facility listings. Every listing lives once in an
// entity map keyed by id; the all, featured, popular, nearby, owner and
// pending collections are ordered id views over it, so a refetch in one view
// is visible in all of them.
package listings

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"bookmybox-cli/api"
)

type View string

const (
	ViewAll      View = "all"
	ViewFeatured View = "featured"
	ViewPopular  View = "popular"
	ViewNearby   View = "nearby"
	ViewOwner    View = "owner"
	ViewPending  View = "pending"
)

const DefaultRadiusKm = 10.0

type Filters = api.ListingFilter

type Gateway interface {
	ListListings(ctx context.Context, filter api.ListingFilter) ([]api.Listing, error)
	GetListing(ctx context.Context, id int64) (api.Listing, error)
	NearbyListings(ctx context.Context, lat, lon, radiusKm float64) ([]api.Listing, error)
	FeaturedListings(ctx context.Context) ([]api.Listing, error)
	PopularListings(ctx context.Context) ([]api.Listing, error)
	OwnerListings(ctx context.Context) ([]api.Listing, error)
	PendingListings(ctx context.Context) ([]api.Listing, error)
	CreateOwnerListing(ctx context.Context, form api.ListingForm) (api.Listing, error)
	ApproveListing(ctx context.Context, id int64) (api.Listing, error)
	RejectListing(ctx context.Context, id int64, reason string) (api.Listing, error)
	AddReview(ctx context.Context, listingID int64, review api.Review) (api.Review, error)
}

type Store struct {
	gateway  Gateway
	logger   *slog.Logger
	readFile func(string) ([]byte, error)

	mu       sync.Mutex
	entities map[int64]api.Listing
	views    map[View][]int64
	errs     map[View]string
	filters  Filters
	inflight int
}

func NewStore(gateway Gateway, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		gateway:  gateway,
		logger:   logger.With("component", "listings"),
		readFile: os.ReadFile,
		entities: map[int64]api.Listing{},
		views:    map[View][]int64{},
		errs:     map[View]string{},
	}
}

func (s *Store) Filters() Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// SetFilters replaces the filter state and issues exactly one fetch of the
// all view with it. Callers debounce.
func (s *Store) SetFilters(ctx context.Context, filters Filters) error {
	s.mu.Lock()
	s.filters = filters
	s.mu.Unlock()
	return s.FetchAll(ctx)
}

func (s *Store) FetchAll(ctx context.Context) error {
	filters := s.Filters()
	return s.fetchView(ViewAll, "Could not load boxes. Please try again.", func() ([]api.Listing, error) {
		return s.gateway.ListListings(ctx, filters)
	})
}

func (s *Store) FetchFeatured(ctx context.Context) error {
	return s.fetchView(ViewFeatured, "Could not load featured boxes.", func() ([]api.Listing, error) {
		return s.gateway.FeaturedListings(ctx)
	})
}

func (s *Store) FetchPopular(ctx context.Context) error {
	return s.fetchView(ViewPopular, "Could not load popular boxes.", func() ([]api.Listing, error) {
		return s.gateway.PopularListings(ctx)
	})
}

func (s *Store) FetchOwner(ctx context.Context) error {
	return s.fetchView(ViewOwner, "Could not load your boxes.", func() ([]api.Listing, error) {
		return s.gateway.OwnerListings(ctx)
	})
}

func (s *Store) FetchPending(ctx context.Context) error {
	return s.fetchView(ViewPending, "Could not load pending boxes.", func() ([]api.Listing, error) {
		return s.gateway.PendingListings(ctx)
	})
}

// FetchNearby loads listings within radiusKm of a point. A non-positive
// radius means DefaultRadiusKm. Listings without coordinates are dropped.
func (s *Store) FetchNearby(ctx context.Context, lat, lon, radiusKm float64) error {
	if lat == 0 && lon == 0 {
		s.setErr(ViewNearby, "Invalid location data for nearby search.")
		return &api.Failure{Message: "Invalid location data for nearby search."}
	}
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	return s.fetchView(ViewNearby, "Could not load nearby boxes.", func() ([]api.Listing, error) {
		listings, err := s.gateway.NearbyListings(ctx, lat, lon, radiusKm)
		if err != nil {
			return nil, err
		}
		located := make([]api.Listing, 0, len(listings))
		for _, listing := range listings {
			if _, ok := listing.Coordinates(); ok {
				located = append(located, listing)
			}
		}
		return located, nil
	})
}

// Get fetches one listing and refreshes its cached entity.
func (s *Store) Get(ctx context.Context, id int64) (api.Listing, error) {
	s.begin()
	defer s.end()

	listing, err := s.gateway.GetListing(ctx, id)
	if err != nil {
		s.logger.Warn("fetch listing", "id", id, "error", err)
		return api.Listing{}, api.Normalize(err, "Failed to load box details. Please try again later.")
	}
	s.mu.Lock()
	s.entities[listing.ID] = listing
	s.mu.Unlock()
	return listing, nil
}

// View returns the listings of one collection in server order.
func (s *Store) View(view View) []api.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.views[view]
	out := make([]api.Listing, 0, len(ids))
	for _, id := range ids {
		if listing, ok := s.entities[id]; ok {
			out = append(out, listing)
		}
	}
	return out
}

// Lookup returns the cached entity for id, if any view holds it.
func (s *Store) Lookup(id int64) (api.Listing, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	listing, ok := s.entities[id]
	return listing, ok
}

func (s *Store) Err(view View) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs[view]
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// RefreshAll refetches the all, featured, popular and owner views. A failing
// view does not stop the others.
func (s *Store) RefreshAll(ctx context.Context) error {
	var firstErr error
	for _, fetch := range []func(context.Context) error{s.FetchAll, s.FetchFeatured, s.FetchPopular, s.FetchOwner} {
		if err := fetch(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewListing is an owner submission. Images are local file paths; only the
// first one is uploaded.
type NewListing struct {
	Name            string
	Description     string
	FullDescription string
	Sports          []string
	Location        string
	Price           float64
	Capacity        int
	Amenities       []string
	Rules           []string
	Latitude        *float64
	Longitude       *float64
	Images          []string
}

// AddListing submits a pending listing and then refreshes the owner view.
func (s *Store) AddListing(ctx context.Context, listing NewListing) error {
	s.begin()
	defer s.end()

	form := api.ListingForm{
		Name:            listing.Name,
		Description:     listing.Description,
		FullDescription: listing.FullDescription,
		Sports:          listing.Sports,
		Location:        listing.Location,
		Price:           listing.Price,
		Capacity:        listing.Capacity,
		Amenities:       listing.Amenities,
		Rules:           listing.Rules,
		Latitude:        listing.Latitude,
		Longitude:       listing.Longitude,
	}
	if len(listing.Images) > 0 {
		data, err := s.readFile(listing.Images[0])
		if err != nil {
			s.logger.Warn("read listing image", "path", listing.Images[0], "error", err)
			failure := &api.Failure{Message: fmt.Sprintf("Could not read image %s.", filepath.Base(listing.Images[0])), Err: err}
			s.setErr(ViewOwner, failure.Message)
			return failure
		}
		form.Image = &api.Upload{Filename: filepath.Base(listing.Images[0]), Data: data}
	}

	created, err := s.gateway.CreateOwnerListing(ctx, form)
	if err != nil {
		failure := api.Normalize(err, "Failed to add the box.")
		s.logger.Warn("add listing", "error", err)
		s.setErr(ViewOwner, failure.Message)
		return failure
	}
	s.logger.Info("listing submitted", "id", created.ID, "status", created.Status)
	return s.FetchOwner(ctx)
}

func (s *Store) Approve(ctx context.Context, id int64) error {
	s.begin()
	defer s.end()

	listing, err := s.gateway.ApproveListing(ctx, id)
	if err != nil {
		s.logger.Warn("approve listing", "id", id, "error", err)
		return api.Normalize(err, "Failed to approve the box.")
	}
	s.settle(id, listing, api.StatusApproved, "")
	return nil
}

func (s *Store) Reject(ctx context.Context, id int64, reason string) error {
	s.begin()
	defer s.end()

	listing, err := s.gateway.RejectListing(ctx, id, reason)
	if err != nil {
		s.logger.Warn("reject listing", "id", id, "error", err)
		return api.Normalize(err, "Failed to reject the box.")
	}
	s.settle(id, listing, api.StatusRejected, reason)
	return nil
}

func (s *Store) AddReview(ctx context.Context, id int64, rating int, comment string) (api.Review, error) {
	if rating < 1 || rating > 5 {
		return api.Review{}, &api.Failure{Message: "Rating must be between 1 and 5.", Fields: map[string]string{"rating": "Rating must be between 1 and 5."}}
	}
	s.begin()
	defer s.end()

	review, err := s.gateway.AddReview(ctx, id, api.Review{Rating: rating, Comment: comment})
	if err != nil {
		s.logger.Warn("add review", "id", id, "error", err)
		return api.Review{}, api.Normalize(err, "Failed to submit review.")
	}
	return review, nil
}

// settle records the admin decision on a listing and drops it from the
// pending view. An empty server echo falls back to the cached entity.
func (s *Store) settle(id int64, echoed api.Listing, status, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing := echoed
	if listing.ID == 0 {
		listing = s.entities[id]
		listing.ID = id
	}
	listing.Status = status
	if reason != "" {
		listing.RejectionReason = reason
	}
	s.entities[id] = listing

	pending := s.views[ViewPending][:0:0]
	for _, pid := range s.views[ViewPending] {
		if pid != id {
			pending = append(pending, pid)
		}
	}
	s.views[ViewPending] = pending
}

func (s *Store) fetchView(view View, fallback string, fetch func() ([]api.Listing, error)) error {
	s.begin()
	s.setErr(view, "")
	defer s.end()

	listings, err := fetch()
	if err != nil {
		failure := api.Normalize(err, fallback)
		s.logger.Warn("fetch listings", "view", string(view), "error", err)
		s.setErr(view, failure.Message)
		return failure
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(listings))
	for _, listing := range listings {
		s.entities[listing.ID] = listing
		ids = append(ids, listing.ID)
	}
	s.views[view] = ids
	s.prune()
	s.logger.Debug("listings loaded", "view", string(view), "count", len(ids))
	return nil
}

// prune drops entities no view references. Called with mu held.
func (s *Store) prune() {
	referenced := map[int64]bool{}
	for _, ids := range s.views {
		for _, id := range ids {
			referenced[id] = true
		}
	}
	for id := range s.entities {
		if !referenced[id] {
			delete(s.entities, id)
		}
	}
}

func (s *Store) setErr(view View, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if message == "" {
		delete(s.errs, view)
		return
	}
	s.errs[view] = message
}

func (s *Store) begin() {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
}

func (s *Store) end() {
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
}
