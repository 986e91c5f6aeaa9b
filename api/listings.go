package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ListingFilter holds the search parameters of the public listing search.
// Zero values are not sent.
type ListingFilter struct {
	Search    string  `json:"search,omitempty"`
	Sport     string  `json:"sport,omitempty"`
	Location  string  `json:"location,omitempty"`
	MinPrice  float64 `json:"min_price,omitempty"`
	MaxPrice  float64 `json:"max_price,omitempty"`
	MinRating float64 `json:"min_rating,omitempty"`
}

func (f ListingFilter) Values() url.Values {
	q := url.Values{}
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Set("search", s)
	}
	if s := strings.TrimSpace(f.Sport); s != "" {
		q.Set("sport", s)
	}
	if s := strings.TrimSpace(f.Location); s != "" {
		q.Set("location", s)
	}
	if f.MinPrice > 0 {
		q.Set("min_price", formatFloat(f.MinPrice))
	}
	if f.MaxPrice > 0 {
		q.Set("max_price", formatFloat(f.MaxPrice))
	}
	if f.MinRating > 0 {
		q.Set("min_rating", formatFloat(f.MinRating))
	}
	return q
}

// Upload is one file part of a multipart submission.
type Upload struct {
	Filename string
	Data     []byte
}

// ListingForm is the owner submission of a new listing.
type ListingForm struct {
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
	Image           *Upload
}

func (c *Client) ListListings(ctx context.Context, filter ListingFilter) ([]Listing, error) {
	return c.getListings(ctx, request{method: http.MethodGet, path: "/boxes/public/", query: filter.Values(), auth: true})
}

func (c *Client) GetListing(ctx context.Context, id int64) (Listing, error) {
	path := "/boxes/public/" + strconv.FormatInt(id, 10) + "/"
	var listing Listing
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: path, auth: true}, &listing); err != nil {
		return Listing{}, err
	}
	return listing, nil
}

func (c *Client) NearbyListings(ctx context.Context, lat, lon, radiusKm float64) ([]Listing, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%.6f", lat))
	q.Set("lng", fmt.Sprintf("%.6f", lon))
	q.Set("radius", formatFloat(radiusKm))
	return c.getListings(ctx, request{method: http.MethodGet, path: "/boxes/public/nearby/", query: q, auth: true})
}

func (c *Client) FeaturedListings(ctx context.Context) ([]Listing, error) {
	return c.getListings(ctx, request{method: http.MethodGet, path: "/boxes/public/featured/", auth: true})
}

func (c *Client) PopularListings(ctx context.Context) ([]Listing, error) {
	return c.getListings(ctx, request{method: http.MethodGet, path: "/boxes/public/popular/", auth: true})
}

func (c *Client) OwnerListings(ctx context.Context) ([]Listing, error) {
	return c.getListings(ctx, request{method: http.MethodGet, path: "/boxes/owner/", auth: true})
}

func (c *Client) PendingListings(ctx context.Context) ([]Listing, error) {
	return c.getListings(ctx, request{method: http.MethodGet, path: "/boxes/admin/pending/", auth: true})
}

func (c *Client) ApproveListing(ctx context.Context, id int64) (Listing, error) {
	path := "/boxes/admin/" + strconv.FormatInt(id, 10) + "/approve/"
	req, err := jsonRequest(http.MethodPost, path, nil, true)
	if err != nil {
		return Listing{}, err
	}
	var listing Listing
	if err := c.doJSON(ctx, req, &listing); err != nil {
		return Listing{}, err
	}
	return listing, nil
}

func (c *Client) RejectListing(ctx context.Context, id int64, reason string) (Listing, error) {
	path := "/boxes/admin/" + strconv.FormatInt(id, 10) + "/reject/"
	req, err := jsonRequest(http.MethodPost, path, map[string]string{"reason": reason}, true)
	if err != nil {
		return Listing{}, err
	}
	var listing Listing
	if err := c.doJSON(ctx, req, &listing); err != nil {
		return Listing{}, err
	}
	return listing, nil
}

func (c *Client) AddReview(ctx context.Context, listingID int64, review Review) (Review, error) {
	path := "/boxes/public/" + strconv.FormatInt(listingID, 10) + "/add_review/"
	payload := map[string]any{"rating": review.Rating, "comment": review.Comment}
	req, err := jsonRequest(http.MethodPost, path, payload, true)
	if err != nil {
		return Review{}, err
	}
	var created Review
	if err := c.doJSON(ctx, req, &created); err != nil {
		return Review{}, err
	}
	return created, nil
}

// CreateOwnerListing submits form as multipart data. List fields travel as
// JSON strings; sport carries the first selected sport.
func (c *Client) CreateOwnerListing(ctx context.Context, form ListingForm) (Listing, error) {
	body, contentType, err := encodeListingForm(form)
	if err != nil {
		return Listing{}, err
	}
	req := request{
		method:      http.MethodPost,
		path:        "/boxes/owner/",
		body:        body,
		contentType: contentType,
		auth:        true,
	}
	var listing Listing
	if err := c.doJSON(ctx, req, &listing); err != nil {
		return Listing{}, err
	}
	return listing, nil
}

func encodeListingForm(form ListingForm) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fields := [][2]string{}
	if len(form.Sports) > 0 {
		fields = append(fields, [2]string{"sport", form.Sports[0]})
	}
	fields = append(fields,
		[2]string{"name", form.Name},
		[2]string{"description", form.Description},
		[2]string{"location", form.Location},
		[2]string{"price", formatFloat(form.Price)},
		[2]string{"capacity", strconv.Itoa(form.Capacity)},
	)
	if form.FullDescription != "" {
		fields = append(fields, [2]string{"full_description", form.FullDescription})
	}
	if form.Latitude != nil && form.Longitude != nil {
		fields = append(fields,
			[2]string{"latitude", fmt.Sprintf("%.6f", *form.Latitude)},
			[2]string{"longitude", fmt.Sprintf("%.6f", *form.Longitude)},
		)
	}
	for _, list := range []struct {
		name   string
		values []string
	}{
		{"sports", form.Sports},
		{"amenities", form.Amenities},
		{"rules", form.Rules},
	} {
		values := list.values
		if values == nil {
			values = []string{}
		}
		encoded, err := json.Marshal(values)
		if err != nil {
			return nil, "", err
		}
		fields = append(fields, [2]string{list.name, string(encoded)})
	}

	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}
	if form.Image != nil {
		part, err := writer.CreateFormFile("image", form.Image.Filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(form.Image.Data); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

func (c *Client) getListings(ctx context.Context, r request) ([]Listing, error) {
	body, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	return decodeListings(body)
}

// decodeListings accepts a paginated {"results": [...]} page or a bare array.
func decodeListings(body []byte) ([]Listing, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return []Listing{}, nil
	}
	if trimmed[0] == '[' {
		var listings []Listing
		if err := json.Unmarshal(trimmed, &listings); err != nil {
			return nil, err
		}
		return listings, nil
	}
	var page struct {
		Results *[]Listing `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, err
	}
	if page.Results == nil {
		return nil, fmt.Errorf("unexpected listings response: %.80s", string(trimmed))
	}
	return *page.Results, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
