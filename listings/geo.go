package listings

import (
	"math"
	"sort"

	"bookmybox-cli/api"
)

const earthRadiusKm = 6371.0

// Distance is the great-circle distance between two points in kilometres.
func Distance(a, b api.Coordinates) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

type Placed struct {
	Listing    api.Listing
	DistanceKm float64
}

// ByDistance annotates listings with their distance from origin, nearest
// first. Listings without coordinates are left out.
func ByDistance(origin api.Coordinates, listings []api.Listing) []Placed {
	out := make([]Placed, 0, len(listings))
	for _, listing := range listings {
		at, ok := listing.Coordinates()
		if !ok {
			continue
		}
		out = append(out, Placed{Listing: listing, DistanceKm: Distance(origin, at)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})
	return out
}
