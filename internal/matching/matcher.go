package matching

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type MatchType string

const (
	MatchExact  MatchType = "exact"
	MatchNearby MatchType = "nearby"
)

// DriverProfile is the public slice of a driver account that recommendation cards
// render. The directory only ever returns eligible drivers (active, subscribed,
// publicly visible).
type DriverProfile struct {
	ID              uint    `json:"id"`
	Name            string  `json:"name"`
	Rating          float64 `json:"rating"`
	TotalRides      int     `json:"totalRides"`
	VehicleMake     string  `json:"vehicleMake,omitempty"`
	VehicleModel    string  `json:"vehicleModel,omitempty"`
	VehiclePlate    string  `json:"vehiclePlate,omitempty"`
	ProfilePhotoURL string  `json:"profilePhotoUrl,omitempty"`
}

// RouteQuote is a driver's price for one route, keyed by RouteKey in the pricing map.
type RouteQuote struct {
	FromLocation string
	ToLocation   string
	Price        float64
	UpdatedAt    time.Time
}

type DriverDirectory interface {
	EligibleDrivers(ctx context.Context) ([]DriverProfile, error)
}

type PricingStore interface {
	// DriverPricing returns the driver's active quotes keyed by route key. An empty
	// map means the driver has no pricing configured.
	DriverPricing(ctx context.Context, driverID uint) (map[string]RouteQuote, error)
}

// DriverMatch is a transient, per-search view of a driver with a resolved price.
type DriverMatch struct {
	DriverProfile
	Price       float64   `json:"price"`
	MatchType   MatchType `json:"matchType"`
	ViaLocation string    `json:"viaLocation,omitempty"`
}

// Recommendations holds the three cards shown to the customer. All fields are nil
// when no driver has compatible pricing; that is a valid empty result, not an error.
type Recommendations struct {
	BestValue   *DriverMatch `json:"bestValue"`
	LowestPrice *DriverMatch `json:"lowestPrice"`
	BestRated   *DriverMatch `json:"bestRated"`
}

type Matcher struct {
	directory DriverDirectory
	pricing   PricingStore
}

func NewMatcher(directory DriverDirectory, pricing PricingStore) *Matcher {
	return &Matcher{directory: directory, pricing: pricing}
}

// Recommend finds drivers with compatible pricing for the route and picks the best
// value, lowest price and best rated among them. Callers must reject empty location
// strings before calling; the matcher assumes non-empty input.
func (m *Matcher) Recommend(ctx context.Context, fromLocation, toLocation string) (Recommendations, error) {
	routeKey := RouteKey(fromLocation, toLocation)
	reverseKey := RouteKey(toLocation, fromLocation)

	drivers, err := m.directory.EligibleDrivers(ctx)
	if err != nil {
		return Recommendations{}, fmt.Errorf("list eligible drivers: %w", err)
	}

	candidates := make([]DriverMatch, 0, len(drivers))
	for _, d := range drivers {
		quotes, err := m.pricing.DriverPricing(ctx, d.ID)
		if err != nil {
			return Recommendations{}, fmt.Errorf("pricing for driver %d: %w", d.ID, err)
		}
		if len(quotes) == 0 {
			continue
		}
		if match, ok := resolveCandidate(d, quotes, routeKey, reverseKey, fromLocation, toLocation); ok {
			candidates = append(candidates, match)
		}
	}

	if len(candidates) == 0 {
		return Recommendations{}, nil
	}

	return Recommendations{
		BestValue:   pickBestValue(candidates),
		LowestPrice: pickLowestPrice(candidates),
		BestRated:   pickBestRated(candidates),
	}, nil
}

// resolveCandidate turns a driver's quote set into at most one DriverMatch. Direction
// does not affect price in this domain, so both key directions count as exact.
func resolveCandidate(d DriverProfile, quotes map[string]RouteQuote, routeKey, reverseKey, fromLocation, toLocation string) (DriverMatch, bool) {
	if q, ok := quotes[routeKey]; ok {
		return DriverMatch{DriverProfile: d, Price: q.Price, MatchType: MatchExact}, true
	}
	if q, ok := quotes[reverseKey]; ok {
		return DriverMatch{DriverProfile: d, Price: q.Price, MatchType: MatchExact}, true
	}

	// Nearby: a priced route sharing an endpoint with the request, by textual
	// containment on normalized names. Cheapest wins; key order breaks price ties so
	// map iteration cannot make results flap between searches.
	from := NormalizeLocation(fromLocation)
	to := NormalizeLocation(toLocation)
	var best DriverMatch
	var bestKey string
	found := false
	for key, q := range quotes {
		via, ok := nearbyVia(q, from, to)
		if !ok {
			continue
		}
		if !found || q.Price < best.Price || (q.Price == best.Price && key < bestKey) {
			best = DriverMatch{DriverProfile: d, Price: q.Price, MatchType: MatchNearby, ViaLocation: via}
			bestKey = key
			found = true
		}
	}
	return best, found
}

// nearbyVia reports whether the quote's route shares an endpoint with the requested
// route and returns the quote's other endpoint as the via location.
func nearbyVia(q RouteQuote, from, to string) (string, bool) {
	qFrom := NormalizeLocation(q.FromLocation)
	qTo := NormalizeLocation(q.ToLocation)

	switch {
	case locationsRelated(qFrom, from), locationsRelated(qFrom, to):
		return q.ToLocation, true
	case locationsRelated(qTo, to), locationsRelated(qTo, from):
		return q.FromLocation, true
	}
	return "", false
}

// locationsRelated is the textual stand-in for geographic proximity: equality or
// substring containment of normalized names ("nairobi" ~ "nairobi cbd").
func locationsRelated(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func pickLowestPrice(candidates []DriverMatch) *DriverMatch {
	best := 0
	for i := 1; i < len(candidates); i++ {
		c, b := candidates[i], candidates[best]
		switch {
		case c.Price < b.Price:
			best = i
		case c.Price == b.Price && c.Rating > b.Rating:
			best = i
		case c.Price == b.Price && c.Rating == b.Rating && c.TotalRides > b.TotalRides:
			best = i
		}
	}
	return &candidates[best]
}

func pickBestRated(candidates []DriverMatch) *DriverMatch {
	best := 0
	for i := 1; i < len(candidates); i++ {
		c, b := candidates[i], candidates[best]
		if c.Rating > b.Rating || (c.Rating == b.Rating && c.Price < b.Price) {
			best = i
		}
	}
	return &candidates[best]
}

// pickBestValue maximizes rating / (price / maxPrice). With a single candidate or
// uniform prices the ratio degenerates into plain rating, so it collapses to the
// best-rated pick.
func pickBestValue(candidates []DriverMatch) *DriverMatch {
	maxPrice := candidates[0].Price
	uniform := true
	for _, c := range candidates[1:] {
		if c.Price != candidates[0].Price {
			uniform = false
		}
		if c.Price > maxPrice {
			maxPrice = c.Price
		}
	}
	if len(candidates) == 1 || uniform || maxPrice == 0 {
		return pickBestRated(candidates)
	}

	best := 0
	bestScore := valueScore(candidates[0], maxPrice)
	for i := 1; i < len(candidates); i++ {
		score := valueScore(candidates[i], maxPrice)
		c, b := candidates[i], candidates[best]
		switch {
		case score > bestScore:
			best, bestScore = i, score
		case score == bestScore && c.Rating > b.Rating:
			best = i
		case score == bestScore && c.Rating == b.Rating && c.Price < b.Price:
			best = i
		}
	}
	return &candidates[best]
}

func valueScore(c DriverMatch, maxPrice float64) float64 {
	normalized := c.Price / maxPrice
	if normalized == 0 {
		return c.Rating
	}
	return c.Rating / normalized
}
