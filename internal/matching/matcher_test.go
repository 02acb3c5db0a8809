package matching

import (
	"context"
	"testing"
)

type fakeDirectory struct{ drivers []DriverProfile }

func (f *fakeDirectory) EligibleDrivers(ctx context.Context) ([]DriverProfile, error) {
	return f.drivers, nil
}

type fakePricing struct{ quotes map[uint]map[string]RouteQuote }

func (f *fakePricing) DriverPricing(ctx context.Context, driverID uint) (map[string]RouteQuote, error) {
	return f.quotes[driverID], nil
}

func quote(from, to string, price float64) (string, RouteQuote) {
	return RouteKey(from, to), RouteQuote{FromLocation: from, ToLocation: to, Price: price}
}

func newMatcher(drivers []DriverProfile, quotes map[uint]map[string]RouteQuote) *Matcher {
	return NewMatcher(&fakeDirectory{drivers: drivers}, &fakePricing{quotes: quotes})
}

func TestRecommendEmptyWhenNoDriverHasPricing(t *testing.T) {
	m := newMatcher(
		[]DriverProfile{{ID: 1, Name: "amos", Rating: 4.5}},
		map[uint]map[string]RouteQuote{},
	)
	rec, err := m.Recommend(context.Background(), "Machakos", "Nairobi")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.BestValue != nil || rec.LowestPrice != nil || rec.BestRated != nil {
		t.Fatalf("expected all-nil recommendations, got %+v", rec)
	}
}

func TestRecommendSingleCandidateCollapses(t *testing.T) {
	key, q := quote("Machakos", "Nairobi", 800)
	m := newMatcher(
		[]DriverProfile{{ID: 1, Name: "amos", Rating: 4.2}},
		map[uint]map[string]RouteQuote{1: {key: q}},
	)
	rec, err := m.Recommend(context.Background(), "Machakos", "Nairobi")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	for name, got := range map[string]*DriverMatch{
		"bestValue": rec.BestValue, "lowestPrice": rec.LowestPrice, "bestRated": rec.BestRated,
	} {
		if got == nil || got.ID != 1 {
			t.Fatalf("%s: expected driver 1, got %+v", name, got)
		}
		if got.Price != 800 || got.MatchType != MatchExact {
			t.Fatalf("%s: unexpected match %+v", name, got)
		}
	}
}

func TestRecommendReverseKeyIsExact(t *testing.T) {
	key, q := quote("Nairobi", "Machakos", 700)
	m := newMatcher(
		[]DriverProfile{{ID: 1, Name: "amos", Rating: 4.0}},
		map[uint]map[string]RouteQuote{1: {key: q}},
	)
	rec, err := m.Recommend(context.Background(), "Machakos", "Nairobi")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.LowestPrice == nil || rec.LowestPrice.MatchType != MatchExact {
		t.Fatalf("expected reverse route to count as an exact match, got %+v", rec.LowestPrice)
	}
	if rec.LowestPrice.ViaLocation != "" {
		t.Fatalf("exact match must not carry a via location, got %q", rec.LowestPrice.ViaLocation)
	}
}

func TestRecommendDominantDriverWinsAllThree(t *testing.T) {
	// Driver B is cheaper and better rated; no tradeoff exists, so every card is B.
	keyA, qA := quote("Machakos", "Nairobi", 800)
	keyB, qB := quote("Machakos", "Nairobi", 650)
	m := newMatcher(
		[]DriverProfile{
			{ID: 1, Name: "driver-a", Rating: 4.2},
			{ID: 2, Name: "driver-b", Rating: 4.8},
		},
		map[uint]map[string]RouteQuote{1: {keyA: qA}, 2: {keyB: qB}},
	)
	rec, err := m.Recommend(context.Background(), "Machakos", "Nairobi")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	for name, got := range map[string]*DriverMatch{
		"bestValue": rec.BestValue, "lowestPrice": rec.LowestPrice, "bestRated": rec.BestRated,
	} {
		if got == nil || got.ID != 2 {
			t.Fatalf("%s: expected driver-b, got %+v", name, got)
		}
	}
}

func TestRecommendTradeoffUsesValueFormula(t *testing.T) {
	// A: 800 @ 4.8 → score 4.8 / (800/800) = 4.8
	// B: 650 @ 4.0 → score 4.0 / (650/800) ≈ 4.923 → best value is B.
	keyA, qA := quote("Machakos", "Nairobi", 800)
	keyB, qB := quote("Machakos", "Nairobi", 650)
	m := newMatcher(
		[]DriverProfile{
			{ID: 1, Name: "driver-a", Rating: 4.8},
			{ID: 2, Name: "driver-b", Rating: 4.0},
		},
		map[uint]map[string]RouteQuote{1: {keyA: qA}, 2: {keyB: qB}},
	)
	rec, err := m.Recommend(context.Background(), "Machakos", "Nairobi")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.LowestPrice == nil || rec.LowestPrice.ID != 2 {
		t.Fatalf("lowestPrice: expected driver-b, got %+v", rec.LowestPrice)
	}
	if rec.BestRated == nil || rec.BestRated.ID != 1 {
		t.Fatalf("bestRated: expected driver-a, got %+v", rec.BestRated)
	}
	if rec.BestValue == nil || rec.BestValue.ID != 2 {
		t.Fatalf("bestValue: expected driver-b by score, got %+v", rec.BestValue)
	}
}

func TestRecommendInvariantsOverCandidateSet(t *testing.T) {
	drivers := []DriverProfile{
		{ID: 1, Name: "a", Rating: 4.9, TotalRides: 120},
		{ID: 2, Name: "b", Rating: 3.8, TotalRides: 45},
		{ID: 3, Name: "c", Rating: 4.4, TotalRides: 300},
		{ID: 4, Name: "d", Rating: 4.4, TotalRides: 10},
	}
	prices := map[uint]float64{1: 1200, 2: 500, 3: 750, 4: 750}
	quotes := make(map[uint]map[string]RouteQuote)
	for id, p := range prices {
		k, q := quote("Machakos", "Nairobi", p)
		quotes[id] = map[string]RouteQuote{k: q}
	}
	m := newMatcher(drivers, quotes)
	rec, err := m.Recommend(context.Background(), "Machakos", "Nairobi")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	for _, p := range prices {
		if rec.LowestPrice.Price > p {
			t.Fatalf("lowestPrice %v beaten by %v", rec.LowestPrice.Price, p)
		}
	}
	for _, d := range drivers {
		if rec.BestRated.Rating < d.Rating {
			t.Fatalf("bestRated %v beaten by %v", rec.BestRated.Rating, d.Rating)
		}
	}
	if rec.LowestPrice.ID != 2 {
		t.Fatalf("expected cheapest driver b, got %+v", rec.LowestPrice)
	}
	if rec.BestRated.ID != 1 {
		t.Fatalf("expected best rated driver a, got %+v", rec.BestRated)
	}
}

func TestLowestPriceTieBreaks(t *testing.T) {
	mk := func(id uint, rating float64, rides int, price float64) DriverMatch {
		return DriverMatch{
			DriverProfile: DriverProfile{ID: id, Rating: rating, TotalRides: rides},
			Price:         price,
			MatchType:     MatchExact,
		}
	}
	cases := []struct {
		name       string
		candidates []DriverMatch
		want       uint
	}{
		{"plain minimum", []DriverMatch{mk(1, 4.0, 10, 900), mk(2, 3.0, 5, 600)}, 2},
		{"tie goes to rating", []DriverMatch{mk(1, 4.0, 10, 600), mk(2, 4.6, 5, 600)}, 2},
		{"tie on rating goes to rides", []DriverMatch{mk(1, 4.0, 10, 600), mk(2, 4.0, 80, 600)}, 2},
	}
	for _, tc := range cases {
		got := pickLowestPrice(tc.candidates)
		if got.ID != tc.want {
			t.Errorf("%s: got driver %d, want %d", tc.name, got.ID, tc.want)
		}
	}
}

func TestBestRatedTieBreaksOnPrice(t *testing.T) {
	candidates := []DriverMatch{
		{DriverProfile: DriverProfile{ID: 1, Rating: 4.5}, Price: 900},
		{DriverProfile: DriverProfile{ID: 2, Rating: 4.5}, Price: 700},
	}
	if got := pickBestRated(candidates); got.ID != 2 {
		t.Fatalf("expected cheaper of equally rated drivers, got %d", got.ID)
	}
}

func TestBestValueUniformPricesFallsBackToBestRated(t *testing.T) {
	candidates := []DriverMatch{
		{DriverProfile: DriverProfile{ID: 1, Rating: 4.1}, Price: 500},
		{DriverProfile: DriverProfile{ID: 2, Rating: 4.9}, Price: 500},
		{DriverProfile: DriverProfile{ID: 3, Rating: 3.7}, Price: 500},
	}
	if got := pickBestValue(candidates); got.ID != 2 {
		t.Fatalf("expected best-rated fallback, got driver %d", got.ID)
	}
}

func TestRecommendNearbyMatch(t *testing.T) {
	// Driver prices Machakos→Kitengela. Request Machakos→Nairobi shares the "from"
	// endpoint, so the driver surfaces as a nearby match via Kitengela.
	key, q := quote("Machakos", "Kitengela", 550)
	m := newMatcher(
		[]DriverProfile{{ID: 1, Name: "amos", Rating: 4.3}},
		map[uint]map[string]RouteQuote{1: {key: q}},
	)
	rec, err := m.Recommend(context.Background(), "Machakos", "Nairobi")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	got := rec.LowestPrice
	if got == nil || got.MatchType != MatchNearby {
		t.Fatalf("expected nearby match, got %+v", got)
	}
	if got.ViaLocation != "Kitengela" {
		t.Fatalf("expected via Kitengela, got %q", got.ViaLocation)
	}
}

func TestRecommendNearbyBySubstringContainment(t *testing.T) {
	key, q := quote("Nairobi CBD", "Machakos", 600)
	m := newMatcher(
		[]DriverProfile{{ID: 1, Name: "amos", Rating: 4.0}},
		map[uint]map[string]RouteQuote{1: {key: q}},
	)
	rec, err := m.Recommend(context.Background(), "Nairobi", "Mombasa")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.LowestPrice == nil || rec.LowestPrice.MatchType != MatchNearby {
		t.Fatalf("expected containment to surface a nearby match, got %+v", rec.LowestPrice)
	}
}

func TestRecommendExactBeatsNearbyForSameDriver(t *testing.T) {
	keyExact, qExact := quote("Machakos", "Nairobi", 900)
	keyNear, qNear := quote("Machakos", "Kitengela", 400)
	m := newMatcher(
		[]DriverProfile{{ID: 1, Name: "amos", Rating: 4.0}},
		map[uint]map[string]RouteQuote{1: {keyExact: qExact, keyNear: qNear}},
	)
	rec, err := m.Recommend(context.Background(), "Machakos", "Nairobi")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.LowestPrice == nil || rec.LowestPrice.MatchType != MatchExact || rec.LowestPrice.Price != 900 {
		t.Fatalf("expected the exact quote even when a nearby one is cheaper, got %+v", rec.LowestPrice)
	}
}

func TestRecommendUnrelatedRoutesProduceNoCandidate(t *testing.T) {
	key, q := quote("Kisumu", "Eldoret", 300)
	m := newMatcher(
		[]DriverProfile{{ID: 1, Name: "amos", Rating: 5.0}},
		map[uint]map[string]RouteQuote{1: {key: q}},
	)
	rec, err := m.Recommend(context.Background(), "Machakos", "Nairobi")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.LowestPrice != nil {
		t.Fatalf("expected no candidate, got %+v", rec.LowestPrice)
	}
}
