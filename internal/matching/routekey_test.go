package matching

import (
	"testing"
)

func TestNormalizeLocation(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Nairobi", "nairobi"},
		{"  Machakos  ", "machakos"},
		{"NAIROBI   CBD", "nairobi cbd"},
		{"\tThika\nRoad ", "thika road"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := NormalizeLocation(tc.in); got != tc.want {
			t.Errorf("NormalizeLocation(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRouteKeyIsOrderSensitive(t *testing.T) {
	forward := RouteKey("Machakos", "Nairobi")
	reverse := RouteKey("Nairobi", "Machakos")
	if forward == reverse {
		t.Fatalf("expected direction-sensitive keys, both were %q", forward)
	}
	if forward != "machakos|nairobi" {
		t.Fatalf("unexpected key %q", forward)
	}
}

func TestRouteKeyNormalizesCaseAndWhitespace(t *testing.T) {
	if RouteKey(" MACHAKOS ", "nairobi  cbd") != RouteKey("machakos", "Nairobi CBD") {
		t.Fatal("expected normalization to collapse case and whitespace differences")
	}
}

func TestSplitRouteKey(t *testing.T) {
	from, to, ok := SplitRouteKey(RouteKey("Machakos", "Nairobi"))
	if !ok || from != "machakos" || to != "nairobi" {
		t.Fatalf("SplitRouteKey = (%q, %q, %v)", from, to, ok)
	}
}
