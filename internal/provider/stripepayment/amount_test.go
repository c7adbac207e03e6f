package stripepayment

import "testing"

func TestToCents_RoundsToNearestCent(t *testing.T) {
	cases := []struct {
		dollars float64
		cents   int64
	}{
		{1800, 180000},
		{1800.50, 180050},
		{0.01, 1},
		// Classic float trap: 19.99 * 100 is 1998.9999... without rounding.
		{19.99, 1999},
		{5.005, 501},
	}
	for _, c := range cases {
		if got := toCents(c.dollars); got != c.cents {
			t.Errorf("toCents(%v) = %d, want %d", c.dollars, got, c.cents)
		}
	}
}

func TestToDollars_InvertsToCents(t *testing.T) {
	for _, cents := range []int64{0, 1, 99, 180050, 500} {
		if got := toCents(toDollars(cents)); got != cents {
			t.Errorf("round trip of %d cents produced %d", cents, got)
		}
	}
}

func TestTimeFromUnix_IsUTC(t *testing.T) {
	ts := timeFromUnix(1756684800)
	if ts.Location() != ts.UTC().Location() {
		t.Fatal("expected UTC timestamps")
	}
	if ts.Unix() != 1756684800 {
		t.Fatalf("unexpected round trip: %d", ts.Unix())
	}
}
