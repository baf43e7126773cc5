package billing

import "testing"

// TestRublesFromCents verifies rubles from cents behavior.
func TestRublesFromCents(t *testing.T) {
	if got := RublesFromCents(250, 100); got != 250 {
		t.Fatalf("expected 250 rubles, got %d", got)
	}
	if got := RublesFromCents(199, 90); got != 179 {
		t.Fatalf("expected 179 rubles, got %d", got)
	}
	if got := RublesFromCents(1, 100); got != 1 {
		t.Fatalf("expected 1 ruble, got %d", got)
	}
	if got := RublesFromCents(0, 100); got != 0 {
		t.Fatalf("expected 0 rubles for zero cents, got %d", got)
	}
	if got := RublesFromCents(100, 0); got != 0 {
		t.Fatalf("expected 0 rubles for zero rate, got %d", got)
	}
}

// TestCentsFromRublesRoundTrip verifies cents from rubles round trip behavior.
func TestCentsFromRublesRoundTrip(t *testing.T) {
	for _, cents := range []int64{100, 250, 999, 10000} {
		rubles := RublesFromCents(cents, 100)
		back := CentsFromRubles(rubles, 100)
		if back != cents {
			t.Fatalf("round trip lost money: %d -> %d -> %d", cents, rubles, back)
		}
	}
}

// TestStarsFromCents verifies stars from cents behavior.
func TestStarsFromCents(t *testing.T) {
	if got := StarsFromCents(100, 70); got != 70 {
		t.Fatalf("expected 70 stars, got %d", got)
	}
	if got := StarsFromCents(250, 70); got != 175 {
		t.Fatalf("expected 175 stars, got %d", got)
	}
	// 1 cent at 70 stars per dollar rounds to 1, never to zero value lost.
	if got := StarsFromCents(1, 70); got != 1 {
		t.Fatalf("expected 1 star, got %d", got)
	}
	if got := StarsFromCents(-5, 70); got != 0 {
		t.Fatalf("expected 0 stars for negative cents, got %d", got)
	}
}

// TestCentsFromStars verifies cents from stars behavior.
func TestCentsFromStars(t *testing.T) {
	if got := CentsFromStars(70, 70); got != 100 {
		t.Fatalf("expected 100 cents, got %d", got)
	}
	if got := CentsFromStars(0, 70); got != 0 {
		t.Fatalf("expected 0 cents, got %d", got)
	}
}
