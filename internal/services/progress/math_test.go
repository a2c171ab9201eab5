package progress

import "testing"

func TestRound2HalfEven(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{50.005, 50.0},
		{50.015, 50.02},
		{50.025, 50.02},
		{33.333333, 33.33},
		{66.666666, 66.67},
		{100.0, 100.0},
	}
	for _, c := range cases {
		if got := Round2(c.in); got != c.want {
			t.Errorf("Round2(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestMonotonic(t *testing.T) {
	cases := []struct {
		old, proposed, want float64
	}{
		{0, 50, 50},
		{50, 40, 50},
		{50, 50, 50},
		{50, 120, 100},
		{100, 99, 100},
		{0, -5, 0},
	}
	for _, c := range cases {
		if got := Monotonic(c.old, c.proposed); got != c.want {
			t.Errorf("Monotonic(%v, %v) = %v, want %v", c.old, c.proposed, got, c.want)
		}
	}
}

func TestAverage(t *testing.T) {
	if got := Average(150, 3); got != 50.0 {
		t.Errorf("Average(150, 3) = %v, want 50", got)
	}
	if got := Average(100, 0); got != 0 {
		t.Errorf("Average over zero slots should be 0, got %v", got)
	}
	if got := Average(200, 3); got != 66.67 {
		t.Errorf("Average(200, 3) = %v, want 66.67", got)
	}
}
