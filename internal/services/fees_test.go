package services

import "testing"

func TestFlatPlusPercentageFee(t *testing.T) {
	policy := FlatPlusPercentageFee{FlatMinor: 25, PercentBps: 250}

	cases := []struct {
		amount int64
		want   int64
	}{
		{10000, 275},
		{100, 27},
		{1, 1},
		{40, 26},
	}
	for _, tc := range cases {
		if got := policy.Fees(tc.amount); got != tc.want {
			t.Errorf("Fees(%d) = %d, want %d", tc.amount, got, tc.want)
		}
	}
}

func TestFlatPlusPercentageFeeNeverExceedsAmount(t *testing.T) {
	policy := FlatPlusPercentageFee{FlatMinor: 500, PercentBps: 0}
	if got := policy.Fees(100); got != 100 {
		t.Errorf("expected fee clamped to amount, got %d", got)
	}
}

func TestZeroPolicy(t *testing.T) {
	policy := FlatPlusPercentageFee{}
	if got := policy.Fees(10000); got != 0 {
		t.Errorf("expected zero fee, got %d", got)
	}
}
