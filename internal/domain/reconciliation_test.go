package domain

import "testing"

func TestMatchOutcome(t *testing.T) {
	cases := []struct {
		name     string
		external int64
		internal int64
		want     ReconciliationStatus
	}{
		{"exact match", 105000, 105000, ReconMatched},
		{"within tolerance", 105000, 105001, ReconMatched},
		{"internal short", 105000, 100000, ReconPartial},
		{"internal above", 105000, 110000, ReconOverpaid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MatchOutcome(tc.external, tc.internal); got != tc.want {
				t.Fatalf("MatchOutcome(%d, %d) = %s, want %s", tc.external, tc.internal, got, tc.want)
			}
		})
	}
}

func TestComputeMatchRate(t *testing.T) {
	if got := ComputeMatchRate(0, 0); got != 0 {
		t.Fatalf("expected 0%% with no records, got %f", got)
	}
	if got := ComputeMatchRate(3, 4); got != 75 {
		t.Fatalf("expected 75%%, got %f", got)
	}
	if got := ComputeMatchRate(4, 4); got != 100 {
		t.Fatalf("expected 100%%, got %f", got)
	}
}
