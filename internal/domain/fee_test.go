package domain

import (
	"testing"
	"time"
)

func percentageConfig(rate float64, payer FeePayer) FeeConfiguration {
	return FeeConfiguration{
		FeeType:      FeeTypePercentage,
		BookingFee:   rate,
		QRFee:        rate,
		Payer:        payer,
		BillingCycle: BillingRealtime,
		AppliesTo:    []TransactionClass{ClassBookings, ClassQRPayments},
		Active:       true,
	}
}

func TestComputeFee_PercentageGuestPays(t *testing.T) {
	cfg := percentageConfig(5, PayerGuest)
	now := time.Now()

	quote := ComputeFee(cfg, ClassBookings, 1000, now)
	if !quote.Applied {
		t.Fatal("expected fee to apply")
	}
	if quote.FeeAmount != 50 {
		t.Fatalf("expected fee 50, got %d", quote.FeeAmount)
	}
	if quote.TotalAmount != 1050 {
		t.Fatalf("expected guest total 1050, got %d", quote.TotalAmount)
	}
}

func TestComputeFee_PercentagePropertyAbsorbs(t *testing.T) {
	cfg := percentageConfig(5, PayerProperty)

	quote := ComputeFee(cfg, ClassBookings, 1000, time.Now())
	if quote.FeeAmount != 50 {
		t.Fatalf("expected fee 50, got %d", quote.FeeAmount)
	}
	if quote.TotalAmount != 1000 {
		t.Fatalf("expected guest total unchanged at 1000, got %d", quote.TotalAmount)
	}
}

func TestComputeFee_ScalesLinearly(t *testing.T) {
	cfg := percentageConfig(2.5, PayerGuest)
	now := time.Now()

	small := ComputeFee(cfg, ClassQRPayments, 10000, now)
	large := ComputeFee(cfg, ClassQRPayments, 30000, now)
	if large.FeeAmount != 3*small.FeeAmount {
		t.Fatalf("expected linear scaling, got %d and %d", small.FeeAmount, large.FeeAmount)
	}
}

func TestComputeFee_DoublingDoublesExactFees(t *testing.T) {
	now := time.Now()

	// Whenever the exact fee is a whole minor unit, doubling the base must
	// double the fee. Bases are chosen so rate*base/100 has no remainder.
	cases := []struct {
		rate  float64
		bases []int64
	}{
		{5, []int64{20, 140, 2020, 99980}},
		{2.5, []int64{40, 360, 10000}},
		{10, []int64{10, 990, 123450}},
	}

	for _, tc := range cases {
		cfg := percentageConfig(tc.rate, PayerGuest)
		for _, base := range tc.bases {
			single := ComputeFee(cfg, ClassBookings, base, now)
			double := ComputeFee(cfg, ClassBookings, 2*base, now)
			if double.FeeAmount != 2*single.FeeAmount {
				t.Fatalf("rate %v base %d: fee(2x)=%d, want 2*fee(x)=%d",
					tc.rate, base, double.FeeAmount, 2*single.FeeAmount)
			}
		}
	}
}

func TestComputeFee_SubUnitRemainderRoundsHalfUp(t *testing.T) {
	now := time.Now()

	cases := []struct {
		rate float64
		base int64
		want int64
	}{
		{5, 10, 1},      // exact fee 0.5, half rounds up
		{5, 1050, 53},   // exact fee 52.5
		{2.5, 30, 1},    // exact fee 0.75
		{2.4, 10, 0},    // exact fee 0.24 rounds down
		{2.5, 1000, 25}, // exact, no rounding
	}

	for _, tc := range cases {
		cfg := percentageConfig(tc.rate, PayerGuest)
		quote := ComputeFee(cfg, ClassQRPayments, tc.base, now)
		if quote.FeeAmount != tc.want {
			t.Fatalf("rate %v base %d: fee %d, want %d", tc.rate, tc.base, quote.FeeAmount, tc.want)
		}
	}
}

func TestComputeFee_FlatIgnoresBase(t *testing.T) {
	cfg := FeeConfiguration{
		FeeType:   FeeTypeFlat,
		QRFee:     200,
		Payer:     PayerGuest,
		AppliesTo: []TransactionClass{ClassQRPayments},
	}
	now := time.Now()

	for _, base := range []int64{100, 5000, 1000000} {
		quote := ComputeFee(cfg, ClassQRPayments, base, now)
		if quote.FeeAmount != 200 {
			t.Fatalf("expected flat fee 200 for base %d, got %d", base, quote.FeeAmount)
		}
	}
}

func TestComputeFee_NotApplied(t *testing.T) {
	now := time.Now()
	trialEnd := now.Add(24 * time.Hour)

	cases := []struct {
		name  string
		cfg   FeeConfiguration
		class TransactionClass
		base  int64
	}{
		{
			name:  "zero base amount",
			cfg:   percentageConfig(5, PayerGuest),
			class: ClassBookings,
			base:  0,
		},
		{
			name: "class not covered",
			cfg: FeeConfiguration{
				FeeType:   FeeTypePercentage,
				QRFee:     5,
				AppliesTo: []TransactionClass{ClassQRPayments},
			},
			class: ClassBookings,
			base:  1000,
		},
		{
			name: "inside trial window",
			cfg: FeeConfiguration{
				FeeType:               FeeTypePercentage,
				BookingFee:            5,
				AppliesTo:             []TransactionClass{ClassBookings},
				TrialExemptionEnabled: true,
				TrialEndDate:          &trialEnd,
			},
			class: ClassBookings,
			base:  1000,
		},
		{
			name:  "zero rate",
			cfg:   percentageConfig(0, PayerGuest),
			class: ClassBookings,
			base:  1000,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			quote := ComputeFee(tc.cfg, tc.class, tc.base, now)
			if quote.Applied {
				t.Fatal("expected fee not to apply")
			}
			if quote.FeeAmount != 0 {
				t.Fatalf("expected zero fee, got %d", quote.FeeAmount)
			}
			if quote.TotalAmount != tc.base {
				t.Fatalf("expected total to equal base %d, got %d", tc.base, quote.TotalAmount)
			}
		})
	}
}

func TestComputeFee_TrialEndedChargesAgain(t *testing.T) {
	now := time.Now()
	trialEnd := now.Add(-time.Hour)
	cfg := percentageConfig(5, PayerGuest)
	cfg.TrialExemptionEnabled = true
	cfg.TrialEndDate = &trialEnd

	quote := ComputeFee(cfg, ClassBookings, 1000, now)
	if !quote.Applied {
		t.Fatal("expected fee to apply after trial end")
	}
}

func TestTrialEnd_FallsBackToTrialDays(t *testing.T) {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cfg := FeeConfiguration{
		TrialExemptionEnabled: true,
		TrialDays:             14,
		TenantCreatedAt:       created,
	}

	want := created.AddDate(0, 0, 14)
	if got := cfg.TrialEnd(); !got.Equal(want) {
		t.Fatalf("expected trial end %v, got %v", want, got)
	}
	if !cfg.InTrial(created.AddDate(0, 0, 7)) {
		t.Fatal("expected tenant to be in trial on day 7")
	}
	if cfg.InTrial(created.AddDate(0, 0, 15)) {
		t.Fatal("expected trial to be over on day 15")
	}
}
