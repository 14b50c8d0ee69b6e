package translator

import (
	"math"
	"testing"

	"tv-bridge/internal/exchange"
)

func filtersForTest(lotStep, minQty, tick float64) exchange.InstrumentFilters {
	return exchange.InstrumentFilters{
		Symbol:      "BTCUSDT",
		LotStep:     lotStep,
		MinQuantity: minQty,
		PriceTick:   tick,
	}
}

func TestComputeQuantity_PercentMode(t *testing.T) {
	// balance=1000, percent=50, leverage=10, price=100:
	// notional=5000, rawQty=50，已对齐步长。
	qty, err := ComputeQuantity(SizingInput{
		Mode:             SizingModePercent,
		PercentOfBalance: 50,
		Balance:          1000,
		LastPrice:        100,
		Leverage:         10,
		Filters:          filtersForTest(0.001, 0.001, 0.01),
	})
	if err != nil {
		t.Fatalf("ComputeQuantity returned error: %v", err)
	}
	if qty != 50.0 {
		t.Errorf("expected quantity 50.0, got %v", qty)
	}
}

func TestComputeQuantity_FloorsToLotStep(t *testing.T) {
	cases := []struct {
		name    string
		raw     float64
		lotStep float64
		want    float64
	}{
		{"already aligned", 1.5, 0.5, 1.5},
		{"rounds down", 1.7, 0.5, 1.5},
		{"sub step", 0.0009, 0.001, 0},
		{"binary float drift", 0.3, 0.1, 0.3},
		{"coarse step", 7.9, 1, 7},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			qty, err := ComputeQuantity(SizingInput{
				Mode:     SizingModeQuantity,
				Quantity: tc.raw,
				Filters:  filtersForTest(tc.lotStep, 0, 0.01),
			})
			if err != nil {
				t.Fatalf("ComputeQuantity returned error: %v", err)
			}
			if qty != tc.want {
				t.Errorf("got %v want %v", qty, tc.want)
			}
			if qty > tc.raw {
				t.Errorf("rounded quantity %v exceeds raw %v", qty, tc.raw)
			}
			if tc.want > 0 {
				steps := qty / tc.lotStep
				if math.Abs(steps-math.Round(steps)) > 1e-9 {
					t.Errorf("quantity %v is not a multiple of lot step %v", qty, tc.lotStep)
				}
			}
		})
	}
}

func TestComputeQuantity_BelowMinimumReturnsZero(t *testing.T) {
	qty, err := ComputeQuantity(SizingInput{
		Mode:             SizingModePercent,
		PercentOfBalance: 1,
		Balance:          10,
		LastPrice:        50000,
		Leverage:         1,
		Filters:          filtersForTest(0.001, 0.001, 0.5),
	})
	if err != nil {
		t.Fatalf("ComputeQuantity returned error: %v", err)
	}
	if qty != 0 {
		t.Errorf("expected zero quantity below minimum, got %v", qty)
	}
}

func TestComputeQuantity_InvalidInputs(t *testing.T) {
	if _, err := ComputeQuantity(SizingInput{
		Mode:     SizingModeQuantity,
		Quantity: 1,
		Filters:  filtersForTest(0, 0, 0.01),
	}); err == nil {
		t.Error("expected error for non-positive lot step")
	}

	if _, err := ComputeQuantity(SizingInput{
		Mode:             SizingModePercent,
		PercentOfBalance: 50,
		Balance:          1000,
		LastPrice:        0,
		Leverage:         10,
		Filters:          filtersForTest(0.001, 0.001, 0.01),
	}); err == nil {
		t.Error("expected error for non-positive last price")
	}
}

func TestComputeStopLoss_Direction(t *testing.T) {
	ref := 100.0
	tick := 0.01

	buyStop := ComputeStopLoss(SideBuy, ref, 2, tick)
	if buyStop >= ref {
		t.Errorf("buy stop %v must be strictly below reference %v", buyStop, ref)
	}
	if buyStop != 98.0 {
		t.Errorf("expected buy stop 98.0, got %v", buyStop)
	}

	sellStop := ComputeStopLoss(SideSell, ref, 2, tick)
	if sellStop <= ref {
		t.Errorf("sell stop %v must be strictly above reference %v", sellStop, ref)
	}
	if sellStop != 102.0 {
		t.Errorf("expected sell stop 102.0, got %v", sellStop)
	}
}

func TestComputeStopLoss_TickRounding(t *testing.T) {
	// 100 * (1 - 0.33/100) = 99.67，tick=0.5 时向下取整到 99.5。
	stop := ComputeStopLoss(SideBuy, 100, 0.33, 0.5)
	if stop != 99.5 {
		t.Errorf("expected stop floored to 99.5, got %v", stop)
	}
}

func TestComputeStopLoss_ZeroPercentDisables(t *testing.T) {
	if stop := ComputeStopLoss(SideBuy, 100, 0, 0.01); stop != 0 {
		t.Errorf("expected zero stop for zero percent, got %v", stop)
	}
}
