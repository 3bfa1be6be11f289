package fee_test

import (
	"errors"
	"testing"

	"HedgeLedger/internal/fee"
)

// ============================================================================
// Test: Fee computation
// ============================================================================

func TestCalculator_DefaultRate(t *testing.T) {
	c := fee.NewCalculator()
	num, den := c.Rate()
	if num != 5 || den != 1000 {
		t.Errorf("default rate: got %d/%d, want 5/1000", num, den)
	}
}

func TestCalculator_FeeOnRoundAmount(t *testing.T) {
	c := fee.NewCalculator()

	got, err := c.Fee(1000)
	if err != nil {
		t.Fatalf("fee(1000): %v", err)
	}
	if got != 5 {
		t.Errorf("fee(1000): got %d, want 5", got)
	}
}

func TestCalculator_FeeAbsorbsTruncation(t *testing.T) {
	// fee = amount - amount*(den-num)/den, so the floor-division
	// remainder lands in the fee, never in the payout.
	c := fee.NewCalculator()

	got, err := c.Fee(1001)
	if err != nil {
		t.Fatalf("fee(1001): %v", err)
	}
	// 1001*995/1000 = 995 (floored), fee = 1001 - 995 = 6
	if got != 6 {
		t.Errorf("fee(1001): got %d, want 6", got)
	}
}

func TestCalculator_AmountBelowDenominator(t *testing.T) {
	c := fee.NewCalculator()

	_, err := c.Fee(999)
	if !errors.Is(err, fee.ErrAmountTooSmall) {
		t.Errorf("fee(999): got %v, want ErrAmountTooSmall", err)
	}
}

func TestCalculator_SetRate(t *testing.T) {
	c := fee.NewCalculator()

	if err := c.SetRate(1, 100); err != nil {
		t.Fatalf("set rate 1/100: %v", err)
	}
	got, err := c.Fee(200)
	if err != nil {
		t.Fatalf("fee(200) at 1/100: %v", err)
	}
	if got != 2 {
		t.Errorf("fee(200) at 1/100: got %d, want 2", got)
	}
}

func TestCalculator_SetRateRejectsInvalid(t *testing.T) {
	c := fee.NewCalculator()

	for _, tc := range []struct{ num, den int64 }{
		{100, 100}, // rate >= 1
		{101, 100},
		{5, 0},  // zero denominator
		{-1, 100},
	} {
		if err := c.SetRate(tc.num, tc.den); !errors.Is(err, fee.ErrInvalidRate) {
			t.Errorf("SetRate(%d, %d): got %v, want ErrInvalidRate", tc.num, tc.den, err)
		}
	}
}

// ============================================================================
// Test: Fee splits
// ============================================================================

func TestSplitProtocolMiner(t *testing.T) {
	protocol, miner := fee.SplitProtocolMiner(100)
	if miner != 15 {
		t.Errorf("miner share of 100: got %d, want 15", miner)
	}
	if protocol != 85 {
		t.Errorf("protocol share of 100: got %d, want 85", protocol)
	}
}

func TestSplitProtocolMiner_RemainderToProtocol(t *testing.T) {
	protocol, miner := fee.SplitProtocolMiner(7)
	// 7*15/100 = 1 floored; protocol takes the rest
	if miner != 1 || protocol != 6 {
		t.Errorf("split of 7: got protocol=%d miner=%d, want 6/1", protocol, miner)
	}
	if protocol+miner != 7 {
		t.Errorf("split must conserve the fee: %d + %d != 7", protocol, miner)
	}
}

func TestSplitHalf(t *testing.T) {
	protocol, miner := fee.SplitHalf(9)
	if miner != 4 || protocol != 5 {
		t.Errorf("half split of 9: got protocol=%d miner=%d, want 5/4", protocol, miner)
	}
}
