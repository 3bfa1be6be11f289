package fee

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrAmountTooSmall guards against zero-fee rounding on tiny amounts:
	// any amount below the rate denominator would floor to a zero fee.
	ErrAmountTooSmall = errors.New("amount too small for fee calculation")

	// ErrInvalidRate rejects nonsensical numerator/denominator pairs.
	ErrInvalidRate = errors.New("invalid fee rate")
)

// Default protocol fee rate: 5/1000 = 0.5%.
const (
	DefaultNumerator   = 5
	DefaultDenominator = 1000
)

// Calculator computes protocol fees under a mutable rate. Rate changes
// apply to subsequent calculations only; there is no retroactive
// recomputation.
type Calculator struct {
	mu          sync.RWMutex
	numerator   int64
	denominator int64
}

func NewCalculator() *Calculator {
	return &Calculator{
		numerator:   DefaultNumerator,
		denominator: DefaultDenominator,
	}
}

// Rate returns the current numerator/denominator pair.
func (c *Calculator) Rate() (numerator, denominator int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.numerator, c.denominator
}

// SetRate replaces the fee rate. The engine restricts this to the
// operator role; the calculator only validates the pair itself.
func (c *Calculator) SetRate(numerator, denominator int64) error {
	if numerator <= 0 || denominator <= 0 || numerator >= denominator {
		return fmt.Errorf("%w: %d/%d", ErrInvalidRate, numerator, denominator)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.numerator = numerator
	c.denominator = denominator
	return nil
}

// Fee computes the protocol fee on amount under truncated-integer
// arithmetic: fee = amount - floor(amount * (D - N) / D).
func (c *Calculator) Fee(amount int64) (int64, error) {
	c.mu.RLock()
	n, d := c.numerator, c.denominator
	c.mu.RUnlock()

	if amount < d {
		return 0, fmt.Errorf("%w: amount=%d, denominator=%d", ErrAmountTooSmall, amount, d)
	}

	return amount - amount*(d-n)/d, nil
}

// SplitProtocolMiner divides a settlement fee 85/15 between the protocol
// and the settling miner. Integer rounding goes toward the protocol.
func SplitProtocolMiner(fee int64) (protocol, miner int64) {
	miner = fee * 15 / 100
	return fee - miner, miner
}

// SplitHalf divides an expiry-deletion fee 50/50 between the protocol
// and the deleting miner, rounding toward the protocol on odd amounts.
func SplitHalf(fee int64) (protocol, miner int64) {
	miner = fee / 2
	return fee - miner, miner
}
