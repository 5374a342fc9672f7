package payout

import (
	"fmt"

	"github.com/FolioMarket/server/internal/money"
)

// Split is the division of one gross sale amount between the seller and
// the platform. SellerAmount + PlatformFee always equals the gross
// amount exactly.
type Split struct {
	SellerAmount money.Money
	PlatformFee  money.Money
}

// Calculator computes payout splits. The fee rate is expressed in basis
// points of the gross amount.
type Calculator struct {
	feeBps int64
}

// NewCalculator creates a calculator with the given platform fee rate.
func NewCalculator(feeBps int64) (*Calculator, error) {
	if feeBps < 0 || feeBps >= 10000 {
		return nil, fmt.Errorf("payout: fee must be in [0, 10000) basis points, got %d", feeBps)
	}
	return &Calculator{feeBps: feeBps}, nil
}

// Compute splits a gross amount between seller and platform.
//
// Platform-owned items settle at 100% to the platform account with a
// zero fee. User-listed items are charged the platform fee; the seller
// amount is always gross minus fee so the two sides sum to the gross
// amount exactly for every input.
func (c *Calculator) Compute(gross money.Money, platformOwned bool) (Split, error) {
	if !gross.IsPositive() {
		return Split{}, fmt.Errorf("payout: gross amount must be positive, got %s", gross)
	}

	if platformOwned {
		return Split{
			SellerAmount: gross,
			PlatformFee:  money.Zero(gross.Asset),
		}, nil
	}

	fee, err := gross.MulBasisPoints(c.feeBps)
	if err != nil {
		return Split{}, fmt.Errorf("payout: compute fee: %w", err)
	}
	seller, err := gross.Sub(fee)
	if err != nil {
		return Split{}, fmt.Errorf("payout: compute seller amount: %w", err)
	}
	return Split{SellerAmount: seller, PlatformFee: fee}, nil
}
