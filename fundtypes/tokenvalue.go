package fundtypes

import "errors"

var ErrUninitializedTokenValue = errors.New("fundtypes: token value denominator is zero")

// TokenValue is the ratio "total value backing N units of a derived token":
// the numerator lists the backing assets and the denominator is the derived
// token supply the numerator backs.
type TokenValue struct {
	Numerator   []Asset
	Denominator uint64
}

// PriceFunc resolves one whole token of the given mint into lamports.
type PriceFunc func(ref PricingSourceRef) (oneTokenAsSOL uint64, decimals uint8, err error)

// OneAsSOL returns the lamport value of exactly one derived token unit,
// truncating. A zero denominator with an empty numerator reads as zero: the
// price resets when the derived token supply fully redeems.
func (v TokenValue) OneAsSOL(price PriceFunc) (uint64, error) {
	total, err := v.TotalAsSOL(price)
	if err != nil {
		return 0, err
	}
	if v.Denominator == 0 {
		if total == 0 {
			return 0, nil
		}
		return 0, ErrUninitializedTokenValue
	}
	return total / v.Denominator, nil
}

// TotalAsSOL sums the numerator assets priced in lamports.
func (v TokenValue) TotalAsSOL(price PriceFunc) (uint64, error) {
	var total uint64
	for _, asset := range v.Numerator {
		var valued uint64
		if asset.IsSOL() {
			valued = asset.Amount
		} else {
			one, decimals, err := price(asset.PricingSource)
			if err != nil {
				return 0, err
			}
			valued, err = asset.AsSOL(one, decimals)
			if err != nil {
				return 0, err
			}
		}
		var err error
		total, err = CheckedAdd(total, valued)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
