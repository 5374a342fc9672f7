package money

import (
	"fmt"
	"strings"
)

// Asset describes a currency and the number of decimal places in its
// atomic unit (e.g. cents for USD, kobo for NGN).
type Asset struct {
	Code     string
	Decimals uint8
}

// fiatAssets is the registry of currencies the marketplace settles in.
// The gateway reports amounts in major units; every store and calculation
// below works in atomic units of one of these assets.
var fiatAssets = map[string]Asset{
	"NGN": {Code: "NGN", Decimals: 2},
	"USD": {Code: "USD", Decimals: 2},
	"EUR": {Code: "EUR", Decimals: 2},
	"GBP": {Code: "GBP", Decimals: 2},
	"KES": {Code: "KES", Decimals: 2},
	"GHS": {Code: "GHS", Decimals: 2},
}

// GetAsset looks up an asset by currency code (case-insensitive).
func GetAsset(code string) (Asset, error) {
	asset, ok := fiatAssets[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Asset{}, fmt.Errorf("money: unknown asset %q", code)
	}
	return asset, nil
}

// MustGetAsset is GetAsset for static currency codes; panics on unknown codes.
func MustGetAsset(code string) Asset {
	asset, err := GetAsset(code)
	if err != nil {
		panic(err)
	}
	return asset
}

// SupportedAssets returns the registered currency codes.
func SupportedAssets() []string {
	codes := make([]string, 0, len(fiatAssets))
	for code := range fiatAssets {
		codes = append(codes, code)
	}
	return codes
}
