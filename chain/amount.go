// chain/amount.go
package chain

import (
	"fmt"
	"math/big"
	"strings"

	"bounty-publish-system/models"
)

// AssetDecimals is the settlement asset's fractional digits (USDC: 6).
const AssetDecimals = 6

var unitScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(AssetDecimals), nil)

// ParseUnits converts a decimal amount string ("10", "0.5") to minor units as
// an exact big.Int. No float arithmetic: the string is split on the decimal
// point and scaled digit-wise. Fractional digits beyond the asset's precision
// round half-up.
func ParseUnits(amount string) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("negative amount: %s", amount)
	}
	s = strings.TrimPrefix(s, "+")

	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
		if strings.IndexByte(fracPart, '.') >= 0 {
			return nil, fmt.Errorf("malformed amount: %s", amount)
		}
	}
	if intPart == "" {
		intPart = "0"
	}
	if !isDigits(intPart) || (fracPart != "" && !isDigits(fracPart)) {
		return nil, fmt.Errorf("malformed amount: %s", amount)
	}

	units, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount: %s", amount)
	}
	units.Mul(units, unitScale)

	if fracPart != "" {
		roundUp := false
		if len(fracPart) > AssetDecimals {
			roundUp = fracPart[AssetDecimals] >= '5'
			fracPart = fracPart[:AssetDecimals]
		}
		for len(fracPart) < AssetDecimals {
			fracPart += "0"
		}
		frac, ok := new(big.Int).SetString(fracPart, 10)
		if !ok {
			return nil, fmt.Errorf("malformed amount: %s", amount)
		}
		units.Add(units, frac)
		if roundUp {
			units.Add(units, big.NewInt(1))
		}
	}

	return units, nil
}

// FormatUnits renders minor units as a decimal display string with trailing
// zeros trimmed ("15000001" -> "15.000001", "1000000" -> "1").
func FormatUnits(units *big.Int) string {
	q, r := new(big.Int).QuoRem(units, unitScale, new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	frac := fmt.Sprintf("%0*s", AssetDecimals, r.String())
	frac = strings.TrimRight(frac, "0")
	return q.String() + "." + frac
}

// RequiredAmount computes the exact total owed for a creation request:
// creation fee plus the sum of all parseable prize tiers, in minor units.
// Tiers that fail to parse are dropped from both the charged total and the
// returned sanitized list, so re-deriving the total from the persisted tiers
// always reproduces the charged amount.
func RequiredAmount(fee *big.Int, tiers []models.PrizeTier) (*big.Int, []models.PrizeTier) {
	total := new(big.Int).Set(fee)
	sanitized := make([]models.PrizeTier, 0, len(tiers))
	for _, t := range tiers {
		units, err := ParseUnits(t.Amount)
		if err != nil || t.Rank <= 0 {
			continue
		}
		total.Add(total, units)
		sanitized = append(sanitized, t)
	}
	return total, sanitized
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
