// Package demat handles validation and parsing of Indian demat (dematerialized
// securities) account numbers.
//
// Two depositories issue account numbers:
//   - NSDL: "IN" followed by 14 digits — a 6-digit DP (depository
//     participant) id and an 8-digit client id. Example: IN30012610254879.
//   - CDSL: 16 digits — an 8-digit DP id and an 8-digit client id.
//     Example: 1205350000123456.
//
// Separators (spaces, hyphens) between the DP and client portions are
// tolerated and stripped before matching.
package demat

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Depository identifiers.
const (
	DepositoryNSDL = "NSDL"
	DepositoryCDSL = "CDSL"
)

var (
	nsdlRegex = regexp.MustCompile(`^IN(\d{6})(\d{8})$`)
	cdslRegex = regexp.MustCompile(`^(\d{8})(\d{8})$`)
)

// ErrInvalidAccountNumber is returned when an account number matches
// neither the NSDL nor the CDSL format.
var ErrInvalidAccountNumber = errors.New("demat: invalid account number")

// Account is a parsed demat account number.
type Account struct {
	Number     string `json:"number"` // normalized, separator-free form
	Depository string `json:"depository"`
	DPID       string `json:"dp_id"`
	ClientID   string `json:"client_id"`
}

// ParseAccountNumber validates and parses a demat account number.
// The input is upper-cased and stripped of spaces and hyphens first.
func ParseAccountNumber(raw string) (*Account, error) {
	normalized := strings.ToUpper(raw)
	normalized = strings.ReplaceAll(normalized, " ", "")
	normalized = strings.ReplaceAll(normalized, "-", "")

	if m := nsdlRegex.FindStringSubmatch(normalized); m != nil {
		return &Account{
			Number:     normalized,
			Depository: DepositoryNSDL,
			DPID:       "IN" + m[1],
			ClientID:   m[2],
		}, nil
	}
	if m := cdslRegex.FindStringSubmatch(normalized); m != nil {
		return &Account{
			Number:     normalized,
			Depository: DepositoryCDSL,
			DPID:       m[1],
			ClientID:   m[2],
		}, nil
	}
	return nil, fmt.Errorf("%w: %q (expected NSDL IN + 14 digits or CDSL 16 digits)",
		ErrInvalidAccountNumber, raw)
}
