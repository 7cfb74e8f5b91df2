package domain

import "strings"

// Side represents the direction of a proposed or executed trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// String returns the string representation of Side.
func (s Side) String() string {
	return string(s)
}

// IsValid checks if the side is a valid value.
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// Sign returns +1 for BUY, -1 for SELL and 0 for anything else.
func (s Side) Sign() float64 {
	switch s {
	case SideBuy:
		return 1
	case SideSell:
		return -1
	default:
		return 0
	}
}

// ParseSide accepts BUY/SELL in any case as well as the numeric 1/-1 form.
func ParseSide(raw string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BUY", "B", "1", "+1":
		return SideBuy, nil
	case "SELL", "S", "-1":
		return SideSell, nil
	default:
		return "", ErrInvalidSide
	}
}
