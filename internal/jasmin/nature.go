package jasmin

import "fmt"

// Nature is the message direction a rule applies to.
type Nature string

const (
	// MT is mobile-terminated (outbound) traffic.
	MT Nature = "MT"
	// MO is mobile-originated (inbound) traffic.
	MO Nature = "MO"
)

// ParseNature accepts "MT" or "MO".
func ParseNature(s string) (Nature, error) {
	switch Nature(s) {
	case MT, MO:
		return Nature(s), nil
	}
	return "", fmt.Errorf("unknown nature %q", s)
}

func (n Nature) String() string { return string(n) }

// Natures is a set of directions, used to scope filters.
type Natures []Nature

// Has reports whether n is in the set.
func (ns Natures) Has(n Nature) bool {
	for _, x := range ns {
		if x == n {
			return true
		}
	}
	return false
}
