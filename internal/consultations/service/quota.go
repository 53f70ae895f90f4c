package service

import (
	"fmt"
	"strings"
)

// QuotaPolicy decides what happens when a client who already used the free
// consultation asks for another free one.
type QuotaPolicy string

const (
	// QuotaAdvisory keeps the request free and only tracks the flag.
	QuotaAdvisory QuotaPolicy = "advisory"
	// QuotaStrict silently turns the request into a paid one.
	QuotaStrict QuotaPolicy = "strict"
)

// ParseQuotaPolicy reads a policy name; empty means advisory.
func ParseQuotaPolicy(raw string) (QuotaPolicy, error) {
	switch QuotaPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", QuotaAdvisory:
		return QuotaAdvisory, nil
	case QuotaStrict:
		return QuotaStrict, nil
	default:
		return "", fmt.Errorf("unknown free quota policy %q", raw)
	}
}
