package geo

import (
	"fmt"
	"strings"
)

// Region is a coarse geolocation bucket derived from a continent code.
type Region uint8

const (
	// RegionNone means no region filtering was requested.
	RegionNone Region = iota
	RegionNA
	RegionEU
	RegionAPAC
)

// Continent codes the buckets are derived from. APAC is a union; the set is
// injected into the Client at construction rather than read from a global.
const (
	codeNA = "NA"
	codeEU = "EU"
)

func defaultAPACCodes() map[string]struct{} {
	return map[string]struct{}{"AS": {}, "OC": {}, "AF": {}}
}

// ParseRegion interprets a user-supplied region name.
func ParseRegion(value string) (Region, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "":
		return RegionNone, nil
	case "NA":
		return RegionNA, nil
	case "EU":
		return RegionEU, nil
	case "APAC":
		return RegionAPAC, nil
	default:
		return RegionNone, fmt.Errorf("unknown region %q (expected NA, EU, or APAC)", value)
	}
}

func (r Region) String() string {
	switch r {
	case RegionNA:
		return "NA"
	case RegionEU:
		return "EU"
	case RegionAPAC:
		return "APAC"
	default:
		return "any"
	}
}
