package filter

import (
	"strings"

	"scout/internal/geo"
	"scout/internal/master"
)

// DefaultLimit caps the favorites artifact; the in-game browser is known to
// misbehave above this count.
const DefaultLimit = 100

// colorEscape marks a color code in server names: the marker consumes exactly
// one following character, whatever it is.
const colorEscape = '^'

// Criteria is one favorites query. Zero values mean "unset" for the optional
// fields. Include/exclude terms are matched against color-stripped,
// lowercased names.
type Criteria struct {
	GameID      string
	Limit       int
	TeamSizeMax int
	PlayerMin   int
	Includes    []string
	Excludes    []string
	Region      geo.Region
}

// EffectiveLimit returns the configured limit or the default cap.
func (c Criteria) EffectiveLimit() int {
	if c.Limit > 0 {
		return c.Limit
	}
	return DefaultLimit
}

// Normalize lowercases and trims the include/exclude terms so matching can
// compare directly against parsed hostnames.
func (c *Criteria) Normalize() {
	c.Includes = lowercaseTerms(c.Includes)
	c.Excludes = lowercaseTerms(c.Excludes)
}

func lowercaseTerms(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		trimmed := strings.ToLower(strings.TrimSpace(term))
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ParseHostname strips the game's color escapes from a display name and
// lowercases the remainder.
func ParseHostname(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	skip := false
	for _, r := range name {
		if skip {
			skip = false
			continue
		}
		if r == colorEscape {
			skip = true
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// Apply removes every server failing the non-region criteria and drops hosts
// left with no servers. Removal is swap-style and destroys order; only set
// membership matters downstream. The input slice is modified in place.
func Apply(hosts []master.Host, criteria Criteria) []master.Host {
	for i := len(hosts) - 1; i >= 0; i-- {
		servers := hosts[i].Servers
		for j := len(servers) - 1; j >= 0; j-- {
			if !keep(servers[j], criteria) {
				servers[j] = servers[len(servers)-1]
				servers = servers[:len(servers)-1]
			}
		}
		hosts[i].Servers = servers
		if len(servers) == 0 {
			hosts[i] = hosts[len(hosts)-1]
			hosts = hosts[:len(hosts)-1]
		}
	}
	return hosts
}

func keep(server master.ServerInfo, criteria Criteria) bool {
	if criteria.GameID != "" && server.Game != criteria.GameID {
		return false
	}
	// Max population counts both sides.
	if criteria.TeamSizeMax > 0 && server.MaxClientNum > criteria.TeamSizeMax*2 {
		return false
	}
	if criteria.PlayerMin > 0 && server.ClientNum < criteria.PlayerMin {
		return false
	}

	if len(criteria.Includes) == 0 && len(criteria.Excludes) == 0 {
		return true
	}
	name := ParseHostname(server.Hostname)
	if len(criteria.Includes) > 0 && !containsAny(name, criteria.Includes) {
		return false
	}
	if containsAny(name, criteria.Excludes) {
		return false
	}
	return true
}

func containsAny(name string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(name, term) {
			return true
		}
	}
	return false
}

// Flatten collects every remaining server across hosts into one set.
func Flatten(hosts []master.Host) []master.ServerInfo {
	var total int
	for _, host := range hosts {
		total += len(host.Servers)
	}
	out := make([]master.ServerInfo, 0, total)
	for _, host := range hosts {
		out = append(out, host.Servers...)
	}
	return out
}
