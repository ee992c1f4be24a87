package master

import (
	"net"
	"strconv"
	"strings"
)

// ServerInfo is one joinable server instance as reported by the directory.
type ServerInfo struct {
	ID           string `json:"id"`
	Game         string `json:"game"`
	IP           string `json:"ip"`
	Port         int    `json:"port"`
	Hostname     string `json:"hostname"`
	ClientNum    int    `json:"clientnum"`
	MaxClientNum int    `json:"maxclientnum"`
}

// Addr returns the server's joinable "ip:port" address.
func (s ServerInfo) Addr() string {
	return net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
}

// Host is one directory entry: a hoster's reported address, its web front,
// and the server instances it runs.
type Host struct {
	IPAddress   string       `json:"ip_address"`
	WebfrontURL string       `json:"webfront_url"`
	Servers     []ServerInfo `json:"servers"`
}

// Identity returns the stable key used to cache region data per hoster.
// The reported address is preferred; the web-front URL is the fallback for
// hosters that do not publish one.
func (h Host) Identity() string {
	if id := strings.TrimSpace(h.IPAddress); id != "" {
		return id
	}
	return strings.TrimSpace(h.WebfrontURL)
}
