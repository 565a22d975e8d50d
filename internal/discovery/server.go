package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Server is an acquisition server found on the local network
type Server struct {
	// Instance is the advertised service instance name (e.g., "bench-daq")
	Instance string

	// Hostname is the mDNS hostname (e.g., "bench-daq.local.")
	Hostname string

	// IP is the server address, IPv4 when one was advertised
	IP string

	// Port is the stream port (10006 unless advertised otherwise)
	Port int

	// Metadata holds the TXT record key/value pairs
	Metadata map[string]string

	DiscoveredAt time.Time
}

func (s *Server) String() string {
	return fmt.Sprintf("%s (%s) at %s", s.Instance, s.Hostname, s.Addr())
}

// Addr returns the host:port to dial
func (s *Server) Addr() string {
	return net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
}

// GetMetadata retrieves a TXT value by key, or "" when absent
func (s *Server) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}
