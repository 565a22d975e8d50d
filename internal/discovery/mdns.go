package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type advertised by acquisition servers
	ServiceType = "_lldata._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	// DefaultScanTimeout bounds a scan when the caller's context has no deadline
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is used when an entry advertises port 0
	DefaultPort = 10006
)

// ErrNotFound is returned by FindServer when no matching instance answered
var ErrNotFound = errors.New("server not found")

// Scanner browses the local network for acquisition servers
type Scanner struct {
	Timeout time.Duration

	// browse is replaced in tests
	browse func(ctx context.Context, entries chan<- *zeroconf.ServiceEntry) error
}

// NewScanner creates a scanner with the default timeout
func NewScanner() *Scanner {
	return &Scanner{Timeout: DefaultScanTimeout}
}

func (s *Scanner) browseEntries(ctx context.Context, entries chan<- *zeroconf.ServiceEntry) error {
	if s.browse != nil {
		return s.browse(ctx, entries)
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}
	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

// Scan collects every server that answers before the timeout expires.
// Results are sorted by instance name and deduplicated.
func (s *Scanner) Scan(ctx context.Context) ([]*Server, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(map[string]*Server)
	var mu sync.Mutex
	collected := make(chan struct{})

	go func() {
		defer close(collected)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if srv := parseServiceEntry(entry); srv != nil {
					mu.Lock()
					found[srv.Instance] = srv
					mu.Unlock()
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := s.browseEntries(ctx, entries); err != nil {
		return nil, err
	}

	<-ctx.Done()
	<-collected

	mu.Lock()
	defer mu.Unlock()

	servers := make([]*Server, 0, len(found))
	for _, srv := range found {
		servers = append(servers, srv)
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Instance < servers[j].Instance })
	return servers, nil
}

// FindServer waits for the named instance and returns as soon as it answers
func (s *Scanner) FindServer(ctx context.Context, instance string) (*Server, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	result := make(chan *Server, 1)

	go func() {
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				srv := parseServiceEntry(entry)
				if srv != nil && strings.EqualFold(srv.Instance, instance) {
					result <- srv
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := s.browseEntries(ctx, entries); err != nil {
		return nil, err
	}

	select {
	case srv := <-result:
		return srv, nil
	case <-ctx.Done():
		// The finder may have won the race with the timeout
		select {
		case srv := <-result:
			return srv, nil
		default:
		}
		return nil, fmt.Errorf("%w: %q within %s", ErrNotFound, instance, s.Timeout)
	}
}

// parseServiceEntry converts a zeroconf entry, or returns nil when it
// carries no usable address
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Server {
	if entry == nil || entry.Instance == "" {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string, len(entry.Text))
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		if key != "" {
			metadata[key] = value
		}
	}

	return &Server{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
