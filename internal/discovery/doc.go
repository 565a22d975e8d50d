// Package discovery locates acquisition servers on the local network with
// multicast DNS.
//
// Servers advertise the "_lldata._tcp" service type in the "local." domain.
// Each answer becomes a Server holding the instance name, address, port and
// TXT metadata.
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	scanner.Timeout = 3 * time.Second
//	servers, err := scanner.Scan(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, srv := range servers {
//	    fmt.Println(srv.Instance, srv.Addr())
//	}
//
// # Network Requirements
//
//   - Requires multicast support on the network interface
//   - Servers must be on the same local network segment
//   - Firewall must allow mDNS (UDP port 5353)
package discovery
