// Package netresolve provides the two external lookups the scanner needs
// before it can send a single packet: hostname -> IPv4 resolution, and
// default-gateway interface discovery.
package netresolve

import (
	"fmt"
	"net"

	"github.com/miekg/dns"
)

const resolvConf = "/etc/resolv.conf"

// ToIPv4 returns the literal IPv4 address if target parses as one,
// otherwise performs a forward A-record lookup restricted to the IPv4
// family. It fails on resolution error or when only AAAA/IPv6 records
// exist, since this scanner never dials IPv6.
func ToIPv4(target string) (net.IP, error) {
	if ip := net.ParseIP(target); ip != nil {
		v4 := ip.To4()
		if v4 == nil {
			return nil, fmt.Errorf("netresolve: %s is an IPv6 literal, not implemented for ipv6", target)
		}
		return v4, nil
	}
	return lookupA(target)
}

// lookupA queries the system's configured resolvers for an A record,
// restricted to IPv4 the way getaddrinfo(AF_INET) would be, without
// shelling out: github.com/miekg/dns speaks the wire protocol directly.
func lookupA(hostname string) (net.IP, error) {
	cfg, err := dns.ClientConfigFromFile(resolvConf)
	if err != nil {
		return nil, fmt.Errorf("netresolve: reading %s: %w", resolvConf, err)
	}
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("netresolve: no resolvers configured in %s", resolvConf)
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(hostname), dns.TypeA)
	msg.RecursionDesired = true

	client := new(dns.Client)

	var lastErr error
	for _, server := range cfg.Servers {
		addr := net.JoinHostPort(server, cfg.Port)
		resp, _, err := client.Exchange(msg, addr)
		if err != nil {
			lastErr = err
			continue
		}
		for _, rr := range resp.Answer {
			if a, ok := rr.(*dns.A); ok {
				return a.A, nil
			}
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("netresolve: couldn't resolve the hostname %s: %w", hostname, lastErr)
	}
	return nil, fmt.Errorf("netresolve: couldn't resolve the hostname %s: no A records (ipv6-only results are not supported)", hostname)
}
