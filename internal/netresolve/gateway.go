package netresolve

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// LocalSourceIPv4 returns the IPv4 address of the local interface that
// hosts the default route's gateway, the address stamped as the source
// IP in every probe's pseudo-header.
func LocalSourceIPv4() (net.IP, error) {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("netresolve: listing routes: %w", err)
	}

	var linkIndex = -1
	for _, r := range routes {
		if r.Dst == nil { // the default route has no destination prefix
			linkIndex = r.LinkIndex
			break
		}
	}
	if linkIndex == -1 {
		return nil, fmt.Errorf("netresolve: no default route found")
	}

	link, err := netlink.LinkByIndex(linkIndex)
	if err != nil {
		return nil, fmt.Errorf("netresolve: finding link for default route: %w", err)
	}

	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("netresolve: listing addresses on %s: %w", link.Attrs().Name, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("netresolve: link %s has no IPv4 address", link.Attrs().Name)
	}

	return addrs[0].IP, nil
}
