package auth

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/BradenHooton/loginsentry/internal/models"
)

// Subnet derives the coarse network prefix used as a location fingerprint:
// the /24 for IPv4 (trailing dot kept, e.g. "203.0.113.") and the first four
// hextets of the expanded form for IPv6 (the /64). The prefix is
// intentionally coarse; collisions within a subnet are by design.
func Subnet(address string) (string, error) {
	ip, err := netip.ParseAddr(address)
	if err != nil {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidAddress, address)
	}

	if ip.Is4() || ip.Is4In6() {
		octets := strings.Split(ip.Unmap().String(), ".")
		return octets[0] + "." + octets[1] + "." + octets[2] + ".", nil
	}

	groups := strings.Split(ip.StringExpanded(), ":")
	return strings.Join(groups[:4], ":"), nil
}
