package analyzer

import (
	"net"

	"github.com/sgerhart/shadowhunter/internal/intel"
	"github.com/sgerhart/shadowhunter/internal/model"
)

// localPrefixes are additional CIDR ranges treated as internal beyond
// RFC1918 and loopback, configured at startup (spec.md §4.6 point 1:
// "or configured local prefix").
type localPrefixes []*net.IPNet

func newLocalPrefixes(cidrs []string) localPrefixes {
	var out localPrefixes
	for _, c := range cidrs {
		if _, n, err := net.ParseCIDR(c); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func (lp localPrefixes) contains(ip net.IP) bool {
	for _, n := range lp {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// classifyEndpoint labels an IP internal or external, then relabels it
// shadow if its display name matches a known AI domain (spec.md §4.6
// point 1). display is the best available host/sni/dns name for the
// endpoint, or "" if only the IP is known.
func classifyEndpoint(ipStr, display string, local localPrefixes, aiDomains *intel.AIDomainTable) model.NodeType {
	if display != "" && aiDomains != nil && aiDomains.Category(display) != "" {
		return model.NodeShadow
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return model.NodeExternal
	}
	if ip.IsLoopback() || ip.IsPrivate() || local.contains(ip) {
		return model.NodeInternal
	}
	return model.NodeExternal
}

// displayName picks the best name for a node per spec.md §4.6 point 2:
// host, then sni, then IP.
func displayName(host, sni, ip string) string {
	if host != "" {
		return host
	}
	if sni != "" {
		return sni
	}
	return ip
}
