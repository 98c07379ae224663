// Package source implements the two flow-source adapters (spec.md
// §4.3): a live packet-capture sniffer and a synthetic, persona-driven
// generator. Both publish canonical FlowEvents onto the broker's
// traffic topic without any awareness of downstream analysis.
package source

import (
	"context"
	"net"

	"github.com/sgerhart/shadowhunter/internal/model"
)

// Emit is called once per assembled flow.
type Emit func(model.FlowEvent)

// Adapter produces FlowEvents until ctx is canceled.
type Adapter interface {
	Run(ctx context.Context, emit Emit) error
}

var (
	ssdpAddr = net.ParseIP("239.255.255.250")
)

// dropAtSource reports whether a packet's destination should never reach
// a flow adapter's output, per spec.md §4.3: non-IP, loopback,
// link-local multicast (224.0.0.0/4), and SSDP are filtered before flow
// assembly.
func dropAtSource(dst net.IP) bool {
	if dst == nil {
		return true
	}
	if dst.IsLoopback() {
		return true
	}
	if dst.Equal(ssdpAddr) {
		return true
	}
	if dst4 := dst.To4(); dst4 != nil {
		if dst4[0] >= 224 && dst4[0] <= 239 {
			return true
		}
	}
	return false
}
