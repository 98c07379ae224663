package mlengine

import (
	"math"
	"strings"

	"github.com/sgerhart/shadowhunter/internal/model"
)

// Features is the fixed feature vector spec.md §4.5 requires; changing
// its shape requires retraining, so it is not derived from any runtime
// configuration.
type Features struct {
	DestinationPort   float64
	BytesSent         float64
	BytesReceived     float64
	LogDurationMs     float64 // log1p(duration_ms)
	SNIEntropy        float64
	TLDRank           float64 // lower is more common; unknown TLDs rank highest
	ProtocolOneHot    [7]float64
}

var protocolOrder = []model.Protocol{
	model.ProtocolTCP, model.ProtocolUDP, model.ProtocolICMP,
	model.ProtocolHTTP, model.ProtocolHTTPS, model.ProtocolDNS, model.ProtocolOther,
}

// commonTLDRank ranks well-known TLDs by prevalence; unlisted TLDs are
// treated as rank 10 (least common / most suspicious).
var commonTLDRank = map[string]float64{
	"com": 0, "org": 1, "net": 2, "io": 3, "co": 4, "ai": 5, "dev": 6, "app": 7,
}

// Extract builds a Features vector from a flow event and its assembled
// duration. durationMs is 0 when the source adapter does not track
// intra-flow duration (e.g. a single-packet synthetic event).
func Extract(event model.FlowEvent, durationMs float64) Features {
	host := event.Host()
	f := Features{
		DestinationPort: float64(event.DestinationPort),
		BytesSent:       float64(event.BytesSent),
		BytesReceived:   float64(event.BytesReceived),
		LogDurationMs:   math.Log1p(durationMs),
		SNIEntropy:      shannonEntropy(host),
		TLDRank:         tldRank(host),
	}
	for i, p := range protocolOrder {
		if event.Protocol == p {
			f.ProtocolOneHot[i] = 1
			break
		}
	}
	return f
}

// shannonEntropy computes the Shannon entropy (bits/char) of s, used to
// flag algorithmically-generated hostnames (DGA-style exfil channels).
func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	counts := make(map[rune]int)
	for _, r := range s {
		counts[r]++
	}
	n := float64(len(s))
	var entropy float64
	for _, c := range counts {
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func tldRank(host string) float64 {
	if host == "" {
		return 10
	}
	parts := strings.Split(host, ".")
	tld := strings.ToLower(parts[len(parts)-1])
	if rank, ok := commonTLDRank[tld]; ok {
		return rank
	}
	return 10
}
