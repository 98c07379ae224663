package analytics

import (
	"sort"

	"github.com/sgerhart/shadowhunter/internal/model"
)

const topDestinationsByBytes = 10

// TrafficStatsView aggregates the dashboard's protocol, node-type and
// severity breakdowns plus the busiest destinations by byte count.
// Grounded on original_source/services/api/routers/discovery.py's
// get_traffic_stats.
func TrafficStatsView(nodes []model.Node, edges []model.Edge, alerts []model.Alert) TrafficStats {
	protoCounts := map[model.Protocol]int{}
	for _, e := range edges {
		protoCounts[e.Protocol]++
	}
	protocols := make([]ProtocolCount, 0, len(protoCounts))
	for proto, count := range protoCounts {
		protocols = append(protocols, ProtocolCount{Name: string(proto), Value: count})
	}
	sort.Slice(protocols, func(i, j int) bool {
		if protocols[i].Value != protocols[j].Value {
			return protocols[i].Value > protocols[j].Value
		}
		return protocols[i].Name < protocols[j].Name
	})

	var nodeTypes NodeTypeCounts
	for _, n := range nodes {
		switch n.Type {
		case model.NodeInternal:
			nodeTypes.Internal++
		case model.NodeExternal:
			nodeTypes.External++
		case model.NodeShadow:
			nodeTypes.ShadowAI++
		}
	}

	var severity SeverityDistribution
	for _, a := range alerts {
		switch a.Severity {
		case model.SeverityHigh:
			severity.High++
		case model.SeverityMedium:
			severity.Medium++
		case model.SeverityLow:
			severity.Low++
		}
	}

	dstBytes := map[string]int64{}
	for _, e := range edges {
		dstBytes[e.Target] += e.ByteCount
	}
	destinations := make([]TrafficDestination, 0, len(dstBytes))
	for dst, bytes := range dstBytes {
		destinations = append(destinations, TrafficDestination{Destination: dst, Bytes: bytes})
	}
	sort.Slice(destinations, func(i, j int) bool {
		if destinations[i].Bytes != destinations[j].Bytes {
			return destinations[i].Bytes > destinations[j].Bytes
		}
		return destinations[i].Destination < destinations[j].Destination
	})
	if len(destinations) > topDestinationsByBytes {
		destinations = destinations[:topDestinationsByBytes]
	}

	return TrafficStats{
		Totals: TrafficTotals{
			TotalNodes:       len(nodes),
			TotalConnections: len(edges),
			TotalAlerts:      len(alerts),
		},
		NodeTypes:            nodeTypes,
		ProtocolDistribution: protocols,
		SeverityDistribution: severity,
		TopDestinations:      destinations,
	}
}
