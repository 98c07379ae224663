package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sgerhart/shadowhunter/internal/model"
)

func TestGeneratorDeterministicUnderSameSeed(t *testing.T) {
	cfg := GeneratorConfig{Seed: 42, EventsPerSecond: 1000}
	g1 := NewGenerator(cfg, nil)
	g2 := NewGenerator(cfg, nil)

	var keys1, keys2 []string
	for i := 0; i < 50; i++ {
		g1.tick(time.Unix(int64(i), 0), func(e model.FlowEvent) {
			keys1 = append(keys1, e.SourceIP+"->"+e.DestinationIP+":"+string(e.Protocol))
		})
	}
	for i := 0; i < 50; i++ {
		g2.tick(time.Unix(int64(i), 0), func(e model.FlowEvent) {
			keys2 = append(keys2, e.SourceIP+"->"+e.DestinationIP+":"+string(e.Protocol))
		})
	}
	assert.Equal(t, keys1, keys2)
	assert.NotEmpty(t, keys1)
}

func TestGeneratorDifferentSeedsDiverge(t *testing.T) {
	g1 := NewGenerator(GeneratorConfig{Seed: 1, EventsPerSecond: 1000}, nil)
	g2 := NewGenerator(GeneratorConfig{Seed: 2, EventsPerSecond: 1000}, nil)

	var keys1, keys2 []string
	for i := 0; i < 50; i++ {
		g1.tick(time.Unix(int64(i), 0), func(e model.FlowEvent) { keys1 = append(keys1, e.DestinationIP) })
	}
	for i := 0; i < 50; i++ {
		g2.tick(time.Unix(int64(i), 0), func(e model.FlowEvent) { keys2 = append(keys2, e.DestinationIP) })
	}
	assert.NotEqual(t, keys1, keys2)
}

func TestGeneratorRunRespectsRatePlausibleBounds(t *testing.T) {
	g := NewGenerator(GeneratorConfig{Seed: 7, EventsPerSecond: 20}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var n int
	err := g.Run(ctx, func(e model.FlowEvent) { n++ })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, n, 0)
}

func TestAITrafficUsesLargerPayloadsThanWebTraffic(t *testing.T) {
	g := NewGenerator(GeneratorConfig{Seed: 3}, nil)
	web := g.webTraffic(time.Now(), "192.168.1.10", "github.com")
	ai := g.aiTraffic(time.Now(), "192.168.1.10", "chatgpt.com")
	assert.GreaterOrEqual(t, ai.BytesSent, int64(5000))
	assert.LessOrEqual(t, web.BytesSent, int64(3000))
}
