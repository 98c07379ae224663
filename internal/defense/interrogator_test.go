package defense

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubBlocklist struct{ blocked map[string]bool }

func (s stubBlocklist) IsBlocked(ip string) bool { return s.blocked[ip] }

func TestCanProbeRejectsInternalIP(t *testing.T) {
	in := NewInterrogator(stubBlocklist{}, nil)
	ok, reason := in.canProbe("10.0.0.5")
	assert.False(t, ok)
	assert.Contains(t, reason, "internal")
}

func TestCanProbeRejectsBlockedTarget(t *testing.T) {
	in := NewInterrogator(stubBlocklist{blocked: map[string]bool{"198.51.100.9": true}}, nil)
	ok, reason := in.canProbe("198.51.100.9")
	assert.False(t, ok)
	assert.Contains(t, reason, "blocked")
}

func TestCanProbeAllowsExternalUnblockedTarget(t *testing.T) {
	in := NewInterrogator(stubBlocklist{}, nil)
	ok, _ := in.canProbe("203.0.113.10")
	assert.True(t, ok)
}

func TestInterrogateSkipsInternalTarget(t *testing.T) {
	in := NewInterrogator(stubBlocklist{}, nil)
	result := in.Interrogate(context.Background(), "192.168.1.5")
	assert.True(t, result.Skipped)
	assert.Equal(t, int64(1), in.SkippedCount())
}
