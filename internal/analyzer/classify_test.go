package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sgerhart/shadowhunter/internal/intel"
	"github.com/sgerhart/shadowhunter/internal/model"
)

func TestClassifyEndpointInternalRFC1918(t *testing.T) {
	got := classifyEndpoint("10.0.0.5", "", nil, nil)
	assert.Equal(t, model.NodeInternal, got)
}

func TestClassifyEndpointExternalByDefault(t *testing.T) {
	got := classifyEndpoint("203.0.113.9", "", nil, nil)
	assert.Equal(t, model.NodeExternal, got)
}

func TestClassifyEndpointConfiguredLocalPrefix(t *testing.T) {
	local := newLocalPrefixes([]string{"203.0.113.0/24"})
	got := classifyEndpoint("203.0.113.9", "", local, nil)
	assert.Equal(t, model.NodeInternal, got)
}

func TestClassifyEndpointShadowRelabelOnAIDomain(t *testing.T) {
	table := intel.NewAIDomainTable()
	got := classifyEndpoint("203.0.113.9", "chatgpt.com", nil, table)
	assert.Equal(t, model.NodeShadow, got)
}

func TestClassifyEndpointShadowTakesPriorityOverInternal(t *testing.T) {
	table := intel.NewAIDomainTable()
	got := classifyEndpoint("10.0.0.5", "chatgpt.com", nil, table)
	assert.Equal(t, model.NodeShadow, got)
}
