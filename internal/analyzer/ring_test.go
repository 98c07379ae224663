package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sgerhart/shadowhunter/internal/model"
)

func TestAlertRingSnapshotOrderBelowCapacity(t *testing.T) {
	r := newAlertRing(3)
	r.Add(model.Alert{ID: "1"})
	r.Add(model.Alert{ID: "2"})
	got := r.Snapshot()
	assert.Equal(t, []string{"1", "2"}, ids(got))
}

func TestAlertRingOverwritesOldestAtCapacity(t *testing.T) {
	r := newAlertRing(3)
	r.Add(model.Alert{ID: "1"})
	r.Add(model.Alert{ID: "2"})
	r.Add(model.Alert{ID: "3"})
	r.Add(model.Alert{ID: "4"})
	assert.Equal(t, []string{"2", "3", "4"}, ids(r.Snapshot()))
	assert.Equal(t, 3, r.Len())
}

func ids(alerts []model.Alert) []string {
	out := make([]string, len(alerts))
	for i, a := range alerts {
		out[i] = a.ID
	}
	return out
}
