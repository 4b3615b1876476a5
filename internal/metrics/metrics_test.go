package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOperation(t *testing.T) {
	em := New()

	em.RecordOperation("place_bet", 0.01, nil)
	em.RecordOperation("place_bet", 0.02, nil)
	em.RecordOperation("place_bet", 0.5, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(em.OperationsTotal.WithLabelValues("place_bet", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(em.OperationsTotal.WithLabelValues("place_bet", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(em.OperationErrors.WithLabelValues("place_bet")))
}

func TestRecordBet(t *testing.T) {
	em := New()

	em.RecordBet("general", 1000)
	em.RecordBet("general", 500)
	em.RecordBet("duel", 50)

	assert.Equal(t, 2.0, testutil.ToFloat64(em.BetsTotal.WithLabelValues("general")))
	assert.Equal(t, 1.0, testutil.ToFloat64(em.BetsTotal.WithLabelValues("duel")))
}

func TestRecordDispute(t *testing.T) {
	em := New()

	em.RecordDispute(true)
	em.RecordDispute(false)
	em.RecordDispute(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(em.DisputesTotal.WithLabelValues("upheld")))
	assert.Equal(t, 2.0, testutil.ToFloat64(em.DisputesTotal.WithLabelValues("rejected")))
}

func TestRegistryGathers(t *testing.T) {
	em := New()
	em.MarketsByStatus.WithLabelValues("open").Set(3)
	em.TotalValueStaked.Set(15000)

	families, err := em.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["marketd_markets"])
	assert.True(t, names["marketd_total_value_staked"])
}
