package internaldefs

import (
	"strings"
	"testing"
	"time"

	authclient "github.com/MrEthical07/authclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryMetricHasOneDefinition(t *testing.T) {
	seen := map[authclient.MetricID]string{}
	for _, def := range CounterDefs {
		_, dup := seen[def.ID]
		require.False(t, dup, "duplicate definition for %s", def.ID)
		seen[def.ID] = def.Name
		assert.True(t, strings.HasSuffix(def.Name, "_total"), def.Name)
		assert.Contains(t, def.Name, def.ID.String())
	}
	for _, def := range HistogramDefs {
		_, dup := seen[def.ID]
		require.False(t, dup, "duplicate definition for %s", def.ID)
		seen[def.ID] = def.Name
	}
	assert.Len(t, seen, authclient.MetricCount)
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	assert.Equal(t, [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}, got)
	assert.Len(t, HistogramBounds, 8)
	assert.Len(t, HistogramBoundSuffix, 8)
}

func TestCalledOperationsFollowExportOrder(t *testing.T) {
	ops := map[authclient.Operation]authclient.OperationStats{
		authclient.OpVerifyEmail: {Calls: 1, LatencySum: 3 * time.Millisecond},
		authclient.OpLogin:       {Calls: 2, LatencySum: 5 * time.Millisecond},
	}
	assert.Equal(t, []authclient.Operation{authclient.OpLogin, authclient.OpVerifyEmail}, CalledOperations(ops))
	assert.Equal(t, 8*time.Millisecond, TotalLatency(ops))
	assert.Empty(t, CalledOperations(nil))
}
