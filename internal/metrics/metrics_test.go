package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersAreLabelled(t *testing.T) {
	before := testutil.ToFloat64(ModelLoads.WithLabelValues("gas", LoadFailed))
	ModelLoads.WithLabelValues("gas", LoadFailed).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ModelLoads.WithLabelValues("gas", LoadFailed)))

	before = testutil.ToFloat64(MessagesDropped.WithLabelValues(DropDecodeError))
	MessagesDropped.WithLabelValues(DropDecodeError).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(MessagesDropped.WithLabelValues(DropDecodeError)))
}

func TestAdminGauge(t *testing.T) {
	AdminActive.Set(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(AdminActive))
	AdminActive.Set(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(AdminActive))
}
