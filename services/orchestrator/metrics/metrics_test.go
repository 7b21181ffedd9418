package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordTurn(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordTurn("left_ai", nil)
	m.RecordTurn("left_ai", nil)
	m.RecordTurn("right_ai", errors.New("timeout"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TurnsTotal.WithLabelValues("left_ai", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TurnsTotal.WithLabelValues("right_ai", "error")))
}

func TestRecordLLMRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordLLMRequest("emotion", 300*time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("emotion", "success")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.LLMRequestDuration))
}

func TestSeparateRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := New(prometheus.NewRegistry())
	b := New(prometheus.NewRegistry())

	a.RecordCommand("start", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.CommandsTotal.WithLabelValues("start", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CommandsTotal.WithLabelValues("start", "success")))
}
