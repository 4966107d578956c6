package profiler

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/disintegrate/engine/renderer/batcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickReportsPerInterval(t *testing.T) {
	start := time.Unix(0, 0)
	clock := start
	p := NewProfiler(time.Second)
	p.lastTime = start
	p.now = func() time.Time { return clock }

	var reports []Report
	p.output = func(r Report) { reports = append(reports, r) }

	for i := 0; i < 4; i++ {
		clock = clock.Add(250 * time.Millisecond)
		reported := p.Tick(Sample{
			Effects:   2,
			Fragments: 100 - i,
			Draws:     batcher.Stats{SingleDraws: 10, InstancedDraws: 2, Instances: 40},
		})
		assert.Equal(t, i == 3, reported)
	}

	require.Len(t, reports, 1)
	r := reports[0]
	assert.InDelta(t, 4, r.TPS, 1e-9)
	assert.Equal(t, 2, r.Effects)
	assert.Equal(t, 97, r.Fragments)
	assert.InDelta(t, 10, r.SingleDraws, 1e-9)
	assert.InDelta(t, 2, r.InstancedDraws, 1e-9)
	assert.InDelta(t, 40, r.Instances, 1e-9)
	assert.Equal(t, 97, p.Last().Fragments)

	clock = clock.Add(100 * time.Millisecond)
	assert.False(t, p.Tick(Sample{}))
}

func TestNewProfilerDefaultsInterval(t *testing.T) {
	assert.Equal(t, time.Second, NewProfiler(0).updateInterval)
}
