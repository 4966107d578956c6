package profiler

import (
	"log"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/disintegrate/engine/renderer/batcher"
)

// Sample is what one engine tick reports to the Profiler.
type Sample struct {
	// Effects is the number of live effects across all scenes.
	Effects int
	// Fragments is the number of fragments still simulated across all effects.
	Fragments int
	// Draws counts the draw calls issued this tick.
	Draws batcher.Stats
}

// Report is the aggregate logged once per interval.
type Report struct {
	TPS            float64
	Effects        int
	Fragments      int
	SingleDraws    float64
	InstancedDraws float64
	Instances      float64
	HeapMB         float64
	AllocRateMB    float64
	GCCount        uint32
	LastPauseUs    uint64
	MaxPauseUs     uint64
}

// Profiler tracks tick rate, effect load, draw calls and memory statistics.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	tickCount      int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	draws  batcher.Stats
	last   Sample
	output func(Report)
	now    func() time.Time
}

// NewProfiler creates a new Profiler that logs once per interval.
// A non-positive interval defaults to 1 second.
//
// Parameters:
//   - interval: how often to report
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(interval time.Duration) *Profiler {
	if interval <= 0 {
		interval = time.Second
	}
	p := &Profiler{
		lastTime:       time.Now(),
		updateInterval: interval,
		now:            time.Now,
	}
	p.output = logReport
	return p
}

// Tick should be called once per engine tick with that tick's sample.
// Draw counts are averaged per tick over the interval; effect and fragment counts are the
// latest sample.
//
// Parameters:
//   - s: the tick's sample
//
// Returns:
//   - bool: true if stats were reported this tick, false otherwise
func (p *Profiler) Tick(s Sample) bool {
	p.tickCount++
	p.draws = p.draws.Add(s.Draws)
	p.last = s

	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	n := float64(p.tickCount)
	r := Report{
		TPS:            n / elapsed.Seconds(),
		Effects:        s.Effects,
		Fragments:      s.Fragments,
		SingleDraws:    float64(p.draws.SingleDraws) / n,
		InstancedDraws: float64(p.draws.InstancedDraws) / n,
		Instances:      float64(p.draws.Instances) / n,
	}

	runtime.ReadMemStats(&p.memStats)
	r.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	r.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	r.GCCount = gcCount
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses.
		r.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > r.MaxPauseUs {
				r.MaxPauseUs = pause
			}
		}
	}

	p.output(r)

	p.tickCount = 0
	p.draws = batcher.Stats{}
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Last returns the most recent sample passed to Tick.
func (p *Profiler) Last() Sample {
	return p.last
}

func logReport(r Report) {
	log.Printf("[Profiler] TPS: %.2f | Effects: %d | Fragments: %d | Draws/tick: %.1f single, %.1f instanced (%.1f instances) | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs)",
		r.TPS, r.Effects, r.Fragments, r.SingleDraws, r.InstancedDraws, r.Instances, r.HeapMB, r.AllocRateMB, r.GCCount, r.LastPauseUs, r.MaxPauseUs)
}
