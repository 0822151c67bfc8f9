package pilot

import (
	"bytes"
	"sync"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/edaniels/golog"
	"github.com/montanaflynn/stats"
)

const (
	// statsWindow bounds how many recent solve times feed the summaries.
	statsWindow = 512
	// statsLogEvery is the cycle interval between summary log lines.
	statsLogEvery = 100
	histogramBins = 8
)

// diagnostics tracks solve health across cycles: durations, the latest
// cost, and the failure count.
type diagnostics struct {
	logger golog.Logger

	mu           sync.Mutex
	solveSeconds []float64
	lastCost     float64
	cycles       int
	failures     int
}

func newDiagnostics(logger golog.Logger) *diagnostics {
	return &diagnostics{logger: logger}
}

func (d *diagnostics) success(took time.Duration, cost float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cycles++
	d.lastCost = cost
	d.solveSeconds = append(d.solveSeconds, took.Seconds())
	if len(d.solveSeconds) > statsWindow {
		d.solveSeconds = d.solveSeconds[len(d.solveSeconds)-statsWindow:]
	}
	if d.cycles%statsLogEvery == 0 {
		d.logSummaryLocked("solve statistics")
	}
}

func (d *diagnostics) failure() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cycles++
	d.failures++
	if d.cycles%statsLogEvery == 0 {
		d.logSummaryLocked("solve statistics")
	}
}

func (d *diagnostics) logSummaryLocked(msg string) {
	if len(d.solveSeconds) == 0 {
		d.logger.Infow(msg, "cycles", d.cycles, "failures", d.failures)
		return
	}
	mean, _ := stats.Mean(d.solveSeconds)
	median, _ := stats.Median(d.solveSeconds)
	p95, _ := stats.Percentile(d.solveSeconds, 95)
	d.logger.Infow(msg,
		"cycles", d.cycles,
		"failures", d.failures,
		"mean_ms", mean*1e3,
		"median_ms", median*1e3,
		"p95_ms", p95*1e3,
		"last_cost", d.lastCost,
	)
}

// summary logs the final totals and, at debug level, a histogram of solve
// times over the retained window.
func (d *diagnostics) summary() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cycles == 0 {
		return
	}
	d.logSummaryLocked("final solve statistics")
	if len(d.solveSeconds) < histogramBins {
		return
	}
	hist := histogram.Hist(histogramBins, d.solveSeconds)
	var buf bytes.Buffer
	if err := histogram.Fprint(&buf, hist, histogram.Linear(40)); err != nil {
		d.logger.Debugw("could not render solve time histogram", "error", err)
		return
	}
	d.logger.Debugf("solve seconds histogram:\n%s", buf.String())
}
