package pilot

import (
	"testing"
	"time"

	"github.com/edaniels/golog"
	"go.viam.com/test"
)

func TestDiagnosticsLogsEveryInterval(t *testing.T) {
	logger, logs := golog.NewObservedTestLogger(t)
	d := newDiagnostics(logger)

	for i := 0; i < statsLogEvery-1; i++ {
		d.success(time.Millisecond, 1)
	}
	test.That(t, logs.FilterMessageSnippet("solve statistics").Len(), test.ShouldEqual, 0)

	d.success(time.Millisecond, 1)
	test.That(t, logs.FilterMessageSnippet("solve statistics").Len(), test.ShouldEqual, 1)

	for i := 0; i < statsLogEvery; i++ {
		d.success(time.Millisecond, 1)
	}
	test.That(t, logs.FilterMessageSnippet("solve statistics").Len(), test.ShouldEqual, 2)
}

func TestDiagnosticsCountsFailures(t *testing.T) {
	logger, logs := golog.NewObservedTestLogger(t)
	d := newDiagnostics(logger)

	for i := 0; i < statsLogEvery-3; i++ {
		d.success(2*time.Millisecond, 0.5)
	}
	for i := 0; i < 3; i++ {
		d.failure()
	}

	entries := logs.FilterMessageSnippet("solve statistics").All()
	test.That(t, len(entries), test.ShouldEqual, 1)
	fields := entries[0].ContextMap()
	test.That(t, fields["cycles"], test.ShouldEqual, statsLogEvery)
	test.That(t, fields["failures"], test.ShouldEqual, 3)
	test.That(t, fields["mean_ms"], test.ShouldAlmostEqual, 2)
	test.That(t, fields["median_ms"], test.ShouldAlmostEqual, 2)
}

func TestDiagnosticsSummary(t *testing.T) {
	logger, logs := golog.NewObservedTestLogger(t)
	d := newDiagnostics(logger)

	// Nothing ran, nothing to report.
	d.summary()
	test.That(t, logs.FilterMessageSnippet("final solve statistics").Len(), test.ShouldEqual, 0)

	d.success(4*time.Millisecond, 2)
	d.failure()
	d.summary()
	entries := logs.FilterMessageSnippet("final solve statistics").All()
	test.That(t, len(entries), test.ShouldEqual, 1)
	fields := entries[0].ContextMap()
	test.That(t, fields["cycles"], test.ShouldEqual, 2)
	test.That(t, fields["failures"], test.ShouldEqual, 1)
	test.That(t, fields["last_cost"], test.ShouldEqual, 2.0)
}

func TestDiagnosticsWindowBounded(t *testing.T) {
	d := newDiagnostics(golog.NewTestLogger(t))
	for i := 0; i < statsWindow+50; i++ {
		d.success(time.Millisecond, 1)
	}
	test.That(t, len(d.solveSeconds), test.ShouldEqual, statsWindow)
}

func TestDiagnosticsFailureOnlySummary(t *testing.T) {
	logger, logs := golog.NewObservedTestLogger(t)
	d := newDiagnostics(logger)
	for i := 0; i < statsLogEvery; i++ {
		d.failure()
	}

	// With no successful solves there are no duration statistics, only the
	// counters.
	entries := logs.FilterMessageSnippet("solve statistics").All()
	test.That(t, len(entries), test.ShouldEqual, 1)
	fields := entries[0].ContextMap()
	test.That(t, fields["failures"], test.ShouldEqual, statsLogEvery)
	_, ok := fields["mean_ms"]
	test.That(t, ok, test.ShouldBeFalse)
}
