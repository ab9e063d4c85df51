package tracking

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tapmeter/internal/clock"
	"tapmeter/internal/export"
	"tapmeter/internal/interval"
	"tapmeter/internal/keystroke"
	"tapmeter/internal/metrics"
	"tapmeter/internal/store"
)

var testNow = time.Unix(1700000000, 0)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExporter(dir string) *export.Exporter {
	return export.New(export.Config{
		Dir:    dir,
		Now:    func() time.Time { return testNow },
		Logger: quietLogger(),
	})
}

// presses writes n alternating z/x presses gap milliseconds apart.
func presses(b *strings.Builder, n, gap int) {
	for i := 0; i < n; i++ {
		key := "z"
		if i%2 == 1 {
			key = "x"
		}
		fmt.Fprintf(b, "%s %d\n", key, gap)
	}
}

func replayOf(build func(b *strings.Builder)) *keystroke.Replay {
	var b strings.Builder
	build(&b)
	return keystroke.NewReplay(strings.NewReader(b.String()), false)
}

// fakeSource delivers queued events and never closes its channel.
type fakeSource struct {
	events    chan keystroke.Event
	available bool
	stopped   bool
}

func newFakeSource(evs ...keystroke.Event) *fakeSource {
	ch := make(chan keystroke.Event, len(evs)+1)
	for _, ev := range evs {
		ch <- ev
	}
	return &fakeSource{events: ch, available: true}
}

func (f *fakeSource) Name() string { return "fake" }
func (f *fakeSource) Start(ctx context.Context) error { return nil }
func (f *fakeSource) Stop() error {
	f.stopped = true
	return nil
}
func (f *fakeSource) Events() <-chan keystroke.Event { return f.events }
func (f *fakeSource) Available() (bool, string) { return f.available, "fake" }

func press(k keystroke.Key, ms uint64) keystroke.Event {
	return keystroke.Event{Key: k, Action: keystroke.Press, Ticks: ms}
}

func TestNew_RequiresRate(t *testing.T) {
	_, err := New(Config{Source: newFakeSource(), Logger: quietLogger()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, clock.ErrUncalibrated))

	_, err = New(Config{Logger: quietLogger()})
	assert.Error(t, err)
}

func TestNew_RateFromReplay(t *testing.T) {
	s, err := New(Config{Source: replayOf(func(*strings.Builder) {}), Logger: quietLogger()})
	require.NoError(t, err)
	assert.Equal(t, keystroke.ReplayRate, s.Rate())
	assert.Equal(t, DefaultReportInterval, s.ReportInterval())
}

func TestRun_ExportsOnEndOfInput(t *testing.T) {
	dir := t.TempDir()
	src := replayOf(func(b *strings.Builder) { presses(b, 25, 150) })

	s, err := New(Config{
		Source:   src,
		Exporter: newTestExporter(dir),
		Logger:   quietLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	st := s.Status()
	assert.False(t, st.Running)
	assert.Equal(t, uint64(24), st.Recorded)
	assert.Equal(t, 1, st.Exports)
	assert.Equal(t, int64(1700000000), st.LastExportID)
	assert.False(t, st.EndedAt.IsZero())

	res := s.LastExport()
	require.NotNil(t, res)
	require.NotNil(t, res.Summary)
	require.NotNil(t, res.History)
	assert.Equal(t, 24, res.Intervals)
	assert.FileExists(t, export.SummaryPath(dir, res.ID))
	assert.FileExists(t, export.HistoryPath(dir, res.ID))
}

func TestRun_ResetExportsAndStartsOver(t *testing.T) {
	dir := t.TempDir()
	src := replayOf(func(b *strings.Builder) {
		presses(b, 10, 150)
		b.WriteString("reset 10\n")
		presses(b, 10, 150)
	})

	reg := metrics.NewRegistry("test")
	m := metrics.NewTapmeterMetrics(reg)

	var ids []int64
	s, err := New(Config{
		Source:   src,
		Exporter: newTestExporter(dir),
		Metrics:  m,
		Logger:   quietLogger(),
		OnExport: func(res *export.Result) { ids = append(ids, res.ID) },
	})
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	st := s.Status()
	assert.Equal(t, 1, st.Resets)
	assert.Equal(t, 2, st.Exports)
	assert.Equal(t, uint64(18), st.Recorded)
	assert.Equal(t, []int64{1700000000, 1700000001}, ids)

	// nine intervals per run: history only, ids bumped on collision
	for _, id := range []int64{1700000000, 1700000001} {
		assert.FileExists(t, export.HistoryPath(dir, id))
		assert.NoFileExists(t, export.SummaryPath(dir, id))
		rows, err := readHistory(export.HistoryPath(dir, id))
		require.NoError(t, err)
		assert.Equal(t, 9, rows)
	}

	assert.Equal(t, uint64(18), m.IntervalsTotal.Value())
	assert.Equal(t, uint64(1), m.ResetsTotal.Value())
	assert.Equal(t, uint64(2), m.ExportsTotal.Value())
}

func readHistory(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	rows, err := export.ReadHistory(f)
	return len(rows), err
}

func TestRun_QuitKey(t *testing.T) {
	src := newFakeSource(
		press(keystroke.KeyZ, 0),
		press(keystroke.KeyX, 100),
		press(keystroke.KeyZ, 200),
		press(keystroke.KeyQuit, 250),
		press(keystroke.KeyX, 300),
	)
	reg := metrics.NewRegistry("test")
	m := metrics.NewTapmeterMetrics(reg)

	s, err := New(Config{
		Source:   src,
		Rate:     1000,
		Exporter: newTestExporter(t.TempDir()),
		Metrics:  m,
		Logger:   quietLogger(),
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after quit")
	}

	assert.True(t, src.stopped)
	assert.Equal(t, uint64(2), s.Status().Recorded)
	assert.Len(t, src.events, 1, "press after quit must not be consumed")
	assert.Equal(t, 0, s.Status().Exports)
	assert.Equal(t, uint64(1), m.ExportsSkippedTotal.Value())
}

func TestRun_ContextCancel(t *testing.T) {
	s, err := New(Config{
		Source:   newFakeSource(),
		Rate:     1000,
		Exporter: newTestExporter(t.TempDir()),
		Logger:   quietLogger(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.False(t, s.IsRunning())
}

func TestRun_SourceUnavailable(t *testing.T) {
	src := newFakeSource()
	src.available = false
	s, err := New(Config{Source: src, Rate: 1000, Logger: quietLogger()})
	require.NoError(t, err)

	err = s.Run(context.Background())
	assert.True(t, errors.Is(err, keystroke.ErrNotAvailable))
}

func TestRun_IndexesIntoStore(t *testing.T) {
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "tapmeter.db"))
	require.NoError(t, err)
	defer db.Close()

	src := replayOf(func(b *strings.Builder) { presses(b, 30, 120) })
	s, err := New(Config{
		Source:   src,
		Exporter: newTestExporter(filepath.Join(dir, "samples")),
		Store:    db,
		Logger:   quietLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	list, err := db.ListExports(0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 29, list[0].Intervals)
	assert.NotEmpty(t, list[0].SummaryDigest)

	rows, err := db.BestRows(list[0].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, rows)
}

func TestReport(t *testing.T) {
	var out bytes.Buffer
	s, err := New(Config{
		Source: replayOf(func(*strings.Builder) {}),
		Logger: quietLogger(),
		Output: &out,
	})
	require.NoError(t, err)

	s.report()
	assert.Contains(t, out.String(), Prompt)
	assert.Nil(t, s.Status().Current)

	out.Reset()
	for i := 0; i < 25; i++ {
		s.history.Append(interval.Record{Ticks: 100_000_000, Z: i%2 == 0})
	}
	s.report()

	text := out.String()
	assert.Contains(t, text, "Total 25: (BPM: 150, UR: 0,")
	assert.Contains(t, text, "4: Best BPM (BPM: 150")
	assert.Contains(t, text, "20: Best BPM")
	assert.Contains(t, text, "Cur 20: (BPM: 150")
	assert.NotContains(t, text, "500:")

	cur := s.Status().Current
	require.NotNil(t, cur)
	assert.Equal(t, 150.0, cur.Total.BPM)
	require.NotNil(t, cur.Recent)
}

func TestSetReportInterval(t *testing.T) {
	s, err := New(Config{Source: newFakeSource(), Rate: 1000, Logger: quietLogger()})
	require.NoError(t, err)

	s.SetReportInterval(0)
	assert.Equal(t, DefaultReportInterval, s.ReportInterval())

	s.SetReportInterval(2 * time.Second)
	s.SetReportInterval(3 * time.Second)
	assert.Equal(t, 3*time.Second, s.ReportInterval())
	assert.Equal(t, 3*time.Second, <-s.retick)
}

func TestSetReportInterval_ConcurrentWithoutReader(t *testing.T) {
	s, err := New(Config{Source: newFakeSource(), Rate: 1000, Logger: quietLogger()})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 1; i <= 50; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				s.SetReportInterval(time.Duration(n) * time.Second)
			}(i)
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("SetReportInterval blocked with no report loop running")
	}

	// the pending request is the last value stored
	assert.Equal(t, s.ReportInterval(), <-s.retick)
	assert.Len(t, s.retick, 0)
}
