package panel_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/hamster-panel/internal/daemon"
	"github.com/Tiliavir/hamster-panel/internal/daemon/daemontest"
	"github.com/Tiliavir/hamster-panel/internal/ledger"
	"github.com/Tiliavir/hamster-panel/internal/model"
	"github.com/Tiliavir/hamster-panel/internal/panel"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func setup(t *testing.T) (*panel.Panel, *daemontest.Tracker, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)}
	tr := daemontest.New(c.now)
	l := ledger.New(tr, ledger.WithLocation(time.UTC), ledger.WithClock(c.now))
	return panel.New(tr, l, panel.WithClock(c.now)), tr, c
}

func TestStartAndStop(t *testing.T) {
	ctx := context.Background()
	p, tr, c := setup(t)

	assert.Equal(t, panel.IdleLabel, panel.Label(p.Ledger().Snapshot(), c.now()))

	_, err := p.Start(ctx, "  Coding ")
	require.NoError(t, err)
	assert.Equal(t, "Coding 00:00", panel.Label(p.Ledger().Snapshot(), c.now()))

	c.t = c.t.Add(90 * time.Minute)
	assert.Equal(t, "Coding 01:30", panel.Label(p.Ledger().Snapshot(), c.now()))

	f, stopped, err := p.Stop(ctx)
	require.NoError(t, err)
	assert.True(t, stopped)
	assert.Equal(t, "Coding", f.Name)
	require.NotNil(t, f.End)
	assert.Equal(t, c.now(), *f.End)

	assert.Equal(t, panel.IdleLabel, panel.Label(p.Ledger().Snapshot(), c.now()))
	require.Len(t, tr.Facts(), 1)
	assert.False(t, tr.Facts()[0].IsOpen())
}

func TestStopWithNothingRunningIsNoop(t *testing.T) {
	p, _, _ := setup(t)
	_, stopped, err := p.Stop(context.Background())
	assert.NoError(t, err)
	assert.False(t, stopped)
}

func TestStartRejectsBlankName(t *testing.T) {
	p, tr, _ := setup(t)
	_, err := p.Start(context.Background(), "   ")
	assert.ErrorIs(t, err, ledger.ErrEmptyActivity)
	assert.Zero(t, tr.AddCalls)
}

func TestStartTransportFailureKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	p, tr, c := setup(t)
	_, err := p.Start(ctx, "Mail")
	require.NoError(t, err)
	before := p.Ledger().Snapshot()

	tr.Fail(errors.New("bus gone"))
	_, err = p.Start(ctx, "Coding")
	assert.ErrorIs(t, err, daemon.ErrTransport)
	assert.Same(t, before, p.Ledger().Snapshot())
	assert.Equal(t, "Mail 00:00", panel.Label(p.Ledger().Snapshot(), c.now()))
}

func TestRows(t *testing.T) {
	start := time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	now := start.Add(3 * time.Hour)
	snap := ledger.Ingest([]model.RawRecord{
		model.Fact{ID: 1, Name: "Mail", Category: "Admin", Start: start, End: &end}.Record(),
		model.Fact{ID: 2, Name: "Coding", Start: end}.Record(),
	}, time.UTC)

	rows := panel.Rows(snap, now)
	require.Len(t, rows, 2)
	assert.Equal(t, panel.Row{Span: "09:00 - 10:30", Name: "Mail", Category: "Admin", Duration: "1h 30min"}, rows[0])
	assert.Equal(t, panel.Row{Span: "10:30 - ", Name: "Coding", Duration: "1h 30min", Open: true}, rows[1])

	list := panel.RenderList(rows)
	lines := strings.Split(list, "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Mail")
	assert.Contains(t, lines[1], "Coding")

	assert.Equal(t, "Total 03:00 (Unsorted: 1h 30min, Admin: 1h 30min)", panel.RenderTotals(snap, now))
}

func TestRenderListEmpty(t *testing.T) {
	assert.Contains(t, panel.RenderList(nil), "Nothing tracked today.")
	assert.Empty(t, panel.RenderTotals(ledger.Empty(time.UTC), time.Now()))
}

func TestLabelInBerlin(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	snap := ledger.Ingest([]model.RawRecord{{int64(1), int64(36000), int64(0), "", "Coding", int64(1), int64(1), []string{}, int64(36000), int64(0)}}, berlin)
	assert.Equal(t, "Coding 01:30", panel.Label(snap, time.Unix(36000+5400, 0)))
	assert.Equal(t, "11:00 - ", panel.Rows(snap, time.Unix(36000+5400, 0))[0].Span)
}
