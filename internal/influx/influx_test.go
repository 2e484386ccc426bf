package influx

import (
	"bufio"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsnap/extension/internal/config"
	"github.com/gsnap/extension/internal/reconcile"
)

func lineOf(p *influxdb2_write.Point) string {
	return influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
}

func TestPassPoint_FromScene(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	res := reconcile.Result{
		Direction: reconcile.FromScene,
		Outcome:   reconcile.OutcomeApplied,
		Duration:  1500 * time.Microsecond,
		List: reconcile.ListPlan{
			Hide:             []string{"A"},
			Append:           []string{"B", "C"},
			SelectionChanged: true,
		},
		Scale:    4,
		HasScale: true,
	}

	line := lineOf(PassPoint("GSnap", res, ts))

	assert.True(t, strings.HasPrefix(line, "reconcile_pass,"))
	assert.Contains(t, line, "direction=from_scene")
	assert.Contains(t, line, "group=GSnap")
	assert.Contains(t, line, "outcome=applied")
	assert.Contains(t, line, "appended=2i")
	assert.Contains(t, line, "hidden=1i")
	assert.Contains(t, line, "unhidden=0i")
	assert.Contains(t, line, "scale=4i")
	assert.Contains(t, line, "selection_changed=true")
	assert.Contains(t, line, "duration_ms=1.5")
	assert.NotContains(t, line, "focus_requested")
}

func TestPassPoint_FromUI(t *testing.T) {
	res := reconcile.Result{
		Direction:      reconcile.FromUI,
		Outcome:        reconcile.OutcomeApplied,
		Scene:          reconcile.ScenePlan{Add: []string{"A"}, Remove: []string{"B", "C"}},
		FocusRequested: true,
	}

	line := lineOf(PassPoint("GSnap", res, time.Now()))

	assert.Contains(t, line, "direction=from_ui")
	assert.Contains(t, line, "selected=1i")
	assert.Contains(t, line, "deselected=2i")
	assert.Contains(t, line, "focus_requested=true")
	assert.NotContains(t, line, "scale=")
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{Enabled: false}, zerolog.Nop())

	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
	assert.False(t, m.IsValid)
}

func TestWritePoint_NoWriter(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop())

	err := m.WritePoint(influxdb2_write.NewPointWithMeasurement("x").AddField("v", 1))

	assert.EqualError(t, err, "influxDB client not initialized and backup writer not available")
}

func TestUnreachableServerWritesBackup(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "passes.lp.gz")
	m := NewManager(config.InfluxConfig{
		Enabled:    true,
		Protocol:   "http",
		Host:       "127.0.0.1",
		Port:       "1",
		Org:        "gsnap",
		Bucket:     "gsnap",
		Group:      "GSnap",
		BackupPath: backup,
	}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	require.False(t, m.IsValid)

	m.ObservePass(reconcile.Result{Direction: reconcile.FromScene, Outcome: reconcile.OutcomeInSync})
	m.ObservePass(reconcile.Result{Direction: reconcile.FromUI, Outcome: reconcile.OutcomeApplied})
	require.NoError(t, m.Close())

	f, err := os.Open(backup)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)

	var lines []string
	sc := bufio.NewScanner(zr)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "direction=from_scene")
	assert.Contains(t, lines[0], "outcome=in_sync")
	assert.Contains(t, lines[1], "direction=from_ui")
}
