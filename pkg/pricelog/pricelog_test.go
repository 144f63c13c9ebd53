package pricelog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func instance(name string, rounds int, status string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "@01 instances/%s.lp ===========\n", name)
	fmt.Fprintf(&sb, "read problem <instances/%s.lp>\n", name)
	for r := 0; r < rounds; r++ {
		sb.WriteString("[src/pricer_gcg.cpp:3208] pricing: New pricing round at node 1\n")
		sb.WriteString("[src/pricer_gcg.cpp:3412] pricing: Pricing prob 0 found 2 vars in 0.02 seconds\n")
	}
	if status != "" {
		sb.WriteString(status + "\n")
	}
	return sb.String()
}

const optimal = "SCIP Status        : problem is solved [optimal solution found]"

func writeGzip(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(text))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func writeLZ4(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := lz4.NewWriter(f)
	_, err = zw.Write([]byte(text))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestParseDefaults(t *testing.T) {
	snaps, err := Parse(context.Background(), strings.NewReader(instance("a", 3, optimal)))
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	s := snaps[0]
	assert.Equal(t, "a", s.Info.InstanceName)
	assert.Equal(t, "default", s.Info.SettingsName)
	assert.Equal(t, StatusOptimal, s.Info.Status)
	assert.Equal(t, "transcript", s.Info.File)
	assert.Equal(t, 3, s.Info.Rounds)
	require.Len(t, s.Events, 3)
	for i, ev := range s.Events {
		assert.Equal(t, i+1, ev.Round)
	}
}

func TestParseWithName(t *testing.T) {
	snaps, err := Parse(context.Background(), strings.NewReader(instance("a", 1, optimal)), WithName("run-7.out"))
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "run-7.out", snaps[0].Info.File)
}

func TestParseRoundRange(t *testing.T) {
	snaps, err := Parse(context.Background(), strings.NewReader(instance("a", 5, optimal)), WithRoundRange(2, 3))
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	var rounds []int
	for _, ev := range snaps[0].Events {
		rounds = append(rounds, ev.Round)
	}
	assert.Equal(t, []int{2, 3}, rounds)
}

func TestParseNodeRangeExcludesRoot(t *testing.T) {
	snaps, err := Parse(context.Background(), strings.NewReader(instance("a", 2, optimal)), WithNodeRange(2, 0))
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Empty(t, snaps[0].Events)
}

func TestParseInstanceFilter(t *testing.T) {
	text := instance("alpha", 1, optimal) + instance("beta", 1, optimal) + instance("gamma", 1, optimal)
	snaps, err := Parse(context.Background(), strings.NewReader(text), WithInstanceFilter("alp", "gam"))
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "alpha", snaps[0].Info.InstanceName)
	assert.Equal(t, "gamma", snaps[1].Info.InstanceName)
}

func TestParseLineLimit(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	snaps, err := Parse(context.Background(), strings.NewReader(instance("big", 20, optimal)),
		WithLineLimit(10), WithLogger(zap.New(core)))
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, StatusTruncated, snaps[0].Info.Status)
	assert.Equal(t, "resource_guard_tripped", logs.FilterMessage("transcript anomaly").All()[0].ContextMap()["kind"])
}

func TestParseUnterminated(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	snaps, err := Parse(context.Background(), strings.NewReader(instance("cut", 2, "")), WithLogger(zap.New(core)))
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, StatusAbrupt, snaps[0].Info.Status)
	assert.Len(t, snaps[0].Events, 2)
	assert.Equal(t, 1, logs.FilterMessage("transcript anomaly").Len())
}

func TestParseFilesCompressed(t *testing.T) {
	dir := t.TempDir()
	gz := filepath.Join(dir, "one.out.gz")
	lz := filepath.Join(dir, "two.out.lz4")
	plain := filepath.Join(dir, "three.out")
	writeGzip(t, gz, instance("one", 1, optimal))
	writeLZ4(t, lz, instance("two", 2, optimal))
	require.NoError(t, os.WriteFile(plain, []byte(instance("three", 3, optimal)), 0644))

	snaps, err := ParseFiles(context.Background(), []string{lz, plain, gz})
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	for i, want := range []struct {
		name, file string
		events     int
	}{{"two", lz, 2}, {"three", plain, 3}, {"one", gz, 1}} {
		assert.Equal(t, want.name, snaps[i].Info.InstanceName)
		assert.Equal(t, want.file, snaps[i].Info.File)
		assert.Len(t, snaps[i].Events, want.events)
	}
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile(context.Background(), filepath.Join(t.TempDir(), "nope.out"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Parse(ctx, strings.NewReader(instance("a", 1, optimal)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseIdempotent(t *testing.T) {
	text := instance("a", 4, optimal) + instance("b", 2, "")
	first, err := Parse(context.Background(), strings.NewReader(text), WithAggregate())
	require.NoError(t, err)
	second, err := Parse(context.Background(), strings.NewReader(text), WithAggregate())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
