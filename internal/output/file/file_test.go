package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/crimson-sun/pricelog/internal/model"
	"github.com/crimson-sun/pricelog/internal/output"
)

func testSnapshot(name string) model.Snapshot {
	return model.Snapshot{
		Info: model.Info{
			InstanceName: name,
			SettingsName: "aggressive",
			Status:       model.StatusOptimal,
			File:         "bpp.out",
			Lines:        42,
			Diagnostics:  12,
			Rounds:       3,
		},
		Events: []model.PricingEvent{
			{Node: 1, Round: 1, Sequence: 2, Prob: 0, Elapsed: 0.02, Vars: 3, Farkas: true},
			{Node: 1, Round: 2, Sequence: 4, Prob: model.ProbMasterLP, Elapsed: 0.5},
		},
		RootBounds: []model.RootBoundRow{
			{Iteration: 0, Primal: model.NewBound(4), Dual: model.NewBound(2), Gap: 0.5},
			{Iteration: 1, Primal: model.NewBound(1e20), Dual: model.NewBound(3), Gap: 1},
		},
		Variables:      []model.VariableCreationEvent{{Time: 0.12, Incumbent: true, RootLP: true}},
		IncumbentTimes: []float64{0.12},
		RootLPTimes:    []float64{0.12},
		Gap: model.GapResult{
			Status:    model.GapOK,
			Direction: model.DirectionPrimalUpper,
			Points:    []model.GapPoint{{Iteration: 0, Round: 2, Gap: 0.5}},
		},
	}
}

func TestWriteProducesValidNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	out, err := New(path, output.Standard)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := out.Write(context.Background(), testSnapshot(fmt.Sprintf("inst_%d", i))); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	out.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5", len(lines))
	}
	for i, line := range lines {
		var snap model.Snapshot
		if err := json.Unmarshal([]byte(line), &snap); err != nil {
			t.Errorf("line %d: invalid JSON: %v", i, err)
		}
		if want := fmt.Sprintf("inst_%d", i); snap.Info.InstanceName != want {
			t.Errorf("line %d: instance = %q, want %q", i, snap.Info.InstanceName, want)
		}
	}
}

func TestReadAllRoundTrip(t *testing.T) {
	for _, enc := range []Encoding{JSON, CBOR} {
		t.Run(enc.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out")
			out, err := New(path, output.Standard, WithEncoding(enc))
			if err != nil {
				t.Fatalf("New error: %v", err)
			}
			want := []model.Snapshot{testSnapshot("a"), testSnapshot("b"), {Info: model.Info{InstanceName: "empty"}}}
			for _, s := range want {
				if err := out.Write(context.Background(), s); err != nil {
					t.Fatalf("Write error: %v", err)
				}
			}
			if err := out.Close(); err != nil {
				t.Fatalf("Close error: %v", err)
			}

			got, err := ReadAll(path, enc)
			if err != nil {
				t.Fatalf("ReadAll error: %v", err)
			}
			if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadAllRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	os.WriteFile(path, []byte("{\"info\":\n"), 0644)
	if _, err := ReadAll(path, JSON); err == nil {
		t.Error("expected decode error")
	}
}

func TestParseEncoding(t *testing.T) {
	for in, want := range map[string]Encoding{"": JSON, "json": JSON, "cbor": CBOR} {
		got, err := ParseEncoding(in)
		if err != nil || got != want {
			t.Errorf("ParseEncoding(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseEncoding("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestRotationTriggersAtMaxSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.jsonl")

	// Each snapshot line is several hundred bytes, so every write rotates.
	out, err := New(path, output.Standard, WithMaxSize(200))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := out.Write(context.Background(), testSnapshot("rot")); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	out.Close()

	if _, err := os.Stat(path + ".1"); os.IsNotExist(err) {
		t.Error("expected rotated file .1 to exist")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("current file stat error: %v", err)
	}
	if info.Size() == 0 {
		t.Error("current file is empty after rotation")
	}
}

func TestCloseFlushesData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	out, err := New(path, output.Standard)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	out.Write(context.Background(), testSnapshot("flush"))
	out.Close()

	data, _ := os.ReadFile(path)
	if len(data) == 0 {
		t.Error("file is empty, Close did not flush buffered data")
	}
}

func TestVerbosityMinimalStripsFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	out, err := New(path, output.Minimal)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	out.Write(context.Background(), testSnapshot("min"))
	out.Close()

	data, _ := os.ReadFile(path)
	var snap map[string]any
	json.Unmarshal([]byte(strings.TrimSpace(string(data))), &snap)

	if _, ok := snap["events"]; ok {
		t.Error("Minimal verbosity should strip 'events'")
	}
	if _, ok := snap["variables"]; ok {
		t.Error("Minimal verbosity should strip 'variables'")
	}
	if _, ok := snap["root_bounds"]; !ok {
		t.Error("Minimal verbosity should keep 'root_bounds'")
	}
}

func TestConcurrentWritesSafe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	out, err := New(path, output.Standard)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out.Write(context.Background(), testSnapshot("conc"))
		}()
	}
	wg.Wait()
	out.Close()

	snaps, err := ReadAll(path, JSON)
	if err != nil {
		t.Fatalf("ReadAll error: %v", err)
	}
	if len(snaps) != 50 {
		t.Errorf("got %d snapshots, want 50", len(snaps))
	}
}
