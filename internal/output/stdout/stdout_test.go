package stdout

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/crimson-sun/pricelog/internal/model"
	"github.com/crimson-sun/pricelog/internal/output"
)

func testSnapshot() model.Snapshot {
	return model.Snapshot{
		Info: model.Info{InstanceName: "N1C1W1_A", SettingsName: "default", Status: model.StatusOptimal},
		Events: []model.PricingEvent{
			{Node: 1, Round: 1, Sequence: 2, Prob: 0, Elapsed: 0.02, Vars: 3, Farkas: true},
		},
		Variables: []model.VariableCreationEvent{{Time: 0.1, Incumbent: true}},
	}
}

// captureStdout redirects os.Stdout to capture output.
func captureStdout(fn func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestOutputCompactJSON(t *testing.T) {
	result := captureStdout(func() {
		out := New(output.Standard, false)
		out.Write(context.Background(), testSnapshot())
	})

	// Should be single line (NDJSON).
	lines := strings.Split(strings.TrimSpace(result), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"info", "events", "variables", "gap"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
}

func TestOutputPrettyJSON(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf, output.Standard, true)
	if err := out.Write(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	if !strings.Contains(buf.String(), "\n  \"info\"") {
		t.Errorf("expected indented output, got:\n%s", buf.String())
	}
	var snap model.Snapshot
	if err := json.Unmarshal(buf.Bytes(), &snap); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if snap.Info.Status != model.StatusOptimal {
		t.Errorf("status = %v, want optimal", snap.Info.Status)
	}
}

func TestOutputMinimalOmitsFields(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf, output.Minimal, false)
	out.Write(context.Background(), testSnapshot())

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := m["events"]; ok {
		t.Error("events should be omitted at Minimal")
	}
	if _, ok := m["variables"]; ok {
		t.Error("variables should be omitted at Minimal")
	}
	if err := out.Close(); err != nil {
		t.Errorf("Close error: %v", err)
	}
}
