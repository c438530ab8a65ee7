package layout

import (
	"errors"
	"math"
	"testing"

	"github.com/go-drift/hosting/pkg/component"
	"github.com/go-drift/hosting/pkg/geometry"
)

type logEntry struct {
	level   Level
	message string
}

func recordingEngine() (*BoxEngine, *[]logEntry) {
	var entries []logEntry
	e := NewBoxEngine()
	e.SetLogger(func(level Level, message string) {
		entries = append(entries, logEntry{level, message})
	})
	return e, &entries
}

func countLevel(entries []logEntry, level Level) int {
	n := 0
	for _, e := range entries {
		if e.level == level {
			n++
		}
	}
	return n
}

func TestBoxEngineFixedWithinRange(t *testing.T) {
	e, logs := recordingEngine()
	r := geometry.SizeRangeFromBounds(geometry.Size{Width: 320, Height: 480})

	res, err := e.Compute(Fixed{Size: geometry.Size{Width: 100, Height: 50}}, r)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if res.Size != (geometry.Size{Width: 100, Height: 50}) {
		t.Errorf("Size = %v, want 100x50", res.Size)
	}
	if res.Range != r {
		t.Errorf("Range = %v, want %v", res.Range, r)
	}
	if countLevel(*logs, LevelWarn) != 0 {
		t.Errorf("unexpected warnings: %v", *logs)
	}
}

func TestBoxEngineClampsOversizedContent(t *testing.T) {
	e, logs := recordingEngine()
	r := geometry.SizeRangeFromBounds(geometry.Size{Width: 320, Height: 480})

	res, err := e.Compute(Fixed{Size: geometry.Size{Width: 1000, Height: 50}}, r)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if res.Size != (geometry.Size{Width: 320, Height: 50}) {
		t.Errorf("Size = %v, want 320x50", res.Size)
	}
	if countLevel(*logs, LevelWarn) != 1 {
		t.Errorf("warnings = %d, want 1", countLevel(*logs, LevelWarn))
	}
}

func TestBoxEngineFillTracksRange(t *testing.T) {
	e := NewBoxEngine()
	for _, bounds := range []geometry.Size{{Width: 320, Height: 480}, {Width: 320, Height: 600}} {
		res, err := e.Compute(Fill{}, geometry.SizeRangeFromBounds(bounds))
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if res.Size != bounds {
			t.Errorf("Size = %v, want %v", res.Size, bounds)
		}
	}
}

func TestBoxEngineStack(t *testing.T) {
	e := NewBoxEngine()
	stack := Stack{Items: []component.Component{
		Fixed{Size: geometry.Size{Width: 40, Height: 10}},
		Fixed{Size: geometry.Size{Width: 20, Height: 30}},
		nil,
	}}

	res, err := e.Compute(stack, geometry.SizeRangeFromBounds(geometry.Size{Width: 100, Height: 100}))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if res.Size != (geometry.Size{Width: 40, Height: 30}) {
		t.Errorf("Size = %v, want 40x30", res.Size)
	}
	if len(res.Root.Children) != 2 {
		t.Errorf("children = %d, want 2", len(res.Root.Children))
	}
}

func TestBoxEngineInvalidPreferredSizeLogsError(t *testing.T) {
	e, logs := recordingEngine()

	res, err := e.Compute(Fixed{Size: geometry.Size{Width: math.NaN(), Height: 10}},
		geometry.SizeRangeFromBounds(geometry.Size{Width: 50, Height: 50}))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !res.Size.IsZero() {
		t.Errorf("Size = %v, want zero", res.Size)
	}
	if countLevel(*logs, LevelError) != 1 {
		t.Errorf("errors logged = %d, want 1", countLevel(*logs, LevelError))
	}
}

func TestBoxEngineNilComponent(t *testing.T) {
	e, logs := recordingEngine()
	if _, err := e.Compute(nil, geometry.SizeRange{}); !errors.Is(err, ErrNilComponent) {
		t.Errorf("Compute(nil) error = %v, want ErrNilComponent", err)
	}
	if countLevel(*logs, LevelError) != 1 {
		t.Errorf("errors logged = %d, want 1", countLevel(*logs, LevelError))
	}
}

func TestBoxEngineEmptyRange(t *testing.T) {
	e := NewBoxEngine()
	res, err := e.Compute(Fill{}, geometry.SizeRangeFromBounds(geometry.Size{Width: -5, Height: -5}))
	if err != nil {
		t.Fatalf("Compute with empty range: %v", err)
	}
	if !res.Size.IsZero() {
		t.Errorf("Size = %v, want zero", res.Size)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"error", LevelError, false},
		{"WARN", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"", LevelInfo, false},
		{"debug", LevelDebug, false},
		{"trace", LevelVerbose, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if LevelError <= LevelWarn {
		t.Error("LevelError must be the highest severity")
	}
}
