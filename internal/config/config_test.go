package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fingerbrush.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Gesture.PinchThreshold != 0.06 || cfg.Gesture.Smoothing != 0.3 {
		t.Errorf("gesture defaults = %+v", cfg.Gesture)
	}
	if cfg.Canvas.StrokeColor != "#ffffff" || cfg.Canvas.LineWidth != 5 {
		t.Errorf("canvas defaults = %+v", cfg.Canvas)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
addr: "127.0.0.1:9090"
logLevel: debug
camera:
  facing: environment
  probeDevices: 2
canvas:
  width: 800
  height: 600
  strokeColor: "#3B82F6"
  mode: touch
pipeline:
  idleTimeout: 500ms
`)

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	want.Addr = "127.0.0.1:9090"
	want.LogLevel = "debug"
	want.Camera.Facing = "environment"
	want.Camera.ProbeDevices = 2
	want.Canvas.Width = 800
	want.Canvas.Height = 600
	want.Canvas.StrokeColor = "#3B82F6"
	want.Canvas.Mode = "touch"
	want.Pipeline.IdleTimeout = 500 * time.Millisecond

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_EmptyPathAndFile(t *testing.T) {
	got, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if diff := cmp.Diff(Default(), got); diff != "" {
		t.Errorf("Load(\"\") mismatch (-want +got):\n%s", diff)
	}

	got, err = Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load(empty file) error = %v", err)
	}
	if diff := cmp.Diff(Default(), got); diff != "" {
		t.Errorf("Load(empty file) mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "colour: red\n", "field colour not found"},
		{"bad colour", "canvas:\n  strokeColor: red\n", "canvas.strokeColor"},
		{"bad mode", "canvas:\n  mode: stylus\n", "canvas.mode"},
		{"bad facing", "camera:\n  facing: side\n", "camera.facing"},
		{"bad threshold", "gesture:\n  pinchThreshold: 1.5\n", "pinchThreshold"},
		{"zero canvas", "canvas:\n  width: 0\n", "canvas size"},
		{"huge canvas", "canvas:\n  width: 100000\n", "at most 8192"},
		{"bad level", "logLevel: loud\n", "logLevel"},
		{"fps order", "pipeline:\n  idleFPS: 20\n  activeFPS: 10\n", "idleFPS <= activeFPS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() error = nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !os.IsNotExist(err) {
		t.Errorf("Load(missing) error = %v, want not-exist", err)
	}
}
