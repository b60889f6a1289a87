package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSetupConfig(t *testing.T) {
	path := writeConfig(t, `
[server.schedule]
start = "22:00"
end = "06:00"

[server.motion]
threshold = 90
min_area = 2000
persistence_frames = 3
cooldown_frames = 2

[server.recording]
max_clip_duration = "45s"
`)
	bc, err := SetupConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if bc.Server.Motion.Threshold != 90 {
		t.Fatalf("threshold = %d, want 90", bc.Server.Motion.Threshold)
	}
	if bc.Server.Recording.MaxClipDuration.Duration() != 45*time.Second {
		t.Fatalf("max_clip_duration = %s, want 45s", bc.Server.Recording.MaxClipDuration.Duration())
	}
	// 未覆盖的项保留默认值
	if bc.Server.Recording.ClipDurationCap.Duration() != 10*time.Second {
		t.Fatalf("clip_duration_cap default = %s, want 10s", bc.Server.Recording.ClipDurationCap.Duration())
	}
	if bc.Server.Camera.FPS != 15 {
		t.Fatalf("fps default = %d, want 15", bc.Server.Camera.FPS)
	}
}

func TestSetupConfigInvalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"malformed schedule", "[server.schedule]\nstart = \"8am\"\n"},
		{"equal window", "[server.schedule]\nstart = \"08:00\"\nend = \"08:00\"\n"},
		{"zero threshold", "[server.motion]\nthreshold = 0\n"},
		{"negative min_area", "[server.motion]\nmin_area = -5\n"},
		{"zero persistence", "[server.motion]\npersistence_frames = 0\n"},
		{"hard cap below nominal", "[server.recording]\nmax_clip_duration = \"5s\"\n"},
		{"same dirs", "[server.recording]\nfinal_dir = \"clips\"\ntemp_dir = \"clips\"\n"},
		{"zero orphan age", "[server.retention]\norphan_temp_max_age = \"0s\"\n"},
	}
	for _, tc := range cases {
		path := writeConfig(t, tc.body)
		if _, err := SetupConfig(path); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestSetupConfigMissingFile(t *testing.T) {
	if _, err := SetupConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
