package clip

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gowvp/watcher/internal/conf"
)

func newJanitorCore(t *testing.T, retainDays int, orphanAge time.Duration) (Core, string, string) {
	t.Helper()
	finalDir := filepath.Join(t.TempDir(), "recorded_clips")
	tempDir := filepath.Join(t.TempDir(), "temp_clips")
	for _, dir := range []string{finalDir, tempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	c := NewCore(nil, WithConfig(
		&conf.Recording{FinalDir: finalDir, TempDir: tempDir},
		&conf.Retention{
			RetainDays:       retainDays,
			OrphanTempMaxAge: conf.Duration(orphanAge),
			SweepInterval:    conf.Duration(time.Hour),
		},
	))
	return c, finalDir, tempDir
}

func writeFileAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// TestSweepExpiredClips 早于保留期限的切片被删，期限之内的保留
func TestSweepExpiredClips(t *testing.T) {
	c, finalDir, _ := newJanitorCore(t, 7, time.Hour)

	expired := filepath.Join(finalDir, "motion_20260815_090000_5s.mp4")
	fresh := filepath.Join(finalDir, "motion_20260823_090000_5s.mp4")
	edge := filepath.Join(finalDir, "motion_20260817_090000_5s.mp4")
	writeFileAged(t, expired, 8*24*time.Hour)
	writeFileAged(t, fresh, 24*time.Hour)
	// 刚好还差一点到期限，必须保留
	writeFileAged(t, edge, 7*24*time.Hour-time.Minute)

	c.RunSweep()

	if exists(expired) {
		t.Fatal("expired clip survived the sweep")
	}
	if !exists(fresh) {
		t.Fatal("fresh clip was deleted")
	}
	if !exists(edge) {
		t.Fatal("clip inside the retention horizon was deleted")
	}
}

// TestSweepOrphanTemp 临时区里滞留的崩溃残骸被回收，仍在写入窗口内的不动
func TestSweepOrphanTemp(t *testing.T) {
	c, finalDir, tempDir := newJanitorCore(t, 7, time.Hour)

	orphan := filepath.Join(tempDir, "motion_20260824_080000_ab12cd34.mp4.tmp")
	active := filepath.Join(tempDir, "motion_20260824_103000_ef56ab78.mp4.tmp")
	writeFileAged(t, orphan, 2*time.Hour)
	writeFileAged(t, active, time.Minute)

	c.RunSweep()

	if exists(orphan) {
		t.Fatal("orphan temp file survived the sweep")
	}
	if !exists(active) {
		t.Fatal("in-flight temp file was deleted")
	}
	// 孤儿只许被回收，绝不能晋升到最终区
	entries, err := os.ReadDir(finalDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp artifact leaked into final dir: %v", entries)
	}
}

// TestSweepMissingDirs 目录不存在时清理静默跳过
func TestSweepMissingDirs(t *testing.T) {
	c := NewCore(nil, WithConfig(
		&conf.Recording{FinalDir: filepath.Join(t.TempDir(), "nope"), TempDir: filepath.Join(t.TempDir(), "nope2")},
		&conf.Retention{RetainDays: 7, OrphanTempMaxAge: conf.Duration(time.Hour), SweepInterval: conf.Duration(time.Hour)},
	))
	c.RunSweep()
}

// TestSweepRemovesEmptySubdirs 清理后残留的空子目录被顺手删除
func TestSweepRemovesEmptySubdirs(t *testing.T) {
	c, finalDir, _ := newJanitorCore(t, 7, time.Hour)
	sub := filepath.Join(finalDir, "2026-08-10")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	c.RunSweep()

	if exists(sub) {
		t.Fatal("empty subdir survived the sweep")
	}
}
