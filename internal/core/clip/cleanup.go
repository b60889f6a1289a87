package clip

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ixugo/goddd/pkg/conc"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/web"
	"github.com/shirou/gopsutil/v4/disk"
	"gorm.io/gorm"
)

// StartJanitor 启动定时清理协程
// 程序启动时执行一次清理，随后按 sweep_interval 周期执行
// 文件系统是唯一事实来源：清理以目录扫描为准，索引表随之修剪
func (c Core) StartJanitor(ctx context.Context) {
	if c.retention == nil || c.retention.RetainDays <= 0 {
		slog.Info("clip cleanup disabled")
		return
	}

	slog.Info("clip cleanup worker started",
		"retain_days", c.retention.RetainDays,
		"orphan_temp_max_age", c.retention.OrphanTempMaxAge.Duration().String(),
		"disk_threshold", c.retention.DiskUsageThreshold,
	)

	c.RunSweep()

	interval := c.retention.SweepInterval.Duration()
	conc.Timer(ctx, interval, interval, func() {
		c.RunSweep()
	})
}

// RunSweep 执行一轮清理：过期切片、临时区孤儿、磁盘水位
func (c Core) RunSweep() {
	c.sweepExpiredClips()
	c.sweepOrphanTemp()
	c.sweepByDiskUsage()
}

// sweepExpiredClips 删除最终区中早于保留期限的切片文件
// 边界是排他的：修改时间恰好等于期限的文件保留
func (c Core) sweepExpiredClips() {
	horizon := time.Now().AddDate(0, 0, -c.retention.RetainDays)

	var filesDeleted, failedFiles int
	var freedBytes int64

	entries, err := os.ReadDir(c.recording.FinalDir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read final dir", "dir", c.recording.FinalDir, "err", err)
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(horizon) {
			continue
		}
		path := filepath.Join(c.recording.FinalDir, entry.Name())
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) {
				failedFiles++
			}
			continue
		}
		filesDeleted++
		freedBytes += info.Size()
	}

	rowsDeleted := c.pruneIndex(orm.Where("started_at < ?", orm.Time{Time: horizon}))

	cleanupEmptyDirs(c.recording.FinalDir)

	if filesDeleted > 0 || failedFiles > 0 {
		slog.Info("expired clip cleanup completed",
			"reason", "retention_policy",
			"retain_days", c.retention.RetainDays,
			"horizon", horizon.Format(time.DateTime),
			"files_deleted", filesDeleted,
			"rows_deleted", rowsDeleted,
			"failed_files", failedFiles,
			"freed_bytes", freedBytes,
		)
	}
}

// sweepOrphanTemp 回收临时区里的孤儿文件
// 正常提交会把文件搬出临时区，滞留超过 orphan_temp_max_age 的只能是崩溃残骸
func (c Core) sweepOrphanTemp() {
	maxAge := c.retention.OrphanTempMaxAge.Duration()
	if maxAge <= 0 {
		return
	}
	cutoff := time.Now().Add(-maxAge)

	entries, err := os.ReadDir(c.recording.TempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read temp dir", "dir", c.recording.TempDir, "err", err)
		}
		return
	}

	var reaped int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(c.recording.TempDir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove orphan temp file", "path", path, "err", err)
			continue
		}
		reaped++
	}

	if reaped > 0 {
		slog.Info("orphan temp cleanup completed", "files_deleted", reaped)
	}
}

// sweepByDiskUsage 基于磁盘使用率清理切片
// 使用率超过阈值时从最旧的切片删起，直到降回阈值以下
func (c Core) sweepByDiskUsage() {
	if c.store == nil {
		return
	}
	threshold := c.retention.DiskUsageThreshold
	if threshold <= 0 || threshold >= 100 {
		return
	}
	if _, err := os.Stat(c.recording.FinalDir); os.IsNotExist(err) {
		return
	}

	usage, err := disk.Usage(c.recording.FinalDir)
	if err != nil {
		slog.Warn("failed to get disk usage", "err", err)
		return
	}
	if usage.UsedPercent < threshold {
		return
	}

	ctx := context.Background()
	var deletedCount, failedCount int
	var freedBytes int64
	batchSize := 50

	for {
		var oldest []*Clip
		pager := web.PagerFilter{Page: 1, Size: batchSize}
		_, err := c.store.Clip().Find(ctx, &oldest, &pager, orm.OrderBy("started_at ASC"))
		if err != nil || len(oldest) == 0 {
			break
		}

		deleteIDs := make([]int64, 0, len(oldest))
		for _, rec := range oldest {
			if err := os.Remove(rec.Path); err != nil && !os.IsNotExist(err) {
				failedCount++
			} else {
				freedBytes += rec.Size
			}
			deleteIDs = append(deleteIDs, rec.ID)
		}

		_ = c.store.Clip().Session(ctx, func(tx *gorm.DB) error {
			return tx.Where("id IN ?", deleteIDs).Delete(&Clip{}).Error
		})
		deletedCount += len(deleteIDs)

		usage, err = disk.Usage(c.recording.FinalDir)
		if err != nil || usage.UsedPercent < threshold {
			break
		}
	}

	cleanupEmptyDirs(c.recording.FinalDir)

	if deletedCount > 0 || failedCount > 0 {
		slog.Info("disk usage cleanup completed",
			"reason", "disk_threshold_exceeded",
			"threshold", threshold,
			"clips_deleted", deletedCount,
			"failed_files", failedCount,
			"freed_bytes", freedBytes,
		)
	}
}

// pruneIndex 分批删除满足条件的索引记录，返回删除行数
// 无索引库时（纯文件模式）直接跳过
func (c Core) pruneIndex(conditions ...orm.QueryOption) int {
	if c.store == nil {
		return 0
	}

	ctx := context.Background()
	batchSize := 100
	totalDeleted := 0

	for {
		var clips []*Clip
		pager := web.PagerFilter{Page: 1, Size: batchSize}
		_, err := c.store.Clip().Find(ctx, &clips, &pager, conditions...)
		if err != nil || len(clips) == 0 {
			break
		}

		deleteIDs := make([]int64, 0, len(clips))
		for _, rec := range clips {
			deleteIDs = append(deleteIDs, rec.ID)
		}

		err = c.store.Clip().Session(ctx, func(tx *gorm.DB) error {
			return tx.Where("id IN ?", deleteIDs).Delete(&Clip{}).Error
		})
		if err != nil {
			slog.Warn("failed to batch delete clip rows", "count", len(deleteIDs), "err", err)
			break
		}
		totalDeleted += len(deleteIDs)
	}
	return totalDeleted
}

// cleanupEmptyDirs 递归删除空目录
func cleanupEmptyDirs(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			subDir := filepath.Join(dir, entry.Name())
			cleanupEmptyDirs(subDir)

			// 检查子目录是否为空
			subEntries, err := os.ReadDir(subDir)
			if err == nil && len(subEntries) == 0 {
				_ = os.Remove(subDir)
			}
		}
	}
}
