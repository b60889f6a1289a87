// Package conf 进程启动时一次性加载的不可变配置
// 各组件显式接收所需配置，运行期不得重读或修改
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration 支持 TOML 字符串形式的时长，如 "30s"、"1h"
type Duration time.Duration

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

type Bootstrap struct {
	Server Server `toml:"server"`
	Data   Data   `toml:"data"`
}

type Server struct {
	Schedule  Schedule  `toml:"schedule"`
	Camera    Camera    `toml:"camera"`
	Motion    Motion    `toml:"motion"`
	Recording Recording `toml:"recording"`
	Retention Retention `toml:"retention"`
}

// Schedule 每日录制时间窗，end 为开区间，允许跨午夜
type Schedule struct {
	Start string `toml:"start"`
	End   string `toml:"end"`
}

type Camera struct {
	Input     string `toml:"input"`     // V4L2 设备路径或 RTSP 地址
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	FPS       int    `toml:"fps"`
	Transport string `toml:"transport"` // RTSP 传输方式，默认 tcp
	HWAccel   string `toml:"hw_accel"`
}

type Motion struct {
	Threshold         int `toml:"threshold"`          // 亮度差阈值，越大越不敏感
	MinArea           int `toml:"min_area"`           // 合格运动区域的最小像素面积
	PersistenceFrames int `toml:"persistence_frames"` // 连续多少帧检出运动才触发录制
	CooldownFrames    int `toml:"cooldown_frames"`    // 连续多少帧无运动才结束录制
}

type Recording struct {
	ClipDurationCap      Duration `toml:"clip_duration_cap"`       // 单个切片的标称时长，到达后滚动开新切片
	ForceStopAfterMotion Duration `toml:"force_stop_after_motion"` // 无运动超过该时长强制收尾
	MaxClipDuration      Duration `toml:"max_clip_duration"`       // 硬上限，运动持续也强制切断
	FinalDir             string   `toml:"final_dir"`
	TempDir              string   `toml:"temp_dir"`
}

type Retention struct {
	RetainDays         int      `toml:"retain_days"`
	OrphanTempMaxAge   Duration `toml:"orphan_temp_max_age"`
	SweepInterval      Duration `toml:"sweep_interval"`
	DiskUsageThreshold float64  `toml:"disk_usage_threshold"` // 百分比，0 关闭磁盘水位清理
}

type Data struct {
	Database Database `toml:"database"`
}

type Database struct {
	Dsn             string   `toml:"dsn"`
	MaxIdleConns    int      `toml:"max_idle_conns"`
	MaxOpenConns    int      `toml:"max_open_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
	SlowThreshold   Duration `toml:"slow_threshold"`
}

// SetupConfig 读取并校验配置文件，任何校验失败都是致命错误
func SetupConfig(path string) (*Bootstrap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	bc := defaultBootstrap()
	if err := toml.Unmarshal(raw, bc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := bc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return bc, nil
}

func defaultBootstrap() *Bootstrap {
	return &Bootstrap{
		Server: Server{
			Schedule: Schedule{Start: "08:00", End: "18:00"},
			Camera:   Camera{Input: "/dev/video0", Width: 1920, Height: 1080, FPS: 15, Transport: "tcp"},
			Motion: Motion{
				Threshold:         80,
				MinArea:           1500,
				PersistenceFrames: 3,
				CooldownFrames:    2,
			},
			Recording: Recording{
				ClipDurationCap:      Duration(10 * time.Second),
				ForceStopAfterMotion: Duration(5 * time.Second),
				MaxClipDuration:      Duration(30 * time.Second),
				FinalDir:             "recorded_clips",
				TempDir:              "temp_clips",
			},
			Retention: Retention{
				RetainDays:       7,
				OrphanTempMaxAge: Duration(time.Hour),
				SweepInterval:    Duration(time.Hour),
			},
		},
		Data: Data{Database: Database{Dsn: "watcher.db", MaxIdleConns: 1, MaxOpenConns: 1}},
	}
}

// Validate 校验配置，出错即 ConfigInvalid，进程不应继续启动
func (b *Bootstrap) Validate() error {
	s := b.Server
	if s.Camera.Input == "" {
		return fmt.Errorf("camera input is required")
	}
	if s.Camera.Width <= 0 || s.Camera.Height <= 0 || s.Camera.FPS <= 0 {
		return fmt.Errorf("camera resolution/fps must be positive")
	}
	if s.Motion.Threshold <= 0 {
		return fmt.Errorf("motion threshold must be positive")
	}
	if s.Motion.MinArea <= 0 {
		return fmt.Errorf("motion min_area must be positive")
	}
	if s.Motion.PersistenceFrames < 1 || s.Motion.CooldownFrames < 1 {
		return fmt.Errorf("persistence_frames and cooldown_frames must be >= 1")
	}
	if s.Recording.ClipDurationCap <= 0 || s.Recording.MaxClipDuration <= 0 || s.Recording.ForceStopAfterMotion <= 0 {
		return fmt.Errorf("recording durations must be positive")
	}
	if s.Recording.MaxClipDuration < s.Recording.ClipDurationCap {
		return fmt.Errorf("max_clip_duration %s is below clip_duration_cap %s",
			s.Recording.MaxClipDuration.Duration(), s.Recording.ClipDurationCap.Duration())
	}
	if s.Recording.FinalDir == "" || s.Recording.TempDir == "" {
		return fmt.Errorf("final_dir and temp_dir are required")
	}
	if filepath.Clean(s.Recording.FinalDir) == filepath.Clean(s.Recording.TempDir) {
		return fmt.Errorf("temp_dir must differ from final_dir")
	}
	if s.Retention.RetainDays < 0 {
		return fmt.Errorf("retain_days must not be negative")
	}
	if s.Retention.OrphanTempMaxAge <= 0 {
		return fmt.Errorf("orphan_temp_max_age must be positive")
	}
	if s.Retention.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive")
	}
	if s.Retention.DiskUsageThreshold < 0 || s.Retention.DiskUsageThreshold >= 100 {
		if s.Retention.DiskUsageThreshold != 0 {
			return fmt.Errorf("disk_usage_threshold must be within (0, 100)")
		}
	}
	if _, err := parseClock(s.Schedule.Start); err != nil {
		return fmt.Errorf("schedule start %q: %w", s.Schedule.Start, err)
	}
	if _, err := parseClock(s.Schedule.End); err != nil {
		return fmt.Errorf("schedule end %q: %w", s.Schedule.End, err)
	}
	if s.Schedule.Start == s.Schedule.End {
		return fmt.Errorf("schedule start equals end")
	}
	return nil
}

func parseClock(v string) (time.Time, error) {
	return time.Parse("15:04", v)
}
