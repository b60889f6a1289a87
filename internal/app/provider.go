package app

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/wire"
	"github.com/gowvp/watcher/internal/conf"
	"github.com/gowvp/watcher/internal/core/clip"
	"github.com/gowvp/watcher/internal/core/clip/store/clipdb"
	"github.com/gowvp/watcher/internal/core/engine"
	"github.com/gowvp/watcher/internal/core/motion"
	"github.com/gowvp/watcher/internal/core/record"
	"github.com/gowvp/watcher/internal/core/schedule"
	"github.com/gowvp/watcher/pkg/ffcam"
	"github.com/gowvp/watcher/pkg/ffenc"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/system"
	"gorm.io/gorm"
)

// ProviderSet is app providers.
var ProviderSet = wire.NewSet(NewCapture, NewClipCore, NewEngine, NewApp)

// frameSource 把 ffcam 的取帧器适配成采集环的帧来源
type frameSource struct {
	cap *ffcam.Capture
}

func (s frameSource) GetFrame(timeout time.Duration) (*motion.Frame, error) {
	fd, err := s.cap.GetFrame(timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrCameraUnavailable, err)
	}
	w, h := s.cap.Dimensions()
	return &motion.Frame{
		Seq:       fd.FrameNum,
		Timestamp: fd.Timestamp,
		Width:     w,
		Height:    h,
		Data:      fd.Data,
	}, nil
}

func (s frameSource) Dimensions() (int, int) {
	return s.cap.Dimensions()
}

// ffEncoder 把 ffenc 适配成写入器的编码器接口
type ffEncoder struct {
	enc *ffenc.Encoder
}

func (e ffEncoder) Open(path string, width, height, fps int) (record.EncodeSession, error) {
	return e.enc.Open(path, width, height, fps)
}

// NewCapture 按配置创建摄像头取帧器
func NewCapture(bc *conf.Bootstrap) (*ffcam.Capture, error) {
	cam := bc.Server.Camera
	return ffcam.NewCapture(ffcam.Config{
		Width:     cam.Width,
		Height:    cam.Height,
		FPS:       cam.FPS,
		Input:     cam.Input,
		Transport: cam.Transport,
		HWAccel:   cam.HWAccel,
		Name:      "watcher",
	})
}

// NewClipCore 创建切片索引与清理核心
func NewClipCore(db *gorm.DB, bc *conf.Bootstrap) clip.Core {
	store := clipdb.NewDB(db).AutoMigrate(orm.GetEnabledAutoMigrate())

	rec := bc.Server.Recording
	rec.FinalDir = absPath(rec.FinalDir)
	rec.TempDir = absPath(rec.TempDir)
	ret := bc.Server.Retention
	return clip.NewCore(store, clip.WithConfig(&rec, &ret))
}

// NewEngine 组装采集环：检测器、去抖、时间窗、写入器、状态机
func NewEngine(bc *conf.Bootstrap, capture *ffcam.Capture, clips clip.Core) (*engine.Engine, error) {
	s := bc.Server

	detector, err := motion.NewDetector(s.Camera.Width, s.Camera.Height, s.Motion.Threshold, s.Motion.MinArea)
	if err != nil {
		return nil, err
	}
	debounce, err := motion.NewDebounce(s.Motion.PersistenceFrames, s.Motion.CooldownFrames)
	if err != nil {
		return nil, err
	}
	window, err := schedule.ParseWindow(s.Schedule.Start, s.Schedule.End)
	if err != nil {
		return nil, err
	}

	writer, err := record.NewWriter(
		ffEncoder{enc: ffenc.New()},
		absPath(s.Recording.TempDir),
		absPath(s.Recording.FinalDir),
		s.Camera.Width, s.Camera.Height, s.Camera.FPS,
	)
	if err != nil {
		return nil, err
	}

	caps := record.Caps{
		Nominal:   s.Recording.ClipDurationCap.Duration(),
		ForceStop: s.Recording.ForceStopAfterMotion.Duration(),
		Hard:      s.Recording.MaxClipDuration.Duration(),
	}
	return engine.NewEngine(frameSource{cap: capture}, window, detector, debounce, writer, caps, clips, s.Motion.PersistenceFrames)
}

func absPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(system.Getwd(), p)
}
