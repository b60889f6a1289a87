// Package engine 单协程采集环：取帧、检测、去抖、驱动录制状态机
// 检测与状态流转全部发生在同一个 goroutine 上，领域组件因此无需加锁
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gowvp/watcher/internal/core/clip"
	"github.com/gowvp/watcher/internal/core/motion"
	"github.com/gowvp/watcher/internal/core/record"
	"github.com/gowvp/watcher/internal/core/schedule"
	"github.com/ixugo/goddd/pkg/orm"
)

// ErrCameraUnavailable 取帧失败，采集环据此进入退避重试
var ErrCameraUnavailable = errors.New("camera unavailable")

// FrameSource 帧来源，生产环境由 ffcam 适配，测试用假源
type FrameSource interface {
	GetFrame(timeout time.Duration) (*motion.Frame, error)
	Dimensions() (int, int)
}

const (
	getFrameTimeout = 3 * time.Second
	minBackoff      = 250 * time.Millisecond
	maxBackoff      = 5 * time.Second
)

type closeReq struct {
	handle *record.Handle
	reason record.StopReason
}

type finalizeResult struct {
	clip   *record.Clip
	reason record.StopReason
	err    error
}

// Engine 采集环
type Engine struct {
	source   FrameSource
	window   schedule.Window
	detector *motion.Detector
	debounce *motion.Debounce
	writer   *record.Writer
	machine  *record.Machine
	clips    clip.Core

	persistence int
	pending     []*motion.Frame

	closeCh  chan closeReq
	resultCh chan finalizeResult

	log *slog.Logger
}

// NewEngine 组装采集环
// persistence 同时是预触发缓冲的容量：确认期间攒下的帧在 Start 时入片
func NewEngine(
	source FrameSource,
	window schedule.Window,
	detector *motion.Detector,
	debounce *motion.Debounce,
	writer *record.Writer,
	caps record.Caps,
	clips clip.Core,
	persistence int,
) (*Engine, error) {
	e := Engine{
		source:      source,
		window:      window,
		detector:    detector,
		debounce:    debounce,
		writer:      writer,
		clips:       clips,
		persistence: persistence,
		closeCh:     make(chan closeReq, 4),
		resultCh:    make(chan finalizeResult, 4),
		log:         slog.With("module", "engine"),
	}
	m, err := record.NewMachine(writer, caps, func(h *record.Handle, reason record.StopReason) {
		e.closeCh <- closeReq{handle: h, reason: reason}
	})
	if err != nil {
		return nil, err
	}
	e.machine = m
	return &e, nil
}

// Run 阻塞运行采集环直到 ctx 结束
// 退出前收尾在录切片并等待全部提交完成
func (e *Engine) Run(ctx context.Context) error {
	go e.finalizeWorker()

	backoff := minBackoff
	cameraLost := false

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()
		default:
		}

		e.drainFinalized(ctx)

		f, err := e.source.GetFrame(getFrameTimeout)
		if err != nil {
			if !cameraLost {
				e.log.Warn("camera unavailable, entering retry", "err", err)
				cameraLost = true
				// 不会再有帧喂进来，在录切片原地收尾
				e.machine.ForceClose(record.ReasonCameraLost)
				e.debounce.Reset()
				e.pending = nil
			}
			if !sleepCtx(ctx, backoff) {
				continue
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		if cameraLost {
			e.log.Info("camera recovered, detector reset")
			e.detector.Reset()
			cameraLost = false
			backoff = minBackoff
		}

		e.step(f)
	}
}

// step 处理单帧：检测、去抖、事件分发、入片
func (e *Engine) step(f *motion.Frame) {
	sample, err := e.detector.Process(f)
	if err != nil {
		e.log.Warn("frame rejected by detector", "err", err)
		return
	}

	if ev, ok := e.debounce.Feed(sample, f.Timestamp); ok {
		var pre []*motion.Frame
		if ev.Kind == motion.EventStart {
			pre = e.pending
			e.pending = nil
		}
		if err := e.machine.HandleEvent(ev, e.window.Active(f.Timestamp), pre); err != nil {
			e.log.Error("event handling failed", "kind", ev.Kind.String(), "err", err)
		}
	}

	// 预触发缓冲只在确认期有效，回落 Quiet 即作废
	switch e.debounce.Phase() {
	case motion.PhasePending:
		e.pending = append(e.pending, f)
		if len(e.pending) > e.persistence {
			e.pending = e.pending[1:]
		}
	case motion.PhaseQuiet:
		e.pending = nil
	}

	if e.machine.Recording() {
		if err := e.machine.AppendFrame(f); err != nil {
			e.log.Error("frame append failed, clip aborted", "err", err)
		}
	}
}

// finalizeWorker 后台提交协程，独占收到的句柄
// 两阶段提交在这里完成，不阻塞采集环
func (e *Engine) finalizeWorker() {
	for req := range e.closeCh {
		c, err := e.writer.Finalize(req.handle)
		e.resultCh <- finalizeResult{clip: c, reason: req.reason, err: err}
	}
	close(e.resultCh)
}

// drainFinalized 非阻塞消化提交回执
func (e *Engine) drainFinalized(ctx context.Context) {
	for {
		select {
		case res, ok := <-e.resultCh:
			if !ok {
				return
			}
			e.commit(ctx, res)
		default:
			return
		}
	}
}

func (e *Engine) commit(ctx context.Context, res finalizeResult) {
	e.machine.Finalized()
	if res.err != nil {
		e.log.Error("clip finalize failed", "reason", string(res.reason), "err", res.err)
		return
	}
	e.log.Info("clip committed",
		"path", res.clip.Path,
		"reason", string(res.reason),
		"duration", res.clip.Duration,
		"frames", res.clip.Frames,
		"size", res.clip.Size,
	)
	if !e.clips.Indexed() {
		return
	}
	if _, err := e.clips.AddClip(ctx, &clip.AddClipInput{
		ClipID:    res.clip.ID,
		StartedAt: orm.Time{Time: res.clip.StartedAt},
		EndedAt:   orm.Time{Time: res.clip.EndedAt},
		Duration:  res.clip.Duration,
		Frames:    res.clip.Frames,
		Path:      res.clip.Path,
		Size:      res.clip.Size,
	}); err != nil {
		e.log.Warn("clip index insert failed", "path", res.clip.Path, "err", err)
	}
}

// shutdown 收尾在录切片并等待提交协程排空
func (e *Engine) shutdown() {
	e.machine.Shutdown()
	close(e.closeCh)
	ctx := context.Background()
	for res := range e.resultCh {
		e.commit(ctx, res)
	}
	e.log.Info("engine stopped")
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
