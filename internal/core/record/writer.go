// Package record 负责把去抖后的运动事件转化为有界的视频切片，
// 并通过临时区 -> 最终区的两阶段提交保证下游进程永远看不到半成品文件
package record

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gowvp/watcher/internal/core/motion"
)

var (
	// ErrWriteFailed 切片写入或提交失败，切片已中止，临时产物已删除
	ErrWriteFailed = errors.New("clip write failed")
	// ErrEncodeFailed 编码产物不可用（空文件或尺寸不合理）
	ErrEncodeFailed = errors.New("clip encode failed")
)

// minClipBytes 成品文件的最小可信尺寸，低于此值视为编码失败
const minClipBytes = 1024

// tempSuffix 临时区文件的可识别后缀，清扫器据此辨认在写文件
const tempSuffix = ".mp4.tmp"

// Encoder 视频编码器，外部协作方，经由窄接口注入
type Encoder interface {
	Open(path string, width, height, fps int) (EncodeSession, error)
}

// EncodeSession 单个切片的编码会话
type EncodeSession interface {
	WriteFrame(data []byte) error
	Close() error
}

// ClipState 切片生命周期
type ClipState uint8

const (
	StateBuffering ClipState = iota + 1
	StateCommitting
	StateFinal
	StateAborted
)

func (s ClipState) String() string {
	switch s {
	case StateBuffering:
		return "buffering"
	case StateCommitting:
		return "committing"
	case StateFinal:
		return "final"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// Handle 在写切片的独占句柄
// 到达 Final 或 Aborted 之前由持有者独占，Final 之后所有权移交文件系统
type Handle struct {
	ID        string
	state     ClipState
	tempPath  string
	startedAt time.Time
	endedAt   time.Time
	frames    int
	sess      EncodeSession
}

func (h *Handle) State() ClipState { return h.state }
func (h *Handle) Frames() int      { return h.frames }

// Clip 已提交切片的描述，Finalize 成功后返回
type Clip struct {
	ID        string
	Path      string
	StartedAt time.Time
	EndedAt   time.Time
	Duration  float64 // 实际时长（秒）
	Frames    int
	Size      int64
}

// Writer 切片写入器
// 所有写入都落在临时区；只有 Finalize 的最后一步 rename 会让文件出现在最终区，
// 因此扫描最终区的传输进程无需任何额外的完整性检查
type Writer struct {
	enc      Encoder
	tempDir  string
	finalDir string
	width    int
	height   int
	fps      int
}

// NewWriter 创建写入器并确保两个存储目录存在
// 临时区与最终区必须位于同一文件系统，否则 rename 不具备原子性
func NewWriter(enc Encoder, tempDir, finalDir string, width, height, fps int) (*Writer, error) {
	if enc == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	if err := os.MkdirAll(finalDir, 0o755); err != nil {
		return nil, fmt.Errorf("create final dir: %w", err)
	}
	return &Writer{enc: enc, tempDir: tempDir, finalDir: finalDir, width: width, height: height, fps: fps}, nil
}

// Open 打开一个新切片，文件名含起始时间与随机段，避免同秒开片冲突
func (w *Writer) Open(start time.Time) (*Handle, error) {
	id := fmt.Sprintf("motion_%s_%s", start.Format("20060102_150405"), uuid.NewString()[:8])
	tempPath := filepath.Join(w.tempDir, id+tempSuffix)
	sess, err := w.enc.Open(tempPath, w.width, w.height, w.fps)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrWriteFailed, tempPath, err)
	}
	return &Handle{
		ID:        id,
		state:     StateBuffering,
		tempPath:  tempPath,
		startedAt: start,
		endedAt:   start,
		sess:      sess,
	}, nil
}

// Append 追加一帧，失败时调用方应 Abort
func (w *Writer) Append(h *Handle, f *motion.Frame) error {
	if h.state != StateBuffering {
		return fmt.Errorf("%w: append on %s clip %s", ErrWriteFailed, h.state, h.ID)
	}
	if err := h.sess.WriteFrame(f.Data); err != nil {
		return fmt.Errorf("%w: clip %s frame %d: %v", ErrWriteFailed, h.ID, h.frames, err)
	}
	h.frames++
	h.endedAt = f.Timestamp
	return nil
}

// Finalize 两阶段提交：关编码器、校验产物、单次原子 rename 进最终区
// 任一步失败都会删除临时文件并置 Aborted，最终区不会出现半成品
func (w *Writer) Finalize(h *Handle) (*Clip, error) {
	if h.state != StateBuffering {
		return nil, fmt.Errorf("%w: finalize on %s clip %s", ErrWriteFailed, h.state, h.ID)
	}
	h.state = StateCommitting

	if err := h.sess.Close(); err != nil {
		w.discard(h)
		return nil, fmt.Errorf("%w: clip %s: %v", ErrEncodeFailed, h.ID, err)
	}
	if h.frames == 0 {
		w.discard(h)
		return nil, fmt.Errorf("%w: clip %s has no frames", ErrEncodeFailed, h.ID)
	}
	info, err := os.Stat(h.tempPath)
	if err != nil {
		w.discard(h)
		return nil, fmt.Errorf("%w: clip %s: %v", ErrEncodeFailed, h.ID, err)
	}
	if info.Size() < minClipBytes {
		w.discard(h)
		return nil, fmt.Errorf("%w: clip %s only %d bytes for %d frames", ErrEncodeFailed, h.ID, info.Size(), h.frames)
	}

	duration := h.endedAt.Sub(h.startedAt).Seconds()
	if duration < 1.0 {
		duration = 1.0
	}
	finalPath := filepath.Join(w.finalDir, fmt.Sprintf("motion_%s_%ss.mp4",
		h.startedAt.Format("20060102_150405"), formatSeconds(duration)))

	if err := os.Rename(h.tempPath, finalPath); err != nil {
		w.discard(h)
		return nil, fmt.Errorf("%w: clip %s commit: %v", ErrWriteFailed, h.ID, err)
	}

	h.state = StateFinal
	return &Clip{
		ID:        h.ID,
		Path:      finalPath,
		StartedAt: h.startedAt,
		EndedAt:   h.endedAt,
		Duration:  duration,
		Frames:    h.frames,
		Size:      info.Size(),
	}, nil
}

// Abort 中止切片并清理临时产物，可安全重复调用
func (w *Writer) Abort(h *Handle) {
	if h == nil || h.state == StateFinal || h.state == StateAborted {
		return
	}
	_ = h.sess.Close()
	w.discard(h)
}

func (w *Writer) discard(h *Handle) {
	_ = os.Remove(h.tempPath)
	h.state = StateAborted
}

// formatSeconds 保留一位小数并去掉尾零，"10.0" -> "10"，"6.5" 保持不变
func formatSeconds(v float64) string {
	s := fmt.Sprintf("%.1f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
