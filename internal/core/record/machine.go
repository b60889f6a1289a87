package record

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gowvp/watcher/internal/core/motion"
)

// State 录制状态机的状态
type State uint8

const (
	StateIdle State = iota
	StateRecording
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}

// StopReason 切片收尾原因，进日志与提交回调
type StopReason string

const (
	ReasonMotionStop    StopReason = "motion_stop"    // 去抖后的 Stop 事件
	ReasonHardCap       StopReason = "hard_cap"       // 到达绝对时长上限
	ReasonDurationCap   StopReason = "duration_cap"   // 到达标称切片时长，滚动开新片
	ReasonMotionTimeout StopReason = "motion_timeout" // 运动消失超过 force_stop_after_motion
	ReasonCameraLost    StopReason = "camera_lost"
	ReasonShutdown      StopReason = "shutdown"
)

// Caps 切片时长的三重封顶
type Caps struct {
	Nominal   time.Duration // 标称切片时长，到达后滚动
	ForceStop time.Duration // 无运动强制收尾时长
	Hard      time.Duration // 绝对上限，优先级最高
}

// CloseFunc 切片收尾回调，句柄所有权随调用移交
// 接收方（通常是后台提交协程）独占句柄，状态机此后不再触碰它
type CloseFunc func(h *Handle, reason StopReason)

// Machine 录制状态机，"当前是否有切片在录" 的唯一事实来源
// 只在采集环所在的 goroutine 上被调用，无需加锁
type Machine struct {
	writer  *Writer
	caps    Caps
	onClose CloseFunc

	state        State
	handle       *Handle
	clipStart    time.Time
	lastMotion   time.Time
	motionActive bool
}

// NewMachine 创建状态机
// 封顶优先级的裁定：硬上限恒胜，其次标称时长，最后是无运动超时
func NewMachine(writer *Writer, caps Caps, onClose CloseFunc) (*Machine, error) {
	if writer == nil {
		return nil, fmt.Errorf("writer is required")
	}
	if caps.Nominal <= 0 || caps.ForceStop <= 0 || caps.Hard <= 0 {
		return nil, fmt.Errorf("caps must be positive: %+v", caps)
	}
	if caps.Hard < caps.Nominal {
		return nil, fmt.Errorf("hard cap %s below nominal cap %s", caps.Hard, caps.Nominal)
	}
	if onClose == nil {
		return nil, fmt.Errorf("close callback is required")
	}
	return &Machine{writer: writer, caps: caps, onClose: onClose}, nil
}

func (m *Machine) State() State    { return m.state }
func (m *Machine) Recording() bool { return m.state == StateRecording }

// HandleEvent 消费一个去抖事件
// pending 是触发确认期间攒下的预触发帧，Start 被接受时先行入片，
// 保证整段运动从第一个真样本起都被覆盖
func (m *Machine) HandleEvent(ev motion.Event, inWindow bool, pending []*motion.Frame) error {
	switch ev.Kind {
	case motion.EventStart:
		m.motionActive = true
		m.lastMotion = ev.Time
		if !inWindow {
			slog.Info("motion start outside schedule window, ignored", "at", ev.Time.Format(time.DateTime), "area", ev.Area)
			return nil
		}
		if m.state == StateRecording {
			return nil
		}
		start := ev.Time
		if len(pending) > 0 {
			start = pending[0].Timestamp
		}
		return m.open(start, pending)

	case motion.EventContinue:
		m.motionActive = true
		m.lastMotion = ev.Time

	case motion.EventStop:
		m.motionActive = false
		if m.state == StateRecording {
			m.close(ReasonMotionStop)
		}
	}
	return nil
}

// AppendFrame 录制态下接收一帧，并在每帧后检查封顶
func (m *Machine) AppendFrame(f *motion.Frame) error {
	if m.state != StateRecording {
		return nil
	}
	if err := m.writer.Append(m.handle, f); err != nil {
		m.writer.Abort(m.handle)
		m.handle = nil
		m.state = StateIdle
		return err
	}

	elapsed := f.Timestamp.Sub(m.clipStart)
	switch {
	case elapsed >= m.caps.Hard:
		// 硬上限恒胜：运动仍在持续也强制切断，随后立即滚动开新片
		m.close(ReasonHardCap)
		return m.reopenIfActive(f.Timestamp)
	case elapsed >= m.caps.Nominal:
		m.close(ReasonDurationCap)
		return m.reopenIfActive(f.Timestamp)
	case f.Timestamp.Sub(m.lastMotion) >= m.caps.ForceStop:
		m.close(ReasonMotionTimeout)
	}
	return nil
}

// Finalized 写入器报告 Final 或 Aborted 后由采集环调用
// 仅当状态机仍在等待收尾时回到 Idle；滚动开片后收到的旧片回执是空操作
func (m *Machine) Finalized() {
	if m.state == StateStopping {
		m.state = StateIdle
	}
}

// ForceClose 因外部原因（相机断流、进程退出）强制收尾在录切片
// 运动现场随之作废，封顶切断后的滚动开片不会发生
func (m *Machine) ForceClose(reason StopReason) {
	m.motionActive = false
	if m.state == StateRecording {
		m.close(reason)
	}
}

// Shutdown 进程退出前收尾在录切片
func (m *Machine) Shutdown() {
	m.ForceClose(ReasonShutdown)
}

func (m *Machine) open(start time.Time, pending []*motion.Frame) error {
	h, err := m.writer.Open(start)
	if err != nil {
		return err
	}
	for _, f := range pending {
		if err := m.writer.Append(h, f); err != nil {
			m.writer.Abort(h)
			return err
		}
	}
	m.handle = h
	m.state = StateRecording
	m.clipStart = start
	slog.Info("clip opened", "clip", h.ID, "start", start.Format(time.DateTime), "pre_frames", len(pending))
	return nil
}

// close 移交句柄所有权并进入 Stopping
func (m *Machine) close(reason StopReason) {
	h := m.handle
	m.handle = nil
	m.state = StateStopping
	slog.Info("clip closing", "clip", h.ID, "reason", string(reason), "frames", h.Frames())
	m.onClose(h, reason)
}

// reopenIfActive 封顶切断后若运动仍在持续，立即开新片，两片之间无运动缺口
func (m *Machine) reopenIfActive(ts time.Time) error {
	if !m.motionActive {
		return nil
	}
	return m.open(ts, nil)
}
