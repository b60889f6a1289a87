package motion

import (
	"fmt"
	"time"
)

// Phase 去抖滤波器所处的阶段
type Phase uint8

const (
	PhaseQuiet Phase = iota
	PhasePending
	PhaseActive
	PhaseDraining
)

func (p Phase) String() string {
	switch p {
	case PhaseQuiet:
		return "quiet"
	case PhasePending:
		return "pending"
	case PhaseActive:
		return "active"
	case PhaseDraining:
		return "draining"
	}
	return "unknown"
}

// Debounce 把逐帧的噪声运动信号整形为干净的 Start/Continue/Stop 事件
// persistence 控制进入运动态所需的连续真样本数，拒绝单帧噪声
// cooldown 控制退出运动态所需的连续假样本数，避免短暂检测间隙把一段运动切碎
type Debounce struct {
	persistence int
	cooldown    int
	phase       Phase
	count       int
}

// NewDebounce 创建去抖滤波器
func NewDebounce(persistence, cooldown int) (*Debounce, error) {
	if persistence < 1 {
		return nil, fmt.Errorf("persistence must be >= 1, got %d", persistence)
	}
	if cooldown < 1 {
		return nil, fmt.Errorf("cooldown must be >= 1, got %d", cooldown)
	}
	return &Debounce{persistence: persistence, cooldown: cooldown}, nil
}

// Phase 当前阶段，供采集环读取以维护预触发缓冲
func (d *Debounce) Phase() Phase { return d.phase }

// Reset 回到 Quiet，相机断流后由采集环调用
func (d *Debounce) Reset() {
	d.phase = PhaseQuiet
	d.count = 0
}

// Feed 消费一个样本，每个 tick 至多产生一个事件
// Pending 期间任何假样本直接回落 Quiet；Draining 期间任何真样本回到 Active，
// 录制不中断（该 tick 以 Continue 事件对外呈现）
func (d *Debounce) Feed(s Sample, ts time.Time) (Event, bool) {
	switch d.phase {
	case PhaseQuiet:
		if !s.Motion {
			return Event{}, false
		}
		d.count = 1
		if d.count >= d.persistence {
			d.phase = PhaseActive
			return Event{Kind: EventStart, Time: ts, Area: s.Area}, true
		}
		d.phase = PhasePending

	case PhasePending:
		if !s.Motion {
			d.phase = PhaseQuiet
			d.count = 0
			return Event{}, false
		}
		d.count++
		if d.count >= d.persistence {
			d.phase = PhaseActive
			return Event{Kind: EventStart, Time: ts, Area: s.Area}, true
		}

	case PhaseActive:
		if s.Motion {
			return Event{Kind: EventContinue, Time: ts, Area: s.Area}, true
		}
		d.phase = PhaseDraining
		d.count = 1
		if d.count >= d.cooldown {
			d.phase = PhaseQuiet
			d.count = 0
			return Event{Kind: EventStop, Time: ts}, true
		}

	case PhaseDraining:
		if s.Motion {
			d.phase = PhaseActive
			d.count = 0
			return Event{Kind: EventContinue, Time: ts, Area: s.Area}, true
		}
		d.count++
		if d.count >= d.cooldown {
			d.phase = PhaseQuiet
			d.count = 0
			return Event{Kind: EventStop, Time: ts}, true
		}
	}
	return Event{}, false
}
