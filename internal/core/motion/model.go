package motion

import "time"

// Frame 一帧原始图像数据，由采集端按序号递增交付
// Data 为 YUV420P 原始数据，前 Width*Height 字节是亮度平面
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Data      []byte
}

// Sample 单帧的运动判定结果
type Sample struct {
	Motion bool // 是否存在合格运动区域
	Area   int  // 最大合格区域的像素面积
}

// EventKind 去抖后的运动事件类型
type EventKind uint8

const (
	EventStart EventKind = iota + 1
	EventContinue
	EventStop
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventContinue:
		return "continue"
	case EventStop:
		return "stop"
	}
	return "unknown"
}

// Event 去抖后的运动状态转移事件
// 不变量：Stop 必然跟在某个 Start 之后，两个 Start 之间必有 Stop
type Event struct {
	Kind EventKind
	Time time.Time
	Area int
}
