// Package schedule 提供每日录制时间窗的判定
package schedule

import (
	"fmt"
	"time"
)

// Window 每日墙钟时间窗，end 为开区间，允许跨午夜（如 22:00 - 06:00）
type Window struct {
	start int // 当日分钟数
	end   int
}

// ParseWindow 解析 "HH:MM" 格式的起止时间
// start == end 视为非法配置，而不是 24 小时窗口
func ParseWindow(start, end string) (Window, error) {
	s, err := parseMinute(start)
	if err != nil {
		return Window{}, fmt.Errorf("schedule start %q: %w", start, err)
	}
	e, err := parseMinute(end)
	if err != nil {
		return Window{}, fmt.Errorf("schedule end %q: %w", end, err)
	}
	if s == e {
		return Window{}, fmt.Errorf("schedule start equals end (%s)", start)
	}
	return Window{start: s, end: e}, nil
}

func parseMinute(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Active 判定 t 是否落在窗口内
func (w Window) Active(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	if w.start < w.end {
		return m >= w.start && m < w.end
	}
	// 跨午夜
	return m >= w.start || m < w.end
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.start/60, w.start%60, w.end/60, w.end%60)
}
