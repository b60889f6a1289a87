package clip

import (
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/web"
)

type FindClipInput struct {
	web.PagerFilter
	web.DateFilter
}

type AddClipInput struct {
	ClipID    string   `json:"clip_id"`
	StartedAt orm.Time `json:"started_at"`
	EndedAt   orm.Time `json:"ended_at"`
	Duration  float64  `json:"duration"`
	Frames    int      `json:"frames"`
	Path      string   `json:"path"`
	Size      int64    `json:"size"`
}

// TimelineInput 时间轴查询参数
type TimelineInput struct {
	web.DateFilter
}
