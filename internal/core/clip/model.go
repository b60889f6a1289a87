package clip

import "github.com/ixugo/goddd/pkg/orm"

// Clip 已提交切片的索引记录
// 文件系统才是对下游的交付契约，本表只服务于进程内的检索与清理
type Clip struct {
	ID        int64    `gorm:"primaryKey" json:"id"`
	ClipID    string   `gorm:"column:clip_id;index" json:"clip_id"` // 写入器生成的切片标识
	StartedAt orm.Time `gorm:"index" json:"started_at"`             // 切片起始时间
	EndedAt   orm.Time `json:"ended_at"`                            // 切片结束时间
	Duration  float64  `json:"duration"`                            // 实际时长（秒）
	Frames    int      `json:"frames"`                              // 帧数
	Path      string   `json:"path"`                                // 最终区文件路径
	Size      int64    `json:"size"`                                // 文件大小（字节）
	CreatedAt orm.Time `json:"created_at"`
}

func (Clip) TableName() string {
	return "clips"
}

// TimeRange 时间轴数据项，表示一段切片的时间范围
type TimeRange struct {
	ID       int64   `json:"id"`
	StartMs  int64   `json:"start_ms"`
	EndMs    int64   `json:"end_ms"`
	Duration float64 `json:"duration"`
	Frames   int     `json:"frames"`
}
