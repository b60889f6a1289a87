package clip

import (
	"context"
	"log/slog"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/jinzhu/copier"
	"gorm.io/gorm"
)

// ClipStorer Instantiation interface
type ClipStorer interface {
	Find(context.Context, *[]*Clip, orm.Pager, ...orm.QueryOption) (int64, error)
	Get(context.Context, *Clip, ...orm.QueryOption) error
	Add(context.Context, *Clip) error
	Del(context.Context, *Clip, ...orm.QueryOption) error
	Count(context.Context, ...orm.QueryOption) (int64, error)

	Session(context.Context, ...func(*gorm.DB) error) error
}

// FindClips 分页查询切片列表，支持时间范围筛选
func (c Core) FindClips(ctx context.Context, in *FindClipInput) ([]*Clip, int64, error) {
	query := orm.NewQuery(2).OrderBy("started_at DESC")

	if in.StartMs > 0 && in.EndMs > 0 {
		query.Where("started_at >= ? AND ended_at <= ?", in.StartAt(), in.EndAt())
	}

	items := make([]*Clip, 0, in.Limit())
	total, err := c.store.Clip().Find(ctx, &items, in, query.Encode()...)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find in[%+v] err[%s]`, in, err.Error())
	}
	return items, total, nil
}

// GetClip Query a single object
func (c Core) GetClip(ctx context.Context, id int64) (*Clip, error) {
	out := Clip{ID: id}
	if err := c.store.Clip().Get(ctx, &out, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, reason.ErrNotFound.Withf(`Get id[%v] err[%s]`, id, err.Error())
		}
		return nil, reason.ErrDB.Withf(`Get id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// AddClip Insert into database
func (c Core) AddClip(ctx context.Context, in *AddClipInput) (*Clip, error) {
	var out Clip
	if err := copier.Copy(&out, in); err != nil {
		slog.ErrorContext(ctx, "Copy", "err", err)
	}

	if err := c.store.Clip().Add(ctx, &out); err != nil {
		return nil, reason.ErrDB.Withf(`Add err[%s]`, err.Error())
	}
	return &out, nil
}

// DelClip Delete object
func (c Core) DelClip(ctx context.Context, id int64) (*Clip, error) {
	var out Clip
	if err := c.store.Clip().Del(ctx, &out, orm.Where("id=?", id)); err != nil {
		return nil, reason.ErrDB.Withf(`Del id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// GetTimeline 获取时间轴数据，返回指定时间范围内的切片时段列表
func (c Core) GetTimeline(ctx context.Context, in *TimelineInput) ([]TimeRange, error) {
	if in.StartMs <= 0 || in.EndMs <= 0 {
		return nil, reason.ErrBadRequest.Withf("start_ms and end_ms are required")
	}

	query := orm.NewQuery(1).OrderBy("started_at ASC")
	// 查询时间范围内有重叠的切片
	query.Where("started_at < ? AND ended_at > ?", in.EndAt(), in.StartAt())

	var clips []*Clip
	// 使用默认分页器避免 nil pointer
	pager := &defaultPager{limit: 1000}
	_, err := c.store.Clip().Find(ctx, &clips, pager, query.Encode()...)
	if err != nil {
		return nil, reason.ErrDB.Withf(`GetTimeline err[%s]`, err.Error())
	}

	result := make([]TimeRange, 0, len(clips))
	for _, r := range clips {
		result = append(result, TimeRange{
			ID:       r.ID,
			StartMs:  r.StartedAt.UnixMilli(),
			EndMs:    r.EndedAt.UnixMilli(),
			Duration: r.Duration,
			Frames:   r.Frames,
		})
	}
	return result, nil
}

// defaultPager 内部使用的分页器，避免传入 nil 导致空指针
type defaultPager struct {
	limit int
}

func (p *defaultPager) Offset() int { return 0 }
func (p *defaultPager) Limit() int  { return p.limit }
