package clipdb

import (
	"context"
	"log/slog"

	"github.com/gowvp/watcher/internal/core/clip"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

var _ clip.Storer = &DB{}

// DB 切片索引的 gorm 存储实现
type DB struct {
	db *gorm.DB
}

func NewDB(db *gorm.DB) *DB {
	return &DB{db: db}
}

// AutoMigrate 按需建表，链式调用
func (d *DB) AutoMigrate(ok bool) *DB {
	if ok {
		if err := d.db.AutoMigrate(&clip.Clip{}); err != nil {
			slog.Error("auto migrate clips", "err", err)
		}
	}
	return d
}

func (d *DB) Clip() clip.ClipStorer {
	return &Clip{db: d.db}
}

var _ clip.ClipStorer = &Clip{}

type Clip struct {
	db *gorm.DB
}

// Find implements clip.ClipStorer.
func (c *Clip) Find(ctx context.Context, out *[]*clip.Clip, pager orm.Pager, opts ...orm.QueryOption) (int64, error) {
	db := c.db.WithContext(ctx).Model(&clip.Clip{})
	for _, opt := range opts {
		db = opt(db)
	}
	// Count 走独立会话，避免污染后续查询的语句状态
	var total int64
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, err
	}
	if pager != nil {
		db = db.Offset(pager.Offset()).Limit(pager.Limit())
	}
	return total, db.Find(out).Error
}

// Get implements clip.ClipStorer.
func (c *Clip) Get(ctx context.Context, out *clip.Clip, opts ...orm.QueryOption) error {
	db := c.db.WithContext(ctx).Model(&clip.Clip{})
	for _, opt := range opts {
		db = opt(db)
	}
	return db.First(out).Error
}

// Add implements clip.ClipStorer.
func (c *Clip) Add(ctx context.Context, in *clip.Clip) error {
	return c.db.WithContext(ctx).Create(in).Error
}

// Del implements clip.ClipStorer.
func (c *Clip) Del(ctx context.Context, out *clip.Clip, opts ...orm.QueryOption) error {
	db := c.db.WithContext(ctx)
	for _, opt := range opts {
		db = opt(db)
	}
	return db.Delete(out).Error
}

// Count implements clip.ClipStorer.
func (c *Clip) Count(ctx context.Context, opts ...orm.QueryOption) (int64, error) {
	db := c.db.WithContext(ctx).Model(&clip.Clip{})
	for _, opt := range opts {
		db = opt(db)
	}
	var total int64
	err := db.Count(&total).Error
	return total, err
}

// Session implements clip.ClipStorer.
func (c *Clip) Session(ctx context.Context, changeFns ...func(*gorm.DB) error) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, fn := range changeFns {
			if err := fn(tx); err != nil {
				return err
			}
		}
		return nil
	})
}
