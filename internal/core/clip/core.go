package clip

import (
	"github.com/gowvp/watcher/internal/conf"
)

// Storer data persistence
type Storer interface {
	Clip() ClipStorer
}

// Core business domain
type Core struct {
	store     Storer
	recording *conf.Recording
	retention *conf.Retention
}

type Option func(*Core)

// WithConfig 注入录制与保留策略配置
func WithConfig(recording *conf.Recording, retention *conf.Retention) Option {
	return func(c *Core) {
		c.recording = recording
		c.retention = retention
	}
}

// NewCore create business domain
func NewCore(store Storer, opts ...Option) Core {
	c := Core{store: store}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Indexed 是否带索引库运行，纯文件模式下为 false
func (c Core) Indexed() bool {
	return c.store != nil
}
