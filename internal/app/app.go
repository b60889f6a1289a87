package app

import (
	"context"
	"log/slog"

	"github.com/gowvp/watcher/internal/conf"
	"github.com/gowvp/watcher/internal/core/clip"
	"github.com/gowvp/watcher/internal/core/engine"
	"github.com/gowvp/watcher/pkg/ffcam"
)

// App 进程级装配：取帧器、采集环、清理协程
type App struct {
	capture *ffcam.Capture
	engine  *engine.Engine
	clips   clip.Core
}

func NewApp(capture *ffcam.Capture, eng *engine.Engine, clips clip.Core) *App {
	return &App{capture: capture, engine: eng, clips: clips}
}

// Run 依赖注入后阻塞运行，ctx 结束即优雅退出
func Run(ctx context.Context, bc *conf.Bootstrap) error {
	a, cleanup, err := wireApp(bc)
	if err != nil {
		return err
	}
	defer cleanup()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	if err := a.capture.Start(); err != nil {
		return err
	}

	go a.clips.StartJanitor(ctx)

	err := a.engine.Run(ctx)

	if stopErr := a.capture.Stop(); stopErr != nil {
		slog.Warn("capture stop failed", "err", stopErr)
	}
	return err
}
