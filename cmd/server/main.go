package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gowvp/watcher/internal/app"
	"github.com/gowvp/watcher/internal/conf"
)

var configPath = flag.String("c", "configs/config.toml", "配置文件路径")

func main() {
	flag.Parse()

	bc, err := conf.SetupConfig(*configPath)
	if err != nil {
		// 配置错误不带残缺配置运行，直接退出
		slog.Error("config rejected", "path", *configPath, "err", err)
		os.Exit(1)
	}

	setupLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("watcher starting",
		"input", bc.Server.Camera.Input,
		"resolution", slog.GroupValue(
			slog.Int("width", bc.Server.Camera.Width),
			slog.Int("height", bc.Server.Camera.Height),
			slog.Int("fps", bc.Server.Camera.FPS),
		),
		"window", bc.Server.Schedule.Start+"-"+bc.Server.Schedule.End,
	)

	if err := app.Run(ctx, bc); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("watcher exited", "err", err)
		os.Exit(1)
	}
	slog.Info("watcher stopped")
}

func setupLogger() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}
