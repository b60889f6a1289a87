// Package ffcam 基于 ffmpeg 子进程的摄像头取帧器
// 统一接入 V4L2 设备与 RTSP 流，输出固定大小的 YUV420P 原始帧
package ffcam

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ixugo/goddd/pkg/queue"
)

type (
	Config struct {
		Width, Height int
		FPS           int
		Input         string // V4L2 设备路径、RTSP 地址或本地文件
		Transport     string // RTSP 传输方式，默认 tcp
		HWAccel       string
		Name          string
	}
	FrameData struct {
		FrameNum  uint64
		Timestamp time.Time
		Data      []byte
	}
	Capture struct {
		config    Config
		frameSize int
		frameCh   chan *FrameData
		errCh     chan error
		ctx       context.Context
		cancel    context.CancelFunc
		m         sync.Mutex
		started   bool
		cmd       *exec.Cmd
		lastFrame time.Time
		wg        sync.WaitGroup
		ffmpegLog *queue.CirQueue[string]

		frameCount, skipCount uint64
	}
	Stats struct {
		Name                  string
		FrameCount, SkipCount uint64
		LastFrame             time.Time
		FrameSize             int
		IsRunning             bool
	}
)

func NewCapture(cfg Config) (*Capture, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid resolution: %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("invalid fps: %d", cfg.FPS)
	}
	if cfg.Input == "" {
		return nil, fmt.Errorf("input is required")
	}
	if cfg.Transport == "" {
		cfg.Transport = "tcp"
	}
	// YUV420P 每像素 1.5 字节
	frameSize := cfg.Width * cfg.Height * 3 / 2
	ctx, cancel := context.WithCancel(context.Background())
	return &Capture{
		config:    cfg,
		frameSize: frameSize,
		frameCh:   make(chan *FrameData, 10),
		errCh:     make(chan error, 1),
		ctx:       ctx,
		cancel:    cancel,
		ffmpegLog: queue.NewCirQueue[string](100),
	}, nil
}

func (c *Capture) FrameSize() int {
	return c.frameSize
}

func (c *Capture) Dimensions() (int, int) {
	return c.config.Width, c.config.Height
}

// buildFFmpegArgs 按输入类型组装 ffmpeg 参数
// 输入侧三种形态：V4L2 设备、RTSP 流、本地文件（回放调试用）
func (c *Capture) buildFFmpegArgs() []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-threads", "2",
	}
	if c.config.HWAccel != "" {
		args = append(args, "-hwaccel", c.config.HWAccel)
	}

	in := c.config.Input
	switch {
	case strings.HasPrefix(in, "rtsp://"):
		args = append(args,
			"-avoid_negative_ts", "make_zero",
			"-fflags", "+genpts+discardcorrupt",
			"-rtsp_transport", c.config.Transport,
			"-timeout", "10000000",
			"-use_wallclock_as_timestamps", "1",
		)
	case strings.HasPrefix(in, "/dev/"):
		args = append(args,
			"-f", "v4l2",
			"-framerate", strconv.Itoa(c.config.FPS),
			"-video_size", fmt.Sprintf("%dx%d", c.config.Width, c.config.Height),
		)
	default:
		// 本地文件按实际帧率回放
		args = append(args, "-re")
	}
	args = append(args, "-i", in)

	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(c.config.FPS),
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", c.config.FPS, c.config.Width, c.config.Height),
		"pipe:1",
	)
	return args
}

func (c *Capture) Start() error {
	c.m.Lock()
	defer c.m.Unlock()
	if c.started {
		return fmt.Errorf("capture already started")
	}

	args := c.buildFFmpegArgs()
	c.cmd = exec.CommandContext(c.ctx, "ffmpeg", args...)
	stdout, err := c.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := c.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}
	if err := c.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	c.started = true
	c.lastFrame = time.Now()

	c.wg.Go(func() { c.captureLoop(stdout) })
	c.wg.Go(func() { c.readStderr(stderr) })
	return nil
}

// captureLoop 从 ffmpeg 的 stdout 读取原始视频帧数据
// ffmpeg 输出的是固定大小的 YUV420P 格式帧，需要按帧大小读取
func (c *Capture) captureLoop(stdout io.Reader) {
	defer close(c.frameCh)

	reader := bufio.NewReaderSize(stdout, c.frameSize*10)
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		frameBytes := make([]byte, c.frameSize)
		n, err := io.ReadFull(reader, frameBytes)
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				select {
				case c.errCh <- fmt.Errorf("ffmpeg stream ended: %w", err):
				default:
				}
				return
			}
			select {
			case c.errCh <- fmt.Errorf("failed to read frame: %w", err):
			default:
				return
			}
		}
		if n != c.frameSize {
			select {
			case c.errCh <- fmt.Errorf("incomplete frame: %d != %d", n, c.frameSize):
			default:
			}
			return
		}

		frameNum := atomic.AddUint64(&c.frameCount, 1)
		now := time.Now()
		c.m.Lock()
		c.lastFrame = now
		c.m.Unlock()

		frame := FrameData{
			FrameNum:  frameNum,
			Timestamp: now,
			Data:      frameBytes,
		}

		select {
		case c.frameCh <- &frame:
		case <-c.ctx.Done():
			return
		default:
			// 下游消费不过来时丢帧，检测环永远拿到最新画面
			atomic.AddUint64(&c.skipCount, 1)
		}
	}
}

// readStderr 读取 ffmpeg 的 stderr 输出用于日志记录
// ffmpeg 的警告和错误信息都会输出到 stderr
func (c *Capture) readStderr(stderr io.Reader) {
	scan := bufio.NewScanner(stderr)
	for scan.Scan() {
		c.ffmpegLog.Push(scan.Text())
	}
}

func (c *Capture) Frames() <-chan *FrameData {
	return c.frameCh
}

func (c *Capture) Error() <-chan error {
	return c.errCh
}

func (c *Capture) Log() []string {
	return c.ffmpegLog.Range()
}

func (c *Capture) GetFrame(timeout time.Duration) (*FrameData, error) {
	select {
	case frame, ok := <-c.frameCh:
		if !ok {
			return nil, fmt.Errorf("frame channel closed")
		}
		return frame, nil
	case err := <-c.errCh:
		return nil, err
	case <-c.ctx.Done():
		return nil, c.ctx.Err()
	case <-time.After(timeout):
		return nil, fmt.Errorf("timeout")
	}
}

func (c *Capture) Stop() error {
	c.m.Lock()
	if !c.started {
		c.m.Unlock()
		return nil
	}
	c.m.Unlock()

	if cancel := c.cancel; cancel != nil {
		cancel()
	}
	c.wg.Wait()

	if c.cmd != nil && c.cmd.Process != nil {
		done := make(chan error, 1)
		defer close(done)
		go func() {
			done <- c.cmd.Wait()
		}()

		select {
		case <-time.After(5 * time.Second):
			if err := c.cmd.Process.Kill(); err != nil {
				return fmt.Errorf("failed to kill ffmpeg: %w", err)
			}
			<-done
		case <-done:
		}
	}
	return nil
}

func (c *Capture) GetStats() Stats {
	c.m.Lock()
	defer c.m.Unlock()
	return Stats{
		Name:       c.config.Name,
		FrameCount: atomic.LoadUint64(&c.frameCount),
		SkipCount:  atomic.LoadUint64(&c.skipCount),
		LastFrame:  c.lastFrame,
		FrameSize:  c.frameSize,
		IsRunning:  c.started,
	}
}
