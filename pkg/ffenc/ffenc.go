// Package ffenc 基于 ffmpeg 子进程的切片编码器
// 从 stdin 喂入 YUV420P 原始帧，落盘 H.264 MP4
package ffenc

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/ixugo/goddd/pkg/queue"
)

// Encoder 编码器工厂，每个切片对应一次 Open
type Encoder struct {
	Preset  string // libx264 preset，默认 veryfast
	HWAccel string
}

func New() *Encoder {
	return &Encoder{Preset: "veryfast"}
}

// Open 为一个切片启动编码进程，path 是临时区文件路径
func (e *Encoder) Open(path string, width, height, fps int) (*Session, error) {
	if width <= 0 || height <= 0 || fps <= 0 {
		return nil, fmt.Errorf("invalid encode params: %dx%d@%d", width, height, fps)
	}
	preset := e.Preset
	if preset == "" {
		preset = "veryfast"
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.Itoa(fps),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", preset,
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-y", path,
	}
	cmd := exec.Command("ffmpeg", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	s := &Session{
		cmd:       cmd,
		stdin:     stdin,
		ffmpegLog: queue.NewCirQueue[string](100),
	}
	s.wg.Go(func() { s.readStderr(stderr) })
	return s, nil
}

// Session 单个切片的编码会话
// 调用方保证 WriteFrame 与 Close 不并发
type Session struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	wg        sync.WaitGroup
	ffmpegLog *queue.CirQueue[string]
	closed    bool
}

func (s *Session) WriteFrame(data []byte) error {
	if s.closed {
		return fmt.Errorf("encode session closed")
	}
	if _, err := s.stdin.Write(data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Close 关闭 stdin 让 ffmpeg 写出 moov，等待进程退出
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.stdin.Close()

	done := make(chan error, 1)
	go func() {
		done <- s.cmd.Wait()
	}()

	select {
	case err := <-done:
		s.wg.Wait()
		if err != nil {
			return fmt.Errorf("ffmpeg exited with error: %w", err)
		}
		return nil
	case <-time.After(10 * time.Second):
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		<-done
		s.wg.Wait()
		return fmt.Errorf("ffmpeg did not exit in time")
	}
}

func (s *Session) Log() []string {
	return s.ffmpegLog.Range()
}

func (s *Session) readStderr(stderr io.Reader) {
	scan := bufio.NewScanner(stderr)
	for scan.Scan() {
		s.ffmpegLog.Push(scan.Text())
	}
}
