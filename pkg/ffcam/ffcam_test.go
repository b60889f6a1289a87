package ffcam

import (
	"strings"
	"testing"
)

func TestNewCaptureValidation(t *testing.T) {
	if _, err := NewCapture(Config{Width: 0, Height: 240, FPS: 10, Input: "/dev/video0"}); err == nil {
		t.Fatal("expected error for zero width")
	}
	if _, err := NewCapture(Config{Width: 320, Height: 240, FPS: 0, Input: "/dev/video0"}); err == nil {
		t.Fatal("expected error for zero fps")
	}
	if _, err := NewCapture(Config{Width: 320, Height: 240, FPS: 10}); err == nil {
		t.Fatal("expected error for empty input")
	}

	c, err := NewCapture(Config{Width: 320, Height: 240, FPS: 10, Input: "/dev/video0"})
	if err != nil {
		t.Fatal(err)
	}
	if c.FrameSize() != 320*240*3/2 {
		t.Fatalf("frame size = %d, want %d", c.FrameSize(), 320*240*3/2)
	}
	w, h := c.Dimensions()
	if w != 320 || h != 240 {
		t.Fatalf("dimensions = %dx%d", w, h)
	}
}

func TestBuildFFmpegArgsV4L2(t *testing.T) {
	c, err := NewCapture(Config{Width: 640, Height: 480, FPS: 15, Input: "/dev/video0"})
	if err != nil {
		t.Fatal(err)
	}
	args := strings.Join(c.buildFFmpegArgs(), " ")
	for _, want := range []string{"-f v4l2", "-video_size 640x480", "-i /dev/video0", "-pix_fmt yuv420p", "pipe:1"} {
		if !strings.Contains(args, want) {
			t.Fatalf("args missing %q: %s", want, args)
		}
	}
	if strings.Contains(args, "rtsp_transport") {
		t.Fatalf("v4l2 input must not carry rtsp options: %s", args)
	}
}

func TestBuildFFmpegArgsRTSP(t *testing.T) {
	c, err := NewCapture(Config{Width: 640, Height: 480, FPS: 15, Input: "rtsp://127.0.0.1/stream"})
	if err != nil {
		t.Fatal(err)
	}
	args := strings.Join(c.buildFFmpegArgs(), " ")
	for _, want := range []string{"-rtsp_transport tcp", "-i rtsp://127.0.0.1/stream", "-f rawvideo"} {
		if !strings.Contains(args, want) {
			t.Fatalf("args missing %q: %s", want, args)
		}
	}
}
