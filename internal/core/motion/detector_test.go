package motion

import (
	"testing"
	"time"
)

const (
	testW = 320
	testH = 240
)

// makeFrame 构造固定亮度的 YUV420P 帧
func makeFrame(seq uint64, base byte) *Frame {
	data := make([]byte, testW*testH*3/2)
	for i := 0; i < testW*testH; i++ {
		data[i] = base
	}
	return &Frame{Seq: seq, Timestamp: time.Now(), Width: testW, Height: testH, Data: data}
}

// paintBlock 在亮度平面上画一个矩形亮块
func paintBlock(f *Frame, x0, y0, w, h int, v byte) {
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			f.Data[y*testW+x] = v
		}
	}
}

func TestDetectorStaticScene(t *testing.T) {
	d, err := NewDetector(testW, testH, 80, 1500)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		s, err := d.Process(makeFrame(uint64(i), 60))
		if err != nil {
			t.Fatal(err)
		}
		if s.Motion {
			t.Fatalf("frame %d: motion on a static scene, area=%d", i, s.Area)
		}
	}
}

func TestDetectorQualifyingRegion(t *testing.T) {
	d, err := NewDetector(testW, testH, 80, 1500)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Process(makeFrame(0, 60)); err != nil {
		t.Fatal(err)
	}

	// 100x100 亮块远超阈值与最小面积
	f := makeFrame(1, 60)
	paintBlock(f, 50, 50, 100, 100, 250)
	s, err := d.Process(f)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Motion {
		t.Fatal("expected motion for a 100x100 block")
	}
	if s.Area < 1500 {
		t.Fatalf("area = %d, want >= 1500", s.Area)
	}
}

func TestDetectorBelowMinArea(t *testing.T) {
	d, err := NewDetector(testW, testH, 80, 1500)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Process(makeFrame(0, 60)); err != nil {
		t.Fatal(err)
	}

	// 20x20 亮块变化明显但面积不合格
	f := makeFrame(1, 60)
	paintBlock(f, 50, 50, 20, 20, 250)
	s, err := d.Process(f)
	if err != nil {
		t.Fatal(err)
	}
	if s.Motion {
		t.Fatalf("20x20 block should not qualify, area=%d", s.Area)
	}
	// 面积字段只上报合格区域
	if s.Area != 0 {
		t.Fatalf("area = %d, want 0 when no region qualifies", s.Area)
	}
}

func TestDetectorResetAfterCameraLoss(t *testing.T) {
	d, err := NewDetector(testW, testH, 80, 1500)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Process(makeFrame(0, 30)); err != nil {
		t.Fatal(err)
	}

	// 相机恢复后场景整体变亮；若不 Reset，整帧差分会误报运动
	d.Reset()
	s, err := d.Process(makeFrame(1, 200))
	if err != nil {
		t.Fatal(err)
	}
	if s.Motion {
		t.Fatal("first frame after reset must prime the model, not report motion")
	}
	s, err = d.Process(makeFrame(2, 200))
	if err != nil {
		t.Fatal(err)
	}
	if s.Motion {
		t.Fatal("static scene after reset should stay quiet")
	}
}

func TestDetectorShortFrame(t *testing.T) {
	d, err := NewDetector(testW, testH, 80, 1500)
	if err != nil {
		t.Fatal(err)
	}
	f := &Frame{Width: testW, Height: testH, Data: make([]byte, 100)}
	if _, err := d.Process(f); err == nil {
		t.Fatal("expected error for a short frame")
	}
}
