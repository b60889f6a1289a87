package motion

import (
	"fmt"
)

// sampleStep 检测网格的降采样步长，兼顾性能与精度
const sampleStep = 2

// defaultAlpha 背景模型的更新速率
// 取值要足够小，保证真实移动目标不会在人眼认为它还是前景时就被吸收进背景
const defaultAlpha = 0.05

// Detector 基于背景减除的运动检测器
// 独占持有并更新背景模型，其他组件不直接接触帧缓冲
type Detector struct {
	width     int
	height    int
	threshold int // 亮度差阈值，越大越不敏感
	minArea   int // 合格区域的最小像素面积
	alpha     float32

	gw, gh     int // 降采样网格尺寸
	background []float32
	mask       []bool
	primed     bool
}

// NewDetector 创建检测器，参数合法性由 conf 校验保证，这里只做兜底
func NewDetector(width, height, threshold, minArea int) (*Detector, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", width, height)
	}
	if threshold <= 0 {
		return nil, fmt.Errorf("invalid threshold: %d", threshold)
	}
	if minArea <= 0 {
		return nil, fmt.Errorf("invalid min area: %d", minArea)
	}
	gw := (width + sampleStep - 1) / sampleStep
	gh := (height + sampleStep - 1) / sampleStep
	return &Detector{
		width:      width,
		height:     height,
		threshold:  threshold,
		minArea:    minArea,
		alpha:      defaultAlpha,
		gw:         gw,
		gh:         gh,
		background: make([]float32, gw*gh),
		mask:       make([]bool, gw*gh),
	}, nil
}

// Reset 清空背景模型
// 相机恢复后必须调用，避免拿陈旧场景做差分产生误触发
func (d *Detector) Reset() {
	d.primed = false
}

// Process 处理下一帧并返回运动判定
// 背景模型每帧都会更新，与当前是否有运动无关
func (d *Detector) Process(f *Frame) (Sample, error) {
	if f.Width != d.width || f.Height != d.height {
		return Sample{}, fmt.Errorf("frame dimensions %dx%d, detector expects %dx%d", f.Width, f.Height, d.width, d.height)
	}
	if len(f.Data) < d.width*d.height {
		return Sample{}, fmt.Errorf("short frame: %d bytes, need at least %d", len(f.Data), d.width*d.height)
	}
	luma := f.Data[:d.width*d.height]

	// 首帧只灌注背景，不产生判定
	if !d.primed {
		for gy := 0; gy < d.gh; gy++ {
			for gx := 0; gx < d.gw; gx++ {
				d.background[gy*d.gw+gx] = float32(luma[gy*sampleStep*d.width+gx*sampleStep])
			}
		}
		d.primed = true
		return Sample{}, nil
	}

	for gy := 0; gy < d.gh; gy++ {
		for gx := 0; gx < d.gw; gx++ {
			gi := gy*d.gw + gx
			v := float32(luma[gy*sampleStep*d.width+gx*sampleStep])
			bg := d.background[gi]

			diff := v - bg
			if diff < 0 {
				diff = -diff
			}
			d.mask[gi] = diff > float32(d.threshold)

			d.background[gi] = bg + d.alpha*(v-bg)
		}
	}

	largest := d.largestRegion()
	return Sample{Motion: largest > 0, Area: largest}, nil
}

// largestRegion 对变化掩码做 4 连通域划分，返回最大合格区域的面积（原始像素尺度）
// 没有区域通过最小面积门槛时返回 0，不合格区域不参与上报
func (d *Detector) largestRegion() int {
	visited := make([]bool, len(d.mask))
	stack := make([]int, 0, 256)
	largest := 0

	for i := range d.mask {
		if !d.mask[i] || visited[i] {
			continue
		}
		// 迭代式洪泛填充，避免大区域时递归爆栈
		area := 0
		stack = append(stack[:0], i)
		visited[i] = true
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			area++

			x, y := cur%d.gw, cur/d.gw
			if x > 0 && d.mask[cur-1] && !visited[cur-1] {
				visited[cur-1] = true
				stack = append(stack, cur-1)
			}
			if x < d.gw-1 && d.mask[cur+1] && !visited[cur+1] {
				visited[cur+1] = true
				stack = append(stack, cur+1)
			}
			if y > 0 && d.mask[cur-d.gw] && !visited[cur-d.gw] {
				visited[cur-d.gw] = true
				stack = append(stack, cur-d.gw)
			}
			if y < d.gh-1 && d.mask[cur+d.gw] && !visited[cur+d.gw] {
				visited[cur+d.gw] = true
				stack = append(stack, cur+d.gw)
			}
		}
		// 补偿降采样，面积换算回原始像素尺度
		if comp := area * sampleStep * sampleStep; comp > d.minArea && comp > largest {
			largest = comp
		}
	}
	return largest
}
