package models

import "time"

// BoundingBox 检测框（推理后端返回的像素坐标）
type BoundingBox struct {
	X1     int `json:"x1"`
	Y1     int `json:"y1"`
	X2     int `json:"x2"`
	Y2     int `json:"y2"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Detection 单个检测结果
type Detection struct {
	Label      string      `json:"class"`      // 模型类别名："fire", "flame", "smoke" 等
	Confidence float64     `json:"confidence"` // 置信度 [0,1]
	Box        BoundingBox `json:"bbox"`
}

// ClassificationResult 单帧分类结果（每个采样周期产生一次）
// 明确区分"推理成功但无火情"与"推理调用失败"：
// Success=false 时 FirePresent 无意义，决策引擎不得将其当作负样本处理
type ClassificationResult struct {
	Success           bool        `json:"success"`
	FirePresent       bool        `json:"fire_detected"`
	HighestConfidence float64     `json:"highest_confidence"`
	Detections        []Detection `json:"detections"`
	Threshold         float64     `json:"threshold"`
	CapturedAt        time.Time   `json:"timestamp"`
	FailReason        string      `json:"fail_reason,omitempty"` // 仅在 Success=false 时有值
}

// SensorSnapshot 报警触发时写入 incident 的证据快照（JSONB 结构）
type SensorSnapshot struct {
	Confidence float64     `json:"confidence"`
	Threshold  float64     `json:"threshold"`
	Detections []Detection `json:"detections"`
	CapturedAt time.Time   `json:"timestamp"`
}
