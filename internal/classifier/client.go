package classifier

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"resq-firewatch/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Classifier 分类器接口（检测循环依赖此接口，便于测试替换）
type Classifier interface {
	// Classify 对单帧图像做火情分类；返回错误表示推理调用失败（区别于"无火情"）
	Classify(ctx context.Context, frame []byte) (*models.ClassificationResult, error)
}

// detectRequest /detect/base64 请求体
type detectRequest struct {
	Image string `json:"image"`
}

// detectResponse /detect/base64 响应体（与 ml_backend 的字段保持一致）
type detectResponse struct {
	Success           bool               `json:"success"`
	FireDetected      bool               `json:"fire_detected"`
	HighestConfidence float64            `json:"highest_confidence"`
	DetectionCount    int                `json:"detection_count"`
	Detections        []models.Detection `json:"detections"`
	Threshold         float64            `json:"threshold"`
	Timestamp         string             `json:"timestamp"`
}

// healthResponse /health 响应体
type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// Client YOLOv8 推理后端 HTTP 客户端
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建推理后端客户端
// 每个采样周期只允许一次尝试，因此不设置重试
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

// Classify 发送单帧 JPEG 到推理后端做火情分类
func (c *Client) Classify(ctx context.Context, frame []byte) (*models.ClassificationResult, error) {
	request := detectRequest{
		Image: base64.StdEncoding.EncodeToString(frame),
	}

	var response detectResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/detect/base64")

	if err != nil {
		return nil, fmt.Errorf("failed to call detection backend: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("detection backend returned status %d", resp.StatusCode())
	}

	capturedAt := time.Now()
	if ts, parseErr := time.Parse(time.RFC3339Nano, response.Timestamp); parseErr == nil {
		capturedAt = ts
	}

	result := &models.ClassificationResult{
		Success:           true,
		FirePresent:       response.FireDetected,
		HighestConfidence: response.HighestConfidence,
		Detections:        response.Detections,
		Threshold:         response.Threshold,
		CapturedAt:        capturedAt,
	}

	c.logger.Debug("Frame classified",
		zap.Bool("fire_detected", result.FirePresent),
		zap.Float64("highest_confidence", result.HighestConfidence),
		zap.Int("detection_count", len(result.Detections)),
	)

	return result, nil
}

// Health 检查推理后端是否在线以及模型是否加载
func (c *Client) Health(ctx context.Context) (bool, error) {
	var response healthResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&response).
		Get("/health")

	if err != nil {
		return false, fmt.Errorf("failed to call health endpoint: %w", err)
	}

	if resp.IsError() {
		return false, fmt.Errorf("health endpoint returned status %d", resp.StatusCode())
	}

	return response.ModelLoaded, nil
}
