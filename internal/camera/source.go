package camera

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrNoFrame 帧源暂时无帧可用（摄像头未就绪），本次采样静默跳过
var ErrNoFrame = errors.New("no frame available")

// FrameSource 帧源接口
type FrameSource interface {
	// Capture 抓取一帧 JPEG 图像；帧源未就绪时返回 ErrNoFrame
	Capture(ctx context.Context) ([]byte, error)
}

// SnapshotSource 通过 IP 摄像头快照接口抓帧
type SnapshotSource struct {
	httpClient  *resty.Client
	snapshotURL string
	logger      *zap.Logger
}

// NewSnapshotSource 创建快照帧源
func NewSnapshotSource(snapshotURL string, timeout time.Duration, logger *zap.Logger) *SnapshotSource {
	client := resty.New().
		SetTimeout(timeout)

	return &SnapshotSource{
		httpClient:  client,
		snapshotURL: snapshotURL,
		logger:      logger,
	}
}

// Capture 抓取一帧快照
func (s *SnapshotSource) Capture(ctx context.Context) ([]byte, error) {
	resp, err := s.httpClient.R().
		SetContext(ctx).
		Get(s.snapshotURL)

	if err != nil {
		// 摄像头不可达视为未就绪，跳过本次采样而不是报错中断循环
		s.logger.Debug("Snapshot capture failed",
			zap.String("url", s.snapshotURL),
			zap.Error(err),
		)
		return nil, ErrNoFrame
	}

	if resp.IsError() {
		return nil, fmt.Errorf("snapshot endpoint returned status %d", resp.StatusCode())
	}

	body := resp.Body()
	if len(body) == 0 {
		return nil, ErrNoFrame
	}

	return body, nil
}
