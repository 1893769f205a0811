package detector

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"resq-firewatch/internal/camera"
	"resq-firewatch/internal/classifier"
	"resq-firewatch/internal/models"

	"go.uber.org/zap"
)

// ResultHandler 分类结果处理接口（由决策引擎实现）
type ResultHandler interface {
	OnResult(ctx context.Context, result *models.ClassificationResult)
}

// Loop 检测循环：按固定间隔抓帧 → 推理 → 交给决策引擎
type Loop struct {
	source   camera.FrameSource
	clf      classifier.Classifier
	handler  ResultHandler
	interval time.Duration
	logger   *zap.Logger

	// 上一个周期的推理调用未返回时跳过本周期（绝不无限排队）
	inFlight atomic.Bool
}

// NewLoop 创建检测循环
func NewLoop(source camera.FrameSource, clf classifier.Classifier, handler ResultHandler, interval time.Duration, logger *zap.Logger) *Loop {
	return &Loop{
		source:   source,
		clf:      clf,
		handler:  handler,
		interval: interval,
		logger:   logger,
	}
}

// Run 启动检测循环（阻塞直到 ctx 取消）
// 立即执行一次采样，之后按固定间隔重复
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Detection loop started",
		zap.Duration("interval", l.interval),
	)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	// 立即执行一次
	l.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Detection loop stopped")
			return nil
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// tick 执行一个采样周期；推理调用在独立 goroutine 中进行，避免慢后端拖慢调度
func (l *Loop) tick(ctx context.Context) {
	if !l.inFlight.CompareAndSwap(false, true) {
		l.logger.Debug("Previous classification still in flight, skipping tick")
		return
	}

	go func() {
		defer l.inFlight.Store(false)
		l.runDetection(ctx)
	}()
}

// runDetection 抓帧并推理一次
// 每个周期的错误都在此消化，循环永不中断
func (l *Loop) runDetection(ctx context.Context) {
	frame, err := l.source.Capture(ctx)
	if err != nil {
		if errors.Is(err, camera.ErrNoFrame) {
			// 帧源未就绪不是错误，静默跳过
			return
		}
		l.logger.Warn("Frame capture failed",
			zap.Error(err),
		)
		return
	}

	result, err := l.clf.Classify(ctx, frame)
	if err != nil {
		// 推理失败：向引擎传递失败结果（失败不等于"无火情"，引擎不会重置确认计时）
		l.logger.Warn("Classification failed",
			zap.Error(err),
		)
		l.handler.OnResult(ctx, &models.ClassificationResult{
			Success:    false,
			FailReason: err.Error(),
			CapturedAt: time.Now(),
		})
		return
	}

	l.handler.OnResult(ctx, result)
}
