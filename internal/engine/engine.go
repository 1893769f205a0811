package engine

import (
	"context"
	"sync"
	"time"

	"resq-firewatch/internal/models"

	"go.uber.org/zap"
)

// FireAlertOutcome 报警提交结果
// 部分失败时 IncidentID 有值而 AlertID 为空（incident 已落库，alert 创建失败）
type FireAlertOutcome struct {
	IncidentID string
	AlertID    string
}

// IncidentSink 事件/报警持久化接口
type IncidentSink interface {
	// CreateFireAlert 先创建 incident，再创建引用它的 alert
	// 部分失败时返回非空的 outcome（含 IncidentID）和描述错误；全失败时 outcome 为 nil
	CreateFireAlert(ctx context.Context, deviceID string, result *models.ClassificationResult) (*FireAlertOutcome, error)
}

// CooldownStore 冷却时间持久化接口（跨会话保留 lastAlertAt，进程重启不会在冷却窗口内重复报警）
type CooldownStore interface {
	SetLastAlert(ctx context.Context, deviceID string, at time.Time) error
}

// Engine 报警决策引擎：把逐帧的噪声分类流转换为去重后的报警流
// 状态只通过 OnResult 修改，内部用互斥锁串行化（检测循环本身不并发，锁是并行宿主下的保险）
type Engine struct {
	mu    sync.Mutex
	state SessionState

	deviceID  string
	sink      IncidentSink
	cooldowns CooldownStore // 可选，nil 表示不持久化冷却时间
	tuning    Tuning
	timeout   time.Duration // 持久化调用超时
	logger    *zap.Logger
	closed    bool

	nowFn func() time.Time
}

// New 创建决策引擎
func New(deviceID string, sink IncidentSink, cooldowns CooldownStore, tuning Tuning, timeout time.Duration, logger *zap.Logger) *Engine {
	return &Engine{
		deviceID:  deviceID,
		sink:      sink,
		cooldowns: cooldowns,
		tuning:    tuning,
		timeout:   timeout,
		logger:    logger,
		nowFn:     time.Now,
	}
}

// SeedLastAlert 用持久化的冷却时间初始化会话（会话启动时调用一次）
func (e *Engine) SeedLastAlert(at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.LastAlertAt = &at
}

// Snapshot 返回当前状态的副本
func (e *Engine) Snapshot() SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Close 结束会话：之后到达的结果（包括关闭前已发出的持久化调用的结果）全部丢弃
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
}

// OnResult 处理一帧分类结果
// 每个采样周期的错误都在此消化，绝不向调用方抛出
func (e *Engine) OnResult(ctx context.Context, result *models.ClassificationResult) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}

	newState, action := Transition(e.state, *result, e.nowFn(), e.tuning)
	e.state = newState

	if action != ActionAlert {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.logger.Info("Fire confirmed, creating alert",
		zap.String("device_id", e.deviceID),
		zap.Float64("highest_confidence", result.HighestConfidence),
		zap.Int("detection_count", len(result.Detections)),
	)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	outcome, err := e.sink.CreateFireAlert(callCtx, e.deviceID, result)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		// 会话已结束，不得写入已销毁会话的状态
		return
	}

	e.state.AlertInFlight = false

	if outcome == nil {
		// 全失败：保留 sustainedSince 和 lastAlertAt，下个周期重新走冷却/确认检查
		e.logger.Error("Failed to create fire alert, will retry on next tick",
			zap.String("device_id", e.deviceID),
			zap.Error(err),
		)
		return
	}

	if err != nil {
		// 部分失败：incident 已落库，不再重试（避免同一火情重复建 incident）
		e.logger.Warn("Fire alert partially created",
			zap.String("incident_id", outcome.IncidentID),
			zap.Error(err),
		)
	} else {
		e.logger.Info("Fire alert created",
			zap.String("incident_id", outcome.IncidentID),
			zap.String("alert_id", outcome.AlertID),
		)
	}

	now := e.nowFn()
	e.state.LastAlertAt = &now
	e.state.SustainedSince = nil // 下次报警需重新确认

	if e.cooldowns != nil {
		// 冷却时间持久化是尽力而为，失败只记日志
		if cacheErr := e.cooldowns.SetLastAlert(ctx, e.deviceID, now); cacheErr != nil {
			e.logger.Warn("Failed to persist cooldown timestamp",
				zap.String("device_id", e.deviceID),
				zap.Error(cacheErr),
			)
		}
	}
}
