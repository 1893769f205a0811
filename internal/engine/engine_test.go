package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"resq-firewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSink 可编程的 IncidentSink 测试替身
type fakeSink struct {
	calls   int
	outcome *FireAlertOutcome
	err     error
	// onCall 在 CreateFireAlert 执行中回调（用于模拟提交期间到达的新帧）
	onCall func()
}

func (s *fakeSink) CreateFireAlert(ctx context.Context, deviceID string, result *models.ClassificationResult) (*FireAlertOutcome, error) {
	s.calls++
	if s.onCall != nil {
		s.onCall()
	}
	return s.outcome, s.err
}

// fakeCooldowns 记录冷却时间写入
type fakeCooldowns struct {
	deviceID string
	at       time.Time
	err      error
}

func (c *fakeCooldowns) SetLastAlert(ctx context.Context, deviceID string, at time.Time) error {
	c.deviceID = deviceID
	c.at = at
	return c.err
}

// fakeClock 可推进的测试时钟
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestEngine(sink IncidentSink, cooldowns CooldownStore) (*Engine, *fakeClock) {
	clock := &fakeClock{now: time.Unix(10000, 0)}
	e := New("device-1", sink, cooldowns, testTuning, 15*time.Second, zap.NewNop())
	e.nowFn = clock.Now
	return e, clock
}

func fire() *models.ClassificationResult {
	r := fireResult()
	return &r
}

func noFire() *models.ClassificationResult {
	r := noFireResult()
	return &r
}

// 持续火情恰好触发一次报警，成功后回到 IDLE
func TestEngine_ConfirmedFireAlertsOnce(t *testing.T) {
	sink := &fakeSink{outcome: &FireAlertOutcome{IncidentID: "inc-1", AlertID: "alert-1"}}
	e, clock := newTestEngine(sink, nil)
	ctx := context.Background()

	e.OnResult(ctx, fire()) // t=0 开始计时
	clock.Advance(2 * time.Second)
	e.OnResult(ctx, fire()) // t=2s 计时中
	assert.Equal(t, 0, sink.calls)

	clock.Advance(2 * time.Second)
	e.OnResult(ctx, fire()) // t=4s ≥ 3s，触发
	assert.Equal(t, 1, sink.calls)

	state := e.Snapshot()
	assert.Nil(t, state.SustainedSince) // 成功后需重新确认
	require.NotNil(t, state.LastAlertAt)
	assert.False(t, state.AlertInFlight)
}

// 冷却窗口内不重复报警，窗口过后再次报警
func TestEngine_CooldownSuppressesThenAllows(t *testing.T) {
	sink := &fakeSink{outcome: &FireAlertOutcome{IncidentID: "inc-1", AlertID: "alert-1"}}
	e, clock := newTestEngine(sink, nil)
	ctx := context.Background()

	// 第一次报警
	e.OnResult(ctx, fire())
	clock.Advance(4 * time.Second)
	e.OnResult(ctx, fire())
	require.Equal(t, 1, sink.calls)

	// 火情持续：重新确认后仍在冷却窗口内
	clock.Advance(2 * time.Second)
	e.OnResult(ctx, fire())
	clock.Advance(4 * time.Second)
	e.OnResult(ctx, fire())
	assert.Equal(t, 1, sink.calls) // 已确认但被抑制

	// 冷却过期后的下一帧立即触发
	clock.Advance(30 * time.Second)
	e.OnResult(ctx, fire())
	assert.Equal(t, 2, sink.calls)
}

// 提交期间到达的帧不产生新的提交也不改变状态
func TestEngine_InFlightGuard(t *testing.T) {
	sink := &fakeSink{outcome: &FireAlertOutcome{IncidentID: "inc-1", AlertID: "alert-1"}}
	e, clock := newTestEngine(sink, nil)
	ctx := context.Background()

	sink.onCall = func() {
		// 提交执行中又到达两帧（此时 AlertInFlight=true）
		e.OnResult(ctx, fire())
		e.OnResult(ctx, noFire())
	}

	e.OnResult(ctx, fire())
	clock.Advance(4 * time.Second)
	e.OnResult(ctx, fire())

	assert.Equal(t, 1, sink.calls)
	assert.False(t, e.Snapshot().AlertInFlight)
}

// 全失败：sustainedSince 保留，下个周期重试
func TestEngine_TotalFailureRetainsConfirmation(t *testing.T) {
	sink := &fakeSink{outcome: nil, err: errors.New("database unreachable")}
	e, clock := newTestEngine(sink, nil)
	ctx := context.Background()

	e.OnResult(ctx, fire())
	clock.Advance(4 * time.Second)
	e.OnResult(ctx, fire())
	require.Equal(t, 1, sink.calls)

	state := e.Snapshot()
	assert.NotNil(t, state.SustainedSince) // 确认状态保留
	assert.Nil(t, state.LastAlertAt)       // 冷却不生效
	assert.False(t, state.AlertInFlight)

	// 下一帧仍是确认状态，立即重试
	clock.Advance(2 * time.Second)
	e.OnResult(ctx, fire())
	assert.Equal(t, 2, sink.calls)
}

// 部分失败视为已报警（incident 已落库，不再重复建 incident）
func TestEngine_PartialFailureSetsCooldown(t *testing.T) {
	sink := &fakeSink{
		outcome: &FireAlertOutcome{IncidentID: "inc-1"},
		err:     errors.New("alert creation failed"),
	}
	e, clock := newTestEngine(sink, nil)
	ctx := context.Background()

	e.OnResult(ctx, fire())
	clock.Advance(4 * time.Second)
	e.OnResult(ctx, fire())
	require.Equal(t, 1, sink.calls)

	state := e.Snapshot()
	assert.NotNil(t, state.LastAlertAt)
	assert.Nil(t, state.SustainedSince)

	// 冷却窗口内不重复提交
	clock.Advance(2 * time.Second)
	e.OnResult(ctx, fire())
	clock.Advance(4 * time.Second)
	e.OnResult(ctx, fire())
	assert.Equal(t, 1, sink.calls)
}

// 报警成功后冷却时间写入持久化存储
func TestEngine_PersistsCooldown(t *testing.T) {
	sink := &fakeSink{outcome: &FireAlertOutcome{IncidentID: "inc-1", AlertID: "alert-1"}}
	cooldowns := &fakeCooldowns{}
	e, clock := newTestEngine(sink, cooldowns)
	ctx := context.Background()

	e.OnResult(ctx, fire())
	clock.Advance(4 * time.Second)
	e.OnResult(ctx, fire())

	assert.Equal(t, "device-1", cooldowns.deviceID)
	assert.Equal(t, clock.Now(), cooldowns.at)
}

// 冷却持久化失败不影响引擎状态
func TestEngine_CooldownPersistFailureIgnored(t *testing.T) {
	sink := &fakeSink{outcome: &FireAlertOutcome{IncidentID: "inc-1", AlertID: "alert-1"}}
	cooldowns := &fakeCooldowns{err: errors.New("redis down")}
	e, clock := newTestEngine(sink, cooldowns)
	ctx := context.Background()

	e.OnResult(ctx, fire())
	clock.Advance(4 * time.Second)
	e.OnResult(ctx, fire())

	state := e.Snapshot()
	assert.NotNil(t, state.LastAlertAt)
}

// SeedLastAlert 使重启后的会话继承冷却窗口
func TestEngine_SeededCooldownSuppresses(t *testing.T) {
	sink := &fakeSink{outcome: &FireAlertOutcome{IncidentID: "inc-1", AlertID: "alert-1"}}
	e, clock := newTestEngine(sink, nil)
	ctx := context.Background()

	e.SeedLastAlert(clock.Now().Add(-10 * time.Second)) // 10 秒前报过警

	e.OnResult(ctx, fire())
	clock.Advance(4 * time.Second)
	e.OnResult(ctx, fire())

	assert.Equal(t, 0, sink.calls) // 仍在 30s 冷却窗口内
}

// Close 后到达的结果全部丢弃
func TestEngine_ClosedSessionDiscardsResults(t *testing.T) {
	sink := &fakeSink{outcome: &FireAlertOutcome{IncidentID: "inc-1", AlertID: "alert-1"}}
	e, clock := newTestEngine(sink, nil)
	ctx := context.Background()

	e.Close()

	e.OnResult(ctx, fire())
	clock.Advance(4 * time.Second)
	e.OnResult(ctx, fire())

	assert.Equal(t, 0, sink.calls)
	assert.Nil(t, e.Snapshot().SustainedSince)
}

// 提交期间会话被关闭：持久化结果丢弃，状态不再改写
func TestEngine_CloseDuringSubmission(t *testing.T) {
	sink := &fakeSink{outcome: &FireAlertOutcome{IncidentID: "inc-1", AlertID: "alert-1"}}
	e, clock := newTestEngine(sink, nil)
	ctx := context.Background()

	sink.onCall = func() {
		e.Close()
	}

	e.OnResult(ctx, fire())
	clock.Advance(4 * time.Second)
	e.OnResult(ctx, fire())

	state := e.Snapshot()
	assert.Nil(t, state.LastAlertAt)
	assert.True(t, state.AlertInFlight) // 状态冻结在关闭时刻，不再清理
}
