package engine

import (
	"time"

	"resq-firewatch/internal/models"
)

// Action 转移函数产生的副作用指令
type Action int

const (
	// ActionNone 无副作用
	ActionNone Action = iota
	// ActionAlert 触发报警（调用方需提交 IncidentSink.CreateFireAlert）
	ActionAlert
)

// Tuning 决策引擎调参
type Tuning struct {
	SustainedDetection time.Duration // 持续确认窗口，默认 3s
	AlertCooldown      time.Duration // 报警冷却窗口，默认 30s
}

// SessionState 单个监控会话的决策状态
// sustainedSince/lastAlertAt/alertInFlight 三个量完整刻画状态机：
// IDLE（SustainedSince 为空）→ CONFIRMING（已设置，计时中）→ COOLDOWN（LastAlertAt 在冷却窗口内）
type SessionState struct {
	SustainedSince *time.Time // 火情信号首次连续出现的时间；信号消失或报警成功后清空
	LastAlertAt    *time.Time // 最近一次报警成功的时间；从未报警时为空（区别于"冷却已过期"）
	AlertInFlight  bool       // 报警提交进行中，期间忽略一切新结果
}

// Transition 纯转移函数：根据当前状态和单帧分类结果计算新状态与副作用
// 不做任何 I/O，便于确定性单元测试
//
// 规则（按序求值）：
//  1. 报警提交中 → 完全忽略本帧
//  2. 推理调用失败 → 不改变状态（失败不等于"无火情"，不得打断确认计时）
//  3. 明确无火情 → 清空确认计时（任何状态下）
//  4. 有火情且未在计时 → 开始计时，不报警
//  5. 有火情且计时不足窗口 → 继续等待
//  6. 计时达到窗口（已确认）→ 冷却窗口内则抑制（不重置计时），否则标记提交中并触发报警
func Transition(state SessionState, result models.ClassificationResult, now time.Time, tuning Tuning) (SessionState, Action) {
	if state.AlertInFlight {
		return state, ActionNone
	}

	if !result.Success {
		return state, ActionNone
	}

	if !result.FirePresent {
		state.SustainedSince = nil
		return state, ActionNone
	}

	if state.SustainedSince == nil {
		since := now
		state.SustainedSince = &since
		return state, ActionNone
	}

	if now.Sub(*state.SustainedSince) < tuning.SustainedDetection {
		return state, ActionNone
	}

	// 火情已确认；检查冷却窗口
	if state.LastAlertAt != nil && now.Sub(*state.LastAlertAt) < tuning.AlertCooldown {
		// 保持确认状态但抑制报警：计时不重置，冷却一过下个周期立即触发
		return state, ActionNone
	}

	state.AlertInFlight = true
	return state, ActionAlert
}
