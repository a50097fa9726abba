package task

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ==================== TaskManager 定时维护任务管理器 ====================

// TaskManager 统一管理分类树校验与汇率刷新
type TaskManager struct {
	treeTask     *TreeVerifyTask
	currencyTask *CurrencyRefreshTask
	runOnStart   bool
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	Tree  TreeMaintainer
	Rates RateRefresher
}

// TaskManagerConfig 任务管理器配置, 计划表达式为 6 段 (含秒)
type TaskManagerConfig struct {
	TreeVerifySchedule string

	// 未配置汇率源时不启用
	CurrencyEnabled  bool
	CurrencySchedule string
	CurrencyTimeout  time.Duration

	RunOnStart bool
}

// DefaultConfig 默认配置
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		TreeVerifySchedule: "0 30 3 * * *",
		CurrencySchedule:   "0 0 */6 * * *",
		CurrencyTimeout:    10 * time.Second,
		RunOnStart:         true,
	}
}

// NewTaskManager 创建任务管理器, 依赖为空的任务不启用
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tm := &TaskManager{runOnStart: cfg.RunOnStart}
	if deps.Tree != nil && cfg.TreeVerifySchedule != "" {
		tm.treeTask = NewTreeVerifyTask(deps.Tree, cfg.TreeVerifySchedule)
	}
	if cfg.CurrencyEnabled && deps.Rates != nil && cfg.CurrencySchedule != "" {
		tm.currencyTask = NewCurrencyRefreshTask(deps.Rates, cfg.CurrencySchedule, cfg.CurrencyTimeout)
	}
	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务, 计划表达式非法时返回错误
func (tm *TaskManager) Start() error {
	zap.L().Info("[TaskManager] 正在启动定时任务...")

	if tm.treeTask != nil {
		if err := tm.treeTask.Start(tm.runOnStart); err != nil {
			return fmt.Errorf("分类树校验任务: %w", err)
		}
	}
	if tm.currencyTask != nil {
		if err := tm.currencyTask.Start(tm.runOnStart); err != nil {
			return fmt.Errorf("汇率刷新任务: %w", err)
		}
	}

	zap.L().Info("[TaskManager] 定时任务已全部启动", zap.Any("status", tm.Status()))
	return nil
}

// Stop 停止所有任务, 等待正在执行的任务结束
func (tm *TaskManager) Stop() {
	if tm.treeTask != nil {
		tm.treeTask.Stop()
	}
	if tm.currencyTask != nil {
		tm.currencyTask.Stop()
	}
	zap.L().Info("[TaskManager] 定时任务已全部停止")
}

// ==================== 手动触发接口 ====================

// TriggerTreeVerify 立即校验分类树
func (tm *TaskManager) TriggerTreeVerify(ctx context.Context) (int, error) {
	if tm.treeTask == nil {
		return 0, ErrTaskDisabled
	}
	return tm.treeTask.RunOnce(ctx)
}

// TriggerCurrencyRefresh 立即刷新汇率
func (tm *TaskManager) TriggerCurrencyRefresh(ctx context.Context) (int, error) {
	if tm.currencyTask == nil {
		return 0, ErrTaskDisabled
	}
	return tm.currencyTask.RunOnce(ctx)
}

// ==================== 状态查询 ====================

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"tree_verify":      tm.treeTask != nil,
		"currency_refresh": tm.currencyTask != nil,
	}
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
)
