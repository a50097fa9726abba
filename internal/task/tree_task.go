package task

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TreeMaintainer 分类树校验与修复
type TreeMaintainer interface {
	Verify(ctx context.Context) ([]int64, error)
	Repair(ctx context.Context) (int, error)
}

// TreeVerifyTask 定时校验分类树边界, 发现不一致时整树重建
type TreeVerifyTask struct {
	tree     TreeMaintainer
	Cron     *cron.Cron
	schedule string
	timeout  time.Duration
}

func NewTreeVerifyTask(tree TreeMaintainer, schedule string) *TreeVerifyTask {
	return &TreeVerifyTask{
		tree:     tree,
		Cron:     cron.New(cron.WithSeconds()),
		schedule: schedule,
		timeout:  5 * time.Minute,
	}
}

// Start 注册定时策略; runNow 为 true 时启动后立即执行一次
func (t *TreeVerifyTask) Start(runNow bool) error {
	if runNow {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
			defer cancel()
			zap.L().Info("[Task] 服务启动, 执行首次分类树校验")
			_, _ = t.RunOnce(ctx)
		}()
	}

	_, err := t.Cron.AddFunc(t.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		_, _ = t.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	t.Cron.Start()
	zap.L().Info("分类树校验任务已启动", zap.String("schedule", t.schedule))
	return nil
}

func (t *TreeVerifyTask) Stop() {
	<-t.Cron.Stop().Done()
}

// RunOnce 校验一次, 返回修复改动的节点数
func (t *TreeVerifyTask) RunOnce(ctx context.Context) (int, error) {
	bad, err := t.tree.Verify(ctx)
	if err != nil {
		zap.L().Error("[Cron] 分类树校验失败", zap.Error(err))
		return 0, err
	}
	if len(bad) == 0 {
		return 0, nil
	}

	zap.L().Warn("[Cron] 分类树边界不一致, 开始重建", zap.Int64s("nodes", bad))
	changed, err := t.tree.Repair(ctx)
	if err != nil {
		zap.L().Error("[Cron] 分类树重建失败", zap.Error(err))
		return 0, err
	}
	zap.L().Info("[Cron] 分类树已修复", zap.Int("changed", changed))
	return changed, nil
}
