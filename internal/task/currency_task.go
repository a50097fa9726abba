package task

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RateRefresher 汇率拉取
type RateRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

// CurrencyRefreshTask 定时从汇率源刷新汇率
type CurrencyRefreshTask struct {
	rates    RateRefresher
	Cron     *cron.Cron
	schedule string
	timeout  time.Duration
}

func NewCurrencyRefreshTask(rates RateRefresher, schedule string, timeout time.Duration) *CurrencyRefreshTask {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &CurrencyRefreshTask{
		rates:    rates,
		Cron:     cron.New(cron.WithSeconds()),
		schedule: schedule,
		timeout:  timeout,
	}
}

func (t *CurrencyRefreshTask) Start(runNow bool) error {
	if runNow {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
			defer cancel()
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
	zap.L().Info("汇率刷新任务已启动", zap.String("schedule", t.schedule))
	return nil
}

func (t *CurrencyRefreshTask) Stop() {
	<-t.Cron.Stop().Done()
}

// RunOnce 失败只记录日志, 保留上一次的汇率
func (t *CurrencyRefreshTask) RunOnce(ctx context.Context) (int, error) {
	n, err := t.rates.Refresh(ctx)
	if err != nil {
		zap.L().Warn("[Cron] 汇率刷新失败, 沿用旧汇率", zap.Error(err))
		return 0, err
	}
	return n, nil
}
