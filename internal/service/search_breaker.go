package service

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"shop_catalog_v1/internal/repository"
)

// SearchBreakerOptions 全文检索熔断参数
type SearchBreakerOptions struct {
	Threshold uint32        // 连续失败次数达到后熔断
	Cooldown  time.Duration // 熔断后多久放行一次试探请求
	Timeout   time.Duration // 单次全文检索超时, 0 表示不限
	Language  string
}

// SearchBreaker 关键词检索: 优先全文检索, 失败降级为模糊匹配
// 降级条件: 方言不支持 / 查询出错或超时 / 熔断打开
type SearchBreaker struct {
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	lang    string
}

// NewSearchBreaker 创建检索熔断器
func NewSearchBreaker(opts SearchBreakerOptions) *SearchBreaker {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = 3
	}
	cooldown := opts.Cooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ranked-search",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// 方言不支持是静态事实, 调用方取消也不是后端故障, 都不计入失败
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, repository.ErrRankedSearchUnsupported) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("全文检索熔断状态变化",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &SearchBreaker{cb: cb, timeout: opts.Timeout, lang: opts.Language}
}

// State 当前熔断状态
func (b *SearchBreaker) State() gobreaker.State {
	return b.cb.State()
}

type searchPage struct {
	rows  []repository.ProductRow
	total int64
}

// Search 执行检索, 返回实际使用的匹配方式
func (b *SearchBreaker) Search(ctx context.Context, repo repository.ProductRepository, f repository.ProductSearch) ([]repository.ProductRow, int64, repository.SearchMode, error) {
	if f.Query == "" {
		f.Mode = repository.SearchSubstring
		rows, total, err := repo.Search(ctx, f)
		return rows, total, f.Mode, err
	}

	ranked := f
	ranked.Mode = repository.SearchRanked
	ranked.Language = b.lang
	res, err := b.cb.Execute(func() (interface{}, error) {
		rctx := ctx
		if b.timeout > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(ctx, b.timeout)
			defer cancel()
		}
		rows, total, err := repo.Search(rctx, ranked)
		if err != nil {
			return nil, err
		}
		return searchPage{rows: rows, total: total}, nil
	})
	if err == nil {
		page := res.(searchPage)
		return page.rows, page.total, repository.SearchRanked, nil
	}
	if ctx.Err() != nil {
		return nil, 0, repository.SearchRanked, ctx.Err()
	}

	if !errors.Is(err, repository.ErrRankedSearchUnsupported) {
		zap.L().Warn("全文检索失败, 降级为模糊匹配", zap.Error(err))
	}
	f.Mode = repository.SearchSubstring
	rows, total, err := repo.Search(ctx, f)
	return rows, total, f.Mode, err
}
