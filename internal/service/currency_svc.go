package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shop_catalog_v1/internal/api/dto"
	"shop_catalog_v1/internal/apperr"
	"shop_catalog_v1/internal/model"
	"shop_catalog_v1/internal/repository"
	"shop_catalog_v1/pkg/utils"
)

// ==================== CurrencyService 汇率服务 ====================

// CurrencyService 基准货币 -> 展示货币的换算
// 换算结果统一四舍五入到整数; 未知货币按基准货币金额返回
type CurrencyService struct {
	repo     repository.CurrencyRepository
	base     string
	ratesURL string
	client   *resty.Client
}

// NewCurrencyService 创建汇率服务; ratesURL 为空时不支持远程刷新
func NewCurrencyService(repo repository.CurrencyRepository, base, ratesURL string, timeout time.Duration) *CurrencyService {
	base = strings.ToUpper(strings.TrimSpace(base))
	if base == "" {
		base = "AUD"
	}
	return &CurrencyService{
		repo:     repo,
		base:     base,
		ratesURL: ratesURL,
		client:   utils.NewHTTPClient(timeout),
	}
}

// Base 基准货币
func (s *CurrencyService) Base() string {
	return s.base
}

// RateQuote 一次换算使用的货币与汇率
type RateQuote struct {
	Code string
	Rate decimal.Decimal
}

// Resolve 查出目标货币汇率; 未知货币降级为基准货币
func (s *CurrencyService) Resolve(ctx context.Context, code string) (*RateQuote, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || code == s.base {
		return &RateQuote{Code: s.base, Rate: decimal.NewFromInt(1)}, nil
	}
	rate, err := s.repo.GetByCode(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &RateQuote{Code: s.base, Rate: decimal.NewFromInt(1)}, nil
	}
	if err != nil {
		return nil, apperr.FromStore(err, "汇率")
	}
	return &RateQuote{Code: rate.Code, Rate: rate.Rate}, nil
}

// Apply 换算并四舍五入到整数
func (r *RateQuote) Apply(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(r.Rate).Round(0)
}

// Convert 单笔换算, 返回金额与实际使用的货币
func (s *CurrencyService) Convert(ctx context.Context, amount decimal.Decimal, code string) (decimal.Decimal, string, error) {
	r, err := s.Resolve(ctx, code)
	if err != nil {
		return decimal.Zero, "", err
	}
	return r.Apply(amount), r.Code, nil
}

// ToBase 目标货币 -> 基准货币
func (s *CurrencyService) ToBase(ctx context.Context, amount decimal.Decimal, code string) (decimal.Decimal, error) {
	r, err := s.Resolve(ctx, code)
	if err != nil {
		return decimal.Zero, err
	}
	if !r.Rate.IsPositive() {
		return amount.Round(0), nil
	}
	return amount.Div(r.Rate).Round(0), nil
}

// List 全部汇率
func (s *CurrencyService) List(ctx context.Context) (*dto.CurrencyListResponse, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.FromStore(err, "汇率")
	}
	rates := make([]dto.CurrencyRateInfo, len(list))
	for i, r := range list {
		rates[i] = toCurrencyRateInfo(&r)
	}
	return &dto.CurrencyListResponse{Base: s.base, Rates: rates}, nil
}

// SetRate 手工维护汇率, 仅管理员
func (s *CurrencyService) SetRate(ctx context.Context, actor model.Actor, code string, rate decimal.Decimal) (*dto.CurrencyRateInfo, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Permission("只有管理员可以维护汇率")
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return nil, apperr.Validation("货币代码必须为 3 位字母")
	}
	if code == s.base {
		return nil, apperr.Validation("基准货币汇率固定为 1")
	}
	if !rate.IsPositive() {
		return nil, apperr.Validation("汇率必须大于 0")
	}

	if err := s.repo.Upsert(ctx, code, rate); err != nil {
		return nil, apperr.FromStore(err, "汇率")
	}
	stored, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, apperr.FromStore(err, "汇率")
	}
	info := toCurrencyRateInfo(stored)
	return &info, nil
}

// ==================== 远程刷新 ====================

// rateFeed 汇率源响应, 形如 {"base":"AUD","rates":{"USD":0.65}}
type rateFeed struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// Refresh 从汇率源拉取并覆盖本地汇率, 返回更新条数
func (s *CurrencyService) Refresh(ctx context.Context) (int, error) {
	if s.ratesURL == "" {
		return 0, nil
	}

	var feed rateFeed
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("base", s.base).
		SetResult(&feed).
		Get(s.ratesURL)
	if err != nil {
		return 0, fmt.Errorf("请求汇率源失败: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("汇率源返回 HTTP %d", resp.StatusCode())
	}
	if feed.Base != "" && !strings.EqualFold(feed.Base, s.base) {
		return 0, fmt.Errorf("汇率源基准货币 %s 与配置 %s 不一致", feed.Base, s.base)
	}

	rates := make(map[string]decimal.Decimal, len(feed.Rates))
	for code, rate := range feed.Rates {
		code = strings.ToUpper(code)
		if len(code) != 3 || code == s.base || !rate.IsPositive() {
			continue
		}
		rates[code] = rate
	}
	if err := s.repo.BatchUpsert(ctx, rates); err != nil {
		return 0, apperr.FromStore(err, "汇率")
	}

	zap.L().Info("汇率已刷新", zap.Int("count", len(rates)), zap.String("base", s.base))
	return len(rates), nil
}

func toCurrencyRateInfo(r *model.CurrencyRate) dto.CurrencyRateInfo {
	return dto.CurrencyRateInfo{Code: r.Code, Rate: r.Rate, UpdatedAt: r.UpdatedAt}
}
