package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProductItemLocation_EffectiveDiscount(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	before := now.Add(-24 * time.Hour)
	after := now.Add(24 * time.Hour)
	d := decimal.NewFromInt(15)

	cases := []struct {
		name   string
		starts *time.Time
		ends   *time.Time
		want   string
	}{
		{"不限时间", nil, nil, "15"},
		{"窗口内", &before, &after, "15"},
		{"未开始", &after, nil, "0"},
		{"已过期", nil, &before, "0"},
		{"恰好开始", &now, nil, "15"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := &ProductItemLocation{Discount: d, StartsAt: tc.starts, EndsAt: tc.ends}
			assert.Equal(t, tc.want, l.EffectiveDiscount(now).String())
		})
	}
}

func TestDiscountedPrice(t *testing.T) {
	list := decimal.RequireFromString("80")
	assert.Equal(t, "68", DiscountedPrice(list, decimal.NewFromInt(15)).String())
	assert.Equal(t, "80", DiscountedPrice(list, decimal.Zero).String())
	assert.Equal(t, "0", DiscountedPrice(list, decimal.NewFromInt(100)).String())
	assert.Equal(t, "33.33", DiscountedPrice(decimal.NewFromInt(100), decimal.RequireFromString("66.67")).String())
}
