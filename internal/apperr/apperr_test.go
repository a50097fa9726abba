package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestFromStore(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"记录不存在", gorm.ErrRecordNotFound, KindNotFound},
		{"唯一冲突", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), KindConflict},
		{"其他错误", errors.New("connection refused"), KindStoreUnavailable},
		{"已分类", Validation("bad"), KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(FromStore(tt.err, "分类")))
		})
	}
	assert.Nil(t, FromStore(nil, "分类"))
}

func TestErrorIsKind(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Conflict("已关联"))
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "已关联", errors.Unwrap(err).Error())
}
