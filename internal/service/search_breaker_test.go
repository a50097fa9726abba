package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shop_catalog_v1/internal/repository"
)

// flakySearchRepo 全文检索按 rankedErr 失败, 模糊匹配总是成功
type flakySearchRepo struct {
	repository.ProductRepository
	rankedErr   error
	rankedCalls int
	substrCalls int
}

func (r *flakySearchRepo) Search(ctx context.Context, f repository.ProductSearch) ([]repository.ProductRow, int64, error) {
	if f.Mode == repository.SearchRanked {
		r.rankedCalls++
		if r.rankedErr != nil {
			return nil, 0, r.rankedErr
		}
		return []repository.ProductRow{{Rank: 0.9}}, 1, nil
	}
	r.substrCalls++
	return []repository.ProductRow{{Rank: 2}}, 1, nil
}

func TestSearchBreaker_EmptyQuerySkipsRanked(t *testing.T) {
	repo := &flakySearchRepo{}
	b := NewSearchBreaker(SearchBreakerOptions{})

	_, _, mode, err := b.Search(context.Background(), repo, repository.ProductSearch{})
	require.NoError(t, err)
	assert.Equal(t, repository.SearchSubstring, mode)
	assert.Zero(t, repo.rankedCalls)
}

func TestSearchBreaker_RankedSuccess(t *testing.T) {
	repo := &flakySearchRepo{}
	b := NewSearchBreaker(SearchBreakerOptions{})

	rows, total, mode, err := b.Search(context.Background(), repo, repository.ProductSearch{Query: "mug"})
	require.NoError(t, err)
	assert.Equal(t, repository.SearchRanked, mode)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, 0.9, rows[0].Rank)
	assert.Zero(t, repo.substrCalls)
}

func TestSearchBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	repo := &flakySearchRepo{rankedErr: errors.New("tsvector exploded")}
	b := NewSearchBreaker(SearchBreakerOptions{Threshold: 3, Cooldown: time.Hour})
	ctx := context.Background()
	f := repository.ProductSearch{Query: "mug"}

	for i := 0; i < 3; i++ {
		_, _, mode, err := b.Search(ctx, repo, f)
		require.NoError(t, err, "失败时降级而不是报错")
		assert.Equal(t, repository.SearchSubstring, mode)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())
	assert.Equal(t, 3, repo.rankedCalls)

	// 熔断打开后不再访问全文检索
	_, _, mode, err := b.Search(ctx, repo, f)
	require.NoError(t, err)
	assert.Equal(t, repository.SearchSubstring, mode)
	assert.Equal(t, 3, repo.rankedCalls)
	assert.Equal(t, 4, repo.substrCalls)
}

func TestSearchBreaker_HalfOpenRecovers(t *testing.T) {
	repo := &flakySearchRepo{rankedErr: errors.New("down")}
	b := NewSearchBreaker(SearchBreakerOptions{Threshold: 1, Cooldown: 20 * time.Millisecond})
	ctx := context.Background()
	f := repository.ProductSearch{Query: "mug"}

	_, _, _, err := b.Search(ctx, repo, f)
	require.NoError(t, err)
	require.Equal(t, gobreaker.StateOpen, b.State())

	repo.rankedErr = nil
	time.Sleep(30 * time.Millisecond)

	_, _, mode, err := b.Search(ctx, repo, f)
	require.NoError(t, err)
	assert.Equal(t, repository.SearchRanked, mode)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestSearchBreaker_UnsupportedDialectNeverTrips(t *testing.T) {
	repo := &flakySearchRepo{rankedErr: repository.ErrRankedSearchUnsupported}
	b := NewSearchBreaker(SearchBreakerOptions{Threshold: 1})

	for i := 0; i < 5; i++ {
		_, _, mode, err := b.Search(context.Background(), repo, repository.ProductSearch{Query: "mug"})
		require.NoError(t, err)
		assert.Equal(t, repository.SearchSubstring, mode)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, 5, repo.rankedCalls)
}

func TestSearchBreaker_CallerCancelled(t *testing.T) {
	repo := &flakySearchRepo{rankedErr: context.Canceled}
	b := NewSearchBreaker(SearchBreakerOptions{Threshold: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, _, err := b.Search(ctx, repo, repository.ProductSearch{Query: "mug"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, repo.substrCalls)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
