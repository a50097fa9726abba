package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shop_catalog_v1/internal/model"
	"shop_catalog_v1/internal/repository"
	"shop_catalog_v1/internal/service"
	"shop_catalog_v1/internal/testutil"
	"shop_catalog_v1/pkg/cache"
)

// ==================== 辅助类型 ====================

type stubRefresher struct {
	calls atomic.Int32
	n     int
	err   error
}

func (s *stubRefresher) Refresh(ctx context.Context) (int, error) {
	s.calls.Add(1)
	return s.n, s.err
}

type stubTree struct {
	bad       []int64
	verifyErr error
	repaired  int
}

func (s *stubTree) Verify(ctx context.Context) ([]int64, error) { return s.bad, s.verifyErr }

func (s *stubTree) Repair(ctx context.Context) (int, error) {
	s.repaired++
	return len(s.bad), nil
}

// ==================== 分类树校验 ====================

func TestTreeVerifyTask_RepairsBrokenBounds(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	// 直接写库绕过嵌套集合维护, 边界全为 0
	root := model.Category{Name: "Home", Slug: "home"}
	require.NoError(t, db.Create(&root).Error)
	child := model.Category{Name: "Kitchen", Slug: "kitchen", ParentID: root.ID}
	require.NoError(t, db.Create(&child).Error)

	categories := service.NewCategoryService(repository.NewCategoryRepository(db), cache.NewMemory(), time.Minute)
	task := NewTreeVerifyTask(categories, "0 30 3 * * *")

	changed, err := task.RunOnce(ctx)
	require.NoError(t, err)
	assert.Positive(t, changed)

	bad, err := categories.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, bad)

	// 已一致时不再重建
	changed, err = task.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestTreeVerifyTask_SkipsRepairWhenConsistent(t *testing.T) {
	tree := &stubTree{}
	changed, err := NewTreeVerifyTask(tree, "@daily").RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, changed)
	assert.Zero(t, tree.repaired)
}

func TestTreeVerifyTask_VerifyError(t *testing.T) {
	tree := &stubTree{verifyErr: errors.New("db down")}
	_, err := NewTreeVerifyTask(tree, "@daily").RunOnce(context.Background())
	assert.Error(t, err)
	assert.Zero(t, tree.repaired)
}

// ==================== 汇率刷新 ====================

func TestCurrencyRefreshTask_RunOnce(t *testing.T) {
	ok := &stubRefresher{n: 3}
	n, err := NewCurrencyRefreshTask(ok, "0 0 * * * *", 0).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	failing := &stubRefresher{err: errors.New("HTTP 502")}
	n, err = NewCurrencyRefreshTask(failing, "0 0 * * * *", 0).RunOnce(context.Background())
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestCurrencyRefreshTask_StartRunsImmediately(t *testing.T) {
	r := &stubRefresher{n: 1}
	task := NewCurrencyRefreshTask(r, "0 0 0 1 1 *", time.Second)
	require.NoError(t, task.Start(true))
	defer task.Stop()

	assert.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 10*time.Millisecond)
}

// ==================== TaskManager ====================

func TestTaskManager_DisabledTasks(t *testing.T) {
	tm := NewTaskManager(&TaskManagerDeps{}, nil)
	assert.Equal(t, map[string]bool{"tree_verify": false, "currency_refresh": false}, tm.Status())

	_, err := tm.TriggerTreeVerify(context.Background())
	assert.ErrorIs(t, err, ErrTaskDisabled)
	_, err = tm.TriggerCurrencyRefresh(context.Background())
	assert.ErrorIs(t, err, ErrTaskDisabled)

	require.NoError(t, tm.Start())
	tm.Stop()
}

func TestTaskManager_CurrencyNeedsFeed(t *testing.T) {
	deps := &TaskManagerDeps{Tree: &stubTree{}, Rates: &stubRefresher{}}

	cfg := DefaultConfig()
	tm := NewTaskManager(deps, cfg)
	assert.True(t, tm.Status()["tree_verify"])
	assert.False(t, tm.Status()["currency_refresh"])

	cfg.CurrencyEnabled = true
	tm = NewTaskManager(deps, cfg)
	assert.True(t, tm.Status()["currency_refresh"])

	n, err := tm.TriggerCurrencyRefresh(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTaskManager_InvalidSchedule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TreeVerifySchedule = "every night"
	cfg.RunOnStart = false

	tm := NewTaskManager(&TaskManagerDeps{Tree: &stubTree{}}, cfg)
	err := tm.Start()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "分类树校验任务")
}
