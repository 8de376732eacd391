package quota_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/model"
	"github.com/yeisme/cloudvault/pkg/internal/quota"
	"github.com/yeisme/cloudvault/pkg/internal/testutil"
)

func TestReserveWithinQuota(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	u := testutil.NewUser(t, db, 1000)

	require.NoError(t, quota.Reserve(ctx, db, u.ID, 600))

	err := quota.Reserve(ctx, db, u.ID, 500)
	require.Error(t, err)
	assert.True(t, quota.IsExceeded(err))
	assert.True(t, errs.Is(err, errs.KindBadRequest))

	used, limit, err := quota.Usage(ctx, db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(600), used)
	assert.Equal(t, int64(1000), limit)

	ok, err := quota.HasSpace(ctx, db, u.ID, 400)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = quota.HasSpace(ctx, db, u.ID, 401)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReserveUnknownUser(t *testing.T) {
	db := testutil.NewDB(t)

	err := quota.Reserve(context.Background(), db, "nobody", 1)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestReleaseClampsAtZero(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	u := testutil.NewUser(t, db, 1000)

	require.NoError(t, quota.Reserve(ctx, db, u.ID, 100))
	require.NoError(t, quota.Release(ctx, db, u.ID, 40))

	used, _, err := quota.Usage(ctx, db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), used)

	require.NoError(t, quota.Release(ctx, db, u.ID, 500))

	used, _, err = quota.Usage(ctx, db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)
}

func TestReserveRollsBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	u := testutil.NewUser(t, db, 1000)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := quota.Reserve(ctx, tx, u.ID, 300); err != nil {
			return err
		}

		return errs.Conflict("boom")
	})
	require.Error(t, err)

	used, _, err := quota.Usage(ctx, db, u.ID)
	require.NoError(t, err)
	assert.Zero(t, used)
}

func TestConcurrentReservations(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	u := testutil.NewUser(t, db, 1<<30)

	const workers = 20

	var wg sync.WaitGroup
	for i := 1; i <= workers; i++ {
		wg.Add(1)

		go func(size int64) {
			defer wg.Done()

			assert.NoError(t, db.Transaction(func(tx *gorm.DB) error {
				return quota.Reserve(ctx, tx, u.ID, size)
			}))
		}(int64(i))
	}

	wg.Wait()

	used, _, err := quota.Usage(ctx, db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*(workers+1)/2), used)
}

func TestConcurrentReservationsNeverOvercommit(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	u := testutil.NewUser(t, db, 1000)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if quota.Reserve(ctx, db, u.ID, 300) == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	used, _, err := quota.Usage(ctx, db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, ok)
	assert.Equal(t, int64(900), used)
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	u := testutil.NewUser(t, db, 1000)

	testutil.NewFile(t, db, u, *u.RootFolderID, 120)
	testutil.NewFile(t, db, u, *u.RootFolderID, 80)

	// 人为破坏账本
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", u.ID).Update("storage_used", 7).Error)

	before, after, err := quota.Reconcile(ctx, db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), before)
	assert.Equal(t, int64(200), after)

	used, _, err := quota.Usage(ctx, db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), used)
}

func TestReconcileKeepsUploadCommittedMidway(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	u := testutil.NewUser(t, db, 1000)

	testutil.NewFile(t, db, u, *u.RootFolderID, 100)

	// 在重算写回 users 之前插入一次上传
	var armed atomic.Bool
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:upload_midway", func(tx *gorm.DB) {
		if tx.Statement.Table != "users" || !armed.CompareAndSwap(true, false) {
			return
		}

		testutil.NewFile(t, tx.Session(&gorm.Session{NewDB: true}), u, *u.RootFolderID, 50)
	}))

	armed.Store(true)

	_, after, err := quota.Reconcile(ctx, db, u.ID)
	require.NoError(t, err)
	assert.False(t, armed.Load())
	assert.Equal(t, int64(150), after)

	used, _, err := quota.Usage(ctx, db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), used)
}
