package core_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	finmem "github.com/oceanbase/finmem-go/pkg/core"
	"github.com/oceanbase/finmem-go/pkg/record"
)

func TestAsyncManager(t *testing.T) {
	ctx := context.Background()
	am, err := finmem.NewAsyncManager(ctx, testConfig(t), finmem.WithLogger(quietLogger()))
	require.NoError(t, err)
	defer func() { _ = am.Close() }()

	var pending []<-chan *finmem.StoreResult
	for i := 0; i < 10; i++ {
		pending = append(pending, am.StoreAsync(ctx, market(fmt.Sprintf("m%d", i), "AAPL", 100+float64(i), ago(time.Hour))))
	}
	pending = append(pending, am.StoreAsync(ctx, market("old", "AAPL", 90, ago(200*day))))
	for _, ch := range pending {
		res := <-ch
		require.NoError(t, res.Error)
		assert.NotEmpty(t, res.ID)
	}

	got := <-am.GetAsync(ctx, record.KindMarket, "m3")
	require.NoError(t, got.Error)
	require.True(t, got.Found)
	assert.Equal(t, "m3", got.Entry.ID)

	missing := <-am.GetAsync(ctx, record.KindMarket, "nope")
	require.NoError(t, missing.Error)
	assert.False(t, missing.Found)
	assert.Nil(t, missing.Entry)

	found := <-am.SearchAsync(ctx, "AAPL", finmem.WithLimit(0))
	require.NoError(t, found.Error)
	assert.Len(t, found.Entries, 11)

	deleted := <-am.DeleteAsync(ctx, record.KindMarket, "m0")
	require.NoError(t, deleted.Error)
	assert.True(t, deleted.Removed)

	again := <-am.DeleteAsync(ctx, record.KindMarket, "m0")
	require.NoError(t, again.Error)
	assert.False(t, again.Removed)

	cleaned := <-am.CleanupAsync(ctx)
	require.NoError(t, cleaned.Error)
	assert.Equal(t, 1, cleaned.Removed)

	am.Wait()

	stats, err := am.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, stats.Stores[record.KindMarket].DurableCount)
}

func TestAsyncManager_InvalidRecord(t *testing.T) {
	ctx := context.Background()
	am, err := finmem.NewAsyncManager(ctx, testConfig(t), finmem.WithLogger(quietLogger()))
	require.NoError(t, err)
	defer func() { _ = am.Close() }()

	res := <-am.StoreAsync(ctx, &record.Decision{Symbol: "AAPL"})
	assert.ErrorIs(t, res.Error, finmem.ErrInvalidRecord)
	assert.Empty(t, res.ID)
}
