package verify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/listingcheck/models"
)

func newWalkerOn(f *siteFake) *Walker {
	return NewWalker(f, testLocators.Pages, time.Second, nil)
}

func TestWalker_PagesThenExhausted(t *testing.T) {
	ctx := context.Background()
	f := newSiteFake(siteOptions{pages: [][]string{payloads(25, "Dubai Marina"), payloads(25, "Dubai Marina")}})
	f.show(1)
	w := newWalkerOn(f)

	for want := 1; want <= 2; want++ {
		page, err := w.Next(ctx)
		require.NoError(t, err)
		require.NotNil(t, page)
		assert.Equal(t, want, page.Index)
		assert.Equal(t, ExtractingItems, w.State())

		n := 0
		for item := range page.Items(ctx) {
			require.NoError(t, item.Err)
			loc, ok := item.Record.String("address", "addressLocality")
			assert.True(t, ok)
			assert.Equal(t, "Dubai Marina", loc)
			n++
		}
		assert.Equal(t, 25, n)

		require.NoError(t, w.Advance(ctx))
		assert.Equal(t, AwaitingPageReady, w.State())
	}

	page, err := w.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, page)
	assert.Equal(t, Exhausted, w.State())
	assert.Equal(t, 2, w.PageIndex())

	page, err = w.Next(ctx)
	assert.NoError(t, err)
	assert.Nil(t, page)
}

func TestWalker_ExhaustedOnFirstWait(t *testing.T) {
	f := newSiteFake(siteOptions{})
	f.show(1) // no pages at all: the marker never appears

	w := newWalkerOn(f)
	done := make(chan struct{})
	go func() {
		defer close(done)
		page, err := w.Next(context.Background())
		assert.NoError(t, err)
		assert.Nil(t, page)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "walker did not terminate")
	}
	assert.Equal(t, Exhausted, w.State())
	assert.Equal(t, 0, w.PageIndex())
	assert.NoError(t, w.Advance(context.Background()))
}

func TestWalker_MissingNextIsAnomaly(t *testing.T) {
	ctx := context.Background()
	f := newSiteFake(siteOptions{pages: [][]string{payloads(3, "x")}, noNext: 1})
	f.show(1)
	w := newWalkerOn(f)

	page, err := w.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, page)

	err = w.Advance(ctx)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.ErrCodePaginationAnomaly))
	assert.Equal(t, Exhausted, w.State())

	page, err = w.Next(ctx)
	assert.NoError(t, err)
	assert.Nil(t, page)
}

func TestWalker_MissingContainerIsAnomaly(t *testing.T) {
	f := newSiteFake(siteOptions{pages: [][]string{payloads(3, "x")}, noContainer: 1})
	f.show(1)
	w := newWalkerOn(f)

	page, err := w.Next(context.Background())
	assert.Nil(t, page)
	assert.True(t, models.IsCode(err, models.ErrCodePaginationAnomaly))
	assert.Equal(t, Exhausted, w.State())
}

func TestWalker_NextAdvancesImplicitly(t *testing.T) {
	ctx := context.Background()
	f := newSiteFake(siteOptions{pages: [][]string{payloads(1, "a"), payloads(2, "b")}})
	f.show(1)
	w := newWalkerOn(f)

	first, err := w.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Len())

	second, err := w.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, 2, second.Index)
	assert.Equal(t, 2, second.Len())
	assert.Equal(t, 2, f.page)
}

func TestPage_ItemsSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newSiteFake(siteOptions{pages: [][]string{{payload("a"), `{"address": `, payload("b")}}})
	f.show(1)

	page, err := newWalkerOn(f).Next(ctx)
	require.NoError(t, err)

	var items []Item
	for item := range page.Items(ctx) {
		items = append(items, item)
	}
	require.Len(t, items, 3)
	assert.NoError(t, items[0].Err)
	assert.True(t, models.IsCode(items[1].Err, models.ErrCodeMalformedData))
	assert.Equal(t, 2, items[1].Position)
	assert.NoError(t, items[2].Err)

	again := 0
	for range page.Items(ctx) {
		again++
	}
	assert.Zero(t, again)
}

func TestPage_ItemsStopEarly(t *testing.T) {
	ctx := context.Background()
	f := newSiteFake(siteOptions{pages: [][]string{payloads(5, "a")}})
	f.show(1)

	page, err := newWalkerOn(f).Next(ctx)
	require.NoError(t, err)

	n := 0
	for range page.Items(ctx) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}
