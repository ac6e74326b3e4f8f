package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	rows []TimelineRow
}

func (f *fakeRepo) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	filtered := f.filter(filters)
	if offset >= len(filtered) {
		return []TimelineRow{}, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], nil
}

func (f *fakeRepo) All(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	return f.filter(filters), nil
}

func (f *fakeRepo) filter(filters TimelineFilters) []TimelineRow {
	out := []TimelineRow{}
	for _, row := range f.rows {
		if filters.Entity != "" && row.Entity != filters.Entity {
			continue
		}
		if filters.ActorID > 0 && row.ActorID != filters.ActorID {
			continue
		}
		out = append(out, row)
	}
	return out
}

func seedRows(n int) []TimelineRow {
	base := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	rows := make([]TimelineRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, TimelineRow{
			At:       base.Add(time.Duration(i) * time.Minute),
			ActorID:  int64(1 + i%2),
			Action:   "sell:create",
			Entity:   "sell",
			EntityID: "1",
		})
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	svc := NewService(&fakeRepo{rows: seedRows(25)})

	first, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, first.Rows, 20)
	require.True(t, first.Paging.HasNext)
	require.Equal(t, 2, first.Paging.NextPage)
	require.Zero(t, first.Paging.PrevPage)

	second, err := svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, second.Rows, 5)
	require.False(t, second.Paging.HasNext)
	require.Equal(t, 1, second.Paging.PrevPage)
}

func TestTimelineDefaultsAndCap(t *testing.T) {
	svc := NewService(&fakeRepo{rows: seedRows(60)})

	result, err := svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 20)
	require.Equal(t, 1, result.Paging.Page)

	capped, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Len(t, capped.Rows, 50)
}

func TestTimelineFiltersByActor(t *testing.T) {
	svc := NewService(&fakeRepo{rows: seedRows(10)})

	result, err := svc.Timeline(context.Background(), TimelineFilters{ActorID: 1, PageSize: 50})
	require.NoError(t, err)
	require.Len(t, result.Rows, 5)
	for _, row := range result.Rows {
		require.Equal(t, int64(1), row.ActorID)
	}
}

func TestExportReturnsEverything(t *testing.T) {
	svc := NewService(&fakeRepo{rows: seedRows(30)})

	rows, err := svc.Export(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, rows, 30)
}
