package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"carbmine/internal/types"
)

func TestHistoryRepository_Load(t *testing.T) {
	db := new(mockDBTX)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	rows := newMockRows([][]any{
		{2019, 100.0, 10.0, 2000.0, 5.0, 1.0, nil},
		{2020, 110.0, 11.0, 2000.0, 5.5, 1.1, 250.0},
	})
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 2019, got[0].Year)
	assert.Nil(t, got[0].TotalEmissionsTCO2e)
	assert.Equal(t, 110.0, got[1].CoalProductionTons)
	require.NotNil(t, got[1].TotalEmissionsTCO2e)
	assert.Equal(t, 250.0, *got[1].TotalEmissionsTCO2e)
}

func TestHistoryRepository_Load_Error(t *testing.T) {
	db := new(mockDBTX)
	db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("no table"))

	_, err := NewHistoryRepository(db).Load(context.Background())

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestHistoryRepository_Upsert(t *testing.T) {
	db := new(mockDBTX)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Twice()

	n, err := repo.Upsert(ctx, []types.HistoricalRecord{{Year: 2019}, {Year: 2020}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	db.AssertExpectations(t)
}

func TestHistoryRepository_Upsert_StopsOnError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool { return args[0] == 2019 })).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool { return args[0] == 2020 })).
		Return(pgconn.CommandTag{}, errors.New("constraint")).Once()

	n, err := repo.Upsert(ctx, []types.HistoricalRecord{{Year: 2019}, {Year: 2020}, {Year: 2021}})
	require.Error(t, err)
	assert.Equal(t, 1, n)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 2020, appErr.Details["year"])
	db.AssertExpectations(t)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealthProbe(t *testing.T) {
	assert.Equal(t, "database", NewHealthProbe(fakePinger{}).Name())
	assert.NoError(t, NewHealthProbe(fakePinger{}).Check(context.Background()))
	assert.Error(t, NewHealthProbe(fakePinger{err: errors.New("down")}).Check(context.Background()))
}
