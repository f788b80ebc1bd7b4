package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"portfolioexecutor/src/model"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err)
	return gdb, mock
}

func TestExecutionRecordRepositoryCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&ExecutionRecordRepository{}).WithDB(db)

	reason := "price divergence too high"
	record := &model.ExecutionRecord{
		UserID:             7,
		WorkflowID:         3,
		ReviewResultID:     11,
		Exchange:           "binance",
		Market:             model.MarketSpot,
		Symbol:             "BTCUSDT",
		ExchangeOrderID:    "rejected-1-0",
		Status:             model.ExecutionStatusCanceled,
		PlannedJSON:        `{}`,
		CancellationReason: &reason,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "execution_records"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), record))
	assert.Equal(t, uint(42), record.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionRecordRepositoryCreateError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&ExecutionRecordRepository{}).WithDB(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "execution_records"`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &model.ExecutionRecord{ExchangeOrderID: "1", Status: model.ExecutionStatusOpen})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func recordRows(records ...model.ExecutionRecord) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "user_id", "workflow_id", "review_result_id", "symbol", "exchange_order_id", "status", "created_at"})
	for _, r := range records {
		rows.AddRow(r.ID, r.UserID, r.WorkflowID, r.ReviewResultID, r.Symbol, r.ExchangeOrderID, r.Status, r.CreatedAt)
	}
	return rows
}

func TestExecutionRecordRepositoryFindByReview(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&ExecutionRecordRepository{}).WithDB(db)

	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "execution_records" WHERE workflow_id = $1 AND review_result_id = $2 ORDER BY id ASC`)).
		WithArgs(uint(3), uint(11)).
		WillReturnRows(recordRows(
			model.ExecutionRecord{ID: 1, WorkflowID: 3, ReviewResultID: 11, Symbol: "BTCUSDT", ExchangeOrderID: "a", Status: "open", CreatedAt: now},
			model.ExecutionRecord{ID: 2, WorkflowID: 3, ReviewResultID: 11, Symbol: "ETHUSDT", ExchangeOrderID: "b", Status: "canceled", CreatedAt: now},
		))

	records, err := repo.FindByReview(context.Background(), 3, 11)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "ETHUSDT", records[1].Symbol)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionRecordRepositoryFindOpenByWorkflow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&ExecutionRecordRepository{}).WithDB(db)

	t.Run("any user", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "execution_records" WHERE workflow_id = $1 AND status = $2 ORDER BY id ASC`)).
			WithArgs(uint(3), model.ExecutionStatusOpen).
			WillReturnRows(recordRows(model.ExecutionRecord{ID: 5, WorkflowID: 3, Status: "open", ExchangeOrderID: "x"}))

		records, err := repo.FindOpenByWorkflow(context.Background(), 3, 0)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "x", records[0].ExchangeOrderID)
	})

	t.Run("single user", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "execution_records" WHERE (workflow_id = $1 AND status = $2) AND user_id = $3 ORDER BY id ASC`)).
			WithArgs(uint(3), model.ExecutionStatusOpen, uint(7)).
			WillReturnRows(recordRows())

		records, err := repo.FindOpenByWorkflow(context.Background(), 3, 7)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExceptionRepositoryCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&ExceptionRepository{}).WithDB(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "exceptions"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), &model.Exception{Service: "dispatcher", Module: "executors", Level: "error"}))
	require.NoError(t, mock.ExpectationsWereMet())
}
