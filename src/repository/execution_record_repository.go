package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"portfolioexecutor/src/database"
	"portfolioexecutor/src/model"
)

// ExecutionRecordRepository persists the append-only execution audit trail.
// It never updates a record; status changes belong to reconciliation.
type ExecutionRecordRepository struct {
	db *gorm.DB
}

// NewExecutionRecordRepository creates a repository over the main read/write database.
func NewExecutionRecordRepository() *ExecutionRecordRepository {
	return &ExecutionRecordRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *ExecutionRecordRepository) WithDB(db *gorm.DB) *ExecutionRecordRepository {
	return &ExecutionRecordRepository{db: db}
}

func (r *ExecutionRecordRepository) Create(ctx context.Context, record *model.ExecutionRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":             "ExecutionRecordRepository",
			"op":               "Create",
			"workflow_id":      record.WorkflowID,
			"review_result_id": record.ReviewResultID,
			"symbol":           record.Symbol,
		}).WithError(err).Error("Failed to create execution record")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":              "ExecutionRecordRepository",
		"op":                "Create",
		"id":                record.ID,
		"status":            record.Status,
		"exchange_order_id": record.ExchangeOrderID,
	}).Debug("Execution record created")

	return nil
}

// FindByReview returns every record of one review cycle in insertion order.
func (r *ExecutionRecordRepository) FindByReview(ctx context.Context, workflowID, reviewResultID uint) ([]model.ExecutionRecord, error) {
	var records []model.ExecutionRecord
	err := r.db.WithContext(ctx).
		Where("workflow_id = ? AND review_result_id = ?", workflowID, reviewResultID).
		Order("id ASC").
		Find(&records).Error
	return records, err
}

// FindOpenByWorkflow lists records still open on the exchange. userID 0 matches any user.
func (r *ExecutionRecordRepository) FindOpenByWorkflow(ctx context.Context, workflowID, userID uint) ([]model.ExecutionRecord, error) {
	q := r.db.WithContext(ctx).
		Where("workflow_id = ? AND status = ?", workflowID, model.ExecutionStatusOpen)
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}

	var records []model.ExecutionRecord
	err := q.Order("id ASC").Find(&records).Error
	return records, err
}
