package cancelopen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"portfolioexecutor/src/connectors"
	"portfolioexecutor/src/database"
	"portfolioexecutor/src/executors"
	"portfolioexecutor/src/model"
	"portfolioexecutor/src/repository"
)

// OpenRecords lists the open execution records of a workflow.
type OpenRecords interface {
	FindOpenByWorkflow(ctx context.Context, workflowID, userID uint) ([]model.ExecutionRecord, error)
}

type CancelOpen struct {
	Log *logrus.Entry
	Out io.Writer
}

func (c *CancelOpen) Start(ctx context.Context, workflowID, userID uint) error {
	if workflowID == 0 {
		return errors.New("workflow id is required")
	}

	venue, err := connectors.NewVenue(connectors.GetConfig(), c.Log)
	if err != nil {
		return err
	}
	if err := database.InitMainDB(); err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	dispatcher := executors.NewDispatcher(
		venue,
		repository.NewExecutionRecordRepository(),
		repository.NewExceptionRepository(),
		c.Log,
	)
	return c.run(ctx, repository.NewExecutionRecordRepository(), dispatcher, executors.GetConfig(), workflowID, userID)
}

func (c *CancelOpen) run(ctx context.Context, records OpenRecords, dispatcher *executors.Dispatcher, cfg executors.Config, workflowID, userID uint) error {
	open, err := records.FindOpenByWorkflow(ctx, workflowID, userID)
	if err != nil {
		return fmt.Errorf("load open records: %w", err)
	}

	log := c.Log.WithFields(logrus.Fields{"workflow_id": workflowID, "user_id": userID, "open": len(open)})
	if len(open) == 0 {
		log.Info("No open orders to cancel")
		return c.write([]executors.CancelResult{})
	}

	log.Info("Cancelling open orders")
	results := dispatcher.CancelOpenOrders(ctx, open, cfg.CancelConcurrency)
	return c.write(results)
}

func (c *CancelOpen) write(results []executors.CancelResult) error {
	enc := json.NewEncoder(c.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("write cancel results: %w", err)
	}
	return nil
}
