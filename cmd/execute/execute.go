package execute

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"portfolioexecutor/src/connectors"
	"portfolioexecutor/src/database"
	"portfolioexecutor/src/executors"
	"portfolioexecutor/src/model"
	"portfolioexecutor/src/normalizer"
	"portfolioexecutor/src/repository"
)

type Execute struct {
	Log *logrus.Entry
	Out io.Writer
}

// LoadCycle reads a review cycle decision from a YAML batch file.
func LoadCycle(path string) (*executors.Cycle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}

	cycle := &executors.Cycle{}
	if err := yaml.Unmarshal(data, cycle); err != nil {
		return nil, fmt.Errorf("parse batch: %w", err)
	}

	cycle.Market = strings.ToLower(strings.TrimSpace(cycle.Market))
	if cycle.Market == "" {
		cycle.Market = model.MarketSpot
	}
	if cycle.Market != model.MarketSpot && cycle.Market != model.MarketFutures {
		return nil, fmt.Errorf("parse batch: unknown market %q", cycle.Market)
	}
	return cycle, nil
}

// Decider re-reads the batch file when a retry is warranted, standing in for a new decision.
func Decider(path string, log *logrus.Entry) executors.DecideFunc {
	return func(ctx context.Context, attempt int) (*executors.Cycle, error) {
		log.WithFields(logrus.Fields{"attempt": attempt, "file": path}).Info("Reloading batch for retry")
		return LoadCycle(path)
	}
}

func (e *Execute) Start(ctx context.Context, path string) error {
	if path == "" {
		path = GetConfig().BatchFile
	}
	cycle, err := LoadCycle(path)
	if err != nil {
		return err
	}

	venue, err := connectors.NewVenue(connectors.GetConfig(), e.Log)
	if err != nil {
		return err
	}

	if err := database.InitMainDB(); err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	policy, err := normalizer.RepairPolicyByName(executors.GetConfig().RepairPolicy)
	if err != nil {
		return err
	}

	dispatcher := executors.NewDispatcher(
		venue,
		repository.NewExecutionRecordRepository(),
		repository.NewExceptionRepository(),
		e.Log,
	).WithRepairPolicy(policy)

	e.Log.WithFields(logrus.Fields{
		"workflow_id":      cycle.WorkflowID,
		"review_result_id": cycle.ReviewResultID,
		"market":           cycle.Market,
		"intents":          len(cycle.Intents),
	}).Info("Executing batch")

	summaries, err := dispatcher.RunCycle(ctx, cycle, Decider(path, e.Log))
	if writeErr := e.write(summaries); writeErr != nil && err == nil {
		err = writeErr
	}
	return err
}

func (e *Execute) write(summaries []*executors.BatchSummary) error {
	enc := json.NewEncoder(e.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summaries); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
