package executors

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	CancelConcurrency int    `envconfig:"CANCEL_CONCURRENCY" default:"8"`
	RepairPolicy      string `envconfig:"REPAIR_POLICY" default:"tolerant"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
