package overview

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	TTL            time.Duration `envconfig:"OVERVIEW_TTL" default:"60s"`
	BtcTTL         time.Duration `envconfig:"BTC_CONTEXT_TTL" default:"60s"`
	Quote          string        `envconfig:"OVERVIEW_QUOTE" default:"USDT"`
	ReferenceToken string        `envconfig:"OVERVIEW_REFERENCE_TOKEN" default:"BTC"`
	Candles1h      int           `envconfig:"CANDLES_1H" default:"1000"`
	Candles4h      int           `envconfig:"CANDLES_4H" default:"210"`
	Candles1d      int           `envconfig:"CANDLES_1D" default:"150"`
	Candles1w      int           `envconfig:"CANDLES_1W" default:"60"`
}

// DefaultConfig mirrors the envconfig defaults, for callers that do not read the environment.
func DefaultConfig() Config {
	return Config{
		TTL:            60 * time.Second,
		BtcTTL:         60 * time.Second,
		Quote:          "USDT",
		ReferenceToken: "BTC",
		Candles1h:      1000,
		Candles4h:      210,
		Candles1d:      150,
		Candles1w:      60,
	}
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
