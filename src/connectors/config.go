package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	ExchangeBinance = "binance"
	ExchangeBybit   = "bybit"
)

type Config struct {
	TargetExchange string `envconfig:"TARGET_EXCHANGE" default:"binance"`
	APIKey         string `envconfig:"API_KEY"`
	APISecret      string `envconfig:"API_SECRET"`

	BinanceSpotURL    string `envconfig:"BINANCE_SPOT_URL" default:"https://api.binance.com"`
	BinanceFuturesURL string `envconfig:"BINANCE_FUTURES_URL" default:"https://fapi.binance.com"`
	BinanceHedgeMode  bool   `envconfig:"BINANCE_HEDGE_MODE" default:"true"`

	BybitURL       string `envconfig:"BYBIT_URL" default:"https://api.bybit.com"`
	BybitHedgeMode bool   `envconfig:"BYBIT_HEDGE_MODE" default:"false"`

	RecvWindow  time.Duration `envconfig:"RECV_WINDOW" default:"5s"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
