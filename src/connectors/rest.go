package connectors

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"portfolioexecutor/src/model"
)

const (
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
)

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}

	code := r.StatusCode()
	if code >= 500 && code <= 599 {
		return true
	}
	return code == 429 || code == 408
}

func baseClient(baseURL, fallback string, timeout time.Duration) *resty.Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = fallback
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout)
}

// newRESTClient is the client for idempotent reads. It retries transport errors,
// 5xx, 429 and 408 with backoff.
func newRESTClient(baseURL, fallback string, timeout time.Duration) *resty.Client {
	return baseClient(baseURL, fallback, timeout).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)
}

// newTradeClient is the client for calls that change exchange state. It never retries.
func newTradeClient(baseURL, fallback string, timeout time.Duration) *resty.Client {
	return baseClient(baseURL, fallback, timeout).SetRetryCount(0)
}

// outcomeUnknown reports whether a failed state-changing call may still have been
// executed by the exchange, as after a transport error or a 5xx response.
func outcomeUnknown(err error) bool {
	if err == nil {
		return false
	}
	var exErr *ExchangeError
	if errors.As(err, &exErr) {
		return exErr.HTTPStatus >= 500 || exErr.HTTPStatus == http.StatusRequestTimeout
	}
	return true
}

func hmacSHA256Hex(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// precisionFromStep turns a tick or step size such as "0.00100000" into decimal places.
func precisionFromStep(step string) int {
	step = strings.TrimSpace(step)
	dot := strings.IndexByte(step, '.')
	if dot < 0 {
		return 0
	}
	frac := strings.TrimRight(step[dot+1:], "0")
	return len(frac)
}

func formatFloat(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func parseFloat(s string) float64 {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// newClientOrderID returns an exchange-safe client id; Binance caps it at 36 characters.
func newClientOrderID(prefix string) string {
	id := prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	if len(id) > 36 {
		id = id[:36]
	}
	return id
}

// closingSide is the order side that reduces a position.
func closingSide(positionSide string) string {
	if positionSide == model.PositionSideShort {
		return model.SideBuy
	}
	return model.SideSell
}
