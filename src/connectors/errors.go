package connectors

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ExchangeError is a structured rejection returned by an exchange API.
type ExchangeError struct {
	Exchange   string
	Code       string
	Message    string
	HTTPStatus int
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s error %s: %s (http %d)", e.Exchange, e.Code, e.Message, e.HTTPStatus)
}

// Reason is the short form stored as a cancellation reason.
func (e *ExchangeError) Reason() string {
	return e.Code + ": " + e.Message
}

var jsonObject = regexp.MustCompile(`\{[^{}]*\}`)

type errorPayload struct {
	Code    *json.Number `json:"code"`
	Msg     string       `json:"msg"`
	RetCode *json.Number `json:"retCode"`
	RetMsg  string       `json:"retMsg"`
}

// ParseExchangeError extracts "<code>: <msg>" from a typed ExchangeError or from a Binance
// or Bybit error body embedded in the error text.
func ParseExchangeError(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var exErr *ExchangeError
	if errors.As(err, &exErr) {
		return exErr.Reason(), true
	}
	for _, candidate := range jsonObject.FindAllString(err.Error(), -1) {
		var p errorPayload
		if json.Unmarshal([]byte(candidate), &p) != nil {
			continue
		}
		if p.Code != nil && p.Msg != "" {
			return p.Code.String() + ": " + p.Msg, true
		}
		if p.RetCode != nil && p.RetMsg != "" {
			return p.RetCode.String() + ": " + p.RetMsg, true
		}
	}
	return "", false
}

// binanceError builds an ExchangeError from a Binance {"code","msg"} body.
func binanceError(exchange string, status int, body []byte) error {
	var p struct {
		Code int64  `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &p); err != nil || p.Msg == "" {
		return &ExchangeError{Exchange: exchange, Code: strconv.Itoa(status), Message: string(body), HTTPStatus: status}
	}
	return &ExchangeError{Exchange: exchange, Code: strconv.FormatInt(p.Code, 10), Message: p.Msg, HTTPStatus: status}
}
