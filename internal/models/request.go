package models

import (
	"fmt"
	"strings"
)

// Action is a trading action a user can request.
type Action string

const (
	ActionGetAccountInfo       Action = "get_account_info"
	ActionPlaceMarketOrder     Action = "place_market_order"
	ActionPlaceLimitOrder      Action = "place_limit_order"
	ActionAnalyzeAndPlaceOrder Action = "analyze_and_place_order"
)

// TradingActions is the closed set of actions the pipeline dispatches on.
var TradingActions = map[Action]bool{
	ActionGetAccountInfo:       true,
	ActionPlaceMarketOrder:     true,
	ActionPlaceLimitOrder:      true,
	ActionAnalyzeAndPlaceOrder: true,
}

// Credentials are exchange API credentials owned by a single request. They
// are never persisted beyond the life of that request.
type Credentials struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	Password  string `json:"password,omitempty"`
	UID       string `json:"uid,omitempty"`
}

// OrderParams carries the action-specific parameters of a trade request.
type OrderParams struct {
	Symbol           string  `json:"symbol,omitempty"`
	Side             string  `json:"side,omitempty"`
	Amount           float64 `json:"amount,omitempty"`
	Price            float64 `json:"price,omitempty"`
	TradeVolumeQuote float64 `json:"trade_volume_quote,omitempty"`
	DryRun           bool    `json:"dry_run,omitempty"`
}

// TradeRequest is the inbound job payload consumed from the task queue.
// It is immutable once accepted.
type TradeRequest struct {
	UserID      string      `json:"user_id"`
	AccountName string      `json:"account_name,omitempty"`
	Exchange    string      `json:"exchange"`
	APIKey      string      `json:"api_key"`
	APISecret   string      `json:"api_secret"`
	Password    string      `json:"password,omitempty"`
	UID         string      `json:"uid,omitempty"`
	IsTestnet   bool        `json:"is_testnet,omitempty"`
	Action      Action      `json:"action"`
	Params      OrderParams `json:"params"`
}

// Credentials assembles the per-request exchange credentials.
func (r *TradeRequest) Credentials() Credentials {
	return Credentials{
		APIKey:    r.APIKey,
		SecretKey: r.APISecret,
		Password:  r.Password,
		UID:       r.UID,
	}
}

// Validate checks the fields that must be present before dispatch. Absence
// is a validation failure, not a runtime error.
func (r *TradeRequest) Validate() error {
	var missing []string
	if r.UserID == "" {
		missing = append(missing, "user_id")
	}
	if r.Action == "" {
		missing = append(missing, "action")
	}
	if r.Exchange == "" {
		missing = append(missing, "exchange")
	}
	if r.APIKey == "" {
		missing = append(missing, "api_key")
	}
	if r.APISecret == "" {
		missing = append(missing, "api_secret")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// ValidationError reports required request fields that are absent.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Missing required data (%s)", strings.Join(e.Fields, ", "))
}
