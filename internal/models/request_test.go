package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepipe/internal/models"
)

func TestTradeRequestValidate(t *testing.T) {
	req := &models.TradeRequest{
		UserID:    "alice",
		Exchange:  "binance",
		APIKey:    "key",
		APISecret: "secret",
		Action:    models.ActionGetAccountInfo,
	}
	assert.NoError(t, req.Validate())
}

func TestTradeRequestValidateMissingFields(t *testing.T) {
	req := &models.TradeRequest{Action: models.ActionPlaceMarketOrder, Exchange: "binance"}

	err := req.Validate()
	require.Error(t, err)

	// The message names every absent field so the client can fix the
	// request in one round trip.
	assert.Equal(t, "Missing required data (user_id, api_key, api_secret)", err.Error())

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"user_id", "api_key", "api_secret"}, verr.Fields)
}

func TestTradeRequestValidateEmpty(t *testing.T) {
	err := (&models.TradeRequest{}).Validate()
	require.Error(t, err)
	assert.Equal(t, "Missing required data (user_id, action, exchange, api_key, api_secret)", err.Error())
}

func TestTradeRequestCredentials(t *testing.T) {
	req := &models.TradeRequest{
		APIKey:    "key",
		APISecret: "secret",
		Password:  "pass",
		UID:       "42",
	}
	creds := req.Credentials()
	assert.Equal(t, "key", creds.APIKey)
	assert.Equal(t, "secret", creds.SecretKey)
	assert.Equal(t, "pass", creds.Password)
	assert.Equal(t, "42", creds.UID)
}

func TestTradingActions(t *testing.T) {
	assert.True(t, models.TradingActions[models.ActionGetAccountInfo])
	assert.True(t, models.TradingActions[models.ActionPlaceMarketOrder])
	assert.True(t, models.TradingActions[models.ActionPlaceLimitOrder])
	assert.True(t, models.TradingActions[models.ActionAnalyzeAndPlaceOrder])
	assert.False(t, models.TradingActions["start_orderbook"])
}
