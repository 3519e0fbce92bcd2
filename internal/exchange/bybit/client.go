package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tradepipe/internal/exchange"
	"github.com/tradepipe/internal/models"
)

const (
	baseURL    = "https://api.bybit.com"
	testnetURL = "https://api-testnet.bybit.com"
	recvWindow = "5000"
	category   = "linear"
)

// Client is a Bybit v5 linear-contract REST adapter.
type Client struct {
	client    *resty.Client
	apiKey    string
	secretKey string
	limiter   *rate.Limiter
	logger    zerolog.Logger
}

var _ exchange.Adapter = (*Client)(nil)

// New creates a Bybit adapter bound to one user's credentials.
func New(creds models.Credentials, testnet bool) (exchange.Adapter, error) {
	u := baseURL
	if testnet {
		u = testnetURL
	}
	return &Client{
		client:    resty.New().SetBaseURL(u).SetTimeout(10 * time.Second),
		apiKey:    creds.APIKey,
		secretKey: creds.SecretKey,
		limiter:   rate.NewLimiter(rate.Limit(10), 5),
		logger:    zerolog.New(zerolog.NewConsoleWriter()).With().Str("exchange", "bybit").Logger(),
	}, nil
}

// SetLogger replaces the adapter logger.
func (c *Client) SetLogger(l zerolog.Logger) {
	c.logger = l.With().Str("exchange", "bybit").Logger()
}

func (c *Client) Name() string { return "bybit" }

// envelope is the standard Bybit v5 response wrapper.
type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
	Time    int64           `json:"time"`
}

// sign builds the v5 signature over timestamp + key + recvWindow + payload.
func (c *Client) sign(timestamp, payload string) string {
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(timestamp + c.apiKey + recvWindow + payload))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Client) get(ctx context.Context, path string, params url.Values, signed bool, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	query := params.Encode()
	req := c.client.R().SetContext(ctx).SetQueryString(query)
	if signed {
		ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
		req.SetHeaders(map[string]string{
			"X-BAPI-API-KEY":     c.apiKey,
			"X-BAPI-TIMESTAMP":   ts,
			"X-BAPI-RECV-WINDOW": recvWindow,
			"X-BAPI-SIGN":        c.sign(ts, query),
		})
	}

	var env envelope
	resp, err := req.SetResult(&env).Get(path)
	if err != nil {
		return fmt.Errorf("bybit GET %s: %w", path, err)
	}
	return c.unwrap(path, resp, &env, result)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)

	var env envelope
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"X-BAPI-API-KEY":     c.apiKey,
			"X-BAPI-TIMESTAMP":   ts,
			"X-BAPI-RECV-WINDOW": recvWindow,
			"X-BAPI-SIGN":        c.sign(ts, string(payload)),
			"Content-Type":       "application/json",
		}).
		SetBody(payload).
		SetResult(&env).
		Post(path)
	if err != nil {
		return fmt.Errorf("bybit POST %s: %w", path, err)
	}
	return c.unwrap(path, resp, &env, result)
}

func (c *Client) unwrap(path string, resp *resty.Response, env *envelope, result interface{}) error {
	if resp.IsError() {
		return fmt.Errorf("bybit %s: http %d", path, resp.StatusCode())
	}
	if env.RetCode != 0 {
		return fmt.Errorf("bybit %s: %s (code %d)", path, env.RetMsg, env.RetCode)
	}
	if result != nil {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("bybit %s: decode result: %w", path, err)
		}
	}
	return nil
}

type walletBalanceResult struct {
	List []struct {
		Coin []struct {
			Coin          string `json:"coin"`
			WalletBalance string `json:"walletBalance"`
			Locked        string `json:"locked"`
		} `json:"coin"`
	} `json:"list"`
}

// GetBalances fetches the unified account wallet balances.
func (c *Client) GetBalances(ctx context.Context) (map[string]exchange.Balance, error) {
	params := url.Values{}
	params.Set("accountType", "UNIFIED")

	var result walletBalanceResult
	if err := c.get(ctx, "/v5/account/wallet-balance", params, true, &result); err != nil {
		return nil, err
	}

	balances := make(map[string]exchange.Balance)
	for _, acct := range result.List {
		for _, coin := range acct.Coin {
			total := parseFloat(coin.WalletBalance)
			used := parseFloat(coin.Locked)
			if total == 0 {
				continue
			}
			balances[coin.Coin] = exchange.Balance{Free: total - used, Used: used, Total: total}
		}
	}
	return balances, nil
}

type createOrderResult struct {
	OrderID string `json:"orderId"`
}

// PlaceMarketOrder submits a market order and reads back its state, since
// the create endpoint acks with the order id only.
func (c *Client) PlaceMarketOrder(ctx context.Context, nativeSymbol, side string, amount float64) (*models.Order, error) {
	return c.createOrder(ctx, nativeSymbol, side, "Market", amount, 0)
}

// PlaceLimitOrder submits a GTC limit order.
func (c *Client) PlaceLimitOrder(ctx context.Context, nativeSymbol, side string, amount, price float64) (*models.Order, error) {
	return c.createOrder(ctx, nativeSymbol, side, "Limit", amount, price)
}

func (c *Client) createOrder(ctx context.Context, nativeSymbol, side, orderType string, amount, price float64) (*models.Order, error) {
	body := map[string]string{
		"category":  category,
		"symbol":    nativeSymbol,
		"side":      titleSide(side),
		"orderType": orderType,
		"qty":       strconv.FormatFloat(amount, 'f', -1, 64),
	}
	if orderType == "Limit" {
		body["price"] = strconv.FormatFloat(price, 'f', -1, 64)
		body["timeInForce"] = "GTC"
	}

	var result createOrderResult
	if err := c.post(ctx, "/v5/order/create", body, &result); err != nil {
		return nil, err
	}
	c.logger.Info().Str("symbol", nativeSymbol).Str("side", side).
		Str("type", orderType).Float64("amount", amount).
		Str("order_id", result.OrderID).Msg("order placed")

	order, err := c.GetOrder(ctx, result.OrderID, nativeSymbol)
	if err != nil {
		// The order exists even if the read-back failed; return the ack.
		return &models.Order{
			ID:        result.OrderID,
			Symbol:    nativeSymbol,
			Side:      models.OrderSide(strings.ToLower(side)),
			Amount:    amount,
			Price:     price,
			Status:    models.OrderStatusOpen,
			Timestamp: time.Now().UnixMilli(),
		}, nil
	}
	return order, nil
}

type orderListResult struct {
	List []struct {
		OrderID     string `json:"orderId"`
		Symbol      string `json:"symbol"`
		Side        string `json:"side"`
		OrderStatus string `json:"orderStatus"`
		Qty         string `json:"qty"`
		Price       string `json:"price"`
		AvgPrice    string `json:"avgPrice"`
		CumExecQty  string `json:"cumExecQty"`
		UpdatedTime string `json:"updatedTime"`
	} `json:"list"`
}

// GetOrder retrieves the current state of an order.
func (c *Client) GetOrder(ctx context.Context, orderID, nativeSymbol string) (*models.Order, error) {
	params := url.Values{}
	params.Set("category", category)
	params.Set("symbol", nativeSymbol)
	params.Set("orderId", orderID)

	var result orderListResult
	if err := c.get(ctx, "/v5/order/realtime", params, true, &result); err != nil {
		return nil, err
	}
	if len(result.List) == 0 {
		// Terminal orders fall out of the realtime list after a while.
		if err := c.get(ctx, "/v5/order/history", params, true, &result); err != nil {
			return nil, err
		}
	}
	if len(result.List) == 0 {
		return nil, fmt.Errorf("bybit: order %s not found", orderID)
	}

	o := result.List[0]
	updated, _ := strconv.ParseInt(o.UpdatedTime, 10, 64)
	return &models.Order{
		ID:               o.OrderID,
		Symbol:           o.Symbol,
		Side:             models.OrderSide(strings.ToLower(o.Side)),
		Amount:           parseFloat(o.Qty),
		Price:            parseFloat(o.Price),
		Status:           mapStatus(o.OrderStatus),
		AverageFillPrice: parseFloat(o.AvgPrice),
		FilledQuantity:   parseFloat(o.CumExecQty),
		Timestamp:        updated,
	}, nil
}

type orderBookResult struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
	Ts     int64      `json:"ts"`
}

// GetOrderBook fetches an order book snapshot up to the given depth.
func (c *Client) GetOrderBook(ctx context.Context, nativeSymbol string, depth int) (*exchange.OrderBook, error) {
	params := url.Values{}
	params.Set("category", category)
	params.Set("symbol", nativeSymbol)
	params.Set("limit", strconv.Itoa(depth))

	var result orderBookResult
	if err := c.get(ctx, "/v5/market/orderbook", params, false, &result); err != nil {
		return nil, err
	}
	return &exchange.OrderBook{
		Symbol:    nativeSymbol,
		Bids:      parseLevels(result.Bids),
		Asks:      parseLevels(result.Asks),
		Timestamp: result.Ts,
	}, nil
}

type tickerEntry struct {
	Symbol          string `json:"symbol"`
	Bid1Price       string `json:"bid1Price"`
	Ask1Price       string `json:"ask1Price"`
	LastPrice       string `json:"lastPrice"`
	FundingRate     string `json:"fundingRate"`
	NextFundingTime string `json:"nextFundingTime"`
}

type tickersResult struct {
	List []tickerEntry `json:"list"`
}

// GetTicker fetches the top of book and the last traded price.
func (c *Client) GetTicker(ctx context.Context, nativeSymbol string) (*exchange.Ticker, error) {
	t, err := c.ticker(ctx, nativeSymbol)
	if err != nil {
		return nil, err
	}
	return &exchange.Ticker{
		Symbol:    nativeSymbol,
		Bid:       parseFloat(t.Bid1Price),
		Ask:       parseFloat(t.Ask1Price),
		Last:      parseFloat(t.LastPrice),
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// GetFundingRate fetches the current funding rate of a perpetual.
func (c *Client) GetFundingRate(ctx context.Context, nativeSymbol string) (*exchange.FundingRate, error) {
	t, err := c.ticker(ctx, nativeSymbol)
	if err != nil {
		return nil, err
	}
	interval, err := c.fundingIntervalMs(ctx, nativeSymbol)
	if err != nil {
		return nil, err
	}
	next, _ := strconv.ParseInt(t.NextFundingTime, 10, 64)
	return &exchange.FundingRate{
		Symbol:     nativeSymbol,
		Rate:       parseFloat(t.FundingRate),
		Timestamp:  next,
		IntervalMs: interval,
	}, nil
}

type instrumentEntry struct {
	Symbol          string `json:"symbol"`
	ContractType    string `json:"contractType"`
	FundingInterval int64  `json:"fundingInterval"` // minutes
}

type instrumentsResult struct {
	List []instrumentEntry `json:"list"`
}

// GetMarketMetadata resolves instrument kind. Linear contracts are sized
// directly in the base asset.
func (c *Client) GetMarketMetadata(ctx context.Context, nativeSymbol string) (*exchange.MarketMetadata, error) {
	inst, err := c.instrument(ctx, nativeSymbol)
	if err != nil {
		return nil, err
	}
	kind := exchange.MarketKindFutures
	if strings.Contains(inst.ContractType, "Perpetual") {
		kind = exchange.MarketKindPerpetual
	}
	return &exchange.MarketMetadata{Symbol: nativeSymbol, Kind: kind, ContractSize: 1}, nil
}

func (c *Client) ticker(ctx context.Context, nativeSymbol string) (*tickerEntry, error) {
	params := url.Values{}
	params.Set("category", category)
	params.Set("symbol", nativeSymbol)

	var result tickersResult
	if err := c.get(ctx, "/v5/market/tickers", params, false, &result); err != nil {
		return nil, err
	}
	if len(result.List) == 0 {
		return nil, fmt.Errorf("bybit: unknown symbol %s", nativeSymbol)
	}
	return &result.List[0], nil
}

func (c *Client) instrument(ctx context.Context, nativeSymbol string) (*instrumentEntry, error) {
	params := url.Values{}
	params.Set("category", category)
	params.Set("symbol", nativeSymbol)

	var result instrumentsResult
	if err := c.get(ctx, "/v5/market/instruments-info", params, false, &result); err != nil {
		return nil, err
	}
	if len(result.List) == 0 {
		return nil, fmt.Errorf("bybit: unknown symbol %s", nativeSymbol)
	}
	return &result.List[0], nil
}

func (c *Client) fundingIntervalMs(ctx context.Context, nativeSymbol string) (int64, error) {
	inst, err := c.instrument(ctx, nativeSymbol)
	if err != nil {
		return 0, err
	}
	if inst.FundingInterval <= 0 {
		return 8 * 60 * 60 * 1000, nil
	}
	return inst.FundingInterval * 60 * 1000, nil
}

// mapStatus normalizes Bybit order statuses onto the pipeline lattice.
func mapStatus(s string) models.OrderStatus {
	switch s {
	case "New", "PartiallyFilled", "Untriggered", "Created":
		return models.OrderStatusOpen
	case "Filled":
		return models.OrderStatusClosed
	case "Cancelled", "PartiallyFilledCanceled", "Deactivated", "Expired":
		return models.OrderStatusCanceled
	case "Rejected":
		return models.OrderStatusRejected
	default:
		return models.OrderStatusOpen
	}
}

func titleSide(side string) string {
	switch strings.ToLower(side) {
	case "buy":
		return "Buy"
	case "sell":
		return "Sell"
	}
	return side
}

func parseLevels(raw [][]string) []exchange.BookLevel {
	levels := make([]exchange.BookLevel, 0, len(raw))
	for _, l := range raw {
		if len(l) < 2 {
			continue
		}
		levels = append(levels, exchange.BookLevel{
			Price:    parseFloat(l[0]),
			Quantity: parseFloat(l[1]),
		})
	}
	return levels
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
