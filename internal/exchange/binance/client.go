package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
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
	baseURL    = "https://fapi.binance.com"
	testnetURL = "https://testnet.binancefuture.com"
	recvWindow = "5000"

	// Binance reports funding every 8 hours unless the instrument says
	// otherwise via /fapi/v1/fundingInfo.
	defaultFundingIntervalMs = 8 * 60 * 60 * 1000
)

// Client is a Binance USDT-margined futures REST adapter.
type Client struct {
	client    *resty.Client
	apiKey    string
	secretKey string
	limiter   *rate.Limiter
	logger    zerolog.Logger
}

var _ exchange.Adapter = (*Client)(nil)

// New creates a Binance futures adapter bound to one user's credentials.
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
		logger:    zerolog.New(zerolog.NewConsoleWriter()).With().Str("exchange", "binance").Logger(),
	}, nil
}

// SetLogger replaces the adapter logger.
func (c *Client) SetLogger(l zerolog.Logger) {
	c.logger = l.With().Str("exchange", "binance").Logger()
}

func (c *Client) Name() string { return "binance" }

// sign creates a HMAC-SHA256 signature for the request.
func (c *Client) sign(data string) string {
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		params.Set("recvWindow", recvWindow)
		params.Set("signature", c.sign(params.Encode()))
	}

	req := c.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		SetError(&apiError{})
	if signed {
		req.SetHeader("X-MBX-APIKEY", c.apiKey)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("binance %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr, _ := resp.Error().(*apiError)
		if apiErr != nil && apiErr.Msg != "" {
			return fmt.Errorf("binance %s %s: %s (code %d)", method, path, apiErr.Msg, apiErr.Code)
		}
		return fmt.Errorf("binance %s %s: http %d", method, path, resp.StatusCode())
	}
	return nil
}

type balanceEntry struct {
	Asset            string `json:"asset"`
	Balance          string `json:"balance"`
	AvailableBalance string `json:"availableBalance"`
}

// GetBalances fetches the futures wallet balances.
func (c *Client) GetBalances(ctx context.Context) (map[string]exchange.Balance, error) {
	var entries []balanceEntry
	if err := c.do(ctx, "GET", "/fapi/v2/balance", nil, true, &entries); err != nil {
		return nil, err
	}

	balances := make(map[string]exchange.Balance, len(entries))
	for _, e := range entries {
		total := parseFloat(e.Balance)
		free := parseFloat(e.AvailableBalance)
		if total == 0 && free == 0 {
			continue
		}
		balances[e.Asset] = exchange.Balance{Free: free, Used: total - free, Total: total}
	}
	return balances, nil
}

type orderResponse struct {
	OrderID     int64  `json:"orderId"`
	Symbol      string `json:"symbol"`
	Status      string `json:"status"`
	Price       string `json:"price"`
	AvgPrice    string `json:"avgPrice"`
	OrigQty     string `json:"origQty"`
	ExecutedQty string `json:"executedQty"`
	Side        string `json:"side"`
	UpdateTime  int64  `json:"updateTime"`
}

// PlaceMarketOrder submits a market order and returns the normalized ack.
func (c *Client) PlaceMarketOrder(ctx context.Context, nativeSymbol, side string, amount float64) (*models.Order, error) {
	params := url.Values{}
	params.Set("symbol", nativeSymbol)
	params.Set("side", strings.ToUpper(side))
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(amount, 'f', -1, 64))

	var resp orderResponse
	if err := c.do(ctx, "POST", "/fapi/v1/order", params, true, &resp); err != nil {
		return nil, err
	}
	c.logger.Info().Str("symbol", nativeSymbol).Str("side", side).
		Float64("amount", amount).Int64("order_id", resp.OrderID).Msg("market order placed")
	return resp.toOrder(), nil
}

// PlaceLimitOrder submits a GTC limit order and returns the normalized ack.
func (c *Client) PlaceLimitOrder(ctx context.Context, nativeSymbol, side string, amount, price float64) (*models.Order, error) {
	params := url.Values{}
	params.Set("symbol", nativeSymbol)
	params.Set("side", strings.ToUpper(side))
	params.Set("type", "LIMIT")
	params.Set("timeInForce", "GTC")
	params.Set("quantity", strconv.FormatFloat(amount, 'f', -1, 64))
	params.Set("price", strconv.FormatFloat(price, 'f', -1, 64))

	var resp orderResponse
	if err := c.do(ctx, "POST", "/fapi/v1/order", params, true, &resp); err != nil {
		return nil, err
	}
	c.logger.Info().Str("symbol", nativeSymbol).Str("side", side).
		Float64("amount", amount).Float64("price", price).
		Int64("order_id", resp.OrderID).Msg("limit order placed")
	return resp.toOrder(), nil
}

// GetOrder retrieves the current state of an order.
func (c *Client) GetOrder(ctx context.Context, orderID, nativeSymbol string) (*models.Order, error) {
	params := url.Values{}
	params.Set("symbol", nativeSymbol)
	params.Set("orderId", orderID)

	var resp orderResponse
	if err := c.do(ctx, "GET", "/fapi/v1/order", params, true, &resp); err != nil {
		return nil, err
	}
	return resp.toOrder(), nil
}

type depthResponse struct {
	Time int64      `json:"T"`
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

// GetOrderBook fetches an order book snapshot up to the given depth.
func (c *Client) GetOrderBook(ctx context.Context, nativeSymbol string, depth int) (*exchange.OrderBook, error) {
	params := url.Values{}
	params.Set("symbol", nativeSymbol)
	params.Set("limit", strconv.Itoa(depth))

	var resp depthResponse
	if err := c.do(ctx, "GET", "/fapi/v1/depth", params, false, &resp); err != nil {
		return nil, err
	}
	return &exchange.OrderBook{
		Symbol:    nativeSymbol,
		Bids:      parseLevels(resp.Bids),
		Asks:      parseLevels(resp.Asks),
		Timestamp: resp.Time,
	}, nil
}

type bookTickerResponse struct {
	BidPrice string `json:"bidPrice"`
	AskPrice string `json:"askPrice"`
	Time     int64  `json:"time"`
}

type priceTickerResponse struct {
	Price string `json:"price"`
	Time  int64  `json:"time"`
}

// GetTicker fetches the top of book plus the last traded price.
func (c *Client) GetTicker(ctx context.Context, nativeSymbol string) (*exchange.Ticker, error) {
	params := url.Values{}
	params.Set("symbol", nativeSymbol)

	var book bookTickerResponse
	if err := c.do(ctx, "GET", "/fapi/v1/ticker/bookTicker", params, false, &book); err != nil {
		return nil, err
	}
	var last priceTickerResponse
	if err := c.do(ctx, "GET", "/fapi/v1/ticker/price", params, false, &last); err != nil {
		return nil, err
	}
	return &exchange.Ticker{
		Symbol:    nativeSymbol,
		Bid:       parseFloat(book.BidPrice),
		Ask:       parseFloat(book.AskPrice),
		Last:      parseFloat(last.Price),
		Timestamp: last.Time,
	}, nil
}

type premiumIndexResponse struct {
	LastFundingRate string `json:"lastFundingRate"`
	NextFundingTime int64  `json:"nextFundingTime"`
	Time            int64  `json:"time"`
}

// GetFundingRate fetches the current funding rate of a perpetual.
func (c *Client) GetFundingRate(ctx context.Context, nativeSymbol string) (*exchange.FundingRate, error) {
	params := url.Values{}
	params.Set("symbol", nativeSymbol)

	var resp premiumIndexResponse
	if err := c.do(ctx, "GET", "/fapi/v1/premiumIndex", params, false, &resp); err != nil {
		return nil, err
	}
	return &exchange.FundingRate{
		Symbol:     nativeSymbol,
		Rate:       parseFloat(resp.LastFundingRate),
		Timestamp:  resp.Time,
		IntervalMs: defaultFundingIntervalMs,
	}, nil
}

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol       string `json:"symbol"`
		ContractType string `json:"contractType"`
	} `json:"symbols"`
}

// GetMarketMetadata resolves instrument kind and contract size.
// USDT-margined contracts are quoted directly in the base asset, so the
// contract size is 1.
func (c *Client) GetMarketMetadata(ctx context.Context, nativeSymbol string) (*exchange.MarketMetadata, error) {
	params := url.Values{}
	params.Set("symbol", nativeSymbol)

	var resp exchangeInfoResponse
	if err := c.do(ctx, "GET", "/fapi/v1/exchangeInfo", params, false, &resp); err != nil {
		return nil, err
	}
	for _, s := range resp.Symbols {
		if s.Symbol != nativeSymbol {
			continue
		}
		kind := exchange.MarketKindFutures
		if s.ContractType == "PERPETUAL" {
			kind = exchange.MarketKindPerpetual
		}
		return &exchange.MarketMetadata{Symbol: nativeSymbol, Kind: kind, ContractSize: 1}, nil
	}
	return nil, fmt.Errorf("binance: unknown symbol %s", nativeSymbol)
}

func (r *orderResponse) toOrder() *models.Order {
	return &models.Order{
		ID:               strconv.FormatInt(r.OrderID, 10),
		Symbol:           r.Symbol,
		Side:             models.OrderSide(strings.ToLower(r.Side)),
		Amount:           parseFloat(r.OrigQty),
		Price:            parseFloat(r.Price),
		Status:           mapStatus(r.Status),
		AverageFillPrice: parseFloat(r.AvgPrice),
		FilledQuantity:   parseFloat(r.ExecutedQty),
		Timestamp:        r.UpdateTime,
	}
}

// mapStatus normalizes Binance order statuses onto the pipeline lattice.
func mapStatus(s string) models.OrderStatus {
	switch s {
	case "NEW", "PARTIALLY_FILLED":
		return models.OrderStatusOpen
	case "FILLED":
		return models.OrderStatusClosed
	case "CANCELED", "EXPIRED":
		return models.OrderStatusCanceled
	case "REJECTED":
		return models.OrderStatusRejected
	default:
		return models.OrderStatusOpen
	}
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
