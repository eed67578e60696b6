// Package binance reports the pool value from a Binance USD-M futures account.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/simaogato/investpool-backend/internal/domain"
)

// FuturesURL is the production USD-M futures endpoint
const FuturesURL = "https://fapi.binance.com"

const accountPath = "/fapi/v2/account"

// Config holds the client settings
type Config struct {
	BaseURL           string
	APIKey            string
	APISecret         string
	Asset             string        // Margin asset the pool is held in, USDT by default
	RecvWindow        time.Duration // How long Binance accepts the signed request
	Timeout           time.Duration
	RequestsPerSecond float64
}

type futuresAsset struct {
	Asset            string `json:"asset"`
	WalletBalance    string `json:"walletBalance"`
	UnrealizedProfit string `json:"unrealizedProfit"`
}

type accountResponse struct {
	Assets []futuresAsset `json:"assets"`
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Client implements domain.PriceOracle against the futures account endpoint
type Client struct {
	cfg        Config
	secret     []byte
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewClient creates a new Binance futures client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = FuturesURL
	}
	if cfg.Asset == "" {
		cfg.Asset = "USDT"
	}
	if cfg.RecvWindow <= 0 {
		cfg.RecvWindow = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		cfg:        cfg,
		secret:     []byte(cfg.APISecret),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		now:        time.Now,
	}
}

// CurrentPoolValue returns walletBalance + unrealizedProfit of the configured
// asset, rounded to 2 places. Every failure is wrapped as ErrUpstream.
func (c *Client) CurrentPoolValue(ctx context.Context) (decimal.Decimal, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.signedURL(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: build request: %v", domain.ErrUpstream, err)
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return decimal.Zero, ctx.Err()
		}
		return decimal.Zero, fmt.Errorf("%w: binance account request: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: read binance response: %v", domain.ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Msg != "" {
			return decimal.Zero, fmt.Errorf("%w: binance returned %d: %s (code %d)",
				domain.ErrUpstream, resp.StatusCode, apiErr.Msg, apiErr.Code)
		}
		return decimal.Zero, fmt.Errorf("%w: binance returned %d", domain.ErrUpstream, resp.StatusCode)
	}

	var account accountResponse
	if err := json.Unmarshal(body, &account); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode binance account: %v", domain.ErrUpstream, err)
	}
	return c.assetValue(account)
}

func (c *Client) assetValue(account accountResponse) (decimal.Decimal, error) {
	for _, a := range account.Assets {
		if a.Asset != c.cfg.Asset {
			continue
		}
		wallet, err := decimal.NewFromString(a.WalletBalance)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %s walletBalance %q", domain.ErrUpstream, a.Asset, a.WalletBalance)
		}
		unrealized, err := decimal.NewFromString(a.UnrealizedProfit)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %s unrealizedProfit %q", domain.ErrUpstream, a.Asset, a.UnrealizedProfit)
		}
		return wallet.Add(unrealized).Round(2), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s balance not found", domain.ErrUpstream, c.cfg.Asset)
}

// signedURL builds the account URL with timestamp, recvWindow and HMAC-SHA256 signature
func (c *Client) signedURL() string {
	q := url.Values{}
	q.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow.Milliseconds(), 10))
	q.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	query := q.Encode()

	return c.cfg.BaseURL + accountPath + "?" + query + "&signature=" + c.sign(query)
}

func (c *Client) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
