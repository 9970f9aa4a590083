package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zzhtl/biga/internal/market"
)

// HTTPProvider fetches daily bars from a remote OHLCV endpoint:
// GET {base}/api/v1/kline?symbol=...&start=...&end=...
type HTTPProvider struct {
	client *resty.Client
}

// klineRow is the wire shape of one daily bar.
type klineRow struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	Amount float64 `json:"amount"`
}

type klineResponse struct {
	Symbol string     `json:"symbol"`
	Bars   []klineRow `json:"bars"`
}

func NewHTTPProvider(baseURL, token string) *HTTPProvider {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(2)
	if token != "" {
		client.SetAuthToken(token)
	}
	return &HTTPProvider{client: client}
}

func (h *HTTPProvider) Bars(ctx context.Context, symbol string, start, end time.Time) ([]market.Bar, error) {
	req := h.client.R().SetContext(ctx).SetQueryParam("symbol", symbol)
	if !start.IsZero() {
		req.SetQueryParam("start", start.Format("2006-01-02"))
	}
	if !end.IsZero() {
		req.SetQueryParam("end", end.Format("2006-01-02"))
	}

	resp, err := req.Get("/api/v1/kline")
	if err != nil {
		return nil, fmt.Errorf("history: fetch kline for %s: %w", symbol, err)
	}
	if resp.StatusCode() == 404 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("history: kline endpoint returned %d for %s", resp.StatusCode(), symbol)
	}

	var decoded klineResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return nil, fmt.Errorf("history: decode kline response: %w", err)
	}
	if len(decoded.Bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	bars := make([]market.Bar, 0, len(decoded.Bars))
	for i, row := range decoded.Bars {
		date, err := parseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("history: kline row %d: %w", i, err)
		}
		bar := market.Bar{
			Symbol: symbol,
			Date:   date,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
			Amount: row.Amount,
		}
		if bar.Amount == 0 {
			bar.Amount = bar.Close * bar.Volume
		}
		bars = append(bars, bar)
	}

	bars = market.Derive(bars)
	if err := market.Validate(bars); err != nil {
		return nil, fmt.Errorf("history: invalid kline series for %s: %w", symbol, err)
	}
	return bars, nil
}
