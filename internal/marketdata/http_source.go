package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfabric/swapflow/internal/model"
)

// HTTPSource fetches series from the market data service's JSON API.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource builds a source against the given base URL.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type seriesPayload struct {
	Points map[string]string `json:"points"` // date -> decimal string
}

// FetchPrices retrieves the close series for an underlier.
func (s *HTTPSource) FetchPrices(ctx context.Context, underlier string, r model.DateRange) (*model.Series, error) {
	return s.fetchSeries(ctx, "prices", underlier, r)
}

// FetchRates retrieves the fixing series for a rate index.
func (s *HTTPSource) FetchRates(ctx context.Context, index string, r model.DateRange) (*model.Series, error) {
	return s.fetchSeries(ctx, "rates", index, r)
}

// FetchDividends retrieves dividend events for an underlier.
func (s *HTTPSource) FetchDividends(ctx context.Context, underlier string, r model.DateRange) ([]model.DividendEvent, error) {
	var events []model.DividendEvent
	if err := s.getJSON(ctx, s.endpoint("dividends", underlier, r), &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *HTTPSource) fetchSeries(ctx context.Context, kind, key string, r model.DateRange) (*model.Series, error) {
	var payload seriesPayload
	if err := s.getJSON(ctx, s.endpoint(kind, key, r), &payload); err != nil {
		return nil, err
	}
	ser := model.NewSeries()
	for dateStr, valStr := range payload.Points {
		day, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("bad date %q in %s series for %s: %w", dateStr, kind, key, err)
		}
		v, err := decimal.NewFromString(valStr)
		if err != nil {
			return nil, fmt.Errorf("bad value %q in %s series for %s: %w", valStr, kind, key, err)
		}
		ser.Set(day, v)
	}
	return ser, nil
}

func (s *HTTPSource) endpoint(kind, key string, r model.DateRange) string {
	return fmt.Sprintf("%s/%s/%s?start=%s&end=%s",
		s.baseURL, kind, url.PathEscape(key), model.DateKey(r.Start), model.DateKey(r.End))
}

func (s *HTTPSource) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("market data service returned %d for %s", resp.StatusCode, endpoint)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
