package market

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const polygonBaseURL = "https://api.polygon.io"

// PolygonClient retrieves option reference data from the Polygon REST API.
// It serves the chain-strikes lookup for providers that have no chain data
// of their own; pricing and execution stay with the wrapping provider.
type PolygonClient struct {
	http   *resty.Client
	apiKey string
	logger *logrus.Logger
}

var _ ChainSource = (*PolygonClient)(nil)

// NewPolygonClient creates a Polygon reference-data client.
func NewPolygonClient(apiKey string, logger *logrus.Logger) *PolygonClient {
	client := resty.New().
		SetBaseURL(polygonBaseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &PolygonClient{
		http:   client,
		apiKey: apiKey,
		logger: logger,
	}
}

type polygonContract struct {
	StrikePrice  float64 `json:"strike_price"`
	ContractType string  `json:"contract_type"`
}

type polygonContractsPage struct {
	Results []polygonContract `json:"results"`
	NextURL string            `json:"next_url"`
}

// ChainStrikes lists the put and call strikes for one expiration, windowed
// to at most window strikes centered on the strike closest to center. The
// endpoint is paginated via next_url cursors; all pages are drained before
// windowing.
func (c *PolygonClient) ChainStrikes(
	symbol string, expiration time.Time, window int, center float64,
) (puts, calls []float64, err error) {
	var contracts []polygonContract

	url := "/v3/reference/options/contracts"
	params := map[string]string{
		"underlying_ticker": symbol,
		"expiration_date":   expiration.Format("2006-01-02"),
		"expired":           "true",
		"limit":             "500",
		"apiKey":            c.apiKey,
	}

	for {
		var page polygonContractsPage
		req := c.http.R().SetResult(&page)
		if params != nil {
			req.SetQueryParams(params)
		}
		resp, err := req.Get(url)
		if err != nil {
			return nil, nil, fmt.Errorf("polygon contracts request: %w", err)
		}
		if resp.IsError() {
			return nil, nil, fmt.Errorf("polygon contracts request: status %d", resp.StatusCode())
		}

		contracts = append(contracts, page.Results...)
		if page.NextURL == "" {
			break
		}
		// Cursor URLs are absolute and already carry the query except the key.
		url = page.NextURL
		params = map[string]string{"apiKey": c.apiKey}
	}

	c.logger.WithFields(logrus.Fields{
		"symbol":     symbol,
		"expiration": expiration.Format("2006-01-02"),
		"contracts":  len(contracts),
	}).Debug("retrieved option contracts")

	for _, contract := range contracts {
		switch contract.ContractType {
		case "put":
			puts = append(puts, contract.StrikePrice)
		case "call":
			calls = append(calls, contract.StrikePrice)
		}
	}

	return WindowStrikes(puts, window, center), WindowStrikes(calls, window, center), nil
}

// WindowStrikes sorts strikes ascending and keeps at most window of them
// centered on the strike nearest to center. The strike lists that come back
// from a chain can run hundreds deep; the selector only ever scans near the
// money.
func WindowStrikes(strikes []float64, window int, center float64) []float64 {
	if len(strikes) == 0 {
		return nil
	}

	sorted := make([]float64, len(strikes))
	copy(sorted, strikes)
	sort.Float64s(sorted)

	if window <= 0 || window >= len(sorted) {
		return sorted
	}

	centerIdx := 0
	bestDiff := abs(sorted[0] - center)
	for i, s := range sorted[1:] {
		if d := abs(s - center); d < bestDiff {
			bestDiff = d
			centerIdx = i + 1
		}
	}

	half := window / 2
	lo := centerIdx - half
	if lo < 0 {
		lo = 0
	}
	hi := centerIdx + half
	if hi > len(sorted) {
		hi = len(sorted)
	}
	return sorted[lo:hi]
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
