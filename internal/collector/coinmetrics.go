package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"SeriesKeeper/internal/model"
)

const (
	DefaultCoinMetricsURL      = "https://community-api.coinmetrics.io/v4"
	DefaultCoinMetricsPageSize = 10000

	coinMetricsFields = "SplyCur,IssContNtv,CapMrktCurUSD,PriceUSD,DiffMean"
	maxMetricPages    = 1000
)

// CoinMetricsFetcher implements MetricFetcher using the CoinMetrics
// community asset-metrics endpoint. The API only publishes complete days,
// so every request ends yesterday (UTC).
type CoinMetricsFetcher struct {
	BaseURL  string
	PageSize int
	Epoch    time.Time
	Client   *http.Client
	Now      func() time.Time
}

// NewCoinMetricsFetcher creates a new fetcher with optional proxy support.
func NewCoinMetricsFetcher(baseURL string, pageSize int, epoch time.Time, proxyURL string) *CoinMetricsFetcher {
	if baseURL == "" {
		baseURL = DefaultCoinMetricsURL
	}
	if pageSize <= 0 {
		pageSize = DefaultCoinMetricsPageSize
	}
	return &CoinMetricsFetcher{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		PageSize: pageSize,
		Epoch:    model.DayOf(epoch),
		Client:   newHTTPClient(proxyURL),
		Now:      time.Now,
	}
}

func (f *CoinMetricsFetcher) Name() string { return "coinmetrics" }

type assetMetricsPage struct {
	Data        []assetMetricsRow `json:"data"`
	NextPageURL string            `json:"next_page_url"`
	Error       *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Metric values arrive as decimal strings; absent metrics are empty.
type assetMetricsRow struct {
	Asset         string `json:"asset"`
	Time          string `json:"time"`
	SplyCur       string `json:"SplyCur"`
	IssContNtv    string `json:"IssContNtv"`
	CapMrktCurUSD string `json:"CapMrktCurUSD"`
	PriceUSD      string `json:"PriceUSD"`
	DiffMean      string `json:"DiffMean"`
}

func (f *CoinMetricsFetcher) FetchFullHistory(ctx context.Context, symbol string) ([]model.MetricPoint, error) {
	points, err := f.fetchRange(ctx, symbol, f.Epoch)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("coinmetrics %s: %w", symbol, ErrNoData)
	}
	return points, nil
}

func (f *CoinMetricsFetcher) FetchSince(ctx context.Context, symbol string, since time.Time) ([]model.MetricPoint, error) {
	return f.fetchRange(ctx, symbol, since)
}

func (f *CoinMetricsFetcher) fetchRange(ctx context.Context, symbol string, start time.Time) ([]model.MetricPoint, error) {
	start = model.DayOf(start)
	end := model.DayOf(f.now()).AddDate(0, 0, -1)
	if start.After(end) {
		return nil, nil
	}

	q := url.Values{}
	q.Set("assets", strings.ToLower(symbol))
	q.Set("metrics", coinMetricsFields)
	q.Set("start_time", start.Format(model.DayLayout))
	q.Set("end_time", end.Format(model.DayLayout))
	q.Set("frequency", "1d")
	q.Set("page_size", strconv.Itoa(f.PageSize))
	next := f.BaseURL + "/timeseries/asset-metrics?" + q.Encode()

	var points []model.MetricPoint
	for page := 0; next != ""; page++ {
		if page >= maxMetricPages {
			return nil, fmt.Errorf("coinmetrics: more than %d pages for %s", maxMetricPages, symbol)
		}
		resp, err := f.fetchPage(ctx, next)
		if err != nil {
			return nil, err
		}
		for _, row := range resp.Data {
			p, err := row.toPoint()
			if err != nil {
				return nil, fmt.Errorf("coinmetrics decode row: %w", err)
			}
			points = append(points, p)
		}
		next = resp.NextPageURL
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}

func (f *CoinMetricsFetcher) fetchPage(ctx context.Context, endpoint string) (*assetMetricsPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coinmetrics fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coinmetrics read body: %w", err)
	}

	var page assetMetricsPage
	decodeErr := json.Unmarshal(body, &page)
	if decodeErr == nil && page.Error != nil {
		return nil, fmt.Errorf("coinmetrics: %w: %s: %s", ErrProviderResponse, page.Error.Type, page.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coinmetrics: status %d, body: %s", resp.StatusCode, string(body))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("coinmetrics decode: %w", decodeErr)
	}
	return &page, nil
}

func (r assetMetricsRow) toPoint() (model.MetricPoint, error) {
	ts, err := time.Parse(time.RFC3339Nano, r.Time)
	if err != nil {
		return model.MetricPoint{}, fmt.Errorf("time %q: %w", r.Time, err)
	}
	var vals [5]float64
	for i, s := range []string{r.SplyCur, r.IssContNtv, r.CapMrktCurUSD, r.PriceUSD, r.DiffMean} {
		if vals[i], err = parseMetric(s); err != nil {
			return model.MetricPoint{}, err
		}
	}
	return model.MetricPoint{
		Date:              model.DayOf(ts),
		CirculatingSupply: vals[0],
		Issuance:          vals[1],
		MarketCapUSD:      vals[2],
		PriceUSD:          vals[3],
		MeanDifficulty:    vals[4],
	}, nil
}

func parseMetric(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("metric value %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}

func (f *CoinMetricsFetcher) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}
