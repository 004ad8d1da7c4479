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

	"SeriesKeeper/internal/model"
)

const (
	DefaultCryptoCompareURL      = "https://min-api.cryptocompare.com"
	DefaultCryptoComparePageSize = 2000
)

// CryptoCompareFetcher implements PriceFetcher using the CryptoCompare histoday API.
type CryptoCompareFetcher struct {
	BaseURL  string
	APIKey   string
	PageSize int
	Epoch    time.Time
	Client   *http.Client
	Now      func() time.Time
}

// NewCryptoCompareFetcher creates a new fetcher with optional proxy support.
func NewCryptoCompareFetcher(baseURL, apiKey string, pageSize int, epoch time.Time, proxyURL string) *CryptoCompareFetcher {
	if baseURL == "" {
		baseURL = DefaultCryptoCompareURL
	}
	if pageSize <= 0 {
		pageSize = DefaultCryptoComparePageSize
	}
	return &CryptoCompareFetcher{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		APIKey:   apiKey,
		PageSize: pageSize,
		Epoch:    model.DayOf(epoch),
		Client:   newHTTPClient(proxyURL),
		Now:      time.Now,
	}
}

func (f *CryptoCompareFetcher) Name() string { return "cryptocompare" }

// histodayResponse is the envelope of /data/v2/histoday. Data is decoded
// separately because error responses do not carry the usual object.
type histodayResponse struct {
	Response string          `json:"Response"`
	Message  string          `json:"Message"`
	Data     json.RawMessage `json:"Data"`
}

type histodayData struct {
	TimeFrom int64   `json:"TimeFrom"`
	TimeTo   int64   `json:"TimeTo"`
	Data     []ccBar `json:"Data"`
}

type ccBar struct {
	Time       int64   `json:"time"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	VolumeFrom float64 `json:"volumefrom"`
}

func (f *CryptoCompareFetcher) FetchFullHistory(ctx context.Context, symbol, currency string) ([]model.PricePoint, error) {
	bars, err := f.collect(ctx, symbol, currency, f.Epoch, f.PageSize)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("cryptocompare %s/%s: %w", symbol, currency, ErrNoData)
	}
	return bars, nil
}

// FetchSince asks for just enough days to cover since..today. The boundary day
// is included so a revised bar replaces the stored one.
func (f *CryptoCompareFetcher) FetchSince(ctx context.Context, symbol, currency string, since time.Time) ([]model.PricePoint, error) {
	since = model.DayOf(since)
	limit := daysBetween(since, f.now())
	if limit < 1 {
		limit = 1
	}
	if limit > f.PageSize {
		limit = f.PageSize
	}
	return f.collect(ctx, symbol, currency, since, limit)
}

// collect pages backwards from now until the page start reaches stop or the
// provider runs out of listed history. Bars are returned oldest first.
func (f *CryptoCompareFetcher) collect(ctx context.Context, symbol, currency string, stop time.Time, firstLimit int) ([]model.PricePoint, error) {
	toTs := f.now()
	maxPages := daysBetween(stop, toTs)/f.PageSize + 2
	limit := firstLimit

	var pages [][]model.PricePoint
	for page := 0; page < maxPages; page++ {
		bars, from, err := f.fetchPage(ctx, symbol, currency, limit, toTs)
		if err != nil {
			return nil, err
		}
		pages = append(pages, bars)
		if len(bars) == 0 || allPlaceholders(bars) || !from.After(stop) {
			break
		}
		toTs = from.Add(-24 * time.Hour)
		limit = f.PageSize
	}

	var out []model.PricePoint
	for i := len(pages) - 1; i >= 0; i-- {
		for _, b := range pages[i] {
			if !b.Date.Before(stop) {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

func (f *CryptoCompareFetcher) fetchPage(ctx context.Context, symbol, currency string, limit int, toTs time.Time) ([]model.PricePoint, time.Time, error) {
	q := url.Values{}
	q.Set("fsym", strings.ToUpper(symbol))
	q.Set("tsym", strings.ToUpper(currency))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("toTs", strconv.FormatInt(toTs.Unix(), 10))
	endpoint := f.BaseURL + "/data/v2/histoday?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, time.Time{}, err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Apikey "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("cryptocompare fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("cryptocompare read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, time.Time{}, fmt.Errorf("cryptocompare: status %d, body: %s", resp.StatusCode, string(body))
	}

	var envelope histodayResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, time.Time{}, fmt.Errorf("cryptocompare decode: %w", err)
	}
	if envelope.Response == "Error" {
		return nil, time.Time{}, fmt.Errorf("cryptocompare: %w: %s", ErrProviderResponse, envelope.Message)
	}
	var data histodayData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, time.Time{}, fmt.Errorf("cryptocompare decode data: %w", err)
	}

	bars := make([]model.PricePoint, 0, len(data.Data))
	for _, b := range data.Data {
		bars = append(bars, model.PricePoint{
			Date:   model.DayOf(time.Unix(b.Time, 0)),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.VolumeFrom,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	from := model.DayOf(time.Unix(data.TimeFrom, 0))
	if data.TimeFrom == 0 && len(bars) > 0 {
		from = bars[0].Date
	}
	return bars, from, nil
}

func (f *CryptoCompareFetcher) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func allPlaceholders[P model.Point](points []P) bool {
	for _, p := range points {
		if !model.IsPlaceholder(p) {
			return false
		}
	}
	return true
}
