package pricer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"github.com/vadiminshakov/pricefeed/internal/domain"
	"golang.org/x/time/rate"
)

const (
	// DefaultPythEndpoint is the public Hermes price service.
	DefaultPythEndpoint = "https://hermes.pyth.network"
	defaultHTTPTimeout  = 10 * time.Second
	maxResponseBytes    = 1 << 20
)

// PythSource fetches aggregated prices from a Pyth Hermes endpoint.
type PythSource struct {
	endpoint string
	feeds    map[string]string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewPythSource creates a source for feeds (asset -> Pyth price feed id).
func NewPythSource(endpoint string, feeds map[string]string, client *http.Client, limiter *rate.Limiter) (*PythSource, error) {
	if endpoint == "" {
		endpoint = DefaultPythEndpoint
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, errors.Wrap(err, "invalid pyth endpoint")
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	normalized := make(map[string]string, len(feeds))
	for asset, id := range feeds {
		key, err := domain.NormalizeAsset(asset)
		if err != nil {
			return nil, errors.Wrapf(err, "pyth feed %q", asset)
		}
		id = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(id), "0x"))
		if id == "" {
			return nil, fmt.Errorf("pyth feed id for %s is empty", key)
		}
		normalized[key] = id
	}

	return &PythSource{
		endpoint: strings.TrimRight(endpoint, "/"),
		feeds:    normalized,
		client:   client,
		limiter:  limiter,
	}, nil
}

func (s *PythSource) Name() string        { return "pyth" }
func (s *PythSource) Kind() domain.Source { return domain.SourceAggregator }

// FetchPrice requests the latest parsed price update for the asset's feed.
func (s *PythSource) FetchPrice(ctx context.Context, asset string) (domain.PriceRecord, error) {
	id, ok := s.feeds[asset]
	if !ok {
		return domain.PriceRecord{}, errors.Wrapf(domain.ErrUnsupportedAsset, "pyth has no feed for %s", asset)
	}

	if err := wait(ctx, s.limiter); err != nil {
		return domain.PriceRecord{}, errors.Wrap(err, "pyth rate limiter")
	}

	q := url.Values{}
	q.Set("ids[]", "0x"+id)
	q.Set("parsed", "true")
	reqURL := s.endpoint + "/v2/updates/price/latest?" + q.Encode()

	body, err := getJSON(ctx, s.client, reqURL, nil)
	if err != nil {
		return domain.PriceRecord{}, errors.Wrapf(err, "pyth request for %s", asset)
	}

	update := gjson.GetBytes(body, `parsed.#(id=="`+id+`")`)
	if !update.Exists() {
		return domain.PriceRecord{}, fmt.Errorf("pyth response has no update for feed %s", id)
	}

	return parsePythPrice(asset, update.Get("price"))
}

func parsePythPrice(asset string, p gjson.Result) (domain.PriceRecord, error) {
	rawPrice := p.Get("price").String()
	rawConf := p.Get("conf").String()
	expo := p.Get("expo").Int()
	publishTime := p.Get("publish_time").Int()

	mantissa, err := decimal.NewFromString(rawPrice)
	if err != nil {
		return domain.PriceRecord{}, errors.Wrapf(err, "decode pyth price %q", rawPrice)
	}
	if !mantissa.IsPositive() {
		return domain.PriceRecord{}, fmt.Errorf("pyth price for %s is not positive: %s", asset, rawPrice)
	}
	conf := decimal.Zero
	if rawConf != "" {
		conf, err = decimal.NewFromString(rawConf)
		if err != nil {
			return domain.PriceRecord{}, errors.Wrapf(err, "decode pyth conf %q", rawConf)
		}
	}
	if publishTime <= 0 {
		return domain.PriceRecord{}, fmt.Errorf("pyth update for %s has no publish time", asset)
	}

	// conf is an absolute interval in the same exponent as price
	ratio, _ := conf.Div(mantissa).Float64()

	return domain.NewPriceRecord(
		asset,
		mantissa.Shift(int32(expo)),
		time.Unix(publishTime, 0),
		domain.SourceAggregator,
		domain.ClampConfidence(1-ratio),
	), nil
}

// getJSON performs a GET request and returns the body of a 2xx JSON response.
func getJSON(ctx context.Context, client *http.Client, reqURL string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("response is not valid JSON")
	}
	return body, nil
}
