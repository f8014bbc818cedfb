package pricer

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"github.com/vadiminshakov/pricefeed/internal/domain"
	"golang.org/x/time/rate"
)

const (
	assetPlaceholder = "{asset}"
	// DefaultCustomConfidence is reported when a custom feed does not provide one.
	DefaultCustomConfidence = 0.8
	// epoch values below this are seconds, not milliseconds
	millisThreshold = 1_000_000_000_000
)

// HTTPSourceConfig describes a generic JSON price API.
type HTTPSourceConfig struct {
	// URL may contain {asset}, replaced with the asset symbol.
	URL    string
	Header http.Header
	// Assets restricts the feed to these symbols, empty means any.
	Assets []string

	PricePath      string
	TimestampPath  string
	ConfidencePath string
	SignaturePath  string

	Confidence float64
	// Signer, when set, requires every answer to carry a signature recovering to it.
	Signer *common.Address
}

// HTTPSource fetches prices from a generic JSON HTTP API.
type HTTPSource struct {
	cfg     HTTPSourceConfig
	assets  map[string]struct{}
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// NewHTTPSource validates cfg and creates the source.
func NewHTTPSource(cfg HTTPSourceConfig, client *http.Client, limiter *rate.Limiter) (*HTTPSource, error) {
	if cfg.URL == "" {
		return nil, errors.New("custom feed url is required")
	}
	probe := strings.ReplaceAll(cfg.URL, assetPlaceholder, "ETH")
	if u, err := url.Parse(probe); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid custom feed url %q", cfg.URL)
	}
	if cfg.PricePath == "" {
		cfg.PricePath = "price"
	}
	if cfg.Confidence == 0 {
		cfg.Confidence = DefaultCustomConfidence
	}
	if !(cfg.Confidence > 0 && cfg.Confidence <= 1) {
		return nil, fmt.Errorf("custom feed confidence must be within [0,1], got %v", cfg.Confidence)
	}
	if cfg.Signer != nil && cfg.SignaturePath == "" {
		cfg.SignaturePath = "signature"
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	assets := make(map[string]struct{}, len(cfg.Assets))
	for _, a := range cfg.Assets {
		key, err := domain.NormalizeAsset(a)
		if err != nil {
			return nil, errors.Wrapf(err, "custom feed asset %q", a)
		}
		assets[key] = struct{}{}
	}

	return &HTTPSource{
		cfg:     cfg,
		assets:  assets,
		client:  client,
		limiter: limiter,
		now:     time.Now,
	}, nil
}

func (s *HTTPSource) Name() string        { return "http" }
func (s *HTTPSource) Kind() domain.Source { return domain.SourceCustom }

// FetchPrice requests the feed URL for asset and extracts the configured fields.
func (s *HTTPSource) FetchPrice(ctx context.Context, asset string) (domain.PriceRecord, error) {
	if len(s.assets) > 0 {
		if _, ok := s.assets[asset]; !ok {
			return domain.PriceRecord{}, errors.Wrapf(domain.ErrUnsupportedAsset, "custom feed does not serve %s", asset)
		}
	}

	if err := wait(ctx, s.limiter); err != nil {
		return domain.PriceRecord{}, errors.Wrap(err, "custom feed rate limiter")
	}

	reqURL := strings.ReplaceAll(s.cfg.URL, assetPlaceholder, url.PathEscape(asset))
	body, err := getJSON(ctx, s.client, reqURL, s.cfg.Header)
	if err != nil {
		return domain.PriceRecord{}, errors.Wrapf(err, "custom feed request for %s", asset)
	}

	rec, err := s.parse(asset, body)
	if err != nil {
		return domain.PriceRecord{}, err
	}

	if s.cfg.Signer != nil {
		if err := VerifySignature(rec, *s.cfg.Signer); err != nil {
			return domain.PriceRecord{}, errors.Wrapf(err, "custom feed answer for %s", asset)
		}
	}
	return rec, nil
}

func (s *HTTPSource) parse(asset string, body []byte) (domain.PriceRecord, error) {
	fields := gjson.GetManyBytes(body, s.cfg.PricePath, s.cfg.TimestampPath, s.cfg.ConfidencePath, s.cfg.SignaturePath)
	priceField, tsField, confField, sigField := fields[0], fields[1], fields[2], fields[3]

	if !priceField.Exists() {
		return domain.PriceRecord{}, fmt.Errorf("custom feed response has no %q", s.cfg.PricePath)
	}
	// Raw keeps full precision for numeric JSON values
	raw := priceField.String()
	if priceField.Type == gjson.Number {
		raw = priceField.Raw
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return domain.PriceRecord{}, errors.Wrapf(err, "decode custom feed price %q", raw)
	}

	ts := s.now().UnixMilli()
	if s.cfg.TimestampPath != "" && tsField.Exists() {
		ts = tsField.Int()
		if ts > 0 && ts < millisThreshold {
			ts *= 1000
		}
	}

	confidence := s.cfg.Confidence
	if s.cfg.ConfidencePath != "" && confField.Exists() {
		confidence = confField.Float()
		if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
			return domain.PriceRecord{}, errors.Wrapf(domain.ErrInvalidRecord, "custom feed confidence %q for %s", confField.Raw, asset)
		}
	}

	rec := domain.PriceRecord{
		Asset:      asset,
		Price:      price,
		Timestamp:  ts,
		Source:     domain.SourceCustom,
		Confidence: confidence,
	}
	if s.cfg.SignaturePath != "" && sigField.Exists() {
		rec.Signature = sigField.String()
	}
	return rec, nil
}
