package pricer

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pricefeed/internal/domain"
)

const (
	// DefaultMaxStaleness is the oldest on-chain answer accepted.
	DefaultMaxStaleness = time.Hour
	chainlinkConfidence = 0.99
)

// aggregatorV3ABI is the subset of AggregatorV3Interface the oracle reads.
const aggregatorV3ABI = `[
  {"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"latestRoundData","outputs":[
    {"internalType":"uint80","name":"roundId","type":"uint80"},
    {"internalType":"int256","name":"answer","type":"int256"},
    {"internalType":"uint256","name":"startedAt","type":"uint256"},
    {"internalType":"uint256","name":"updatedAt","type":"uint256"},
    {"internalType":"uint80","name":"answeredInRound","type":"uint80"}
  ],"stateMutability":"view","type":"function"}
]`

// ChainlinkSource reads round-based price feeds from Chainlink aggregator contracts.
type ChainlinkSource struct {
	caller       ethereum.ContractCaller
	abi          abi.ABI
	feeds        map[string]common.Address
	maxStaleness time.Duration
	now          func() time.Time

	mu       sync.RWMutex
	decimals map[common.Address]uint8
}

// NewChainlinkSource creates a source reading feeds (asset -> aggregator address) through caller.
func NewChainlinkSource(caller ethereum.ContractCaller, feeds map[string]common.Address, maxStaleness time.Duration) (*ChainlinkSource, error) {
	if caller == nil {
		return nil, errors.New("chainlink contract caller is nil")
	}
	parsed, err := abi.JSON(strings.NewReader(aggregatorV3ABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse aggregator ABI")
	}
	if maxStaleness <= 0 {
		maxStaleness = DefaultMaxStaleness
	}

	normalized := make(map[string]common.Address, len(feeds))
	for asset, addr := range feeds {
		key, err := domain.NormalizeAsset(asset)
		if err != nil {
			return nil, errors.Wrapf(err, "chainlink feed %q", asset)
		}
		normalized[key] = addr
	}

	return &ChainlinkSource{
		caller:       caller,
		abi:          parsed,
		feeds:        normalized,
		maxStaleness: maxStaleness,
		now:          time.Now,
		decimals:     make(map[common.Address]uint8),
	}, nil
}

func (s *ChainlinkSource) Name() string        { return "chainlink" }
func (s *ChainlinkSource) Kind() domain.Source { return domain.SourceOnChain }

// FetchPrice reads latestRoundData of the asset's aggregator.
func (s *ChainlinkSource) FetchPrice(ctx context.Context, asset string) (domain.PriceRecord, error) {
	feed, ok := s.feeds[asset]
	if !ok {
		return domain.PriceRecord{}, errors.Wrapf(domain.ErrUnsupportedAsset, "chainlink has no feed for %s", asset)
	}

	decimals, err := s.feedDecimals(ctx, feed)
	if err != nil {
		return domain.PriceRecord{}, err
	}

	out, err := s.call(ctx, feed, "latestRoundData")
	if err != nil {
		return domain.PriceRecord{}, err
	}
	if len(out) != 5 {
		return domain.PriceRecord{}, fmt.Errorf("latestRoundData returned %d values", len(out))
	}

	roundID, ok1 := out[0].(*big.Int)
	answer, ok2 := out[1].(*big.Int)
	updatedAt, ok3 := out[3].(*big.Int)
	answeredInRound, ok4 := out[4].(*big.Int)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return domain.PriceRecord{}, errors.New("unexpected latestRoundData types")
	}

	if answer.Sign() <= 0 {
		return domain.PriceRecord{}, fmt.Errorf("chainlink answer for %s is not positive: %s", asset, answer.String())
	}
	if updatedAt.Sign() == 0 {
		return domain.PriceRecord{}, errors.Wrapf(domain.ErrStalePrice, "chainlink round %s for %s is incomplete", roundID.String(), asset)
	}
	if answeredInRound.Cmp(roundID) < 0 {
		return domain.PriceRecord{}, errors.Wrapf(domain.ErrStalePrice, "chainlink answer for %s carried over from round %s", asset, answeredInRound.String())
	}

	updated := time.Unix(updatedAt.Int64(), 0)
	if age := s.now().Sub(updated); age > s.maxStaleness {
		return domain.PriceRecord{}, errors.Wrapf(domain.ErrStalePrice, "chainlink answer for %s is %s old", asset, age.Truncate(time.Second))
	}

	price := decimal.NewFromBigInt(answer, -int32(decimals))
	return domain.NewPriceRecord(asset, price, updated, domain.SourceOnChain, chainlinkConfidence), nil
}

func (s *ChainlinkSource) feedDecimals(ctx context.Context, feed common.Address) (uint8, error) {
	s.mu.RLock()
	d, ok := s.decimals[feed]
	s.mu.RUnlock()
	if ok {
		return d, nil
	}

	out, err := s.call(ctx, feed, "decimals")
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("decimals returned %d values", len(out))
	}
	d, ok = out[0].(uint8)
	if !ok {
		return 0, errors.New("unexpected decimals type")
	}

	s.mu.Lock()
	s.decimals[feed] = d
	s.mu.Unlock()
	return d, nil
}

func (s *ChainlinkSource) call(ctx context.Context, feed common.Address, method string) ([]interface{}, error) {
	data, err := s.abi.Pack(method)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s", method)
	}

	raw, err := s.caller.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "call %s on %s", method, feed.Hex())
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty %s response from %s, is it an aggregator?", method, feed.Hex())
	}

	out, err := s.abi.Unpack(method, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "unpack %s", method)
	}
	return out, nil
}
