package clients

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/pricefeed/pkg/retrier"
)

var errChainIDMismatch = errors.New("rpc endpoint serves an unexpected chain")

type chainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// NewEthereumClient dials rpcURL and waits until the node answers eth_chainId.
// A non-zero expectedChainID must match the node's chain.
func NewEthereumClient(ctx context.Context, rpcURL string, expectedChainID uint64, logger *zap.Logger) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial ethereum rpc")
	}

	r := retrier.New(
		retrier.WithInitialInterval(500*time.Millisecond),
		retrier.WithMaxRetries(4),
		retrier.WithRetryIf(func(err error) bool { return !errors.Is(err, errChainIDMismatch) }),
	)
	chainID, err := probeChainID(ctx, r, client, expectedChainID)
	if err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("connected to ethereum rpc", zap.Uint64("chain_id", chainID))
	return client, nil
}

func probeChainID(ctx context.Context, r *retrier.Retrier, reader chainIDReader, expected uint64) (uint64, error) {
	id, err := retrier.DoWithData(r, ctx, func(ctx context.Context) (*big.Int, error) {
		id, err := reader.ChainID(ctx)
		if err != nil {
			return nil, err
		}
		if expected != 0 && (!id.IsUint64() || id.Uint64() != expected) {
			return nil, errors.Wrapf(errChainIDMismatch, "got chain %s, want %d", id, expected)
		}
		return id, nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to read chain id")
	}
	return id.Uint64(), nil
}
