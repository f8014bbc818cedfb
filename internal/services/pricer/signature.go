package pricer

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pricefeed/internal/domain"
	"golang.org/x/crypto/sha3"
)

// PriceDigest is the message a feed signs: keccak256("{asset}:{price}:{timestamp}").
func PriceDigest(asset string, price decimal.Decimal, timestamp int64) []byte {
	h := sha3.NewLegacyKeccak256()
	fmt.Fprintf(h, "%s:%s:%d", asset, price.String(), timestamp)
	return h.Sum(nil)
}

// SignRecord produces a hex encoded secp256k1 signature over the record digest.
func SignRecord(record domain.PriceRecord, key *ecdsa.PrivateKey) (string, error) {
	sig, err := crypto.Sign(PriceDigest(record.Asset, record.Price, record.Timestamp), key)
	if err != nil {
		return "", errors.Wrap(err, "sign price record")
	}
	return hexutil.Encode(sig), nil
}

// VerifySignature checks that record.Signature was produced by signer.
func VerifySignature(record domain.PriceRecord, signer common.Address) error {
	if record.Signature == "" {
		return errors.Wrap(domain.ErrInvalidSignature, "signature is missing")
	}

	sig := common.FromHex(record.Signature)
	if len(sig) != crypto.SignatureLength {
		return errors.Wrapf(domain.ErrInvalidSignature, "signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	// accept both 0/1 and 27/28 recovery ids
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(PriceDigest(record.Asset, record.Price, record.Timestamp), sig)
	if err != nil {
		return errors.Wrapf(domain.ErrInvalidSignature, "recover signer: %v", err)
	}
	if got := crypto.PubkeyToAddress(*pub); got != signer {
		return errors.Wrapf(domain.ErrInvalidSignature, "signed by %s, want %s", got.Hex(), signer.Hex())
	}
	return nil
}
