package main

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vadiminshakov/pricefeed/internal"
	"github.com/vadiminshakov/pricefeed/internal/domain"
)

// priceCmd fetches prices once and prints them
var priceCmd = &cobra.Command{
	Use:   "price [ASSET...]",
	Short: "Fetch prices once and print them as JSON",
	Long: `Fetch the current price of each asset through the fallback chain and print
the records as JSON. Without arguments the assets from the config are used.
Nothing is written to the price history.`,
	RunE: runPrice,
}

type priceResult struct {
	Record *domain.PriceRecord `json:"record,omitempty"`
	Error  string              `json:"error,omitempty"`
}

func runPrice(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	assets := args
	if len(assets) == 0 {
		assets = cfg.Assets
	}
	if len(assets) == 0 {
		return errors.New("no assets given and none configured")
	}

	cfg.HistoryDir = ""
	feed, err := internal.NewPriceFeed(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer feed.Close()

	results := make(map[string]priceResult, len(assets))
	failed := 0
	for _, asset := range assets {
		rec, err := feed.Oracle.FetchPrice(cmd.Context(), asset)
		if err != nil {
			logger.Debug("price fetch failed", zap.String("asset", asset), zap.Error(err))
			results[asset] = priceResult{Error: err.Error()}
			failed++
			continue
		}
		results[asset] = priceResult{Record: &rec}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}

	if failed == len(assets) {
		return errors.New("no asset could be priced")
	}
	return nil
}
