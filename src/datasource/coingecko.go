package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pigeon-observer/src/helpers"
	"pigeon-observer/src/interfaces"
	"pigeon-observer/src/logger"
	"pigeon-observer/src/models"
)

const SourceCoinGecko = "coingecko"

// CoinGeckoSource is the primary crypto price provider. It answers batch
// current-price queries in one call and historical queries per coin.
type CoinGeckoSource struct {
	Config  *models.MConfig
	Network interfaces.INetworkManager
	Logger  *logger.Logger
	symbols map[string]string // coin id -> display symbol
}

// -----------------------------------------------------------------------------

func NewCoinGeckoSource(cfg *models.MConfig, netMgr interfaces.INetworkManager) *CoinGeckoSource {
	symbols := make(map[string]string, len(cfg.Upstreams.Coins))
	for _, c := range cfg.Upstreams.Coins {
		symbols[c.ID] = c.Symbol
	}
	return &CoinGeckoSource{
		Config:  cfg,
		Network: netMgr,
		Logger:  logger.NewLogger(cfg.LogLevel, "CoinGeckoSource"),
		symbols: symbols,
	}
}

// -----------------------------------------------------------------------------

func (s *CoinGeckoSource) Name() string {
	return SourceCoinGecko
}

// -----------------------------------------------------------------------------

type geckoSimplePrice struct {
	USD           float64 `json:"usd"`
	USDMarketCap  float64 `json:"usd_market_cap"`
	USD24hVol     float64 `json:"usd_24h_vol"`
	LastUpdatedAt int64   `json:"last_updated_at"`
}

// -----------------------------------------------------------------------------

// FetchCurrent fetches the latest prices for all ids in a single batch call.
func (s *CoinGeckoSource) FetchCurrent(ctx context.Context, ids []string) ([]models.MPricePoint, error) {
	params := map[string]string{
		"ids":                     strings.Join(ids, ","),
		"vs_currencies":           "usd",
		"include_market_cap":      "true",
		"include_24hr_vol":        "true",
		"include_last_updated_at": "true",
	}

	url := fmt.Sprintf("%s/simple/price", s.Config.Upstreams.CoinGeckoURL)

	respBytes, err := s.Network.Get(ctx, url, params, nil)
	if err != nil {
		return nil, helpers.NewUpstreamUnreachable(SourceCoinGecko, err)
	}

	var resp map[string]geckoSimplePrice
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, helpers.NewUpstreamUnreachable(SourceCoinGecko, fmt.Errorf("json unmarshal failed: %w", err))
	}

	now := time.Now().Unix()
	points := make([]models.MPricePoint, 0, len(ids))
	var missing []string

	for _, id := range ids {
		quote, ok := resp[id]
		if !ok || quote.USD <= 0 {
			missing = append(missing, id)
			continue
		}

		ts := quote.LastUpdatedAt
		if ts == 0 {
			ts = now
		}

		points = append(points, models.MPricePoint{
			ID:        id,
			Symbol:    s.symbolFor(id),
			Price:     quote.USD,
			MarketCap: quote.USDMarketCap,
			Volume24h: quote.USD24hVol,
			Timestamp: ts,
			FetchedAt: now,
		})
	}

	// A partial batch poisons downstream correlation inputs, so it fails whole
	if len(missing) > 0 {
		return nil, &helpers.UpstreamDataIncompleteError{SourceID: SourceCoinGecko, MissingIDs: missing}
	}

	s.Logger.Debug("Fetched %d current prices", len(points))
	return points, nil
}

// -----------------------------------------------------------------------------

type geckoMarketChart struct {
	Prices       [][]float64 `json:"prices"`
	MarketCaps   [][]float64 `json:"market_caps"`
	TotalVolumes [][]float64 `json:"total_volumes"`
}

// -----------------------------------------------------------------------------

// FetchHistorical fetches up to `days` days of prices for one coin.
func (s *CoinGeckoSource) FetchHistorical(ctx context.Context, id string, days int) ([]models.MPricePoint, error) {
	params := map[string]string{
		"vs_currency": "usd",
		"days":        strconv.Itoa(days),
	}

	url := fmt.Sprintf("%s/coins/%s/market_chart", s.Config.Upstreams.CoinGeckoURL, id)

	respBytes, err := s.Network.Get(ctx, url, params, nil)
	if err != nil {
		return nil, helpers.NewUpstreamUnreachable(SourceCoinGecko, err)
	}

	var resp geckoMarketChart
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, helpers.NewUpstreamUnreachable(SourceCoinGecko, fmt.Errorf("json unmarshal failed: %w", err))
	}

	if len(resp.Prices) == 0 {
		return nil, &helpers.UpstreamDataIncompleteError{SourceID: SourceCoinGecko, MissingIDs: []string{id}}
	}

	now := time.Now().Unix()
	symbol := s.symbolFor(id)
	aligned := len(resp.MarketCaps) == len(resp.Prices) && len(resp.TotalVolumes) == len(resp.Prices)

	points := make([]models.MPricePoint, 0, len(resp.Prices))
	for i, pair := range resp.Prices {
		if len(pair) < 2 || pair[1] <= 0 {
			continue
		}

		p := models.MPricePoint{
			ID:        id,
			Symbol:    symbol,
			Price:     pair[1],
			Timestamp: int64(pair[0]) / 1000, // upstream uses millisecond epochs
			FetchedAt: now,
		}
		if aligned {
			if len(resp.MarketCaps[i]) == 2 {
				p.MarketCap = resp.MarketCaps[i][1]
			}
			if len(resp.TotalVolumes[i]) == 2 {
				p.Volume24h = resp.TotalVolumes[i][1]
			}
		}
		points = append(points, p)
	}

	s.Logger.Debug("Fetched %d historical points for %s (%dd)", len(points), id, days)
	return points, nil
}

// -----------------------------------------------------------------------------

func (s *CoinGeckoSource) symbolFor(id string) string {
	if sym, ok := s.symbols[id]; ok {
		return sym
	}
	return strings.ToUpper(id)
}
