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

const SourceCoinMarketCap = "coinmarketcap"

// CoinMarketCapSource is the secondary crypto price provider, queried only
// after the primary fails. Coins are addressed by numeric provider ids, so
// each configured coin must carry a cmc_id mapping.
type CoinMarketCapSource struct {
	Config  *models.MConfig
	Network interfaces.INetworkManager
	Logger  *logger.Logger
	coins   map[string]models.MCoinConfig // coin id -> full mapping
}

// -----------------------------------------------------------------------------

func NewCoinMarketCapSource(cfg *models.MConfig, netMgr interfaces.INetworkManager) *CoinMarketCapSource {
	coins := make(map[string]models.MCoinConfig, len(cfg.Upstreams.Coins))
	for _, c := range cfg.Upstreams.Coins {
		coins[c.ID] = c
	}
	return &CoinMarketCapSource{
		Config:  cfg,
		Network: netMgr,
		Logger:  logger.NewLogger(cfg.LogLevel, "CoinMarketCapSource"),
		coins:   coins,
	}
}

// -----------------------------------------------------------------------------

func (s *CoinMarketCapSource) Name() string {
	return SourceCoinMarketCap
}

// -----------------------------------------------------------------------------

func (s *CoinMarketCapSource) headers() map[string]string {
	h := map[string]string{"Accept": "application/json"}
	if s.Config.Upstreams.CoinMarketCapKey != "" {
		h["X-CMC_PRO_API_KEY"] = s.Config.Upstreams.CoinMarketCapKey
	}
	return h
}

// -----------------------------------------------------------------------------

type cmcUSDQuote struct {
	Price       float64 `json:"price"`
	Volume24h   float64 `json:"volume_24h"`
	MarketCap   float64 `json:"market_cap"`
	LastUpdated string  `json:"last_updated"`
}

type cmcQuotesResponse struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data map[string]struct {
		ID     int    `json:"id"`
		Symbol string `json:"symbol"`
		Quote  struct {
			USD cmcUSDQuote `json:"USD"`
		} `json:"quote"`
	} `json:"data"`
}

// -----------------------------------------------------------------------------

// FetchCurrent fetches the latest quotes for all ids in one batch call.
func (s *CoinMarketCapSource) FetchCurrent(ctx context.Context, ids []string) ([]models.MPricePoint, error) {
	cmcIDs := make([]string, 0, len(ids))
	var missing []string
	for _, id := range ids {
		coin, ok := s.coins[id]
		if !ok || coin.CMCID == "" {
			missing = append(missing, id)
			continue
		}
		cmcIDs = append(cmcIDs, coin.CMCID)
	}
	if len(missing) > 0 {
		return nil, &helpers.UpstreamDataIncompleteError{SourceID: SourceCoinMarketCap, MissingIDs: missing}
	}

	params := map[string]string{
		"id":      strings.Join(cmcIDs, ","),
		"convert": "USD",
	}

	url := fmt.Sprintf("%s/v1/cryptocurrency/quotes/latest", s.Config.Upstreams.CoinMarketCapURL)

	respBytes, err := s.Network.Get(ctx, url, params, s.headers())
	if err != nil {
		return nil, helpers.NewUpstreamUnreachable(SourceCoinMarketCap, err)
	}

	var resp cmcQuotesResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, helpers.NewUpstreamUnreachable(SourceCoinMarketCap, fmt.Errorf("json unmarshal failed: %w", err))
	}
	if resp.Status.ErrorCode != 0 {
		return nil, helpers.NewUpstreamUnreachable(SourceCoinMarketCap,
			fmt.Errorf("api error %d: %s", resp.Status.ErrorCode, resp.Status.ErrorMessage))
	}

	now := time.Now().Unix()
	points := make([]models.MPricePoint, 0, len(ids))
	missing = missing[:0]

	for _, id := range ids {
		coin := s.coins[id]
		entry, ok := resp.Data[coin.CMCID]
		if !ok || entry.Quote.USD.Price <= 0 {
			missing = append(missing, id)
			continue
		}

		points = append(points, models.MPricePoint{
			ID:        id,
			Symbol:    coin.Symbol,
			Price:     entry.Quote.USD.Price,
			MarketCap: entry.Quote.USD.MarketCap,
			Volume24h: entry.Quote.USD.Volume24h,
			Timestamp: parseCMCTime(entry.Quote.USD.LastUpdated, now),
			FetchedAt: now,
		})
	}

	if len(missing) > 0 {
		return nil, &helpers.UpstreamDataIncompleteError{SourceID: SourceCoinMarketCap, MissingIDs: missing}
	}

	s.Logger.Debug("Fetched %d current quotes", len(points))
	return points, nil
}

// -----------------------------------------------------------------------------

type cmcHistoricalResponse struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data struct {
		Quotes []struct {
			Timestamp string `json:"timestamp"`
			Quote     struct {
				USD cmcUSDQuote `json:"USD"`
			} `json:"quote"`
		} `json:"quotes"`
	} `json:"data"`
}

// -----------------------------------------------------------------------------

// FetchHistorical fetches up to `days` days of hourly quotes for one coin.
func (s *CoinMarketCapSource) FetchHistorical(ctx context.Context, id string, days int) ([]models.MPricePoint, error) {
	coin, ok := s.coins[id]
	if !ok || coin.CMCID == "" {
		return nil, &helpers.UpstreamDataIncompleteError{SourceID: SourceCoinMarketCap, MissingIDs: []string{id}}
	}

	params := map[string]string{
		"id":       coin.CMCID,
		"convert":  "USD",
		"interval": "1h",
		"count":    strconv.Itoa(days * 24),
	}

	url := fmt.Sprintf("%s/v2/cryptocurrency/quotes/historical", s.Config.Upstreams.CoinMarketCapURL)

	respBytes, err := s.Network.Get(ctx, url, params, s.headers())
	if err != nil {
		return nil, helpers.NewUpstreamUnreachable(SourceCoinMarketCap, err)
	}

	var resp cmcHistoricalResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, helpers.NewUpstreamUnreachable(SourceCoinMarketCap, fmt.Errorf("json unmarshal failed: %w", err))
	}
	if resp.Status.ErrorCode != 0 {
		return nil, helpers.NewUpstreamUnreachable(SourceCoinMarketCap,
			fmt.Errorf("api error %d: %s", resp.Status.ErrorCode, resp.Status.ErrorMessage))
	}

	if len(resp.Data.Quotes) == 0 {
		return nil, &helpers.UpstreamDataIncompleteError{SourceID: SourceCoinMarketCap, MissingIDs: []string{id}}
	}

	now := time.Now().Unix()
	points := make([]models.MPricePoint, 0, len(resp.Data.Quotes))
	for _, q := range resp.Data.Quotes {
		if q.Quote.USD.Price <= 0 {
			continue
		}
		points = append(points, models.MPricePoint{
			ID:        id,
			Symbol:    coin.Symbol,
			Price:     q.Quote.USD.Price,
			MarketCap: q.Quote.USD.MarketCap,
			Volume24h: q.Quote.USD.Volume24h,
			Timestamp: parseCMCTime(q.Timestamp, now),
			FetchedAt: now,
		})
	}

	s.Logger.Debug("Fetched %d historical quotes for %s (%dd)", len(points), id, days)
	return points, nil
}

// -----------------------------------------------------------------------------

func parseCMCTime(value string, fallback int64) int64 {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.Unix()
	}
	return fallback
}
