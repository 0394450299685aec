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

const SourceSightingsAPI = "sightings-api"

// SightingAPISource is the primary pigeon-count provider, backed by the
// municipal sightings HTTP API.
type SightingAPISource struct {
	Config  *models.MConfig
	Network interfaces.INetworkManager
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSightingAPISource(cfg *models.MConfig, netMgr interfaces.INetworkManager) *SightingAPISource {
	return &SightingAPISource{
		Config:  cfg,
		Network: netMgr,
		Logger:  logger.NewLogger(cfg.LogLevel, "SightingAPISource"),
	}
}

// -----------------------------------------------------------------------------

func (s *SightingAPISource) Name() string {
	return SourceSightingsAPI
}

// -----------------------------------------------------------------------------

type sightingRecord struct {
	Location  string  `json:"location"`
	Count     int     `json:"count"`
	Timestamp int64   `json:"timestamp"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

type sightingsResponse struct {
	Sightings []sightingRecord `json:"sightings"`
}

// -----------------------------------------------------------------------------

// FetchCurrent fetches the latest count per requested area in one call.
func (s *SightingAPISource) FetchCurrent(ctx context.Context, areas []string) ([]models.MSighting, error) {
	params := map[string]string{
		"areas": strings.Join(areas, ","),
	}

	url := fmt.Sprintf("%s/sightings/current", s.Config.Upstreams.SightingsURL)

	respBytes, err := s.Network.Get(ctx, url, params, nil)
	if err != nil {
		return nil, helpers.NewUpstreamUnreachable(SourceSightingsAPI, err)
	}

	records, err := s.parseSightings(respBytes)
	if err != nil {
		return nil, err
	}

	// Index by area to detect gaps in the batch
	byArea := make(map[string]models.MSighting, len(records))
	for _, r := range records {
		byArea[r.Location] = r
	}

	result := make([]models.MSighting, 0, len(areas))
	var missing []string
	for _, area := range areas {
		rec, ok := byArea[area]
		if !ok {
			missing = append(missing, area)
			continue
		}
		result = append(result, rec)
	}

	if len(missing) > 0 {
		return nil, &helpers.UpstreamDataIncompleteError{SourceID: SourceSightingsAPI, MissingIDs: missing}
	}

	s.Logger.Debug("Fetched current counts for %d areas", len(result))
	return result, nil
}

// -----------------------------------------------------------------------------

// FetchHistorical fetches up to `days` days of counts for one area.
func (s *SightingAPISource) FetchHistorical(ctx context.Context, area string, days int) ([]models.MSighting, error) {
	params := map[string]string{
		"area": area,
		"days": strconv.Itoa(days),
	}

	url := fmt.Sprintf("%s/sightings/history", s.Config.Upstreams.SightingsURL)

	respBytes, err := s.Network.Get(ctx, url, params, nil)
	if err != nil {
		return nil, helpers.NewUpstreamUnreachable(SourceSightingsAPI, err)
	}

	records, err := s.parseSightings(respBytes)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &helpers.UpstreamDataIncompleteError{SourceID: SourceSightingsAPI, MissingIDs: []string{area}}
	}

	s.Logger.Debug("Fetched %d historical counts for %s (%dd)", len(records), area, days)
	return records, nil
}

// -----------------------------------------------------------------------------

func (s *SightingAPISource) parseSightings(data []byte) ([]models.MSighting, error) {
	var resp sightingsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, helpers.NewUpstreamUnreachable(SourceSightingsAPI, fmt.Errorf("json unmarshal failed: %w", err))
	}

	now := time.Now().Unix()
	result := make([]models.MSighting, 0, len(resp.Sightings))
	for _, r := range resp.Sightings {
		if r.Count < 0 {
			s.Logger.Info("Skipping negative count for %s at %d", r.Location, r.Timestamp)
			continue
		}

		ts := r.Timestamp
		if ts == 0 {
			ts = now
		}

		result = append(result, models.MSighting{
			Location:  r.Location,
			Count:     r.Count,
			Timestamp: ts,
			Lat:       r.Lat,
			Lon:       r.Lon,
			FetchedAt: now,
		})
	}
	return result, nil
}
