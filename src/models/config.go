package models

// MConfig Structure
type MConfig struct {
	Name        string             `yaml:"name"`
	Host        string             `yaml:"host"`
	Port        int                `yaml:"port"`
	LogLevel    string             `yaml:"log_level"`
	Storage     MStorageConfig     `yaml:"storage"`
	Network     MNetworkConfig     `yaml:"network"`
	Upstreams   MUpstreamsConfig   `yaml:"upstreams"`
	Cache       MCacheConfig       `yaml:"cache"`
	RateLimits  []MRateLimitConfig `yaml:"rate_limits"`
	Correlation MCorrelationConfig `yaml:"correlation"`
	Downsample  MDownsampleConfig  `yaml:"downsample"`
	Admission   MAdmissionConfig   `yaml:"admission"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	RetentionDays      int    `yaml:"retention_days"`
}

type MNetworkConfig struct {
	RequestTimeout     int     `yaml:"timeout"`
	MaxRetries         int     `yaml:"retries"`
	RequestsPerSecond  float64 `yaml:"requests_per_second"`
	Burst              int     `yaml:"burst"`
	ConcurrentRequests int     `yaml:"concurrent_requests"`
	UserAgent          string  `yaml:"user_agent"`
}

type MUpstreamsConfig struct {
	CoinGeckoURL     string        `yaml:"coingecko_url"`
	CoinMarketCapURL string        `yaml:"coinmarketcap_url"`
	CoinMarketCapKey string        `yaml:"coinmarketcap_api_key"` // Optional
	SightingsURL     string        `yaml:"sightings_url"`
	Coins            []MCoinConfig `yaml:"coins"`
	Areas            []string      `yaml:"areas"`
	RefreshSeconds   int           `yaml:"refresh_interval_seconds"`
}

// MCoinConfig maps one coin across both price providers.
type MCoinConfig struct {
	ID     string `yaml:"id"`     // CoinGecko identifier, e.g. "bitcoin"
	Symbol string `yaml:"symbol"` // display symbol, e.g. "BTC"
	CMCID  string `yaml:"cmc_id"` // CoinMarketCap numeric id, e.g. "1"
}

type MCacheConfig struct {
	CurrentTTLSeconds    int `yaml:"current_ttl_seconds"`
	HistoricalTTLSeconds int `yaml:"historical_ttl_seconds"`
}

type MRateLimitConfig struct {
	SourceID      string `yaml:"source_id"`
	WindowSeconds int    `yaml:"window_seconds"`
	Limit         int    `yaml:"limit"`
}

type MCorrelationConfig struct {
	DefaultBucket    string               `yaml:"default_bucket"` // minute|hour|day
	ToleranceSeconds int64                `yaml:"tolerance_seconds"`
	Levels           []MSignificanceLevel `yaml:"significance_levels"`
}

type MDownsampleConfig struct {
	Threshold    int    `yaml:"threshold"` // series longer than this get reduced
	TargetPoints int    `yaml:"target_points"`
	Strategy     string `yaml:"strategy"` // stride|average|adaptive
}

type MAdmissionConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
}
