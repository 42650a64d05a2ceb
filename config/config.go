package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectDir   string `json:"project_dir"`
	ResultsDir   string `json:"results_dir"`
	DataDir      string `json:"data_dir"`
	DataCacheDir string `json:"data_cache_dir"`

	LLMProvider          string  `json:"llm_provider"`
	DeepThinkLLM         string  `json:"deep_think_llm"`
	QuickThinkLLM        string  `json:"quick_think_llm"`
	BackendURL           string  `json:"backend_url"`
	MaxTokens            int     `json:"max_tokens"`
	LLMRequestsPerSecond float64 `json:"llm_requests_per_second"`
	LLMTimeoutSeconds    int     `json:"llm_timeout_seconds"`

	// Pipeline behaviour
	MaxDebateRounds        int                `json:"max_debate_rounds"`
	MaxTradeIterations     int                `json:"max_trade_iterations"`
	ScoreThreshold         float64            `json:"score_threshold"`
	RequireHumanApproval   bool               `json:"require_human_approval"`
	AutoApproveThreshold   float64            `json:"auto_approve_threshold"`
	ApprovalTimeoutSeconds int                `json:"approval_timeout_seconds"`
	EnableTrading          bool               `json:"enable_trading"`
	ParallelFanOut         bool               `json:"parallel_fan_out"`
	ConcentrationLimits    map[string]float64 `json:"concentration_limits"`
	DefaultCapital         float64            `json:"default_capital"`
	DefaultRiskTolerance   string             `json:"default_risk_tolerance"`

	// Market data
	NewsDays     int    `json:"news_days"`
	NewsLimit    int    `json:"news_limit"`
	PriceDays    int    `json:"price_days"`
	PriceSource  string `json:"price_source"`
	CacheEnabled bool   `json:"cache_enabled"`

	Debug     bool   `json:"debug"`
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port"`

	// Scheduled runs
	ScheduleCron string   `json:"schedule_cron"`
	Watchlist    []string `json:"watchlist"`
	MetricsAddr  string   `json:"metrics_addr"`

	// Longport API Configuration
	LongportAppKey      string `json:"longport_app_key"`
	LongportAppSecret   string `json:"longport_app_secret"`
	LongportAccessToken string `json:"longport_access_token"`

	// AI Model API Keys
	DeepSeekAPIKey string `json:"deepseek_api_key"`
	OpenAIAPIKey   string `json:"openai_api_key"`

	// Market/news data API keys
	FinnhubAPIKey string `json:"finnhub_api_key"`
}

var (
	validProviders     = map[string]bool{"openai": true, "deepseek": true}
	validPriceSources  = map[string]bool{"yahoo": true, "longport": true}
	validRiskTolerance = map[string]bool{"conservative": true, "moderate": true, "aggressive": true}
)

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()

	cfg := DefaultConfigWithRoot(currentDir)

	// Load environment variables from .env file
	_ = godotenv.Load()

	// Override with environment variables if they exist
	cfg.loadFromEnv()

	return cfg
}

// DefaultConfigWithRoot returns the built-in defaults with all directories placed under root.
func DefaultConfigWithRoot(root string) *Config {
	return &Config{
		ProjectDir:   root,
		ResultsDir:   filepath.Join(root, "results"),
		DataDir:      filepath.Join(root, "data"),
		DataCacheDir: filepath.Join(root, "data", "cache"),

		LLMProvider:          "openai",
		DeepThinkLLM:         "deepseek-chat",
		QuickThinkLLM:        "deepseek-chat",
		BackendURL:           "https://api.deepseek.com/v1",
		MaxTokens:            8192,
		LLMRequestsPerSecond: 0,
		LLMTimeoutSeconds:    120,

		MaxDebateRounds:        2,
		MaxTradeIterations:     3,
		ScoreThreshold:         0.6,
		RequireHumanApproval:   true,
		AutoApproveThreshold:   0.85,
		ApprovalTimeoutSeconds: 300,
		EnableTrading:          true,
		ParallelFanOut:         false,
		ConcentrationLimits: map[string]float64{
			"conservative": 0.20,
			"moderate":     0.30,
			"aggressive":   0.40,
		},
		DefaultCapital:       100000,
		DefaultRiskTolerance: "moderate",

		NewsDays:     3,
		NewsLimit:    10,
		PriceDays:    60,
		PriceSource:  "yahoo",
		CacheEnabled: true,

		Debug:     false,
		LogLevel:  "info",
		LogFormat: "console",

		// Eino Debug defaults
		EinoDebugEnabled: false,
		EinoDebugPort:    52538,

		ScheduleCron: "0 30 16 * * MON-FRI",
		Watchlist:    []string{},
		MetricsAddr:  ":9464",
	}
}

// ApplyEnv overrides c with the process environment and a .env file in the working
// directory, when present.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()
	c.loadFromEnv()
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("RESULTS_DIR"); val != "" {
		c.ResultsDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("DATA_CACHE_DIR"); val != "" {
		c.DataCacheDir = val
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = val
	}
	if val := os.Getenv("DEEP_THINK_LLM"); val != "" {
		c.DeepThinkLLM = val
	}
	if val := os.Getenv("QUICK_THINK_LLM"); val != "" {
		c.QuickThinkLLM = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}
	if val := os.Getenv("LLM_REQUESTS_PER_SECOND"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.LLMRequestsPerSecond = v
		}
	}

	if val := os.Getenv("CACHE_ENABLED"); val != "" {
		if cache, err := strconv.ParseBool(val); err == nil {
			c.CacheEnabled = cache
		}
	}

	if val := os.Getenv("MAX_DEBATE_ROUNDS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxDebateRounds = v
		}
	}
	if val := os.Getenv("MAX_TRADE_ITERATIONS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxTradeIterations = v
		}
	}
	if val := os.Getenv("SCORE_THRESHOLD"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.ScoreThreshold = v
		}
	}
	if val := os.Getenv("REQUIRE_HUMAN_APPROVAL"); val != "" {
		if v, err := strconv.ParseBool(val); err == nil {
			c.RequireHumanApproval = v
		}
	}
	if val := os.Getenv("AUTO_APPROVE_THRESHOLD"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.AutoApproveThreshold = v
		}
	}
	if val := os.Getenv("ENABLE_TRADING"); val != "" {
		if v, err := strconv.ParseBool(val); err == nil {
			c.EnableTrading = v
		}
	}
	if val := os.Getenv("PRICE_SOURCE"); val != "" {
		c.PriceSource = val
	}

	if val := os.Getenv("CORTEX_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.LogFormat = val
	}

	if val := os.Getenv("EINO_DEBUG_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EinoDebugEnabled = enabled
		}
	}
	if val := os.Getenv("EINO_DEBUG_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.EinoDebugPort = port
		}
	}

	if val := os.Getenv("WATCHLIST"); val != "" {
		c.Watchlist = splitList(val)
	}

	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}

	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.DeepSeekAPIKey = val
	}
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.OpenAIAPIKey = val
	}
	if val := os.Getenv("CORTEX_FINNHUB_API_KEY"); val != "" {
		c.FinnhubAPIKey = val
	}
}

// Validate reports the first setting that would make the pipeline misbehave.
func (c *Config) Validate() error {
	if !validProviders[c.LLMProvider] {
		return fmt.Errorf("unsupported llm_provider %q", c.LLMProvider)
	}
	if !validPriceSources[c.PriceSource] {
		return fmt.Errorf("unsupported price_source %q", c.PriceSource)
	}
	if !validRiskTolerance[c.DefaultRiskTolerance] {
		return fmt.Errorf("unsupported default_risk_tolerance %q", c.DefaultRiskTolerance)
	}
	if c.MaxDebateRounds < 1 {
		return errors.New("max_debate_rounds must be at least 1")
	}
	if c.MaxTradeIterations < 1 {
		return errors.New("max_trade_iterations must be at least 1")
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		return fmt.Errorf("score_threshold %.2f outside [0,1]", c.ScoreThreshold)
	}
	if c.AutoApproveThreshold < 0 || c.AutoApproveThreshold > 1 {
		return fmt.Errorf("auto_approve_threshold %.2f outside [0,1]", c.AutoApproveThreshold)
	}
	for tolerance, limit := range c.ConcentrationLimits {
		if limit <= 0 || limit > 1 {
			return fmt.Errorf("concentration limit for %s must be in (0,1], got %.2f", tolerance, limit)
		}
	}
	if c.DefaultCapital < 0 {
		return errors.New("default_capital cannot be negative")
	}
	if c.LLMRequestsPerSecond < 0 {
		return errors.New("llm_requests_per_second cannot be negative")
	}
	if c.ApprovalTimeoutSeconds < 0 {
		return errors.New("approval_timeout_seconds cannot be negative")
	}
	if c.NewsLimit < 0 || c.NewsDays < 0 || c.PriceDays < 0 {
		return errors.New("news_days, news_limit and price_days cannot be negative")
	}
	return nil
}

// ConcentrationLimit returns the single-position ceiling for a risk tolerance.
func (c *Config) ConcentrationLimit(tolerance string) float64 {
	if limit, ok := c.ConcentrationLimits[tolerance]; ok {
		return limit
	}
	return 0.30
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.ResultsDir, c.DataDir, c.DataCacheDir}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}

// loadConfigFromFile decodes the JSON file at path over cfg, so keys missing from the
// file keep the values cfg already holds.
func loadConfigFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// ChangedKeys lists the JSON keys whose values differ between a and b, sorted.
func ChangedKeys(a, b Config) []string {
	am, bm := jsonFields(a), jsonFields(b)
	var keys []string
	for k, v := range am {
		if !reflect.DeepEqual(v, bm[k]) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func jsonFields(c Config) map[string]any {
	data, _ := json.Marshal(c)
	m := map[string]any{}
	_ = json.Unmarshal(data, &m)
	return m
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
