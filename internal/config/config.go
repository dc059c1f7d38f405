package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port         int           `yaml:"port" default:"8080"`
		Host         string        `yaml:"host" default:"0.0.0.0"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10m"`
		IdleTimeout  time.Duration `yaml:"idle_timeout" default:"60s"`
		// AllowedOrigins for CORS; empty allows any origin
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Search SearchConfig `yaml:"search"`

	Browser BrowserConfig `yaml:"browser"`

	Site SiteConfig `yaml:"site"`

	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`

		Adapters []LogAdapterConfig `yaml:"adapters"`
	} `yaml:"logging"`

	Cache struct {
		Enabled bool          `yaml:"enabled" default:"false"`
		TTL     time.Duration `yaml:"ttl" default:"15m"`
	} `yaml:"cache"`

	Redis struct {
		URL      string        `yaml:"url" default:"redis://localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db" default:"0"`
		Timeout  time.Duration `yaml:"timeout" default:"5s"`
	} `yaml:"redis"`
}

// LogAdapterConfig selects one logging adapter
type LogAdapterConfig struct {
	Name    string                 `yaml:"name"`
	Type    string                 `yaml:"type"`
	Enabled bool                   `yaml:"enabled"`
	Options map[string]interface{} `yaml:"options"`
}

// SearchConfig holds the pagination limits and the overall search budget
type SearchConfig struct {
	MaxPages               int           `yaml:"max_pages" default:"5"`
	MaxResults             int           `yaml:"max_results" default:"100"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures" default:"3"`
	Timeout                time.Duration `yaml:"timeout" default:"5m"`
	MaxConcurrent          int           `yaml:"max_concurrent" default:"2"`
}

// BrowserConfig configures the controlled browser session
type BrowserConfig struct {
	Headless           bool          `yaml:"headless" default:"true"`
	DriverPath         string        `yaml:"driver_path"`
	NavigationTimeout  time.Duration `yaml:"navigation_timeout" default:"30s"`
	PageLoadRetries    int           `yaml:"page_load_retries" default:"2"`
	BackoffInitial     time.Duration `yaml:"backoff_initial" default:"1s"`
	BackoffMax         time.Duration `yaml:"backoff_max" default:"15s"`
	UserAgent          string        `yaml:"user_agent"`
	RequestsPerMinute  int           `yaml:"requests_per_minute" default:"20"`
	BlockingSignatures []string      `yaml:"blocking_signatures"`
}

// SiteConfig describes how to query and parse one listing site
type SiteConfig struct {
	Name              string        `yaml:"name" default:"cars.com"`
	BaseURL           string        `yaml:"base_url" default:"https://www.cars.com/shopping/results/"`
	PageParam         string        `yaml:"page_param" default:"page"`
	PageSize          int           `yaml:"page_size" default:"20"`
	YearSpanPerTarget int           `yaml:"year_span_per_target" default:"0"`
	RadiusOptions     []int         `yaml:"radius_options"`
	RadiusAllValue    string        `yaml:"radius_all_value" default:"all"`
	Params            SiteParams    `yaml:"params"`
	Selectors         SiteSelectors `yaml:"selectors"`
	NoAccidentText    string        `yaml:"no_accident_text" default:"no accidents"`
	AccidentText      string        `yaml:"accident_text" default:"accident reported"`
}

// SiteParams names the query parameters the site expects
type SiteParams struct {
	Make        string            `yaml:"make" default:"makes[]"`
	Model       string            `yaml:"model" default:"models[]"`
	YearMin     string            `yaml:"year_min" default:"year_min"`
	YearMax     string            `yaml:"year_max" default:"year_max"`
	Zip         string            `yaml:"zip" default:"zip"`
	Radius      string            `yaml:"radius" default:"maximum_distance"`
	PageSize    string            `yaml:"page_size" default:"page_size"`
	NoAccidents string            `yaml:"no_accidents" default:"vehicle_history[]"`
	NoAccValue  string            `yaml:"no_accidents_value" default:"no_accidents"`
	Fixed       map[string]string `yaml:"fixed"`
}

// SiteSelectors are the CSS selectors used to read a result page
type SiteSelectors struct {
	ResultsContainer string `yaml:"results_container"`
	Listing          string `yaml:"listing"`
	IDAttribute      string `yaml:"id_attribute"`
	Title            string `yaml:"title"`
	Link             string `yaml:"link"`
	Price            string `yaml:"price"`
	Mileage          string `yaml:"mileage"`
	Location         string `yaml:"location"`
	Badges           string `yaml:"badges"`
	NextPage         string `yaml:"next_page"`
	NoResults        string `yaml:"no_results"`
}

// expandEnvVars expands environment variables in a string using ${VAR} or $VAR syntax
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	re2 := regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	s = re2.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return s
}

// Default returns a configuration populated with built-in defaults only
func Default() *Config {
	config := &Config{}

	config.Server.Port = 8080
	config.Server.Host = "0.0.0.0"
	config.Server.ReadTimeout = 30 * time.Second
	config.Server.WriteTimeout = 10 * time.Minute
	config.Server.IdleTimeout = 60 * time.Second

	config.Search.MaxPages = 5
	config.Search.MaxResults = 100
	config.Search.MaxConsecutiveFailures = 3
	config.Search.Timeout = 5 * time.Minute
	config.Search.MaxConcurrent = 2

	config.Browser.Headless = true
	config.Browser.NavigationTimeout = 30 * time.Second
	config.Browser.PageLoadRetries = 2
	config.Browser.BackoffInitial = time.Second
	config.Browser.BackoffMax = 15 * time.Second
	config.Browser.RequestsPerMinute = 20
	config.Browser.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	config.Browser.BlockingSignatures = []string{
		"g-recaptcha",
		"h-captcha",
		"px-captcha",
		"cf-challenge",
		"challenges.cloudflare.com",
		"just a moment",
		"checking your browser",
		"access denied",
		"are you a robot",
		"unusual traffic",
	}

	config.Site = DefaultSite()

	config.Logging.Level = "info"
	config.Logging.Format = "json"
	config.Logging.Output = "stdout"

	config.Cache.TTL = 15 * time.Minute

	config.Redis.URL = "redis://localhost:6379"
	config.Redis.DB = 0
	config.Redis.Timeout = 5 * time.Second

	return config
}

// DefaultSite returns the built-in cars.com profile
func DefaultSite() SiteConfig {
	return SiteConfig{
		Name:           "cars.com",
		BaseURL:        "https://www.cars.com/shopping/results/",
		PageParam:      "page",
		PageSize:       20,
		RadiusOptions:  []int{10, 20, 30, 40, 50, 75, 100, 150, 200, 250, 500},
		RadiusAllValue: "all",
		Params: SiteParams{
			Make:        "makes[]",
			Model:       "models[]",
			YearMin:     "year_min",
			YearMax:     "year_max",
			Zip:         "zip",
			Radius:      "maximum_distance",
			PageSize:    "page_size",
			NoAccidents: "vehicle_history[]",
			NoAccValue:  "no_accidents",
			Fixed: map[string]string{
				"stock_type": "used",
				"sort":       "best_match_desc",
			},
		},
		Selectors: SiteSelectors{
			ResultsContainer: "div.vehicle-cards",
			Listing:          "div.vehicle-card",
			IDAttribute:      "data-listing-id",
			Title:            "h2.title",
			Link:             "a.vehicle-card-link",
			Price:            "span.primary-price",
			Mileage:          "div.mileage",
			Location:         "div.miles-from",
			Badges:           "div.vehicle-badging span, span.sds-badge__label",
			NextPage:         "a#next_paginate, a[aria-label='Next page']",
			NoResults:        "div.sds-notification--no-results, div.no-results",
		},
		NoAccidentText: "no accidents",
		AccidentText:   "accident reported",
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	config := Default()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			yamlContent := expandEnvVars(string(data))

			if err := yaml.Unmarshal([]byte(yamlContent), config); err != nil {
				return nil, err
			}
		}
	}

	config.loadFromEnv()

	return config, nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}

	// Browser binary, same variables the container images set
	if chromeBin := os.Getenv("CHROME_BIN"); chromeBin != "" {
		c.Browser.DriverPath = chromeBin
	}

	if chromePath := os.Getenv("CHROME_PATH"); chromePath != "" && c.Browser.DriverPath == "" {
		c.Browser.DriverPath = chromePath
	}

	if driverPath := os.Getenv("AUTOHAWK_DRIVER_PATH"); driverPath != "" {
		c.Browser.DriverPath = driverPath
	}

	if headless := os.Getenv("AUTOHAWK_HEADLESS"); headless != "" {
		c.Browser.Headless = parseBool(headless, c.Browser.Headless)
	}

	if navTimeout := os.Getenv("AUTOHAWK_NAVIGATION_TIMEOUT"); navTimeout != "" {
		if timeout, err := time.ParseDuration(navTimeout); err == nil {
			c.Browser.NavigationTimeout = timeout
		}
	}

	if retries := os.Getenv("AUTOHAWK_PAGE_LOAD_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			c.Browser.PageLoadRetries = r
		}
	}

	if maxPages := os.Getenv("AUTOHAWK_MAX_PAGES"); maxPages != "" {
		if p, err := strconv.Atoi(maxPages); err == nil {
			c.Search.MaxPages = p
		}
	}

	if maxResults := os.Getenv("AUTOHAWK_MAX_RESULTS"); maxResults != "" {
		if r, err := strconv.Atoi(maxResults); err == nil {
			c.Search.MaxResults = r
		}
	}

	if searchTimeout := os.Getenv("AUTOHAWK_SEARCH_TIMEOUT"); searchTimeout != "" {
		if timeout, err := time.ParseDuration(searchTimeout); err == nil {
			c.Search.Timeout = timeout
		}
	}

	if cacheEnabled := os.Getenv("AUTOHAWK_CACHE_ENABLED"); cacheEnabled != "" {
		c.Cache.Enabled = parseBool(cacheEnabled, c.Cache.Enabled)
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.URL = redisURL
	}

	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		c.Redis.Password = redisPassword
	}

	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			c.Redis.DB = db
		}
	}

	if redisTimeout := os.Getenv("REDIS_TIMEOUT"); redisTimeout != "" {
		if timeout, err := time.ParseDuration(redisTimeout); err == nil {
			c.Redis.Timeout = timeout
		}
	}

	c.loadLoggingAdapterEnvVars()
}

// loadLoggingAdapterEnvVars loads environment variables for logging adapters
func (c *Config) loadLoggingAdapterEnvVars() {
	for i := range c.Logging.Adapters {
		adapter := &c.Logging.Adapters[i]

		switch adapter.Type {
		case "file":
			if filePath := os.Getenv("LOG_FILE_PATH"); filePath != "" {
				if adapter.Options == nil {
					adapter.Options = make(map[string]interface{})
				}
				adapter.Options["file_path"] = filePath
			}

			if enabled := os.Getenv("LOG_FILE_ENABLED"); enabled != "" {
				adapter.Enabled = parseBool(enabled, adapter.Enabled)
			}
		}
	}
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return fallback
	}
}
