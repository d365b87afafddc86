package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Site       SiteConfig       `json:"site"`
	Processing ProcessingConfig `json:"processing"`
	Classify   ClassifyConfig   `json:"classify"`
	DataSource DataSourceConfig `json:"data_source"`
	Storage    StorageConfig    `json:"storage"`
	Notify     NotifyConfig     `json:"notify"`
	FileLink   FileLinkConfig   `json:"file_link"`
	AuditLog   AuditLogConfig   `json:"audit_log"`
	Redis      RedisConfig      `json:"redis"`
	Browser    BrowserConfig    `json:"browser"`
	Log        LogConfig        `json:"log"`
}

// SiteConfig holds the target portal configuration
type SiteConfig struct {
	BaseURL   string `json:"base_url"`
	SearchURL string `json:"search_url"`
	SlipPath  string `json:"slip_path"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// ProcessingConfig holds batch processing configuration
type ProcessingConfig struct {
	DownloadsDir       string        `json:"downloads_dir"`
	ReportsDir         string        `json:"reports_dir"`
	BatchSize          int           `json:"batch_size"`
	RecordDelay        time.Duration `json:"record_delay"`
	BatchDelay         time.Duration `json:"batch_delay"`
	ProcessedStateFile string        `json:"processed_state_file"`
	ProcessedRetention time.Duration `json:"processed_retention"`
	SkipProcessed      bool          `json:"skip_processed"`
	ResumeStateFile    string        `json:"resume_state_file"`
	ResumeEnabled      bool          `json:"resume_enabled"`
	LoginFailureLimit  int           `json:"login_failure_limit"`
	MinDocumentSize    int           `json:"min_document_size"`
	MinListingSize     int           `json:"min_listing_size"`
	DueDateOffsetDays  int           `json:"due_date_offset_days"`
}

// ClassifyConfig holds response classification configuration
type ClassifyConfig struct {
	ErrorMarkers            []string `json:"error_markers"`
	ContemplatedKeywords    []string `json:"contemplated_keywords"`
	NotContemplatedKeywords []string `json:"not_contemplated_keywords"`
}

// DataSourceConfig holds record ingestion configuration
type DataSourceConfig struct {
	CSVPath      string `json:"csv_path"`
	CSVURL       string `json:"csv_url"`
	CSVDelimiter string `json:"csv_delimiter"`
}

// StorageConfig holds artifact storage configuration
type StorageConfig struct {
	Enabled          bool   `json:"enabled"`
	Bucket           string `json:"bucket"`
	Region           string `json:"region"`
	Prefix           string `json:"prefix"`
	UseYearMonthKeys bool   `json:"use_year_month_keys"`
}

// NotifyConfig holds webhook notification configuration
type NotifyConfig struct {
	Enabled         bool          `json:"enabled"`
	WebhookURL      string        `json:"webhook_url"`
	Method          string        `json:"method"`
	MessageTemplate string        `json:"message_template"`
	Timeout         time.Duration `json:"timeout"`
	RatePerMinute   int           `json:"rate_per_minute"`
}

// FileLinkConfig holds signed file link configuration
type FileLinkConfig struct {
	Enabled   bool          `json:"enabled"`
	BaseURL   string        `json:"base_url"`
	SecretKey string        `json:"-"`
	Expiry    time.Duration `json:"expiry"`
	Port      int           `json:"port"`
}

// AuditLogConfig holds audit log configuration
type AuditLogConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// RedisConfig holds Redis configuration for the skip cache
type RedisConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	CacheTTL     time.Duration `json:"cache_ttl"`
}

// BrowserConfig holds browser automation configuration
type BrowserConfig struct {
	Headless    bool          `json:"headless"`
	PageTimeout time.Duration `json:"page_timeout"`
	NavDelay    time.Duration `json:"nav_delay"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Site: SiteConfig{
			BaseURL:   getEnv("SITE_BASE_URL", ""),
			SearchURL: getEnv("SITE_SEARCH_URL", ""),
			SlipPath:  getEnv("SITE_SLIP_PATH", "Slip/Slip.asp"),
			Username:  getEnv("SITE_USERNAME", ""),
			Password:  getEnv("SITE_PASSWORD", ""),
		},
		Processing: ProcessingConfig{
			DownloadsDir:       getEnv("DOWNLOADS_DIR", "downloads"),
			ReportsDir:         getEnv("REPORTS_DIR", "reports"),
			BatchSize:          getEnvAsInt("BATCH_SIZE", 100),
			RecordDelay:        time.Duration(getEnvAsInt("RECORD_DELAY_SECONDS", 5)) * time.Second,
			BatchDelay:         time.Duration(getEnvAsInt("BATCH_DELAY_SECONDS", 20)) * time.Second,
			ProcessedStateFile: getEnv("PROCESSED_STATE_FILE", "logs/processed_records.json"),
			ProcessedRetention: time.Duration(getEnvAsInt("PROCESSED_RETENTION_DAYS", 0)) * 24 * time.Hour,
			SkipProcessed:      getEnvAsBool("SKIP_PROCESSED_RECORDS", false),
			ResumeStateFile:    getEnv("RESUME_STATE_FILE", "logs/resume_state.json"),
			ResumeEnabled:      getEnvAsBool("RESUME_ENABLED", true),
			LoginFailureLimit:  getEnvAsInt("LOGIN_FAILURE_LIMIT", 5),
			MinDocumentSize:    getEnvAsInt("MIN_DOCUMENT_SIZE", 10000),
			MinListingSize:     getEnvAsInt("MIN_LISTING_SIZE", 1000),
			DueDateOffsetDays:  getEnvAsInt("DUE_DATE_OFFSET_DAYS", 30),
		},
		Classify: ClassifyConfig{
			ErrorMarkers:            getEnvAsSlice("CLASSIFY_ERROR_MARKERS", []string{"ADODB.Command"}),
			ContemplatedKeywords:    getEnvAsSlice("CLASSIFY_CONTEMPLATED_KEYWORDS", []string{"CONTEMPLADO", "CONTEMPLADA"}),
			NotContemplatedKeywords: getEnvAsSlice("CLASSIFY_NOT_CONTEMPLATED_KEYWORDS", []string{"NÃO CONTEMPLADO", "NÃO CONTEMPLADA", "NAO CONTEMPLADO", "NAO CONTEMPLADA"}),
		},
		DataSource: DataSourceConfig{
			CSVPath:      getEnv("CSV_PATH", ""),
			CSVURL:       getEnv("CSV_URL", ""),
			CSVDelimiter: getEnv("CSV_DELIMITER", ","),
		},
		Storage: StorageConfig{
			Enabled:          getEnvAsBool("STORAGE_ENABLED", false),
			Bucket:           getEnv("STORAGE_BUCKET", ""),
			Region:           getEnv("STORAGE_REGION", "us-east-1"),
			Prefix:           getEnv("STORAGE_PREFIX", "boletos"),
			UseYearMonthKeys: getEnvAsBool("STORAGE_YEAR_MONTH_KEYS", true),
		},
		Notify: NotifyConfig{
			Enabled:         getEnvAsBool("NOTIFY_ENABLED", false),
			WebhookURL:      getEnv("NOTIFY_WEBHOOK_URL", ""),
			Method:          getEnv("NOTIFY_METHOD", "POST"),
			MessageTemplate: getEnv("NOTIFY_MESSAGE_TEMPLATE", ""),
			Timeout:         time.Duration(getEnvAsInt("NOTIFY_TIMEOUT", 30)) * time.Second,
			RatePerMinute:   getEnvAsInt("NOTIFY_RATE_PER_MINUTE", 30),
		},
		FileLink: FileLinkConfig{
			Enabled:   getEnvAsBool("FILE_LINK_ENABLED", false),
			BaseURL:   getEnv("FILE_LINK_BASE_URL", ""),
			SecretKey: getEnv("FILE_LINK_SECRET_KEY", ""),
			Expiry:    time.Duration(getEnvAsInt("FILE_LINK_EXPIRY_MINUTES", 30)) * time.Minute,
			Port:      getEnvAsInt("FILE_LINK_PORT", 8080),
		},
		AuditLog: AuditLogConfig{
			Enabled: getEnvAsBool("AUDIT_LOG_ENABLED", false),
			Path:    getEnv("AUDIT_LOG_PATH", "logs/audit_log.csv"),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  time.Duration(getEnvAsInt("REDIS_DIAL_TIMEOUT", 5)) * time.Second,
			ReadTimeout:  time.Duration(getEnvAsInt("REDIS_READ_TIMEOUT", 3)) * time.Second,
			WriteTimeout: time.Duration(getEnvAsInt("REDIS_WRITE_TIMEOUT", 3)) * time.Second,
			CacheTTL:     time.Duration(getEnvAsInt("REDIS_CACHE_TTL", 86400)) * time.Second,
		},
		Browser: BrowserConfig{
			Headless:    getEnvAsBool("BROWSER_HEADLESS", true),
			PageTimeout: time.Duration(getEnvAsInt("PAGE_TIMEOUT", 30)) * time.Second,
			NavDelay:    time.Duration(getEnvAsInt("NAV_DELAY_SECONDS", 2)) * time.Second,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
			File:   getEnv("LOG_FILE", ""),
		},
	}

	// Validate required fields
	if cfg.Site.BaseURL == "" {
		return nil, fmt.Errorf("SITE_BASE_URL is required")
	}
	if cfg.Site.Username == "" || cfg.Site.Password == "" {
		return nil, fmt.Errorf("SITE_USERNAME and SITE_PASSWORD are required")
	}
	if cfg.Site.SearchURL == "" {
		cfg.Site.SearchURL = cfg.Site.BaseURL
	}

	return cfg, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
