package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Crawler   CrawlerConfig
	Pipeline  PipelineConfig
	Contract  ContractConfig
	Scheduler SchedulerConfig
	Sites     SitesConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host              string
	Port              int
	ReadTimeout       int
	WriteTimeout      int
	BodyLimit         int
	Development       bool
	RateLimitPerMin   int
	AllowedOrigins    []string
	WorkerConcurrency int
}

type DatabaseConfig struct {
	Driver string
	DSN    string
}

type RedisConfig struct {
	Enabled       bool
	Host          string
	Port          int
	Password      string
	DB            int
	URLTTL        time.Duration
	ExtractionTTL time.Duration
}

type LLMConfig struct {
	BaseURL             string
	APIKey              string
	Model               string
	Temperature         float32
	MaxTokens           int
	ClassifyTimeout     time.Duration
	ExtractTimeout      time.Duration
	ContractTimeout     time.Duration
	ContractTemperature float32
}

type CrawlerConfig struct {
	UserAgent         string
	HTTPTimeout       time.Duration
	RequestsPerSecond float64
	BrowserEnabled    bool
	Headless          bool
	BrowserDomains    []string
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	LowMemoryMode     bool
}

type PipelineConfig struct {
	PerCycleCap    int
	FanOut         int
	RelevanceScore float64
	KeywordFilter  bool
}

type ContractConfig struct {
	MinTextLength     int
	ChunkSize         int
	MaxChunks         int
	LocalRuleFallback bool
}

type SchedulerConfig struct {
	Enabled    bool
	BatchCrawl string
	StaleSweep string
	StaleAfter time.Duration
}

type SitesConfig struct {
	Path  string
	Watch bool
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/riskintel")

	v.SetEnvPrefix("RISKINTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Pipeline.PerCycleCap <= 0 || c.Pipeline.FanOut <= 0 {
		return fmt.Errorf("pipeline.perCycleCap and pipeline.fanOut must be positive")
	}
	if c.Contract.ChunkSize <= 0 || c.Contract.MaxChunks <= 0 {
		return fmt.Errorf("contract.chunkSize and contract.maxChunks must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 180)
	v.SetDefault("server.bodyLimit", 20971520)
	v.SetDefault("server.development", false)
	v.SetDefault("server.rateLimitPerMin", 120)
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("server.workerConcurrency", 8)

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "./data/riskintel.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.urlTTL", 24*time.Hour)
	v.SetDefault("redis.extractionTTL", 7*24*time.Hour)

	v.SetDefault("llm.baseURL", "https://api.deepseek.com")
	v.SetDefault("llm.apiKey", "sk-placeholder")
	v.SetDefault("llm.model", "deepseek-chat")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.maxTokens", 8192)
	v.SetDefault("llm.classifyTimeout", 60*time.Second)
	v.SetDefault("llm.extractTimeout", 120*time.Second)
	v.SetDefault("llm.contractTimeout", 120*time.Second)
	v.SetDefault("llm.contractTemperature", 0.3)

	v.SetDefault("crawler.userAgent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("crawler.httpTimeout", 30*time.Second)
	v.SetDefault("crawler.requestsPerSecond", 2.0)
	v.SetDefault("crawler.browserEnabled", true)
	v.SetDefault("crawler.headless", true)
	v.SetDefault("crawler.browserDomains", []string{"gov.uz"})
	v.SetDefault("crawler.navigationTimeout", 45*time.Second)
	v.SetDefault("crawler.settleDelay", 8*time.Second)
	v.SetDefault("crawler.lowMemoryMode", false)

	v.SetDefault("pipeline.perCycleCap", 3)
	v.SetDefault("pipeline.fanOut", 3)
	v.SetDefault("pipeline.relevanceScore", 0.9)
	v.SetDefault("pipeline.keywordFilter", false)

	v.SetDefault("contract.minTextLength", 50)
	v.SetDefault("contract.chunkSize", 6000)
	v.SetDefault("contract.maxChunks", 3)
	v.SetDefault("contract.localRuleFallback", true)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.batchCrawl", "0 */6 * * *")
	v.SetDefault("scheduler.staleSweep", "*/15 * * * *")
	v.SetDefault("scheduler.staleAfter", time.Hour)

	v.SetDefault("sites.path", "./config/site_prompts.yaml")
	v.SetDefault("sites.watch", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
