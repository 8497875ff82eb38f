package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"xpostr-proxy/core"
	"xpostr-proxy/core/security"
)

// Config 完整的应用配置，启动时构建一次后只读
type Config struct {
	Profile  ProfileName     `yaml:"-"` // 只能通过 PROXY_PROFILE 选择
	Server   ServerConfig    `yaml:"server"`
	Upstream UpstreamConfig  `yaml:"upstream"`
	Dispatch DispatchConfig  `yaml:"dispatch"`
	Log      LogConfig       `yaml:"log"`
	Limit    RateLimitConfig `yaml:"rate_limit"`
	Metrics  MetricsConfig   `yaml:"metrics"`

	// Credentials 由环境变量构建，不从 YAML 读取
	Credentials core.CredentialPool `yaml:"-"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowOrigin     string        `yaml:"allow_origin"`
	AllowMethods    string        `yaml:"allow_methods"`
	AllowHeaders    string        `yaml:"allow_headers"`
	AllowCredential bool          `yaml:"allow_credentials"`
}

// UpstreamConfig OpenRouter 配置
type UpstreamConfig struct {
	Endpoint     string `yaml:"endpoint"`
	DefaultModel string `yaml:"default_model"`
	SystemPrompt string `yaml:"system_prompt"`
	Referer      string `yaml:"referer"`
	Title        string `yaml:"title"`
}

// DispatchConfig 故障转移配置
type DispatchConfig struct {
	Strategy                 string        `yaml:"strategy"`
	AttemptTimeout           time.Duration `yaml:"attempt_timeout"`
	Timeout                  time.Duration `yaml:"timeout"`
	FailFastOnInvalidRequest bool          `yaml:"fail_fast_invalid_request"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"` // json or text
	File         string `yaml:"file"`
	MaxSizeMB    int    `yaml:"max_size_mb"`
	RequestLogDB string `yaml:"request_log_db"`
	RetainRows   int    `yaml:"retain_rows"`
}

// RateLimitConfig 入站限流，RPS 为 0 表示关闭
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// MetricsConfig Prometheus 配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load 加载配置：.env -> profile 默认值 -> 可选 YAML 文件 -> 环境变量
func Load() (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load(".env")

	cfg := Defaults(ProfileName(getEnv("PROXY_PROFILE", string(ProfileVercel))))

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	pool, err := LoadCredentials(os.Getenv)
	if err != nil {
		return nil, err
	}
	cfg.Credentials = pool

	return cfg, nil
}

// Defaults 返回某个 profile 的默认配置
func Defaults(name ProfileName) *Config {
	p := LookupProfile(name)
	return &Config{
		Profile: p.Name,
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowOrigin:     "*",
			AllowMethods:    p.AllowMethods,
			AllowHeaders:    p.AllowHeaders,
			AllowCredential: p.AllowCredentials,
		},
		Upstream: UpstreamConfig{
			Endpoint:     "https://openrouter.ai/api/v1/chat/completions",
			DefaultModel: p.DefaultModel,
			SystemPrompt: p.SystemPrompt,
			Referer:      p.Referer,
			Title:        p.Title,
		},
		Dispatch: DispatchConfig{
			Strategy:       "shuffle",
			AttemptTimeout: 20 * time.Second,
			Timeout:        55 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  10,
			RetainRows: 100,
		},
		Limit: RateLimitConfig{
			Burst: 20,
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv 环境变量优先级最高
func (c *Config) applyEnv() {
	c.Server.Port = getEnvAsInt("PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvAsDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvAsDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.AllowOrigin = getEnv("CORS_ALLOW_ORIGIN", c.Server.AllowOrigin)

	c.Upstream.Endpoint = getEnv("OPENROUTER_ENDPOINT", c.Upstream.Endpoint)
	c.Upstream.DefaultModel = getEnv("DEFAULT_MODEL", c.Upstream.DefaultModel)
	c.Upstream.SystemPrompt = getEnv("SYSTEM_PROMPT", c.Upstream.SystemPrompt)
	c.Upstream.Referer = getEnv("HTTP_REFERER", c.Upstream.Referer)
	c.Upstream.Title = getEnv("X_TITLE", c.Upstream.Title)

	c.Dispatch.Strategy = getEnv("KEY_ORDER", c.Dispatch.Strategy)
	c.Dispatch.AttemptTimeout = getEnvAsDuration("ATTEMPT_TIMEOUT", c.Dispatch.AttemptTimeout)
	c.Dispatch.Timeout = getEnvAsDuration("DISPATCH_TIMEOUT", c.Dispatch.Timeout)
	c.Dispatch.FailFastOnInvalidRequest = getEnvAsBool("FAIL_FAST_INVALID_REQUEST", c.Dispatch.FailFastOnInvalidRequest)

	c.Log.Level = strings.ToLower(getEnv("LOG_LEVEL", c.Log.Level))
	c.Log.Format = strings.ToLower(getEnv("LOG_FORMAT", c.Log.Format))
	c.Log.File = getEnv("LOG_FILE", c.Log.File)
	c.Log.MaxSizeMB = getEnvAsInt("LOG_MAX_SIZE_MB", c.Log.MaxSizeMB)
	c.Log.RequestLogDB = getEnv("REQUEST_LOG_DB", c.Log.RequestLogDB)
	c.Log.RetainRows = getEnvAsInt("REQUEST_LOG_RETAIN", c.Log.RetainRows)

	c.Limit.RPS = getEnvAsFloat("RATE_LIMIT_RPS", c.Limit.RPS)
	c.Limit.Burst = getEnvAsInt("RATE_LIMIT_BURST", c.Limit.Burst)

	c.Metrics.Enabled = getEnvAsBool("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Path = getEnv("METRICS_PATH", c.Metrics.Path)
}

// LoadCredentials 从 OPENROUTER_KEYS（逗号分隔）和兼容旧版的 OPENROUTER_KEY 构建凭证池
// "enc:" 开头的值用 CREDENTIAL_SECRET 解密
func LoadCredentials(getenv func(string) string) (core.CredentialPool, error) {
	var raw []string
	for _, name := range []string{"OPENROUTER_KEYS", "OPENROUTER_KEY"} {
		raw = append(raw, strings.Split(getenv(name), ",")...)
	}

	var sp core.SecretProvider = core.NewNoOpSecretProvider()
	if secret := getenv("CREDENTIAL_SECRET"); secret != "" {
		aesProvider, err := security.NewAESSecretProvider(secret)
		if err != nil {
			return core.CredentialPool{}, err
		}
		sp = aesProvider
	}

	keys := make([]string, 0, len(raw))
	for i, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if core.IsEncrypted(value) && getenv("CREDENTIAL_SECRET") == "" {
			return core.CredentialPool{}, fmt.Errorf("credential #%d is encrypted but CREDENTIAL_SECRET is not set", i+1)
		}
		key, err := core.ResolveSecret(sp, value)
		if err != nil {
			return core.CredentialPool{}, fmt.Errorf("credential #%d: %w", i+1, err)
		}
		keys = append(keys, key)
	}

	return core.NewCredentialPool(keys...), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}
