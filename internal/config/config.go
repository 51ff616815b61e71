package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Store    StoreConfig
	Status   StatusConfig
	History  HistoryConfig
	Recovery RecoveryConfig
	Bot      BotConfig
	Persona  PersonaConfig
	Log      LogConfig
}

// Load 从环境变量加载配置并校验。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	st, err := loadStatusConfig()
	if err != nil {
		return nil, err
	}

	history, err := loadHistoryConfig()
	if err != nil {
		return nil, err
	}

	recovery, err := loadRecoveryConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server:   server,
		AI:       ai,
		Store:    StoreConfig{Path: getEnvOrDefault("DB_PATH", "catmaid.db")},
		Status:   st,
		History:  history,
		Recovery: recovery,
		Bot:      BotConfig{QQ: strings.TrimSpace(os.Getenv("BOT_QQ"))},
		Persona:  PersonaConfig{File: strings.TrimSpace(os.Getenv("PERSONA_FILE"))},
		Log: LogConfig{
			Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "text")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 拒绝互相矛盾的配置。
func (c *Config) Validate() error {
	var errs []error

	if c.Status.Max <= 0 {
		errs = append(errs, fmt.Errorf("MAX_STATUS_VALUE must be positive, got %d", c.Status.Max))
	}
	for name, v := range map[string]int{
		"INITIAL_AFFECTION": c.Status.InitialAffection,
		"INITIAL_STAMINA":   c.Status.InitialStamina,
		"INITIAL_MOOD":      c.Status.InitialMood,
		"MOOD_MIDPOINT":     c.Recovery.MoodMidpoint,
	} {
		if v < 0 || v > c.Status.Max {
			errs = append(errs, fmt.Errorf("%s must be within [0, %d], got %d", name, c.Status.Max, v))
		}
	}

	if c.History.MaxEntries <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CHAT_HISTORY must be positive, got %d", c.History.MaxEntries))
	}
	if c.History.MaxChars <= 0 {
		errs = append(errs, fmt.Errorf("MAX_HISTORY_CHARS must be positive, got %d", c.History.MaxChars))
	}

	for name, d := range map[string]time.Duration{
		"RECOVERY_WAKE_INTERVAL":    c.Recovery.WakeInterval,
		"STAMINA_RECOVERY_INTERVAL": c.Recovery.StaminaInterval,
		"MOOD_ADJUST_INTERVAL":      c.Recovery.MoodInterval,
		"AI_TIMEOUT":                c.AI.Timeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.Recovery.StaminaAmount < 0 || c.Recovery.MoodAmount < 0 {
		errs = append(errs, errors.New("recovery amounts must not be negative"))
	}

	switch c.AI.Provider {
	case ProviderArk, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("AI_PROVIDER must be %q or %q, got %q", ProviderArk, ProviderOpenAI, c.AI.Provider))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	origins := splitList(getEnvOrDefault("CORS_ORIGINS", "*"))

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "7862"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":7862" 或 "127.0.0.1:7862"。
		return ServerConfig{Addr: port, CORSOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, CORSOrigins: origins}, nil
}

// 可选的模型后端。
const (
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
)

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider    string
	Timeout     time.Duration
	Temperature *float64

	// Ark
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string
	TopP      *float64
	MaxTokens *int

	// OpenAI 兼容接口，默认指向本地 Ollama。
	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	if c.Provider == ProviderOpenAI {
		return c.OpenAIModel != ""
	}
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个 Ark 模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	timeout := c.Timeout
	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		Timeout:     &timeout,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature == nil {
		// 兼容旧的 Ark 变量名。
		if temperature, err = parseOptionalFloatEnv("ARK_TEMPERATURE"); err != nil {
			return AIConfig{}, err
		}
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeout, err := parseDurationEnv("AI_TIMEOUT", 60*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		Provider:      strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderOpenAI)),
		Timeout:       timeout,
		Temperature:   temperature,
		APIKey:        strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:     strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:     strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:         strings.TrimSpace(os.Getenv("Model")),
		BaseURL:       getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:        getEnvOrDefault("ARK_REGION", "cn-beijing"),
		TopP:          topP,
		MaxTokens:     maxTokens,
		OpenAIBaseURL: getEnvOrDefault("OPENAI_BASE_URL", "http://localhost:11434/v1"),
		OpenAIAPIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:   getEnvOrDefault("OPENAI_MODEL", "qwen3:8b"),
	}, nil
}

// StoreConfig 描述 SQLite 数据库位置。
type StoreConfig struct {
	Path string
}

// StatusConfig 描述状态上限与初始值。
type StatusConfig struct {
	Max              int
	InitialAffection int
	InitialStamina   int
	InitialMood      int
}

func loadStatusConfig() (StatusConfig, error) {
	var (
		c   StatusConfig
		err error
	)
	if c.Max, err = parseIntEnv("MAX_STATUS_VALUE", 100); err != nil {
		return StatusConfig{}, err
	}
	if c.InitialAffection, err = parseIntEnv("INITIAL_AFFECTION", 50); err != nil {
		return StatusConfig{}, err
	}
	if c.InitialStamina, err = parseIntEnv("INITIAL_STAMINA", 100); err != nil {
		return StatusConfig{}, err
	}
	if c.InitialMood, err = parseIntEnv("INITIAL_MOOD", 50); err != nil {
		return StatusConfig{}, err
	}
	return c, nil
}

// HistoryConfig 描述聊天记录的保留策略。
type HistoryConfig struct {
	MaxEntries int
	MaxChars   int
}

func loadHistoryConfig() (HistoryConfig, error) {
	entries, err := parseIntEnv("MAX_CHAT_HISTORY", 8)
	if err != nil {
		return HistoryConfig{}, err
	}
	chars, err := parseIntEnv("MAX_HISTORY_CHARS", 10000)
	if err != nil {
		return HistoryConfig{}, err
	}
	return HistoryConfig{MaxEntries: entries, MaxChars: chars}, nil
}

// RecoveryConfig 描述体力恢复与心情回归。
type RecoveryConfig struct {
	WakeInterval    time.Duration
	StaminaInterval time.Duration
	StaminaAmount   int
	MoodInterval    time.Duration
	MoodAmount      int
	MoodMidpoint    int
}

func loadRecoveryConfig() (RecoveryConfig, error) {
	var (
		c   RecoveryConfig
		err error
	)
	if c.WakeInterval, err = parseDurationEnv("RECOVERY_WAKE_INTERVAL", 10*time.Minute); err != nil {
		return RecoveryConfig{}, err
	}
	if c.StaminaInterval, err = parseDurationEnv("STAMINA_RECOVERY_INTERVAL", 10*time.Minute); err != nil {
		return RecoveryConfig{}, err
	}
	if c.StaminaAmount, err = parseIntEnv("STAMINA_RECOVERY_AMOUNT", 10); err != nil {
		return RecoveryConfig{}, err
	}
	if c.MoodInterval, err = parseDurationEnv("MOOD_ADJUST_INTERVAL", time.Hour); err != nil {
		return RecoveryConfig{}, err
	}
	if c.MoodAmount, err = parseIntEnv("MOOD_ADJUST_AMOUNT", 1); err != nil {
		return RecoveryConfig{}, err
	}
	if c.MoodMidpoint, err = parseIntEnv("MOOD_MIDPOINT", 50); err != nil {
		return RecoveryConfig{}, err
	}
	return c, nil
}

// BotConfig 描述消息中继使用的机器人账号。
type BotConfig struct {
	QQ string
}

// PersonaConfig 指向可选的角色 YAML 文件。
type PersonaConfig struct {
	File string
}

// LogConfig 描述日志级别与输出格式。
type LogConfig struct {
	Level  string
	Format string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	return *val, nil
}

// parseDurationEnv 接受 Go 时长格式（如 "10m"），纯数字按秒解析。
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
