package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/hermes/internal/llm"
	"github.com/UnknownOlympus/hermes/internal/orders"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// configFileEnv points to an optional YAML file with the same keys as the defaults below.
const configFileEnv = "HERMES_CONFIG"

// Config holds the configuration settings for hermes.
//
// Fields:
// - Env: The current environment (local, development, production).
// - Port: The port of the HTTP server started by `serve`.
// - Locale: Language of rendered order fields (zh, en).
// - Timeout: HTTP timeout for map and weather vendors.
// - Workers: The number of concurrent workers per enrichment batch.
// - RateLimit: Requests per second allowed against each map vendor.
// - CORSOrigins: Origins allowed to call the HTTP API.
// - EmailInterval: Minimum spacing between /v1/emails calls, zero for none.
// - Geo, Amap, LLM: vendor selection and endpoints.
// - Keys: API credentials. They are never logged.
type Config struct {
	Env           string
	Port          int
	Locale        orders.Locale
	Timeout       time.Duration
	Workers       int
	RateLimit     int
	CORSOrigins   []string
	EmailInterval time.Duration
	Geo           GeoConfig
	Amap          AmapConfig
	LLM           LLMConfig
	Keys          KeysConfig
}

// GeoConfig selects the map vendors used for enrichment.
type GeoConfig struct {
	Provider string // Geocoding vendor: baidu, amap, google, nominatim.
	Route    string // Routing vendor: baidu, google, osrm.
	CityHint string // Restricts geocoding to one city where the vendor supports it.
	Origin   string // Default origin address of every delivery batch.
}

// AmapConfig holds Amap endpoint overrides.
type AmapConfig struct {
	GeocodeURL string
	WeatherURL string
}

// LLMConfig selects the default text generation provider.
type LLMConfig struct {
	Provider    string
	Model       string
	Temperature float32
	MaxTokens   int
}

// KeysConfig holds vendor credentials.
type KeysConfig struct {
	Baidu     string
	Amap      string
	Google    string
	OpenAI    string
	DashScope string
	DeepSeek  string
	Anthropic string
	Gemini    string
}

// setting binds one configuration key to its environment variables.
type setting struct {
	key  string
	envs []string
	def  any
}

var settings = []setting{
	{"env", []string{"HERMES_ENV"}, "production"},
	{"port", []string{"HERMES_PORT"}, "8080"},
	{"locale", []string{"HERMES_LOCALE"}, "zh"},
	{"timeout", []string{"HERMES_TIMEOUT"}, "10s"},
	{"workers", []string{"HERMES_WORKERS"}, "4"},
	{"rate_limit", []string{"HERMES_RATE_LIMIT"}, "3"},
	{"cors_origins", []string{"HERMES_CORS_ORIGINS"}, "*"},
	{"email_interval", []string{"HERMES_EMAIL_INTERVAL"}, "0s"},
	{"geo.provider", []string{"HERMES_GEO_PROVIDER"}, "baidu"},
	{"geo.route", []string{"HERMES_ROUTE_PROVIDER"}, "baidu"},
	{"geo.city_hint", []string{"HERMES_CITY_HINT"}, "长沙市"},
	{"geo.origin", []string{"HERMES_ORIGIN"}, "湘熙水郡"},
	{"amap.geocode_url", []string{"AD_CODE_URL"}, "https://restapi.amap.com/v3/geocode/geo"},
	{"amap.weather_url", []string{"WEATHER_URL"}, "https://restapi.amap.com/v3/weather/weatherInfo"},
	{"llm.provider", []string{"HERMES_LLM_PROVIDER"}, "qwen"},
	{"llm.model", []string{"HERMES_LLM_MODEL"}, ""},
	{"llm.temperature", []string{"HERMES_LLM_TEMPERATURE"}, "0.7"},
	{"llm.max_tokens", []string{"HERMES_LLM_MAX_TOKENS"}, "500"},
	{"keys.baidu", []string{"BAIDU_MAP_AK"}, ""},
	{"keys.amap", []string{"AMAP_KEY", "WEATHER_API_KEY"}, ""},
	{"keys.google", []string{"GOOGLE_MAPS_API_KEY"}, ""},
	{"keys.openai", []string{llm.CredentialOpenAI}, ""},
	{"keys.dashscope", []string{llm.CredentialDashScope}, ""},
	{"keys.deepseek", []string{llm.CredentialDeepSeek}, ""},
	{"keys.anthropic", []string{llm.CredentialAnthropic}, ""},
	{"keys.gemini", []string{llm.CredentialGemini, "GOOGLE_API_KEY"}, ""},
}

// MustLoad loads the configuration and panics when it is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

// Load reads .env (when present), the optional HERMES_CONFIG file and the
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for _, s := range settings {
		v.SetDefault(s.key, s.def)
		if err := v.BindEnv(append([]string{s.key}, s.envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", s.key, err)
		}
	}

	if path := os.Getenv(configFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return parse(v)
}

func parse(v *viper.Viper) (*Config, error) {
	port, err := strconv.Atoi(v.GetString("port"))
	if err != nil {
		return nil, errors.New("failed to parse port for http server from configuration")
	}

	timeout, err := time.ParseDuration(v.GetString("timeout"))
	if err != nil || timeout <= 0 {
		return nil, errors.New("failed to parse timeout from configuration, must be a positive duration")
	}

	workers, err := strconv.Atoi(v.GetString("workers"))
	if err != nil || workers <= 0 {
		return nil, errors.New("failed to parse workers from configuration, must be a positive integer")
	}

	rateLimit, err := strconv.Atoi(v.GetString("rate_limit"))
	if err != nil || rateLimit < 0 {
		return nil, errors.New("failed to parse rate limit from configuration, must be a non-negative integer")
	}

	emailInterval, err := time.ParseDuration(v.GetString("email_interval"))
	if err != nil || emailInterval < 0 {
		return nil, errors.New("failed to parse email interval from configuration")
	}

	locale, err := orders.ParseLocale(v.GetString("locale"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse locale from configuration: %w", err)
	}

	temperature, err := strconv.ParseFloat(v.GetString("llm.temperature"), 32)
	if err != nil || temperature < 0 || temperature > 2 {
		return nil, errors.New("failed to parse llm temperature from configuration, must be within [0, 2]")
	}

	maxTokens, err := strconv.Atoi(v.GetString("llm.max_tokens"))
	if err != nil || maxTokens <= 0 {
		return nil, errors.New("failed to parse llm max tokens from configuration, must be a positive integer")
	}

	return &Config{
		Env:           v.GetString("env"),
		Port:          port,
		Locale:        locale,
		Timeout:       timeout,
		Workers:       workers,
		RateLimit:     rateLimit,
		CORSOrigins:   splitList(v.GetString("cors_origins")),
		EmailInterval: emailInterval,
		Geo: GeoConfig{
			Provider: strings.ToLower(v.GetString("geo.provider")),
			Route:    strings.ToLower(v.GetString("geo.route")),
			CityHint: v.GetString("geo.city_hint"),
			Origin:   v.GetString("geo.origin"),
		},
		Amap: AmapConfig{
			GeocodeURL: v.GetString("amap.geocode_url"),
			WeatherURL: v.GetString("amap.weather_url"),
		},
		LLM: LLMConfig{
			Provider:    strings.ToLower(v.GetString("llm.provider")),
			Model:       v.GetString("llm.model"),
			Temperature: float32(temperature),
			MaxTokens:   maxTokens,
		},
		Keys: KeysConfig{
			Baidu:     v.GetString("keys.baidu"),
			Amap:      v.GetString("keys.amap"),
			Google:    v.GetString("keys.google"),
			OpenAI:    v.GetString("keys.openai"),
			DashScope: v.GetString("keys.dashscope"),
			DeepSeek:  v.GetString("keys.deepseek"),
			Anthropic: v.GetString("keys.anthropic"),
			Gemini:    v.GetString("keys.gemini"),
		},
	}, nil
}

// Credentials returns the text generation keys in the form the provider registry expects.
func (c *Config) Credentials() llm.Credentials {
	return llm.Credentials{
		llm.CredentialOpenAI:    c.Keys.OpenAI,
		llm.CredentialDashScope: c.Keys.DashScope,
		llm.CredentialDeepSeek:  c.Keys.DeepSeek,
		llm.CredentialAnthropic: c.Keys.Anthropic,
		llm.CredentialGemini:    c.Keys.Gemini,
	}
}

// GeoKey returns the credential of the named map vendor.
func (c *Config) GeoKey(provider string) string {
	switch strings.ToLower(provider) {
	case "baidu":
		return c.Keys.Baidu
	case "amap":
		return c.Keys.Amap
	case "google":
		return c.Keys.Google
	default:
		return ""
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
