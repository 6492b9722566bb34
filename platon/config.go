//nolint:lll // struct tags can't be split
package platon

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultEnvPrefix       = "PLATON"
	DefaultDatabase        = "platon.sqlite3"
	DefaultLogLevel        = slog.LevelInfo
	DefaultStartupTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultHTTPTimeout bounds every outbound HTTP call (Upbit, Naver,
	// OpenAI). The upstream APIs advertise no latency guarantees.
	DefaultHTTPTimeout = 10 * time.Second

	DefaultDatabaseLogLevel  = slog.LevelInfo
	DefaultDiscordLogLevel   = slog.LevelWarn
	DefaultDiscordgoLogLevel = slog.LevelWarn
	DefaultOpenAILogLevel    = slog.LevelInfo
	DefaultAPILogLevel       = slog.LevelInfo

	DefaultDiscordGatewayIntent  = discordgo.IntentsAllWithoutPrivileged
	DefaultDiscordCustomStatus   = "/도움말 | github.com/root39293"
	DefaultDiscordStartupMessage = "플라톤 준비 완료!"

	DefaultOpenAIModel = "gpt-4o-mini"

	DefaultUpbitBaseURL = "https://api.upbit.com/v1"
	DefaultNewsURL      = "https://media.naver.com/press/052/ranking?type=popular"

	DefaultAPIListen     = "127.0.0.1:5000"
	defaultListenNetwork = "tcp"
	DefaultReadTimeout   = 5 * time.Second
	DefaultWriteTimeout  = 10 * time.Second
	DefaultIdleTimeout   = 30 * time.Second

	// DiscordErrorMessage is the generic "try again later" response used
	// whenever an upstream call fails. The real cause only goes to the log.
	DiscordErrorMessage = "오류가 발생했습니다. 잠시 후 다시 시도해주세요."
)

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	return v
}

// Config is the top-level bot configuration, populated by the cmd package
// from defaults, an optional YAML file, and PLATON_* environment variables.
type Config struct {
	// Database is the path of the SQLite database file holding weekly quest
	// epochs and notification channel settings.
	Database string `yaml:"database" mapstructure:"database" json:"database" binding:"required"`

	// DatabaseLogLevel sets the log level for database operations
	DatabaseLogLevel *slog.LevelVar `yaml:"database_log_level" mapstructure:"database_log_level" json:"database_log_level"`

	// LogLevel is the base log level, for the default logger
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// StartupTimeout bounds session open + command registration. If it
	// elapses, startup is aborted.
	StartupTimeout time.Duration `yaml:"startup_timeout" mapstructure:"startup_timeout" json:"startup_timeout"`

	// ShutdownTimeout is the time allowed for a graceful shutdown before
	// connections are force-closed.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" json:"shutdown_timeout"`

	// HTTPTimeout applies to all outbound HTTP calls.
	HTTPTimeout time.Duration `yaml:"http_timeout" mapstructure:"http_timeout" json:"http_timeout" binding:"min=1s"`

	// Discord configures the bot's gateway connection
	Discord *DiscordConfig `yaml:"discord" mapstructure:"discord" json:"discord"`

	// OpenAI configures quote generation
	OpenAI *OpenAIConfig `yaml:"openai" mapstructure:"openai" json:"openai"`

	// Upbit configures the market data client
	Upbit *UpbitConfig `yaml:"upbit" mapstructure:"upbit" json:"upbit"`

	// News configures the news ranking scraper
	News *NewsConfig `yaml:"news" mapstructure:"news" json:"news"`

	// API configures the read-only status HTTP server
	API *APIConfig `yaml:"api" mapstructure:"api" json:"api"`

	HTTPClient *http.Client `log:"[redacted]"`
}

func (c Config) LogValue() slog.Value {
	return structToSlogValue(c)
}

// DiscordConfig configures the discord bot itself.
//
//nolint:lll // can't break tags
type DiscordConfig struct {
	// Discord bot token (from the 'Bot' tab in the discord dev portal)
	Token string `yaml:"token" mapstructure:"token" json:"token" log:"[redacted]" binding:"required"`

	// Discord application ID (from the 'General Information' tab in the discord dev portal)
	ApplicationID string `yaml:"application_id" mapstructure:"application_id" json:"application_id" binding:"required"`

	// GuildID specifies the guild ID used when registering slash commands.
	// Leave empty for commands to be registered as global.
	GuildID string `yaml:"guild_id" mapstructure:"guild_id" json:"guild_id"`

	// Base discord logging level
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// Log level for the `discordgo` library's logger
	DiscordGoLogLevel *slog.LevelVar `yaml:"discordgo_log_level" mapstructure:"discordgo_log_level" json:"discordgo_log_level"`

	// StartupMessage is sent to the quote channel, if one is configured,
	// whenever the bot connects to the gateway.
	StartupMessage string `yaml:"startup_message" mapstructure:"startup_message" json:"startup_message"`

	// CustomStatus is set as the bot user's status after connecting
	CustomStatus string `yaml:"custom_status" mapstructure:"custom_status" json:"custom_status"`

	// Discord gateway intents. See: https://discord.com/developers/docs/topics/gateway#gateway-intents
	GatewayIntents discordgo.Intent `yaml:"gateway_intents" mapstructure:"gateway_intents" json:"gateway_intents"`

	httpClient *http.Client
}

// OpenAIConfig configures quote generation via the OpenAI API
type OpenAIConfig struct {
	// OpenAI API token
	Token string `yaml:"token" mapstructure:"token" json:"token" log:"[redacted]" binding:"required"`

	// Model used for quote generation
	Model string `yaml:"model" mapstructure:"model" json:"model" binding:"required"`

	// OpenAI base log level
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`
}

// UpbitConfig configures the Upbit market data client
type UpbitConfig struct {
	// BaseURL of the Upbit REST API (overridden in tests)
	BaseURL string `yaml:"base_url" mapstructure:"base_url" json:"base_url" binding:"required,url"`
}

// NewsConfig configures the news ranking scraper
type NewsConfig struct {
	// URL of the press ranking page to scrape
	URL string `yaml:"url" mapstructure:"url" json:"url" binding:"required,url"`
}

// APIConfig configures the read-only status HTTP server
type APIConfig struct {
	// Determines whether the status server should be started
	Enabled bool `yaml:"enabled" mapstructure:"enabled" json:"enabled"`

	// The address and port on which the server should listen (e.g., "127.0.0.1:5000").
	Listen string `yaml:"listen" mapstructure:"listen" json:"listen" binding:"required_if=Enabled true"`

	// The network type for listening (e.g., "tcp", "tcp4", "tcp6", "unix").
	ListenNetwork string `yaml:"listen_network" mapstructure:"listen_network" json:"listen_network" binding:"required_if=Enabled true,oneof=tcp tcp4 tcp6 unix"`

	// The logging level for the status server.
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// Origins allowed for cross-origin requests
	CORSAllowOrigins []string `yaml:"cors_allow_origins" mapstructure:"cors_allow_origins" json:"cors_allow_origins"`

	// Maximum duration for reading the entire request, including the body.
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" json:"read_timeout" binding:"required_if=Enabled true,min=1s"`

	// Maximum duration before timing out writes of the response.
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" json:"write_timeout" binding:"required_if=Enabled true,min=1s"`

	// Maximum amount of time to wait for the next request when keep-alives are enabled.
	IdleTimeout time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" json:"idle_timeout" binding:"required_if=Enabled true,min=1s"`
}

// DefaultConfig returns a Config with all default settings populated
func DefaultConfig() *Config {
	mainLogLevel := &slog.LevelVar{}
	dbLogLevel := &slog.LevelVar{}
	discordLogLevel := &slog.LevelVar{}
	discordgoLogLevel := &slog.LevelVar{}
	openaiLogLevel := &slog.LevelVar{}
	apiLogLevel := &slog.LevelVar{}

	mainLogLevel.Set(DefaultLogLevel)
	dbLogLevel.Set(DefaultDatabaseLogLevel)
	discordLogLevel.Set(DefaultDiscordLogLevel)
	discordgoLogLevel.Set(DefaultDiscordgoLogLevel)
	openaiLogLevel.Set(DefaultOpenAILogLevel)
	apiLogLevel.Set(DefaultAPILogLevel)

	return &Config{
		Database:         DefaultDatabase,
		DatabaseLogLevel: dbLogLevel,
		LogLevel:         mainLogLevel,
		StartupTimeout:   DefaultStartupTimeout,
		ShutdownTimeout:  DefaultShutdownTimeout,
		HTTPTimeout:      DefaultHTTPTimeout,
		Discord: &DiscordConfig{
			LogLevel:          discordLogLevel,
			DiscordGoLogLevel: discordgoLogLevel,
			GatewayIntents:    DefaultDiscordGatewayIntent,
			StartupMessage:    DefaultDiscordStartupMessage,
			CustomStatus:      DefaultDiscordCustomStatus,
		},
		OpenAI: &OpenAIConfig{
			Model:    DefaultOpenAIModel,
			LogLevel: openaiLogLevel,
		},
		Upbit: &UpbitConfig{BaseURL: DefaultUpbitBaseURL},
		News:  &NewsConfig{URL: DefaultNewsURL},
		API: &APIConfig{
			Enabled:       false,
			Listen:        DefaultAPIListen,
			ListenNetwork: defaultListenNetwork,
			LogLevel:      apiLogLevel,
			ReadTimeout:   DefaultReadTimeout,
			WriteTimeout:  DefaultWriteTimeout,
			IdleTimeout:   DefaultIdleTimeout,
		},
	}
}

// ValidateConfig checks the config against its binding tags, returning a
// validator error describing every failing field.
func ValidateConfig(cfg *Config) error {
	return structValidator.Struct(cfg)
}
