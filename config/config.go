package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultKeywords are the high-volatility topics (crypto prices) never bet on.
var DefaultKeywords = []string{
	"bitcoin", "btc", "ethereum", "eth", "solana", "sol", "crypto",
	"dogecoin", "doge", "xrp", "cardano", "ada", "bnb", "token price",
}

// Config es la configuración completa del trader.
type Config struct {
	Filter  FilterConfig  `yaml:"filter"`
	Trading TradingConfig `yaml:"trading"`
	Feed    FeedConfig    `yaml:"feed"`
	API     APIConfig     `yaml:"api"`
	Wallet  WalletConfig  `yaml:"wallet"`
	Storage StorageConfig `yaml:"storage"`
	Notify  NotifyConfig  `yaml:"notify"`
	Lock    LockConfig    `yaml:"lock"`
	Log     LogConfig     `yaml:"log"`
}

// FilterConfig son los criterios de selección de candidatos.
type FilterConfig struct {
	MinYesProb          float64  `yaml:"min_yes_prob"`
	MaxNoPrice          *float64 `yaml:"max_no_price"` // nil = 0.12
	MinVolume           *float64 `yaml:"min_volume"`   // nil = 10000; 0 desactiva el filtro
	MaxDaysToResolution int      `yaml:"max_days_to_resolution"`
	Keywords            []string `yaml:"keywords"`
}

// TradingConfig controla los límites de riesgo y la ejecución.
type TradingConfig struct {
	BetSize       float64  `yaml:"bet_size"`
	DailyLimit    float64  `yaml:"daily_limit"`
	MaxPositions  int      `yaml:"max_positions"`
	DryRun        *bool    `yaml:"dry_run"` // nil = true
	MinAskDepth   *float64 `yaml:"min_ask_depth"` // nil = 100
	MaxSpread     *float64 `yaml:"max_spread"`    // nil = 0.03; 0 exige spread nulo
	OrderDelay    Duration `yaml:"order_delay"`
	SubmitTimeout Duration `yaml:"submit_timeout"`
	RetentionDays int      `yaml:"retention_days"`
	Timezone      string   `yaml:"timezone"` // zona para el día del ledger, default UTC
}

// FeedConfig controla la consulta al feed de Gamma.
type FeedConfig struct {
	Limit      int    `yaml:"limit"`
	SortKey    string `yaml:"sort_key"`
	Descending *bool  `yaml:"descending"`
}

// APIConfig contiene los base URLs de las APIs.
type APIConfig struct {
	CLOBBase  string   `yaml:"clob_base"`
	GammaBase string   `yaml:"gamma_base"`
	Timeout   Duration `yaml:"timeout"`
}

// WalletConfig contiene la clave de firma y los datos on-chain.
type WalletConfig struct {
	PrivateKey        string `yaml:"private_key"`
	FunderAddress     string `yaml:"funder_address"`
	SignatureType     int    `yaml:"signature_type"` // 0 EOA, 1 POLY_PROXY, 2 POLY_GNOSIS_SAFE
	RPCURL            string `yaml:"rpc_url"`
	CollateralAddress string `yaml:"collateral_address"`
}

// StorageConfig controla dónde se persiste el estado.
type StorageConfig struct {
	Driver string `yaml:"driver"` // file | sqlite
	Dir    string `yaml:"dir"`
	DSN    string `yaml:"dsn"` // ruta SQLite; default <dir>/nobet.db
}

// NotifyConfig contiene los destinos de notificación. Vacío = deshabilitado.
type NotifyConfig struct {
	TelegramToken     string `yaml:"telegram_token"`
	TelegramChatID    string `yaml:"telegram_chat_id"`
	DiscordWebhookURL string `yaml:"discord_webhook_url"`
}

// LockConfig configura el lock de ejecución opcional en Redis.
type LockConfig struct {
	RedisAddr     string   `yaml:"redis_addr"`
	RedisPassword string   `yaml:"redis_password"`
	Key           string   `yaml:"key"`
	TTL           Duration `yaml:"ttl"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// envOverrides mapea las variables de entorno heredadas. Solo se aplican las
// que están definidas.
type envOverrides struct {
	BetSize        *float64 `envconfig:"POLYMARKET_BET_SIZE"`
	DailyLimit     *float64 `envconfig:"POLYMARKET_DAILY_LIMIT"`
	MaxPositions   *int     `envconfig:"POLYMARKET_MAX_POSITIONS"`
	DryRun         *bool    `envconfig:"POLYMARKET_DRY_RUN"`
	PrivateKey     *string  `envconfig:"POLYMARKET_PRIVATE_KEY"`
	FunderAddress  *string  `envconfig:"POLYMARKET_FUNDER_ADDRESS"`
	SignatureType  *int     `envconfig:"POLYMARKET_SIGNATURE_TYPE"`
	StateDir       *string  `envconfig:"OPENCLAW_STATE_DIR"`
	TelegramToken  *string  `envconfig:"TELEGRAM_TOKEN"`
	TelegramChatID *string  `envconfig:"POLYMARKET_TELEGRAM_CHAT_ID"`
	DiscordWebhook *string  `envconfig:"DISCORD_WEBHOOK_URL"`
	RPCURL         *string  `envconfig:"POLYGON_RPC_URL"`
	RedisAddr      *string  `envconfig:"REDIS_ADDR"`
	RedisPassword  *string  `envconfig:"REDIS_PASSWORD"`
	LogLevel       *string  `envconfig:"LOG_LEVEL"`
	LogFormat      *string  `envconfig:"LOG_FORMAT"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Un path vacío o inexistente no es error: se usan defaults + entorno.
// Las variables de entorno sobreescriben los valores del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
			}
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}

	setIf(&cfg.Trading.BetSize, env.BetSize)
	setIf(&cfg.Trading.DailyLimit, env.DailyLimit)
	setIf(&cfg.Trading.MaxPositions, env.MaxPositions)
	if env.DryRun != nil {
		v := *env.DryRun
		cfg.Trading.DryRun = &v
	}
	setIf(&cfg.Wallet.PrivateKey, env.PrivateKey)
	setIf(&cfg.Wallet.FunderAddress, env.FunderAddress)
	setIf(&cfg.Wallet.SignatureType, env.SignatureType)
	setIf(&cfg.Wallet.RPCURL, env.RPCURL)
	setIf(&cfg.Storage.Dir, env.StateDir)
	setIf(&cfg.Notify.TelegramToken, env.TelegramToken)
	setIf(&cfg.Notify.TelegramChatID, env.TelegramChatID)
	setIf(&cfg.Notify.DiscordWebhookURL, env.DiscordWebhook)
	setIf(&cfg.Lock.RedisAddr, env.RedisAddr)
	setIf(&cfg.Lock.RedisPassword, env.RedisPassword)
	setIf(&cfg.Log.Level, env.LogLevel)
	setIf(&cfg.Log.Format, env.LogFormat)
	return nil
}

// setDefault asigna def solo si el campo no vino en el YAML. Un cero
// explícito se respeta.
func setDefault(dst **float64, def float64) {
	if *dst == nil {
		v := def
		*dst = &v
	}
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Filter.MinYesProb == 0 {
		cfg.Filter.MinYesProb = 0.90
	}
	setDefault(&cfg.Filter.MaxNoPrice, 0.12)
	setDefault(&cfg.Filter.MinVolume, 10_000)
	if cfg.Filter.MaxDaysToResolution == 0 {
		cfg.Filter.MaxDaysToResolution = 7
	}
	if cfg.Filter.Keywords == nil {
		cfg.Filter.Keywords = append([]string(nil), DefaultKeywords...)
	}

	if cfg.Trading.BetSize == 0 {
		cfg.Trading.BetSize = 2
	}
	if cfg.Trading.DailyLimit == 0 {
		cfg.Trading.DailyLimit = 50
	}
	if cfg.Trading.MaxPositions == 0 {
		cfg.Trading.MaxPositions = 25
	}
	if cfg.Trading.DryRun == nil {
		dry := true
		cfg.Trading.DryRun = &dry
	}
	setDefault(&cfg.Trading.MinAskDepth, 100)
	setDefault(&cfg.Trading.MaxSpread, 0.03)
	if cfg.Trading.OrderDelay <= 0 {
		cfg.Trading.OrderDelay = Duration(time.Second)
	}
	if cfg.Trading.SubmitTimeout <= 0 {
		cfg.Trading.SubmitTimeout = Duration(20 * time.Second)
	}
	if cfg.Trading.RetentionDays <= 0 {
		cfg.Trading.RetentionDays = 30
	}
	if cfg.Trading.Timezone == "" {
		cfg.Trading.Timezone = "UTC"
	}

	if cfg.Feed.Limit <= 0 {
		cfg.Feed.Limit = 200
	}
	if cfg.Feed.SortKey == "" {
		cfg.Feed.SortKey = "volume24hr"
	}
	if cfg.Feed.Descending == nil {
		desc := true
		cfg.Feed.Descending = &desc
	}

	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = Duration(30 * time.Second)
	}

	if cfg.Wallet.RPCURL == "" {
		cfg.Wallet.RPCURL = "https://polygon-rpc.com"
	}
	if cfg.Wallet.CollateralAddress == "" {
		cfg.Wallet.CollateralAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "file"
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = defaultStateDir()
	}
	cfg.Storage.Dir = expandHome(cfg.Storage.Dir)
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = filepath.Join(cfg.Storage.Dir, "nobet.db")
	}

	if cfg.Lock.Key == "" {
		cfg.Lock.Key = "nobet:trade"
	}
	if cfg.Lock.TTL <= 0 {
		cfg.Lock.TTL = Duration(10 * time.Minute)
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Validate comprueba que los valores tengan sentido una vez aplicados los defaults.
func (c *Config) Validate() error {
	var errs []error
	if c.Filter.MinYesProb <= 0 || c.Filter.MinYesProb > 1 {
		errs = append(errs, fmt.Errorf("filter.min_yes_prob must be in (0, 1], got %v", c.Filter.MinYesProb))
	}
	if p := c.Filter.MaxNoPrice; p != nil && (*p <= 0 || *p > 1) {
		errs = append(errs, fmt.Errorf("filter.max_no_price must be in (0, 1], got %v", *p))
	}
	if v := c.Filter.MinVolume; v != nil && *v < 0 {
		errs = append(errs, fmt.Errorf("filter.min_volume must be >= 0, got %v", *v))
	}
	if c.Filter.MaxDaysToResolution < 0 {
		errs = append(errs, fmt.Errorf("filter.max_days_to_resolution must be >= 0, got %d", c.Filter.MaxDaysToResolution))
	}
	if c.Trading.BetSize < 0 {
		errs = append(errs, fmt.Errorf("trading.bet_size must be > 0, got %v", c.Trading.BetSize))
	}
	if c.Trading.DailyLimit < 0 {
		errs = append(errs, fmt.Errorf("trading.daily_limit must be > 0, got %v", c.Trading.DailyLimit))
	}
	if c.Trading.MaxPositions < 0 {
		errs = append(errs, fmt.Errorf("trading.max_positions must be > 0, got %d", c.Trading.MaxPositions))
	}
	if v := c.Trading.MinAskDepth; v != nil && *v < 0 {
		errs = append(errs, fmt.Errorf("trading.min_ask_depth must be >= 0, got %v", *v))
	}
	if v := c.Trading.MaxSpread; v != nil && *v < 0 {
		errs = append(errs, fmt.Errorf("trading.max_spread must be >= 0, got %v", *v))
	}
	if c.Trading.BetSize > c.Trading.DailyLimit {
		errs = append(errs, fmt.Errorf("trading.bet_size %.2f exceeds daily_limit %.2f", c.Trading.BetSize, c.Trading.DailyLimit))
	}
	switch c.Storage.Driver {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be file or sqlite, got %q", c.Storage.Driver))
	}
	if c.Wallet.SignatureType < 0 || c.Wallet.SignatureType > 2 {
		errs = append(errs, fmt.Errorf("wallet.signature_type must be 0, 1 or 2, got %d", c.Wallet.SignatureType))
	}
	if _, err := time.LoadLocation(c.Trading.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("trading.timezone: %w", err))
	}
	return errors.Join(errs...)
}

// IsDryRun devuelve si las órdenes se simulan.
func (c *Config) IsDryRun() bool {
	return c.Trading.DryRun == nil || *c.Trading.DryRun
}

// Location devuelve la zona horaria del ledger de gasto diario.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Trading.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RequireWallet falla si falta la clave privada, necesaria para operar en vivo.
func (c *Config) RequireWallet() error {
	if c.Wallet.PrivateKey == "" {
		return errors.New("POLYMARKET_PRIVATE_KEY (wallet.private_key) is required")
	}
	return nil
}

// Redacted devuelve una copia con los secretos ocultos, apta para logs.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	c.Wallet.PrivateKey = mask(c.Wallet.PrivateKey)
	c.Notify.TelegramToken = mask(c.Notify.TelegramToken)
	c.Notify.DiscordWebhookURL = mask(c.Notify.DiscordWebhookURL)
	c.Lock.RedisPassword = mask(c.Lock.RedisPassword)
	return c
}

func defaultStateDir() string {
	return filepath.Join("~", ".openclaw", "polymarket")
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
