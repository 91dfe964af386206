// Package config carrega a configuração do gateway.
//
// Ordem de precedência: variáveis de ambiente (inclusive as do .env) > arquivo
// YAML (seção `proxy:`) > padrões. Valor inválido nunca derruba a subida:
// o campo volta ao padrão e um aviso é devolvido para o chamador logar.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"transit-gateway/gateway"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	yaml "go.yaml.in/yaml/v2"
)

const (
	StrategyWindow      = "window"
	StrategyTokenBucket = "token_bucket"
)

type Config struct {
	MotisAddress         string
	ConnectionsPerHost   int
	Timeout              time.Duration
	ProxyAssets          bool
	AllowedEndpoints     []gateway.Capability // nil = todos
	RoutesPerMinuteLimit int
	LRURateLimitEntries  int

	ListenAddr         string
	IPHeader           string
	TrustXFF           bool
	RateStrategy       string
	RateLimitHeaders   bool
	ConcurrencyMax     int
	ConcurrencyTimeout time.Duration
	MetricsAddr        string
	LogLevel           string
	LogFormat          string

	Stats StatsConfig
}

type StatsConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Prefix        string
	TTL           time.Duration
	Bucket        string
	TrackKeys     bool
}

func Default() Config {
	return Config{
		MotisAddress:         "http://localhost:8080",
		ConnectionsPerHost:   100,
		Timeout:              10 * time.Second,
		ProxyAssets:          false,
		AllowedEndpoints:     nil,
		RoutesPerMinuteLimit: 20,
		LRURateLimitEntries:  10000,

		ListenAddr:   ":8000",
		IPHeader:     "X-Real-IP",
		RateStrategy: StrategyWindow,
		LogLevel:     "info",
		LogFormat:    "json",

		Stats: StatsConfig{
			Prefix: "gateway:stats",
			TTL:    24 * time.Hour,
			Bucket: "minute",
		},
	}
}

// LookupFunc tem a assinatura de os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load lê o .env do diretório atual (se existir), o arquivo YAML em path
// (vazio = sem arquivo) e as variáveis de ambiente.
func Load(path string) (Config, []string) {
	var warnings []string

	// godotenv não sobrescreve o que já está no ambiente
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		warnings = append(warnings, fmt.Sprintf("ignoring .env: %v", err))
	}

	var data []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("cannot read config file %q, using defaults: %v", path, err))
		} else {
			data = b
		}
	}

	cfg, more := Parse(data, os.LookupEnv)
	return cfg, append(warnings, more...)
}

type fileLayout struct {
	Proxy map[string]interface{} `yaml:"proxy"`
}

// Parse monta a Config a partir do conteúdo YAML (pode ser nil) e do ambiente.
func Parse(data []byte, lookup LookupFunc) (Config, []string) {
	r := &reader{lookup: lookup, file: map[string]interface{}{}}
	if lookup == nil {
		r.lookup = func(string) (string, bool) { return "", false }
	}

	if len(data) > 0 {
		var f fileLayout
		if err := yaml.Unmarshal(data, &f); err != nil {
			r.warnf("invalid config file, using defaults: %v", err)
		} else if f.Proxy != nil {
			r.file = f.Proxy
		}
	}
	for k := range r.file {
		if _, ok := knownKeys[k]; !ok {
			r.warnf("unknown config key proxy.%s", k)
		}
	}

	def := Default()
	cfg := Config{}

	cfg.MotisAddress = r.str(fMotisAddress, def.MotisAddress, validUpstream)
	cfg.ConnectionsPerHost = r.integer(fConnectionsPerHost, def.ConnectionsPerHost, atLeast(1))
	cfg.Timeout = r.duration(fTimeout, def.Timeout, positive)
	cfg.ProxyAssets = r.boolean(fProxyAssets, def.ProxyAssets)
	cfg.AllowedEndpoints = r.capabilities(fAllowedEndpoints)
	cfg.RoutesPerMinuteLimit = r.integer(fRoutesPerMinute, def.RoutesPerMinuteLimit, atLeast(1))
	cfg.LRURateLimitEntries = r.integer(fLRUEntries, def.LRURateLimitEntries, atLeast(1))

	cfg.ListenAddr = r.str(fListenAddr, def.ListenAddr, nil)
	cfg.IPHeader = r.str(fIPHeader, def.IPHeader, nil)
	cfg.TrustXFF = r.boolean(fTrustXFF, def.TrustXFF)
	cfg.RateStrategy = r.str(fRateStrategy, def.RateStrategy, oneOf(StrategyWindow, StrategyTokenBucket))
	cfg.RateLimitHeaders = r.boolean(fRateLimitHeaders, def.RateLimitHeaders)
	cfg.ConcurrencyMax = r.integer(fConcurrencyMax, def.ConcurrencyMax, atLeast(0))
	cfg.ConcurrencyTimeout = r.duration(fConcurrencyTimeout, def.ConcurrencyTimeout, nonNegative)
	cfg.MetricsAddr = r.str(fMetricsAddr, def.MetricsAddr, nil)
	cfg.LogLevel = r.str(fLogLevel, def.LogLevel, validLevel)
	cfg.LogFormat = r.str(fLogFormat, def.LogFormat, oneOf("json", "console"))

	cfg.Stats.Enabled = r.boolean(fStatsEnabled, def.Stats.Enabled)
	cfg.Stats.RedisAddr = r.str(fStatsRedisAddr, def.Stats.RedisAddr, nil)
	cfg.Stats.RedisPassword = r.str(fStatsRedisPassword, def.Stats.RedisPassword, nil)
	cfg.Stats.RedisDB = r.integer(fStatsRedisDB, def.Stats.RedisDB, atLeast(0))
	cfg.Stats.Prefix = r.str(fStatsPrefix, def.Stats.Prefix, nil)
	cfg.Stats.TTL = r.duration(fStatsTTL, def.Stats.TTL, nonNegative)
	cfg.Stats.Bucket = r.str(fStatsBucket, def.Stats.Bucket, oneOf("minute", "none"))
	cfg.Stats.TrackKeys = r.boolean(fStatsTrackKeys, def.Stats.TrackKeys)

	if cfg.Stats.Enabled && cfg.Stats.RedisAddr == "" {
		r.warnf("%s is required when %s=true, stats disabled", fStatsRedisAddr.env, fStatsEnabled.env)
		cfg.Stats.Enabled = false
	}

	return cfg, r.warnings
}

// minWriteTimeout é o piso do prazo de escrita do servidor HTTP.
const minWriteTimeout = 30 * time.Second

// WriteTimeout é o prazo de escrita do servidor principal. Cobre a espera por
// vaga de concorrência e o timeout do upstream, com folga para escrever a resposta.
func (c Config) WriteTimeout() time.Duration {
	d := c.ConcurrencyTimeout + c.Timeout + 5*time.Second
	if d < minWriteTimeout {
		return minWriteTimeout
	}
	return d
}

// Fields resume a configuração para o log de subida (sem a senha do Redis).
func (c Config) Fields() []zap.Field {
	allowed := "all"
	if c.AllowedEndpoints != nil {
		names := make([]string, len(c.AllowedEndpoints))
		for i, e := range c.AllowedEndpoints {
			names[i] = e.String()
		}
		allowed = "[" + strings.Join(names, ",") + "]"
	}
	return []zap.Field{
		zap.String("motis_address", c.MotisAddress),
		zap.Int("connections_per_host", c.ConnectionsPerHost),
		zap.Duration("timeout", c.Timeout),
		zap.Bool("proxy_assets", c.ProxyAssets),
		zap.String("allowed_endpoints", allowed),
		zap.Int("routes_per_minute_limit", c.RoutesPerMinuteLimit),
		zap.Int("lru_rate_limit_entries", c.LRURateLimitEntries),
		zap.String("rate_strategy", c.RateStrategy),
		zap.Bool("add_ratelimit_headers", c.RateLimitHeaders),
		zap.String("ip_header", c.IPHeader),
		zap.Bool("trust_xff", c.TrustXFF),
		zap.Int("concurrency_max", c.ConcurrencyMax),
		zap.Bool("stats_enabled", c.Stats.Enabled),
	}
}

type field struct {
	yaml string
	env  string
}

var (
	fMotisAddress       = field{"motis_address", "MOTIS_ADDRESS"}
	fConnectionsPerHost = field{"connections_per_host", "CONNECTIONS_PER_HOST"}
	fTimeout            = field{"timeout", "TIMEOUT"}
	fProxyAssets        = field{"proxy_assets", "PROXY_ASSETS"}
	fAllowedEndpoints   = field{"allowed_endpoints", "ALLOWED_ENDPOINTS"}
	fRoutesPerMinute    = field{"routes_per_minute_limit", "ROUTES_PER_MINUTE_LIMIT"}
	fLRUEntries         = field{"lru_rate_limit_entries", "LRU_RATE_LIMIT_ENTRIES"}

	fListenAddr         = field{"listen_addr", "LISTEN_ADDR"}
	fIPHeader           = field{"ip_header", "IP_HEADER"}
	fTrustXFF           = field{"trust_xff", "TRUST_XFF"}
	fRateStrategy       = field{"rate_strategy", "RATE_STRATEGY"}
	fRateLimitHeaders   = field{"add_ratelimit_headers", "ADD_RATELIMIT_HEADERS"}
	fConcurrencyMax     = field{"concurrency_max", "CONCURRENCY_MAX"}
	fConcurrencyTimeout = field{"concurrency_timeout", "CONCURRENCY_TIMEOUT"}
	fMetricsAddr        = field{"metrics_addr", "METRICS_ADDR"}
	fLogLevel           = field{"log_level", "LOG_LEVEL"}
	fLogFormat          = field{"log_format", "LOG_FORMAT"}

	fStatsEnabled       = field{"stats_enabled", "RATE_STATS_ENABLED"}
	fStatsRedisAddr     = field{"stats_redis_addr", "RATE_STATS_REDIS_ADDR"}
	fStatsRedisPassword = field{"stats_redis_password", "RATE_STATS_REDIS_PASSWORD"}
	fStatsRedisDB       = field{"stats_redis_db", "RATE_STATS_REDIS_DB"}
	fStatsPrefix        = field{"stats_prefix", "RATE_STATS_PREFIX"}
	fStatsTTL           = field{"stats_ttl", "RATE_STATS_TTL"}
	fStatsBucket        = field{"stats_bucket", "RATE_STATS_BUCKET"}
	fStatsTrackKeys     = field{"stats_track_keys", "RATE_STATS_TRACK_KEYS"}
)

var knownKeys = func() map[string]struct{} {
	m := map[string]struct{}{}
	for _, f := range []field{
		fMotisAddress, fConnectionsPerHost, fTimeout, fProxyAssets, fAllowedEndpoints,
		fRoutesPerMinute, fLRUEntries, fListenAddr, fIPHeader, fTrustXFF, fRateStrategy, fRateLimitHeaders,
		fConcurrencyMax, fConcurrencyTimeout, fMetricsAddr, fLogLevel, fLogFormat,
		fStatsEnabled, fStatsRedisAddr, fStatsRedisPassword, fStatsRedisDB, fStatsPrefix,
		fStatsTTL, fStatsBucket, fStatsTrackKeys,
	} {
		m[f.yaml] = struct{}{}
	}
	return m
}()

type reader struct {
	file     map[string]interface{}
	lookup   LookupFunc
	warnings []string
}

func (r *reader) warnf(format string, args ...interface{}) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

// raw devolve o valor textual do campo: ambiente primeiro, depois o arquivo.
// Ambiente vazio conta como não definido.
func (r *reader) raw(f field) (string, string, bool) {
	if v, ok := r.lookup(f.env); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), f.env, true
	}
	v, ok := r.file[f.yaml]
	if !ok || v == nil {
		return "", "", false
	}
	if list, ok := v.([]interface{}); ok {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, strings.TrimSpace(fmt.Sprint(item)))
		}
		return strings.Join(parts, ","), "proxy." + f.yaml, true
	}
	return strings.TrimSpace(fmt.Sprint(v)), "proxy." + f.yaml, true
}

func (r *reader) str(f field, def string, valid func(string) error) string {
	v, src, ok := r.raw(f)
	if !ok || v == "" {
		return def
	}
	if valid != nil {
		if err := valid(v); err != nil {
			r.warnf("invalid %s=%q (%v), using default %q", src, v, err, def)
			return def
		}
	}
	return v
}

func (r *reader) integer(f field, def int, valid func(int) error) int {
	v, src, ok := r.raw(f)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err == nil && valid != nil {
		err = valid(i)
	}
	if err != nil {
		r.warnf("invalid %s=%q (%v), using default %d", src, v, err, def)
		return def
	}
	return i
}

func (r *reader) boolean(f field, def bool) bool {
	v, src, ok := r.raw(f)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.warnf("invalid %s=%q, using default %v", src, v, def)
		return def
	}
	return b
}

// duration aceita segundos ("10", "2.5") ou duração Go ("1500ms").
func (r *reader) duration(f field, def time.Duration, valid func(time.Duration) error) time.Duration {
	v, src, ok := r.raw(f)
	if !ok || v == "" {
		return def
	}
	d, err := parseDuration(v)
	if err == nil && valid != nil {
		err = valid(d)
	}
	if err != nil {
		r.warnf("invalid %s=%q (%v), using default %s", src, v, err, def)
		return def
	}
	return d
}

func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

// capabilities lê a allowlist. Ausente = nil (todos). Lista vazia explícita no
// arquivo = nenhum. Entradas desconhecidas são descartadas com aviso.
func (r *reader) capabilities(f field) []gateway.Capability {
	v, src, ok := r.raw(f)
	if !ok {
		return nil
	}

	out := []gateway.Capability{}
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		c, err := gateway.ParseCapability(item)
		if err != nil {
			r.warnf("dropping %s entry %q: %v", src, item, err)
			continue
		}
		out = append(out, c)
	}
	return out
}

func validUpstream(v string) error {
	u, err := url.Parse(v)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("want http(s)://host[:port]")
	}
	return nil
}

func validLevel(v string) error {
	_, err := zapcore.ParseLevel(v)
	return err
}

func atLeast(n int) func(int) error {
	return func(i int) error {
		if i < n {
			return fmt.Errorf("must be >= %d", n)
		}
		return nil
	}
}

func positive(d time.Duration) error {
	if d <= 0 {
		return errors.New("must be > 0")
	}
	return nil
}

func nonNegative(d time.Duration) error {
	if d < 0 {
		return errors.New("must be >= 0")
	}
	return nil
}

func oneOf(options ...string) func(string) error {
	return func(v string) error {
		for _, o := range options {
			if v == o {
				return nil
			}
		}
		return fmt.Errorf("want one of %s", strings.Join(options, ", "))
	}
}
