// internal/config/loader.go
//
// Configuration loader and hot-reloader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from four layers (highest
precedence last):

  1. Optional `.env` file at `<root>/conf/.env`.
  2. `conf/global.yaml`.
  3. Environment variables prefixed `SOUNDHOUSE_`, where `__` maps to “.”
     (e.g., `SOUNDHOUSE_HTTP__LISTEN_ADDR → http.listen_addr`).
  4. Legacy variable names the site was first deployed with
     (`TURNSTILE_SECRET_KEY`, `DISCORD_WEBHOOK_URL`, …).

Values of the form `vault:<mount>/<path>#<key>` are then swapped for the
secret they name.  After merging, the tree is unmarshalled into typed
structs, validated, enriched with the runtime root path, and cached in an
`atomic.Pointer` for lock-free reads.  `Reload()` calls `Load()` again and
swaps the pointer.

Instrumentation
---------------
  • DEBUG spans: root discovery, YAML read, env overlay.
  • ERROR spans: YAML parse, env overlay, vault lookups, unmarshal, and
    validation failures.
  • INFO span: final “config loaded” with key highlights.
  • Logs use the global *sugared* logger (`zap.S()`) so early boot issues
    surface even before the file logger is installed.
*/
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/yanizio/soundhouse/internal/vault"
)

const (
	envPrefix   = "SOUNDHOUSE_"
	vaultPrefix = "vault:"
)

var current atomic.Pointer[Config]

// legacyEnv maps the variable names of the first deployment onto config keys.
var legacyEnv = map[string]string{
	"TURNSTILE_SECRET_KEY":           "contact.turnstile_secret",
	"NEXT_PUBLIC_TURNSTILE_SITE_KEY": "contact.turnstile_site_key",
	"DISCORD_WEBHOOK_URL":            "contact.webhook_url",
	"NEXT_PUBLIC_SITE_URL":           "site.base_url",
}

// defaults fill keys that neither YAML nor env provided.
var defaults = map[string]any{
	"http.listen_addr":              ":8080",
	"http.read_timeout":             "10s",
	"http.write_timeout":            "30s",
	"http.idle_timeout":             "60s",
	"site.title":                    "Soundhouse",
	"site.base_url":                 "https://example.com",
	"site.theme":                    "default",
	"site.themes_dir":               "themes",
	"site.data_dir":                 "data",
	"site.public_dir":               "public",
	"contact.turnstile_verify_url":  "https://challenges.cloudflare.com/turnstile/v0/siteverify",
	"contact.outbound_timeout":      "10s",
	"contact.rate_limit.per_minute": 10,
	"contact.rate_limit.burst":      5,
	"log.level":                     "info",
	"log.dir":                       "logs",
}

// SecretResolver turns a `vault:` reference into its plain value.
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// Options tweak a single Load call.  The zero value is what production uses.
type Options struct {
	Root    string          // overrides root discovery when set
	Secrets SecretResolver  // nil means the shared Vault client
	Context context.Context // bounds the shared Vault client's renewal loop; nil means Background
}

// The Vault client is dialled once per process; Reload reuses it so only
// one token-renewal loop ever runs.
var (
	vaultMu  sync.Mutex
	vaultCli SecretResolver

	dialVault = func(ctx context.Context) (SecretResolver, error) {
		cli, err := vault.New(ctx, zap.S())
		if err != nil {
			return nil, err
		}
		return cli, nil
	}
)

func sharedVault(ctx context.Context) (SecretResolver, error) {
	vaultMu.Lock()
	defer vaultMu.Unlock()
	if vaultCli != nil {
		return vaultCli, nil
	}
	cli, err := dialVault(ctx)
	if err != nil {
		return nil, err
	}
	vaultCli = cli
	return cli, nil
}

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves SOUNDHOUSE_ROOT or climbs directories until
// conf/global.yaml is found.  Falls back to executable heuristic for the
// production layout.
func rootDir() string {
	if r := os.Getenv(envPrefix + "ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, env overrides, resolves secrets, validates, and
// caches Config.
func Load() (*Config, error) { return LoadWith(Options{}) }

// LoadWith is Load with explicit options; tests use it to pin the root and
// stub the secret store.
func LoadWith(opts Options) (*Config, error) {
	root := opts.Root
	if root == "" {
		root = rootDir()
	}
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}
	zap.S().Debugw("config yaml loaded", "file", yamlPath)

	// Env overrides: SOUNDHOUSE_HTTP__LISTEN_ADDR → http.listen_addr
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		if s == "ROOT" {
			return ""
		}
		return strings.ToLower(strings.ReplaceAll(s, "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	// Legacy names win so an old deploy keeps working unchanged.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	}), nil); err != nil {
		zap.S().Errorw("config legacy env overlay failed", "err", err)
		return nil, err
	}

	for key, val := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, val); err != nil {
				return nil, err
			}
		}
	}

	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if err := resolveSecrets(ctx, k, opts.Secrets); err != nil {
		zap.S().Errorw("config secret resolution failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	cfg.Paths.Root = root
	cfg.Site.ThemesDir = abs(root, cfg.Site.ThemesDir)
	cfg.Site.DataDir = abs(root, cfg.Site.DataDir)
	cfg.Site.PublicDir = abs(root, cfg.Site.PublicDir)
	cfg.Log.Dir = abs(root, cfg.Log.Dir)
	if cfg.GeoIP.DBPath != "" {
		cfg.GeoIP.DBPath = abs(root, cfg.GeoIP.DBPath)
	}

	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"force_https", cfg.HTTP.ForceHTTPS,
		"root", cfg.Paths.Root,
		"turnstile", cfg.Contact.TurnstileSecret != "",
		"webhook", cfg.Contact.WebhookURL != "",
		"redis", cfg.Redis.Addr != "",
	)
	return &cfg, nil
}

// resolveSecrets replaces every `vault:` string value in k.  The Vault
// client is only dialled when at least one reference exists.
func resolveSecrets(parent context.Context, k *koanf.Koanf, sr SecretResolver) error {
	ctx, cancel := context.WithTimeout(parent, 10*time.Second)
	defer cancel()

	for _, key := range k.Keys() {
		ref, ok := k.Get(key).(string)
		if !ok || !strings.HasPrefix(ref, vaultPrefix) {
			continue
		}
		if sr == nil {
			cli, err := sharedVault(parent)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			sr = cli
		}
		val, err := sr.Resolve(ctx, strings.TrimPrefix(ref, vaultPrefix))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if err := k.Set(key, val); err != nil {
			return err
		}
		zap.S().Debugw("config secret resolved", "key", key)
	}
	return nil
}

func abs(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func Get() *Config  { return current.Load() }
func Reload() error { _, err := Load(); return err }
