package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kasuganosora/bossarena/game/boss"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Security SecurityConfig `mapstructure:"security"`
	Arena    ArenaConfig    `mapstructure:"arena"`
	Boss     boss.Tuning    `mapstructure:"boss"`
}

type ServerConfig struct {
	Port     int      `mapstructure:"port"`
	Debug    bool     `mapstructure:"debug"`
	AdminKey string   `mapstructure:"admin_key"`
	AdminIPs []string `mapstructure:"admin_ips"` // IPs or CIDRs; empty allows all
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// AllowedOrigins lists accepted WebSocket origins. Empty allows any.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type ArenaConfig struct {
	TickMs           int           `mapstructure:"tick_ms"`
	LayoutsDir       string        `mapstructure:"layouts_dir"`
	DefaultLayout    string        `mapstructure:"default_layout"`
	MaxEncounters    int           `mapstructure:"max_encounters"`
	DefaultMaxHealth int           `mapstructure:"default_max_health"`
	ProjectileTTL    float64       `mapstructure:"projectile_ttl"`
	ProjectileRadius float64       `mapstructure:"projectile_hit_radius"`
	RecentEvents     int           `mapstructure:"recent_events"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
}

// TickInterval is the arena tick as a duration.
func (a ArenaConfig) TickInterval() time.Duration {
	if a.TickMs <= 0 {
		return 50 * time.Millisecond
	}
	return time.Duration(a.TickMs) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/arena.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("arena.tick_ms", 50)
	v.SetDefault("arena.layouts_dir", "./data/arenas")
	v.SetDefault("arena.default_layout", "open_field")
	v.SetDefault("arena.max_encounters", 64)
	v.SetDefault("arena.default_max_health", 1000)
	v.SetDefault("arena.projectile_ttl", 3.0)
	v.SetDefault("arena.projectile_hit_radius", 0.75)
	v.SetDefault("arena.recent_events", 100)
	v.SetDefault("arena.idle_timeout", "30m")
}

// decode unmarshals v over the boss defaults so a partial boss section only
// overrides the keys it names.
func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{Boss: boss.DefaultTuning()}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	w, err := Open(path)
	if err != nil {
		return nil, err
	}
	return w.Current(), nil
}

// Watcher keeps a config file loaded and re-reads it when it changes.
type Watcher struct {
	v   *viper.Viper
	mu  sync.RWMutex
	cfg *Config
}

// Open reads the config file and returns a Watcher holding it.
func Open(path string) (*Watcher, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return &Watcher{v: v, cfg: cfg}, nil
}

// Current returns the most recently loaded config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// Watch re-decodes the file on every write and passes the result to fn.
// Decode failures go to onErr and keep the previous config.
func (w *Watcher) Watch(fn func(*Config), onErr func(error)) {
	w.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(w.v)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		w.mu.Lock()
		w.cfg = cfg
		w.mu.Unlock()
		fn(cfg)
	})
	w.v.WatchConfig()
}
