package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port           string
		Host           string
		LogLevel       string
		AllowedOrigins []string
		GRPCHealthPort string
	}
	RateLimit struct {
		DrawPerWindow int
		Window        time.Duration
		ConnPerSec    float64
		ConnBurst     int
	}
	History struct {
		Backend     string
		SQLitePath  string
		QueueSize   int
		Workers     int
		OpTimeout   time.Duration
		ReadTimeout time.Duration
		MaxStrokes  int
	}
	Redis struct {
		URL         string
		TLSInsecure bool
	}
	WS struct {
		PingInterval    time.Duration
		PingTimeout     time.Duration
		SendBuffer      int
		MaxMessageBytes int64
	}
	MDNS struct {
		Enabled  bool
		Instance string
	}
}

// Debug reports whether per-event debug logging is on.
func (c Config) Debug() bool { return strings.EqualFold(c.Server.LogLevel, "debug") }

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.allowed_origins", "*")
	v.SetDefault("server.grpc_health_port", "")

	v.SetDefault("ratelimit.draw_per_sec", 100)
	v.SetDefault("ratelimit.window_ms", 1000)
	v.SetDefault("ratelimit.conn_per_sec", 5)
	v.SetDefault("ratelimit.conn_burst", 20)

	v.SetDefault("history.backend", "redis")
	v.SetDefault("history.sqlite_path", "sketchsync.db")
	v.SetDefault("history.queue_size", 4096)
	v.SetDefault("history.workers", 8)
	v.SetDefault("history.op_timeout_ms", 2000)
	v.SetDefault("history.read_timeout_ms", 3000)
	v.SetDefault("history.max_strokes", 0)

	v.SetDefault("redis.url", "redis://localhost:6379")

	v.SetDefault("ws.ping_interval_s", 25)
	v.SetDefault("ws.ping_timeout_s", 60)
	v.SetDefault("ws.send_buffer", 256)
	v.SetDefault("ws.max_message_bytes", 1<<20)

	v.SetDefault("mdns.enabled", false)
	v.SetDefault("mdns.instance", "sketchsync")

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.host", "HOSTNAME")
	v.BindEnv("server.log_level", "LOG_LEVEL")
	v.BindEnv("server.allowed_origins", "ALLOWED_ORIGINS")
	v.BindEnv("server.grpc_health_port", "HEALTH_GRPC_PORT")

	v.BindEnv("ratelimit.draw_per_sec", "RATE_LIMIT_DRAW_PER_SEC")
	v.BindEnv("ratelimit.window_ms", "RATE_LIMIT_WINDOW_MS")
	v.BindEnv("ratelimit.conn_per_sec", "CONN_RATE_PER_SEC")
	v.BindEnv("ratelimit.conn_burst", "CONN_RATE_BURST")

	v.BindEnv("history.backend", "HISTORY_BACKEND")
	v.BindEnv("history.sqlite_path", "SQLITE_PATH")
	v.BindEnv("history.queue_size", "HISTORY_QUEUE_SIZE")
	v.BindEnv("history.workers", "HISTORY_WORKERS")
	v.BindEnv("history.op_timeout_ms", "HISTORY_OP_TIMEOUT_MS")
	v.BindEnv("history.read_timeout_ms", "HISTORY_READ_TIMEOUT_MS")
	v.BindEnv("history.max_strokes", "HISTORY_MAX_STROKES")

	v.BindEnv("redis.url", "REDIS_URL")
	v.BindEnv("redis.tls_insecure", "REDIS_TLS_INSECURE")

	v.BindEnv("ws.ping_interval_s", "WS_PING_INTERVAL_S")
	v.BindEnv("ws.ping_timeout_s", "WS_PING_TIMEOUT_S")
	v.BindEnv("ws.send_buffer", "WS_SEND_BUFFER")
	v.BindEnv("ws.max_message_bytes", "WS_MAX_MESSAGE_BYTES")

	v.BindEnv("mdns.enabled", "MDNS_ENABLED")
	v.BindEnv("mdns.instance", "MDNS_INSTANCE")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.Host = v.GetString("server.host")
	c.Server.LogLevel = v.GetString("server.log_level")
	c.Server.AllowedOrigins = splitList(v.GetString("server.allowed_origins"))
	c.Server.GRPCHealthPort = toString(v.Get("server.grpc_health_port"))

	c.RateLimit.DrawPerWindow = v.GetInt("ratelimit.draw_per_sec")
	c.RateLimit.Window = millis(v.GetInt("ratelimit.window_ms"))
	c.RateLimit.ConnPerSec = v.GetFloat64("ratelimit.conn_per_sec")
	c.RateLimit.ConnBurst = v.GetInt("ratelimit.conn_burst")

	c.History.Backend = strings.ToLower(v.GetString("history.backend"))
	c.History.SQLitePath = v.GetString("history.sqlite_path")
	c.History.QueueSize = v.GetInt("history.queue_size")
	c.History.Workers = v.GetInt("history.workers")
	c.History.OpTimeout = millis(v.GetInt("history.op_timeout_ms"))
	c.History.ReadTimeout = millis(v.GetInt("history.read_timeout_ms"))
	c.History.MaxStrokes = v.GetInt("history.max_strokes")

	c.Redis.URL = v.GetString("redis.url")
	c.Redis.TLSInsecure = v.GetBool("redis.tls_insecure")
	// Upstash only serves TLS and historically needed relaxed verification.
	if strings.Contains(c.Redis.URL, "upstash.io") && !v.IsSet("redis.tls_insecure") {
		c.Redis.TLSInsecure = true
	}

	c.WS.PingInterval = time.Duration(v.GetInt("ws.ping_interval_s")) * time.Second
	c.WS.PingTimeout = time.Duration(v.GetInt("ws.ping_timeout_s")) * time.Second
	c.WS.SendBuffer = v.GetInt("ws.send_buffer")
	c.WS.MaxMessageBytes = v.GetInt64("ws.max_message_bytes")

	c.MDNS.Enabled = v.GetBool("mdns.enabled")
	c.MDNS.Instance = v.GetString("mdns.instance")

	log.Printf("config loaded: port=%s backend=%s draw_limit=%d/%s", c.Server.Port, c.History.Backend, c.RateLimit.DrawPerWindow, c.RateLimit.Window)
	return c
}

func toString(v any) string { return fmt.Sprint(v) }

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
