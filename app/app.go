package app

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"toolsharer/borrow"
	"toolsharer/db"
	"toolsharer/jsonlog"
	"toolsharer/session"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// App 聚合各依赖
type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	RDB    *redis.Client
	Repo   *db.Repo
	Engine *borrow.Engine
	Logger *jsonlog.Logger
	Config Config

	appSess *session.AppSessionStore
}

// Config 从环境变量读取
type Config struct {
	Port        string
	DatabaseURL string
	RedisAddr   string
	RedisPwd    string
	WebOrigin   string
	CORSOrigins []string
	SessionTTL  time.Duration
	Location    *time.Location
	LogLevel    jsonlog.Level

	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	DevLoginEnabled  bool
	SeedEmails       []string
	LastSeenThrottle time.Duration
}

func (a *App) AppSessions() *session.AppSessionStore { return a.appSess }

func MustNew() *App {
	cfg, err := loadConfig()
	logger := jsonlog.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		logger.PrintFatal(err, nil)
	}

	// --- DB: Postgres ---
	dbConn, err := db.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		logger.PrintFatal(err, nil)
	}
	logger.PrintInfo("database connected", nil)

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.PrintFatal(fmt.Errorf("redis: %w", err), map[string]string{"addr": cfg.RedisAddr})
	}

	repo := db.NewRepo(dbConn)
	engine := borrow.NewEngine(repo, borrow.SystemClock{Location: cfg.Location}, logger)

	// --- Gin ---
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.CustomRecovery(recoverWith(logger)), RequestLogger(logger))
	useCORS(r, cfg)
	if cfg.RateLimitEnabled {
		r.Use(RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	return &App{
		Router: r, DB: dbConn, RDB: rdb, Repo: repo, Engine: engine, Logger: logger, Config: cfg,
		appSess: session.NewAppSessionStore(rdb, cfg.SessionTTL),
	}
}

func (a *App) Close() {
	_ = a.RDB.Close()
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func loadConfig() (Config, error) {
	get := func(k, def string) string {
		v := os.Getenv(k)
		if v == "" {
			return def
		}
		return v
	}
	csv := func(k string) []string {
		var out []string
		for _, s := range strings.Split(os.Getenv(k), ",") {
			if t := strings.TrimSpace(s); t != "" {
				out = append(out, t)
			}
		}
		return out
	}

	cfg := Config{
		Port:        get("PORT", "3001"),
		DatabaseURL: get("DATABASE_URL", ""),
		RedisAddr:   get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPwd:    os.Getenv("REDIS_PASSWORD"),
		WebOrigin:   get("WEB_ORIGIN", "http://localhost:5173"),
		CORSOrigins: csv("CORS_ORIGINS"),
		LogLevel:    jsonlog.ParseLevel(get("LOG_LEVEL", "info")),
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			get("DB_HOST", "localhost"),
			get("DB_USER", "postgres"),
			get("DB_PASSWORD", "postgres"),
			get("DB_NAME", "toolsharer"),
			get("DB_PORT", "5432"),
		)
	}

	var err error
	if cfg.SessionTTL, err = seconds(get("SESSION_TTL_SECONDS", "86400")); err != nil {
		return cfg, fmt.Errorf("SESSION_TTL_SECONDS: %w", err)
	}
	if cfg.LastSeenThrottle, err = seconds(get("LAST_SEEN_THROTTLE_SECONDS", "300")); err != nil {
		return cfg, fmt.Errorf("LAST_SEEN_THROTTLE_SECONDS: %w", err)
	}
	if cfg.Location, err = time.LoadLocation(get("APP_TIMEZONE", "UTC")); err != nil {
		return cfg, fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	if cfg.RateLimitEnabled, err = strconv.ParseBool(get("RATE_LIMIT_ENABLED", "true")); err != nil {
		return cfg, fmt.Errorf("RATE_LIMIT_ENABLED: %w", err)
	}
	if cfg.RateLimitRPS, err = strconv.ParseFloat(get("RATE_LIMIT_RPS", "5"), 64); err != nil {
		return cfg, fmt.Errorf("RATE_LIMIT_RPS: %w", err)
	}
	if cfg.RateLimitBurst, err = strconv.Atoi(get("RATE_LIMIT_BURST", "10")); err != nil {
		return cfg, fmt.Errorf("RATE_LIMIT_BURST: %w", err)
	}
	if cfg.DevLoginEnabled, err = strconv.ParseBool(get("DEV_LOGIN_ENABLED", "false")); err != nil {
		return cfg, fmt.Errorf("DEV_LOGIN_ENABLED: %w", err)
	}
	for _, e := range csv("SEED_EMAILS") {
		cfg.SeedEmails = append(cfg.SeedEmails, strings.ToLower(e))
	}
	return cfg, nil
}

func seconds(v string) (time.Duration, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return time.Duration(n) * time.Second, nil
}

// SecureCookies reports whether the frontend is served over https.
func (c Config) SecureCookies() bool {
	u, err := url.Parse(c.WebOrigin)
	return err == nil && u.Scheme == "https"
}
