package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Timetable TimetableConfig
	Jobs      JobsConfig
	Cache     CacheConfig
	Exports   ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig configures operator tokens. OperatorKeyHash is the bcrypt hash
// of the shared operator key exchanged for a token.
type JWTConfig struct {
	Secret          string
	Expiration      time.Duration
	OperatorKeyHash string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TimetableConfig carries the caps and budgets handed to the engine.
type TimetableConfig struct {
	Days                         []string
	Hours                        []int
	MaxDailyHoursTeacher         int
	MaxDailyHoursTeacherForClass int
	MaxDailyHoursClass           int
	ExtendedDailyHoursClass      int
	ExtendedDays                 []string
	LastHourAllowed              map[string][]string
	MorningLastHour              int
	MaxTryouts                   int
	ResolverMaxIterations        int
	MaxHolesPerDay               int
	Attempts                     int
	AttemptWorkers               int
	Seed                         int64
}

// JobsConfig configures the asynchronous generation queue.
type JobsConfig struct {
	Enabled           bool
	WorkerConcurrency int
	WorkerRetries     int
	RetryDelay        time.Duration
	ResultTTL         time.Duration
	SyncMaxHours      int
}

// CacheConfig toggles caching of finished results in Redis.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// ExportsConfig controls where rendered timetables are stored and how long
// download links stay valid.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupSchedule string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:          v.GetString("JWT_SECRET"),
		Expiration:      parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
		OperatorKeyHash: v.GetString("JWT_OPERATOR_KEY_HASH"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	hours, err := parseInts(v.GetString("TIMETABLE_HOURS"))
	if err != nil {
		return nil, fmt.Errorf("TIMETABLE_HOURS: %w", err)
	}
	allowList, err := ParseAllowList(v.GetString("TIMETABLE_LAST_HOUR_ALLOWED"))
	if err != nil {
		return nil, fmt.Errorf("TIMETABLE_LAST_HOUR_ALLOWED: %w", err)
	}
	cfg.Timetable = TimetableConfig{
		Days:                         splitAndTrim(v.GetString("TIMETABLE_DAYS")),
		Hours:                        hours,
		MaxDailyHoursTeacher:         v.GetInt("TIMETABLE_MAX_DAILY_HOURS_TEACHER"),
		MaxDailyHoursTeacherForClass: v.GetInt("TIMETABLE_MAX_DAILY_HOURS_TEACHER_CLASS"),
		MaxDailyHoursClass:           v.GetInt("TIMETABLE_MAX_DAILY_HOURS_CLASS"),
		ExtendedDailyHoursClass:      v.GetInt("TIMETABLE_EXTENDED_DAILY_HOURS_CLASS"),
		ExtendedDays:                 splitAndTrim(v.GetString("TIMETABLE_EXTENDED_DAYS")),
		LastHourAllowed:              allowList,
		MorningLastHour:              v.GetInt("TIMETABLE_MORNING_LAST_HOUR"),
		MaxTryouts:                   v.GetInt("TIMETABLE_MAX_TRYOUTS"),
		ResolverMaxIterations:        v.GetInt("TIMETABLE_RESOLVER_MAX_ITERATIONS"),
		MaxHolesPerDay:               v.GetInt("TIMETABLE_MAX_HOLES_PER_DAY"),
		Attempts:                     v.GetInt("TIMETABLE_ATTEMPTS"),
		AttemptWorkers:               v.GetInt("TIMETABLE_ATTEMPT_WORKERS"),
		Seed:                         v.GetInt64("TIMETABLE_SEED"),
	}

	cfg.Jobs = JobsConfig{
		Enabled:           v.GetBool("ENABLE_JOBS"),
		WorkerConcurrency: v.GetInt("JOBS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("JOBS_WORKER_RETRIES"),
		RetryDelay:        parseDuration(v.GetString("JOBS_RETRY_DELAY"), 2*time.Second),
		ResultTTL:         parseDuration(v.GetString("JOBS_RESULT_TTL"), 7*24*time.Hour),
		SyncMaxHours:      v.GetInt("JOBS_SYNC_MAX_HOURS"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), time.Hour),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupSchedule: v.GetString("EXPORTS_CLEANUP_SCHEDULE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "oraccio")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("JWT_OPERATOR_KEY_HASH", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TIMETABLE_DAYS", "LUN,MAR,MER,GIO,VEN")
	v.SetDefault("TIMETABLE_HOURS", "8,9,10,11,12,13,14")
	v.SetDefault("TIMETABLE_MAX_DAILY_HOURS_TEACHER", 5)
	v.SetDefault("TIMETABLE_MAX_DAILY_HOURS_TEACHER_CLASS", 2)
	v.SetDefault("TIMETABLE_MAX_DAILY_HOURS_CLASS", 6)
	v.SetDefault("TIMETABLE_EXTENDED_DAILY_HOURS_CLASS", 7)
	v.SetDefault("TIMETABLE_EXTENDED_DAYS", "MAR,GIO")
	v.SetDefault("TIMETABLE_LAST_HOUR_ALLOWED", "LUN:3E|4E|5E|1L|1I|2L|2I|3L;MER:1L|1I|2L|2I|3L;VEN:3L")
	v.SetDefault("TIMETABLE_MORNING_LAST_HOUR", 11)
	v.SetDefault("TIMETABLE_MAX_TRYOUTS", 10)
	v.SetDefault("TIMETABLE_RESOLVER_MAX_ITERATIONS", 100)
	v.SetDefault("TIMETABLE_MAX_HOLES_PER_DAY", 2)
	v.SetDefault("TIMETABLE_ATTEMPTS", 4)
	v.SetDefault("TIMETABLE_ATTEMPT_WORKERS", 2)
	v.SetDefault("TIMETABLE_SEED", 1)

	v.SetDefault("ENABLE_JOBS", true)
	v.SetDefault("JOBS_WORKER_CONCURRENCY", 1)
	v.SetDefault("JOBS_WORKER_RETRIES", 2)
	v.SetDefault("JOBS_RETRY_DELAY", "2s")
	v.SetDefault("JOBS_RESULT_TTL", "168h")
	v.SetDefault("JOBS_SYNC_MAX_HOURS", 400)

	v.SetDefault("ENABLE_CACHE", true)
	v.SetDefault("CACHE_TTL", "1h")

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_SCHEDULE", "@every 1h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func parseInts(raw string) ([]int, error) {
	parts := splitAndTrim(raw)
	result := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, nil
}

// ParseAllowList decodes "DAY:C1|C2;DAY:C3" into a day to classes map. An
// empty string yields an empty map, meaning no day is restricted.
func ParseAllowList(raw string) (map[string][]string, error) {
	result := make(map[string][]string)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		day, classes, ok := strings.Cut(entry, ":")
		day = strings.TrimSpace(day)
		if !ok || day == "" {
			return nil, fmt.Errorf("malformed entry %q", entry)
		}
		list := make([]string, 0)
		for _, class := range strings.Split(classes, "|") {
			if class = strings.TrimSpace(class); class != "" {
				list = append(list, class)
			}
		}
		result[day] = list
	}
	return result, nil
}
