package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the default YAML location; EnvFilePath is the optional
// KEY=VALUE file loaded into the environment first.
const (
	ConfigPath  = "config.yaml"
	EnvFilePath = ".config"
)

// Deployment environments.
const (
	EnvProduction  = "PRODUCTION"
	EnvStaging     = "STAGING"
	EnvDevelopment = "DEVELOPMENT"
)

// Storage backends.
const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	AppName       string `yaml:"appName"`
	Debug         bool   `yaml:"debug"`
	DeploymentEnv string `yaml:"deploymentEnv"`
	Host          string `yaml:"host"`
	Port          string `yaml:"port"`
	APIVersion    string `yaml:"apiVersion"`
	Timezone      string `yaml:"timezone"`
	Language      string `yaml:"language"`

	DatabaseURL   string `yaml:"databaseURL"`
	DBType        string `yaml:"dbType"`
	DBHost        string `yaml:"dbHost"`
	DBPort        int    `yaml:"dbPort"`
	DBUsername    string `yaml:"dbUsername"`
	DBPassword    string `yaml:"dbPassword"`
	DBDatabase    string `yaml:"dbDatabase"`
	DBCharset     string `yaml:"dbCharset"`
	DBPoolSize    int    `yaml:"dbPoolSize"`
	DBMaxOverflow int    `yaml:"dbMaxOverflow"`
	DBPoolRecycle int    `yaml:"dbPoolRecycle"`
	DBPoolTimeout int    `yaml:"dbPoolTimeout"`
	DBPoolPrePing bool   `yaml:"dbPoolPrePing"`
	DBEcho        bool   `yaml:"dbEcho"`

	UploadsDir        string   `yaml:"uploadsDir"`
	UploadExtensions  []string `yaml:"uploadExtensions"`
	AllowedExtensions []string `yaml:"allowedExtensions"`
	CleanupTempFiles  bool     `yaml:"cleanupTempFiles"`
	MaxContentLength  int64    `yaml:"maxContentLength"`
	TempDir           string   `yaml:"tempDir"`

	StorageBackend string `yaml:"storageBackend"`
	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	RedisAddr       string   `yaml:"redisAddr"`
	RedisPassword   string   `yaml:"redisPassword"`
	UploadRateLimit int      `yaml:"uploadRateLimitPerMinute"`
	TrustedProxies  []string `yaml:"trustedProxies"`

	LogLevel           string `yaml:"logLevel"`
	LogFile            string `yaml:"logFile"`
	LogFileMaxSizeMB   int    `yaml:"logFileMaxSizeMB"`
	LogFileBackupCount int    `yaml:"logFileBackupCount"`
}

// Defaults returns the configuration used when neither YAML nor env set a key.
func Defaults() FileConfig {
	return FileConfig{
		AppName:            "invoice-infer",
		DeploymentEnv:      EnvDevelopment,
		Port:               "5000",
		APIVersion:         "1.0.0",
		Timezone:           "UTC",
		Language:           "en",
		DBType:             "sqlite",
		DBHost:             "localhost",
		DBPort:             5432,
		DBUsername:         "postgres",
		DBDatabase:         "docintake.db",
		DBPoolSize:         30,
		DBMaxOverflow:      10,
		DBPoolRecycle:      3600,
		DBPoolTimeout:      30,
		UploadExtensions:   []string{"pdf"},
		AllowedExtensions:  []string{"pdf", "png"},
		CleanupTempFiles:   true,
		MaxContentLength:   50 << 20,
		StorageBackend:     StorageLocal,
		UploadRateLimit:    60,
		LogLevel:           "info",
		LogFileMaxSizeMB:   20,
		LogFileBackupCount: 5,
	}
}

// Load builds the configuration from defaults, the optional .config env
// file, the YAML file at path and finally environment variables. A missing
// YAML file is tolerated only for the default path.
func Load(path string) (FileConfig, error) {
	cfg := Defaults()
	if err := godotenv.Load(EnvFilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("read %s: %w", EnvFilePath, err)
	}
	explicit := path != ""
	if !explicit {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}
	applyEnv(&cfg)
	cfg.DeploymentEnv = strings.ToUpper(strings.TrimSpace(cfg.DeploymentEnv))
	cfg.DBType = strings.ToLower(strings.TrimSpace(cfg.DBType))
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString(&cfg.AppName, "APPLICATION_NAME")
	setBool(&cfg.Debug, "DEBUG")
	setString(&cfg.DeploymentEnv, "DEPLOYMENT_ENV")
	setString(&cfg.Host, "HOST")
	setString(&cfg.Port, "PORT")
	setString(&cfg.APIVersion, "API_VERSION")
	setString(&cfg.Timezone, "TIMEZONE")
	setString(&cfg.Language, "LANGUAGE")

	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.DBType, "DB_TYPE")
	setString(&cfg.DBHost, "DB_HOST")
	setInt(&cfg.DBPort, "DB_PORT")
	setString(&cfg.DBUsername, "DB_USERNAME")
	setString(&cfg.DBPassword, "DB_PASSWORD")
	setString(&cfg.DBDatabase, "DB_DATABASE")
	setString(&cfg.DBCharset, "DB_CHARSET")
	setInt(&cfg.DBPoolSize, "DB_POOL_SIZE")
	setInt(&cfg.DBMaxOverflow, "DB_MAX_OVERFLOW")
	setInt(&cfg.DBPoolRecycle, "DB_POOL_RECYCLE")
	setInt(&cfg.DBPoolTimeout, "DB_POOL_TIMEOUT")
	setBool(&cfg.DBPoolPrePing, "DB_POOL_PRE_PING")
	setBool(&cfg.DBEcho, "DB_ECHO")

	setString(&cfg.UploadsDir, "UPLOADS_DEFAULT_DEST")
	if v := os.Getenv("UPLOAD_EXTENSIONS"); v != "" {
		cfg.UploadExtensions = splitCSV(v)
	}
	if v := os.Getenv("ALLOWED_EXTENSIONS"); v != "" {
		cfg.AllowedExtensions = splitCSV(v)
	}
	setBool(&cfg.CleanupTempFiles, "CLEANUP_TEMP_FILES")
	if v := os.Getenv("MAX_CONTENT_LENGTH"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxContentLength = n
		}
	}
	setString(&cfg.TempDir, "TEMP_DIR")

	setString(&cfg.StorageBackend, "STORAGE_BACKEND")
	setString(&cfg.MinioEndpoint, "MINIO_ENDPOINT")
	setString(&cfg.MinioAccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.MinioSecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.MinioBucket, "MINIO_BUCKET")
	setBool(&cfg.MinioUseSSL, "MINIO_USE_SSL")

	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setInt(&cfg.UploadRateLimit, "UPLOAD_RATE_LIMIT_PER_MINUTE")
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitCSV(v)
	}

	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFile, "LOG_FILE")
	setInt(&cfg.LogFileMaxSizeMB, "LOG_FILE_MAX_SIZE")
	setInt(&cfg.LogFileBackupCount, "LOG_FILE_BACKUP_COUNT")
}

func validateConfig(cfg FileConfig) error {
	switch cfg.DeploymentEnv {
	case EnvProduction, EnvStaging, EnvDevelopment:
	default:
		return fmt.Errorf("config: deploymentEnv must be one of PRODUCTION, STAGING, DEVELOPMENT (got %q)", cfg.DeploymentEnv)
	}
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or PORT)")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", cfg.Timezone, err)
	}
	switch cfg.DBType {
	case "sqlite", "postgresql", "mysql":
	default:
		return fmt.Errorf("config: dbType must be sqlite, postgresql or mysql (got %q)", cfg.DBType)
	}
	if cfg.DBPoolSize <= 0 {
		return errors.New("config: dbPoolSize must be positive")
	}
	if cfg.DBMaxOverflow < 0 {
		return errors.New("config: dbMaxOverflow must not be negative")
	}
	if cfg.MaxContentLength <= 0 {
		return errors.New("config: maxContentLength must be positive")
	}
	if len(cfg.UploadExtensions) == 0 {
		return errors.New("config: uploadExtensions must not be empty")
	}
	switch cfg.StorageBackend {
	case StorageLocal:
		info, err := os.Stat(cfg.UploadsDir)
		if cfg.UploadsDir == "" || err != nil || !info.IsDir() {
			return fmt.Errorf("config: uploadsDir %q is not a valid directory (set in config.yaml or UPLOADS_DEFAULT_DEST)", cfg.UploadsDir)
		}
	case StorageMinio:
		if cfg.MinioEndpoint == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "" {
			return errors.New("config: minioEndpoint, minioAccessKey, minioSecretKey and minioBucket are required for the minio backend")
		}
	default:
		return fmt.Errorf("config: storageBackend must be local or minio (got %q)", cfg.StorageBackend)
	}
	if cfg.RedisAddr != "" && cfg.UploadRateLimit <= 0 {
		return errors.New("config: uploadRateLimitPerMinute must be positive when redisAddr is set")
	}
	return nil
}

// DSN returns the driver connection string. DatabaseURL wins when set.
func (c FileConfig) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	switch c.DBType {
	case "postgresql":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			pgValue(c.DBHost), c.DBPort, pgValue(c.DBUsername), pgValue(c.DBPassword), pgValue(c.DBDatabase))
		if c.DBCharset != "" {
			dsn += " client_encoding=" + pgValue(c.DBCharset)
		}
		return dsn
	case "mysql":
		charset := c.DBCharset
		if charset == "" {
			charset = "utf8mb4"
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=UTC",
			c.DBUsername, c.DBPassword, c.DBHost, c.DBPort, c.DBDatabase, url.QueryEscape(charset))
	default:
		return c.DBDatabase + "?_busy_timeout=5000"
	}
}

// pgValue quotes a keyword/value connection string value when it is empty or
// holds spaces, quotes or backslashes.
func pgValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\n'\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// PoolRecycle converts the recycle setting to a duration.
func (c FileConfig) PoolRecycle() time.Duration {
	return time.Duration(c.DBPoolRecycle) * time.Second
}

// PoolTimeout converts the pool timeout setting to a duration.
func (c FileConfig) PoolTimeout() time.Duration {
	return time.Duration(c.DBPoolTimeout) * time.Second
}

// Addr is the HTTP listen address.
func (c FileConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
