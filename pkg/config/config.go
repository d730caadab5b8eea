package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the API server.
type Config struct {
	Addr        string
	CORSOrigin  string
	LogLevel    string
	TLSCert     string
	TLSKey      string
	TLSClientCA string
	EmpresaNome string

	DBDriver   string // mysql | sqlite
	MySQLDSN   string
	MySQLHost  string
	MySQLPort  string
	MySQLUser  string
	MySQLPass  string
	MySQLDB    string
	SQLitePath string

	JWTSecret string
	JWTTTL    time.Duration

	StorageBackend string // s3 | local
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3PathStyle    bool
	S3AccessKey    string
	S3SecretKey    string
	UploadDir      string
	PresignTTL     time.Duration
	MaxUploadBytes int64

	CEPBaseURL string

	AdminEmail    string
	AdminPassword string
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	_ = loadDotEnv()
	cfg := Config{
		Addr:        getenv("ADDR", ":8080"),
		CORSOrigin:  getenv("CORS_ORIGIN", "*"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		TLSCert:     os.Getenv("TLS_CERT"),
		TLSKey:      os.Getenv("TLS_KEY"),
		TLSClientCA: os.Getenv("TLS_CLIENT_CA"),
		EmpresaNome: getenv("EMPRESA_NOME", "Vistorias Náuticas"),

		DBDriver:   strings.ToLower(getenv("DB_DRIVER", "mysql")),
		MySQLDSN:   os.Getenv("MYSQL_DSN"),
		MySQLHost:  getenv("MYSQL_HOST", "127.0.0.1"),
		MySQLPort:  getenv("MYSQL_PORT", "3306"),
		MySQLUser:  getenv("MYSQL_USER", "root"),
		MySQLPass:  getenv("MYSQL_PASS", ""),
		MySQLDB:    getenv("MYSQL_DB", "vistorias"),
		SQLitePath: getenv("SQLITE_PATH", "vistorias.db"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		StorageBackend: strings.ToLower(getenv("STORAGE_BACKEND", "local")),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       getenv("AWS_REGION", "us-east-1"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		UploadDir:      getenv("UPLOAD_DIR", "uploads"),

		CEPBaseURL: getenv("CEP_BASE_URL", "https://viacep.com.br/ws"),

		AdminEmail:    getenv("ADMIN_EMAIL", "admin@vistorias.local"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}

	var errs []string
	var err error
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 24*time.Hour); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.PresignTTL, err = getDuration("PRESIGN_TTL", 15*time.Minute); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.S3PathStyle, err = getBool("S3_PATH_STYLE", false); err != nil {
		errs = append(errs, err.Error())
	}
	mb, err := strconv.Atoi(getenv("MAX_UPLOAD_MB", "15"))
	if err != nil {
		errs = append(errs, "MAX_UPLOAD_MB: not a number")
	}
	cfg.MaxUploadBytes = int64(mb) << 20

	if len(errs) > 0 {
		return cfg, fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []string
	switch c.DBDriver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("DB_DRIVER: unsupported %q", c.DBDriver))
	}
	switch c.StorageBackend {
	case "local":
		if c.UploadDir == "" {
			errs = append(errs, "UPLOAD_DIR: required for local storage")
		}
	case "s3":
		if c.S3Bucket == "" {
			errs = append(errs, "S3_BUCKET: required for s3 storage")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORAGE_BACKEND: unsupported %q", c.StorageBackend))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, "MAX_UPLOAD_MB: must be positive")
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		errs = append(errs, "TLS_CERT/TLS_KEY: both or neither must be set")
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, "JWT_TTL: must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DSN returns the MySQL DSN, built from parts when MYSQL_DSN is unset.
func (c Config) DSN() string {
	if c.MySQLDSN != "" {
		return c.MySQLDSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.MySQLUser, c.MySQLPass, c.MySQLHost, c.MySQLPort, c.MySQLDB)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %v", key, err)
	}
	return d, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: %v", key, err)
	}
	return b, nil
}

func loadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}
