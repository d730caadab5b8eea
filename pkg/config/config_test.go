package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("STORAGE_BACKEND", "local")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, int64(15<<20), cfg.MaxUploadBytes)
	assert.Equal(t, "uploads", cfg.UploadDir)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("JWT_TTL", "forever")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_TTL")
}

func TestValidateS3NeedsBucket(t *testing.T) {
	cfg := Config{DBDriver: "mysql", StorageBackend: "s3", MaxUploadBytes: 1, JWTTTL: time.Hour}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_BUCKET")

	cfg.S3Bucket = "fotos"
	assert.NoError(t, cfg.Validate())
}

func TestDSN(t *testing.T) {
	cfg := Config{MySQLUser: "u", MySQLPass: "p", MySQLHost: "h", MySQLPort: "3306", MySQLDB: "d"}
	assert.Equal(t, "u:p@tcp(h:3306)/d?charset=utf8mb4&parseTime=True&loc=Local", cfg.DSN())
	cfg.MySQLDSN = "custom"
	assert.Equal(t, "custom", cfg.DSN())
}

func TestValidateTLSPair(t *testing.T) {
	cfg := Config{DBDriver: "sqlite", StorageBackend: "local", UploadDir: "u", MaxUploadBytes: 1, JWTTTL: time.Hour, TLSCert: "cert.pem"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TLS_CERT")

	cfg.TLSKey = "key.pem"
	assert.NoError(t, cfg.Validate())
}
