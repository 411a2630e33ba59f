package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, ":5000", cfg.HTTPAddr())
	assert.Equal(t, ":50051", cfg.GRPCAddr)
	assert.Equal(t, StoreMySQL, cfg.Store)
	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, 3306, cfg.DBPort)
	assert.Equal(t, "root", cfg.DBUser)
	assert.Equal(t, "chemflo_inventory", cfg.DBName)
	assert.Equal(t, 10, cfg.DBMaxOpenConns)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("STORE", "MEMORY")
	t.Setenv("DB_PASSWORD", "p%40ss%23word")
	t.Setenv("DB_MAX_OPEN_CONNS", "25")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("STORE_TIMEOUT", "750ms")

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "p@ss#word", cfg.DBPassword)
	assert.Equal(t, 25, cfg.DBMaxOpenConns)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 750*time.Millisecond, cfg.StoreTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	testCases := map[string]string{
		"STORE":             "postgres",
		"STORE_TIMEOUT":     "0s",
		"DB_MAX_OPEN_CONNS": "0",
		"DB_PASSWORD":       "bad%zz",
	}

	for key, value := range testCases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load(New())
			assert.Error(t, err)
		})
	}
}

func TestDecodePassword(t *testing.T) {
	testCases := []struct {
		raw, want string
	}{
		{"secret", "secret"},
		{"p%23ss", "p#ss"},
		{`"quoted"`, "quoted"},
		{`'single'`, "single"},
		{`"%23hash"`, "#hash"},
		{"a+b", "a+b"},
		{"", ""},
	}

	for _, tc := range testCases {
		got, err := DecodePassword(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CHEMFLO_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CHEMFLO_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("CHEMFLO_TEST_DOTENV"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
