package factory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-service/internal/config"
	"identity-service/internal/notify"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Logging:     config.LoggingConfig{Level: "error", Format: "console"},
		Store:       config.StoreConfig{Driver: "memory"},
		Notifier:    config.NotifierConfig{Driver: "log", SendTimeout: time.Second},
		JWT: config.JWTConfig{
			Secret:          "factory-secret",
			AccessTokenExp:  "1h",
			RefreshTokenExp: "7d",
		},
		Hashing: config.HashingConfig{Algorithm: "bcrypt", BcryptCost: 4},
		OTP:     config.OTPConfig{TTL: time.Minute},
	}
}

func TestNew_MemoryStore(t *testing.T) {
	cfg := memoryConfig()
	require.NoError(t, cfg.Validate())

	f, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer f.Close(context.Background())

	assert.Nil(t, f.TLSManager())
	assert.IsType(t, &notify.LogNotifier{}, f.notifier)
	assert.NoError(t, f.HealthCheck(context.Background()))
	assert.Same(t, f.ServiceFactory(), f.ServiceFactory())

	rec := httptest.NewRecorder()
	f.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNew_LocalEncryption(t *testing.T) {
	cfg := memoryConfig()
	cfg.Encryption = config.EncryptionConfig{Enabled: true, MasterKey: "not-base64!"}

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)

	cfg.Encryption.MasterKey = ""
	f, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer f.Close(context.Background())
	assert.NotNil(t, f.encryptionManager)
}

func TestClose_Idempotent(t *testing.T) {
	f, err := New(context.Background(), memoryConfig())
	require.NoError(t, err)

	f.ServiceFactory()
	f.Close(context.Background())
	f.Close(context.Background())
}
