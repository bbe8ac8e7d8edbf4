package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "mongo", cfg.Store.Driver)
	assert.Equal(t, "smtp", cfg.Notifier.Driver)
	assert.Equal(t, 10, cfg.Hashing.BcryptCost)
	assert.Equal(t, 60*time.Second, cfg.OTP.TTL)
	assert.Equal(t, ":3000", cfg.GetServerAddress())

	access, err := cfg.JWT.AccessTTL()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, access)

	refresh, err := cfg.JWT.RefreshTTL()
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, refresh)
}

func TestParse_MissingSecretFailsFast(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Parse()
	require.ErrorIs(t, err, ErrMissingJWTSecret)
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("NOTIFIER_DRIVER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("JWT_ACCESS_TOKEN_EXP", "15m")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)

	access, err := cfg.JWT.AccessTTL()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, access)
}

func TestParse_RejectsUnknownDrivers(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "cassandra")

	_, err := Parse()
	require.Error(t, err)
}

func TestParseTTL(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"1h", time.Hour, true},
		{"7d", 7 * 24 * time.Hour, true},
		{"90m", 90 * time.Minute, true},
		{"3600", time.Hour, true},
		{"", 0, false},
		{"0", 0, false},
		{"-5m", 0, false},
		{"xd", 0, false},
		{"soon", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTTL(tc.in)
			if !tc.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMongoDatabase(t *testing.T) {
	cfg := &Config{Mongo: MongoConfig{URI: "mongodb://localhost:27017/express-server?retryWrites=true"}}
	assert.Equal(t, "express-server", cfg.MongoDatabase())

	cfg.Mongo.Database = "accounts"
	assert.Equal(t, "accounts", cfg.MongoDatabase())

	cfg = &Config{Mongo: MongoConfig{URI: "mongodb://localhost:27017"}}
	assert.Equal(t, "identity", cfg.MongoDatabase())
}

func TestParseMailer_WithoutJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_ACCESS_TOKEN_EXP", "garbage")

	cfg, err := ParseMailer()
	require.NoError(t, err)
	assert.Equal(t, "identity.email", cfg.Kafka.EmailTopic)
	assert.Equal(t, "identity-mailer", cfg.Kafka.GroupID)

	_, err = Parse()
	assert.ErrorIs(t, err, ErrMissingJWTSecret)
}

func TestValidateMailer_RequiresTopic(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	cfg, err := ParseMailer()
	require.NoError(t, err)

	cfg.Kafka.EmailTopic = ""
	assert.Error(t, cfg.ValidateMailer())
}
