package factory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"identity-service/internal/client"
	"identity-service/internal/config"
	"identity-service/internal/encryption"
	"identity-service/internal/handler"
	"identity-service/internal/hashing"
	"identity-service/internal/notify"
	"identity-service/internal/repository"
	"identity-service/internal/repository/memory"
	"identity-service/internal/repository/mongodb"
	"identity-service/internal/repository/redis"
	"identity-service/internal/service"
	"identity-service/internal/tls"
	"identity-service/internal/token"
	"identity-service/internal/util"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"go.uber.org/zap"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	logger     *zap.Logger
	tlsManager *tls.TLSManager

	// Clients
	redisClient   *client.RedisClient
	kafkaProducer *client.KafkaProducer

	// Managers
	hasher            *hashing.Hasher
	tokenIssuer       *token.Issuer
	encryptionManager *encryption.EncryptionManager
	notifier          notify.Notifier
	otpLock           *redis.OTPLock

	accountRepository repository.AccountRepository
	serviceFactory    *service.ServiceFactory

	closeOnce sync.Once
}

// NewFactory loads configuration and initializes all dependencies.
func NewFactory(ctx context.Context) (*Factory, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg)
}

// New initializes all dependencies from cfg.
func New(ctx context.Context, cfg *config.Config) (*Factory, error) {
	logger := util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	f := &Factory{
		config: cfg,
		logger: logger,
	}

	if cfg.Server.EnableTLS {
		m, err := tls.NewTLSManager(cfg.Server, cfg.IsProduction())
		if err != nil {
			return nil, err
		}
		f.tlsManager = m
	}

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := f.initializeClients(initCtx); err != nil {
		f.Close(ctx)
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	if err := f.initializeManagers(initCtx); err != nil {
		f.Close(ctx)
		return nil, fmt.Errorf("failed to initialize managers: %w", err)
	}

	if err := f.initializeRepository(initCtx); err != nil {
		f.Close(ctx)
		return nil, fmt.Errorf("failed to initialize account store: %w", err)
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("store", cfg.Store.Driver),
		util.String("notifier", cfg.Notifier.Driver),
		util.Bool("redis_enabled", cfg.Redis.Enabled),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("encryption_enabled", cfg.Encryption.Enabled),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
	)

	return f, nil
}

// initializeClients connects Redis and Kafka when the configuration uses them.
func (f *Factory) initializeClients(ctx context.Context) error {
	if f.config.Redis.Enabled {
		rc, err := client.NewRedisClient(ctx, f.config)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		f.redisClient = rc
		f.otpLock = redis.NewOTPLock(rc, f.config.Redis.LockTTL)
		util.Info("Redis client initialized, OTP issuance is serialized per email")
	}

	if f.config.Notifier.Driver == "kafka" {
		producer, err := client.NewKafkaProducer(f.config)
		if err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		f.kafkaProducer = producer
	}

	return nil
}

// initializeManagers builds the hasher, token issuer, notifier and the
// optional field encryption.
func (f *Factory) initializeManagers(ctx context.Context) error {
	cfg := f.config

	f.hasher = hashing.NewHasher(cfg.Hashing)

	accessTTL, err := cfg.JWT.AccessTTL()
	if err != nil {
		return err
	}
	refreshTTL, err := cfg.JWT.RefreshTTL()
	if err != nil {
		return err
	}
	f.tokenIssuer = token.NewIssuer(cfg.JWT.Secret, accessTTL, refreshTTL)

	switch cfg.Notifier.Driver {
	case "kafka":
		f.notifier = notify.NewKafkaNotifier(f.kafkaProducer.Writer, cfg.Kafka.EmailTopic)
	case "log":
		if cfg.IsProduction() {
			util.Warn("Log notifier in production: OTP emails are not delivered")
		}
		f.notifier = notify.NewLogNotifier()
	default:
		f.notifier = notify.NewSMTPNotifier(cfg.SMTP)
	}

	if cfg.Encryption.Enabled {
		em, err := f.newEncryptionManager(ctx)
		if err != nil {
			return err
		}
		f.encryptionManager = em
	}

	return nil
}

func (f *Factory) newEncryptionManager(ctx context.Context) (*encryption.EncryptionManager, error) {
	if !f.config.KMS.Enabled {
		return encryption.NewLocalManager(f.config.Encryption.MasterKey)
	}

	var opts []func(*awsconfig.LoadOptions) error
	if f.config.KMS.Region != "" {
		opts = append(opts, awsconfig.WithRegion(f.config.KMS.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	util.Info("KMS envelope encryption enabled", util.String("key_id", f.config.KMS.KeyID))
	return encryption.NewKMSManager(kms.NewFromConfig(awsCfg), f.config.KMS.KeyID), nil
}

func (f *Factory) initializeRepository(ctx context.Context) error {
	if f.config.Store.Driver == "memory" {
		if f.config.IsProduction() {
			util.Warn("In-memory account store in production: accounts are lost on restart")
		}
		f.accountRepository = memory.NewAccountRepository()
		return nil
	}

	mc, err := mongodb.NewMongoClient(ctx, f.config)
	if err != nil {
		return err
	}

	// A nil *EncryptionManager must not become a non-nil interface.
	var encryptor mongodb.FieldEncryptor
	if f.encryptionManager != nil {
		encryptor = f.encryptionManager
	}
	f.accountRepository = mongodb.NewAccountRepository(mc, f.config.Mongo.Collection, encryptor)
	return nil
}

// ==============================
// Service Factory
// ==============================

func (f *Factory) ServiceFactory() *service.ServiceFactory {
	if f.serviceFactory == nil {
		opts := service.ServiceOptions{
			Notifier: f.notifier,
			OTP: service.OTPSettings{
				TTL:         f.config.OTP.TTL,
				SendTimeout: f.config.Notifier.SendTimeout,
			},
			AllowRoleOnSignup: f.config.Auth.AllowRoleOnSignup,
		}
		if f.otpLock != nil {
			opts.Locker = f.otpLock
		}
		f.serviceFactory = service.NewServiceFactory(
			f.accountRepository,
			f.hasher,
			f.tokenIssuer,
			opts,
		)
	}
	return f.serviceFactory
}

// Router assembles the HTTP handlers over the service layer.
func (f *Factory) Router() http.Handler {
	services := f.ServiceFactory()
	authService := services.AuthService()

	return handler.NewRouter(
		handler.NewAuthHandler(authService, f.logger),
		handler.NewUserHandler(services.UserService(), authService, f.logger),
		authService,
		f,
		handler.RouterOptions{
			AllowedOrigins: f.config.Server.AllowedOrigins,
			RequireHTTPS:   f.config.Server.EnableTLS && f.config.IsProduction(),
			RequestTimeout: f.config.Server.WriteTimeout,
		},
		f.logger,
	)
}

// ==============================
// Health Checks
// ==============================

// HealthCheck fails when the account store or an enabled dependency is
// unreachable.
func (f *Factory) HealthCheck(ctx context.Context) error {
	var errs []error

	if f.accountRepository == nil {
		errs = append(errs, fmt.Errorf("account store not initialized"))
	} else if err := f.accountRepository.HealthCheck(ctx); err != nil {
		errs = append(errs, fmt.Errorf("account store: %w", err))
	}

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}

	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("kafka: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Close drains pending OTP emails and releases every client. It is safe to
// call more than once.
func (f *Factory) Close(ctx context.Context) {
	f.closeOnce.Do(func() {
		util.Info("Shutting down factory...")

		if f.serviceFactory != nil {
			f.serviceFactory.Cleanup(ctx)
			util.Info("Service factory cleaned up")
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}

		if f.accountRepository != nil {
			if err := f.accountRepository.Close(ctx); err != nil {
				util.Error("Failed to close account store", util.ErrorField(err))
			}
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		if f.encryptionManager != nil {
			f.encryptionManager.ClearCache()
		}

		util.Info("Factory shutdown completed")
		util.Sync()
	})
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) Logger() *zap.Logger {
	return f.logger
}

// TLSManager is nil when TLS is disabled.
func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}
