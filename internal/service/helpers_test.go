package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"identity-service/internal/config"
	"identity-service/internal/hashing"
	"identity-service/internal/models"
	"identity-service/internal/repository/memory"
	"identity-service/internal/token"
)

const testPassword = "Abc12345!"

type sentEmail struct {
	to, subject, body string
}

type capturingNotifier struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (n *capturingNotifier) Send(_ context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentEmail{to, subject, body})
	return n.err
}

func (n *capturingNotifier) last(t *testing.T) sentEmail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent, "no email sent")
	return n.sent[len(n.sent)-1]
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

type testEnv struct {
	repo     *memory.AccountRepository
	notifier *capturingNotifier
	factory  *ServiceFactory
	auth     *AuthService
	users    *UserService
	tokens   *token.Issuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := memory.NewAccountRepository()
	notifier := &capturingNotifier{}
	hasher := hashing.NewHasher(config.HashingConfig{Algorithm: "bcrypt", BcryptCost: bcrypt.MinCost})
	tokens := token.NewIssuer("test-secret", time.Hour, 7*24*time.Hour)

	factory := NewServiceFactory(repo, hasher, tokens, ServiceOptions{
		Notifier: notifier,
		OTP:      OTPSettings{TTL: 60 * time.Second, SendTimeout: time.Second},
	})
	return &testEnv{
		repo:     repo,
		notifier: notifier,
		factory:  factory,
		auth:     factory.AuthService(),
		users:    factory.UserService(),
		tokens:   tokens,
	}
}

// code waits for pending deliveries and returns the code from the latest email.
func (e *testEnv) code(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.factory.OTPIssuer().Wait(ctx))
	code := codePattern.FindString(e.notifier.last(t).body)
	require.NotEmpty(t, code)
	return code
}

func (e *testEnv) account(t *testing.T, email string) *models.Account {
	t.Helper()
	a, err := e.repo.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	return a
}

func registerInput(email string) RegisterInput {
	return RegisterInput{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Email:       email,
		Phone:       "5550100",
		PhoneCode:   "+1",
		CountryCode: "US",
		Password:    testPassword,
	}
}

// register creates and verifies an account, returning its id.
func (e *testEnv) registerVerified(t *testing.T, email string) string {
	t.Helper()
	res, err := e.auth.Register(context.Background(), registerInput(email))
	require.NoError(t, err)
	v := e.auth.VerifyOTP(context.Background(), email, e.code(t))
	require.True(t, v.Success, v.Message)
	return res.Account.IDHex()
}

func wrongCode(code string) string {
	if code == "000000" {
		return "000001"
	}
	return "000000"
}

func assertOTPFieldsPaired(t *testing.T, a *models.Account) {
	t.Helper()
	require.Equal(t, a.OTP == nil, a.OTPExpires == nil, "otp and otpExpires must be both set or both null")
}
