package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"identity-service/internal/models"
	"identity-service/internal/notify"
	"identity-service/internal/otp"
	"identity-service/internal/repository"
	"identity-service/internal/repository/redis"
	"identity-service/internal/util"
)

// IssueLocker serializes OTP issuance for one email. Acquire returns
// redis.ErrOTPLocked when another issuance holds the lock.
type IssueLocker interface {
	Acquire(ctx context.Context, email string) (release func(), err error)
}

// OTPIssuer attaches fresh one-time codes to accounts and hands the email
// to the notifier without waiting for delivery.
type OTPIssuer struct {
	repo        repository.AccountRepository
	notifier    notify.Notifier
	locker      IssueLocker
	ttl         time.Duration
	sendTimeout time.Duration
	now         func() time.Time
	generate    func() (string, int, error)

	mu       sync.Mutex
	draining bool
	pending  sync.WaitGroup
}

// NewOTPIssuer builds an issuer. locker may be nil when issuance does not
// need to be serialized across instances.
func NewOTPIssuer(repo repository.AccountRepository, notifier notify.Notifier, locker IssueLocker, ttl, sendTimeout time.Duration) *OTPIssuer {
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}
	return &OTPIssuer{
		repo:        repo,
		notifier:    notifier,
		locker:      locker,
		ttl:         ttl,
		sendTimeout: sendTimeout,
		now:         time.Now,
		generate:    otp.Generate,
	}
}

// Attach puts a new code on account in memory and returns it with its
// expiry. The caller persists the account and then calls Dispatch.
func (i *OTPIssuer) Attach(account *models.Account) (string, time.Time, error) {
	code, value, err := i.generate()
	if err != nil {
		return "", time.Time{}, err
	}
	expires := i.now().UTC().Add(i.ttl)
	account.AttachOTP(value, expires)
	return code, expires, nil
}

// Issue looks up the account for email, attaches a new code, saves it and
// dispatches the email for purpose.
func (i *OTPIssuer) Issue(ctx context.Context, email string, purpose notify.Purpose) (*models.Account, time.Time, error) {
	if i.locker != nil {
		release, err := i.locker.Acquire(ctx, email)
		if err != nil {
			if errors.Is(err, redis.ErrOTPLocked) {
				return nil, time.Time{}, ErrOTPIssueInProgress
			}
			return nil, time.Time{}, err
		}
		defer release()
	}

	account, err := i.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, time.Time{}, storeError(err)
	}

	code, expires, err := i.Attach(account)
	if err != nil {
		return nil, time.Time{}, err
	}
	if err := i.repo.Save(ctx, account); err != nil {
		return nil, time.Time{}, storeError(err)
	}

	i.Dispatch(account.Email, purpose, code)
	return account, expires, nil
}

// Dispatch sends the OTP email in the background. Failures are logged and
// never reach the caller. Once Shutdown has begun, the email is sent on the
// calling goroutine instead.
func (i *OTPIssuer) Dispatch(to string, purpose notify.Purpose, code string) {
	subject, body := notify.OTPMessage(purpose, code)

	i.mu.Lock()
	if i.draining {
		i.mu.Unlock()
		i.send(to, subject, body, purpose)
		return
	}
	i.pending.Add(1)
	i.mu.Unlock()

	go func() {
		defer i.pending.Done()
		i.send(to, subject, body, purpose)
	}()
}

func (i *OTPIssuer) send(to, subject, body string, purpose notify.Purpose) {
	ctx, cancel := context.WithTimeout(context.Background(), i.sendTimeout)
	defer cancel()

	if err := i.notifier.Send(ctx, to, subject, body); err != nil {
		util.Error("Failed to deliver OTP email",
			zap.String("purpose", string(purpose)),
			zap.Error(err))
		return
	}
	util.Debug("OTP email handed off", zap.String("purpose", string(purpose)))
}

// Wait blocks until in-flight deliveries finish or ctx is done. It must not
// race with Dispatch; use Shutdown while requests may still be running.
func (i *OTPIssuer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		i.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops background dispatch and waits for in-flight deliveries.
func (i *OTPIssuer) Shutdown(ctx context.Context) error {
	i.mu.Lock()
	i.draining = true
	i.mu.Unlock()
	return i.Wait(ctx)
}
