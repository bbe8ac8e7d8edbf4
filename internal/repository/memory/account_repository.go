package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"identity-service/internal/models"
	"identity-service/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccountRepository keeps accounts in process memory. Every read and write
// copies the account so callers never share state with the store.
type AccountRepository struct {
	mu      sync.RWMutex
	byID    map[primitive.ObjectID]*models.Account
	byEmail map[string]primitive.ObjectID
}

var _ repository.AccountRepository = (*AccountRepository)(nil)

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:    make(map[primitive.ObjectID]*models.Account),
		byEmail: make(map[string]primitive.ObjectID),
	}
}

func (r *AccountRepository) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *AccountRepository) FindByID(_ context.Context, id string) (*models.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrAccountNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[oid]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (r *AccountRepository) Create(_ context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[account.Email]; exists {
		return repository.ErrDuplicateEmail
	}
	if account.ID.IsZero() {
		account.ID = primitive.NewObjectID()
	}
	if _, exists := r.byID[account.ID]; exists {
		return repository.ErrDuplicateEmail
	}

	r.byID[account.ID] = account.Clone()
	r.byEmail[account.Email] = account.ID
	return nil
}

func (r *AccountRepository) Save(_ context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[account.ID]
	if !ok {
		return repository.ErrAccountNotFound
	}
	if current.Email != account.Email {
		if _, taken := r.byEmail[account.Email]; taken {
			return repository.ErrDuplicateEmail
		}
		delete(r.byEmail, current.Email)
		r.byEmail[account.Email] = account.ID
	}

	account.UpdatedAt = time.Now().UTC()
	r.byID[account.ID] = account.Clone()
	return nil
}

func (r *AccountRepository) ConsumeOTP(_ context.Context, id string, code int, now time.Time) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[oid]
	if !ok || a.OTP == nil || *a.OTP != code || a.OTPExpired(now) {
		return false, nil
	}
	a.ConsumeOTP()
	a.UpdatedAt = now
	return true, nil
}

// List returns accounts ordered by creation time, newest first.
func (r *AccountRepository) List(_ context.Context, skip, limit int64) ([]*models.Account, error) {
	r.mu.RLock()
	all := make([]*models.Account, 0, len(r.byID))
	for _, a := range r.byID {
		all = append(all, a.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.Hex() > all[j].ID.Hex()
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if skip >= int64(len(all)) {
		return []*models.Account{}, nil
	}
	end := int64(len(all))
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return all[skip:end], nil
}

func (r *AccountRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.byID)), nil
}

func (r *AccountRepository) HealthCheck(_ context.Context) error {
	return nil
}

func (r *AccountRepository) Close(_ context.Context) error {
	return nil
}
