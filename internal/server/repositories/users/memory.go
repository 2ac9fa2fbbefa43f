package users

import (
	"context"
	"crypto/subtle"
	"sync"

	"github.com/carmarket/marketauth/internal/common"
	"github.com/carmarket/marketauth/internal/server/models"
)

// MemoryRepository keeps users in process memory. Records are cloned on
// the way in and out.
type MemoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]*models.User
	byEmail map[string]int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[int64]*models.User),
		byEmail: make(map[string]int64),
	}
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return u.Clone(), nil
}

func (r *MemoryRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byEmail[email]
	return ok, nil
}

func (r *MemoryRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return nil, common.ErrDuplicateEmail
	}
	r.nextID++
	user.ID = r.nextID
	r.byID[user.ID] = user.Clone()
	r.byEmail[user.Email] = user.ID
	return user, nil
}

func (r *MemoryRepository) UpdateAuthFields(ctx context.Context, id int64, fields models.AuthFields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	setAuthFields(u, fields)
	return nil
}

func (r *MemoryRepository) SwapAuthFields(ctx context.Context, id int64, expected string, fields models.AuthFields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	if u.RefreshToken == nil || subtle.ConstantTimeCompare([]byte(*u.RefreshToken), []byte(expected)) != 1 {
		return common.ErrVersionConflict
	}
	setAuthFields(u, fields)
	return nil
}

func setAuthFields(u *models.User, fields models.AuthFields) {
	u.RefreshToken = nil
	if fields.RefreshToken != nil {
		tok := *fields.RefreshToken
		u.RefreshToken = &tok
	}
	u.RefreshTokenExpiryTime = fields.RefreshTokenExpiryTime
}
