package users

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/carmarket/marketauth/internal/common"
	"github.com/carmarket/marketauth/internal/server/models"
	"github.com/redis/go-redis/v9"
)

// Redis layout:
//
//	user:seq            INCR counter for ids
//	user:{id}           hash with the user columns, times as unix millis
//	user:email:{email}  id of the user owning email
const (
	redisSeqKey = "user:seq"

	fieldID           = "id"
	fieldName         = "name"
	fieldEmail        = "email"
	fieldPasswordHash = "password_hash"
	fieldRole         = "role"
	fieldCreatedAt    = "created_at"
	fieldToken        = "refresh_token"
	fieldTokenExpiry  = "refresh_token_expiry_time"
)

type RedisRepository struct {
	client *redis.Client
}

func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func userKey(id int64) string {
	return "user:" + strconv.FormatInt(id, 10)
}

func emailKey(email string) string {
	return "user:email:" + email
}

func (r *RedisRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	id, err := r.client.Get(ctx, emailKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("redis get email: %w", err)
	}
	return r.FindByID(ctx, id)
}

func (r *RedisRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	h, err := r.client.HGetAll(ctx, userKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(h) == 0 {
		return nil, common.ErrNotFound
	}
	return decodeUser(h)
}

func (r *RedisRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	n, err := r.client.Exists(ctx, emailKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n == 1, nil
}

// Create claims the email with SETNX before writing the hash, so two
// concurrent registrations cannot both succeed.
func (r *RedisRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	id, err := r.client.Incr(ctx, redisSeqKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis incr: %w", err)
	}

	ok, err := r.client.SetNX(ctx, emailKey(user.Email), id, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return nil, common.ErrDuplicateEmail
	}

	user.ID = id
	if err := r.client.HSet(ctx, userKey(id), encodeUser(user)).Err(); err != nil {
		r.client.Del(context.WithoutCancel(ctx), emailKey(user.Email))
		return nil, fmt.Errorf("redis hset: %w", err)
	}
	return user, nil
}

func (r *RedisRepository) UpdateAuthFields(ctx context.Context, id int64, fields models.AuthFields) error {
	return r.writeAuthFields(ctx, id, fields, nil)
}

func (r *RedisRepository) SwapAuthFields(ctx context.Context, id int64, expected string, fields models.AuthFields) error {
	return r.writeAuthFields(ctx, id, fields, func(current string, ok bool) error {
		if !ok || subtle.ConstantTimeCompare([]byte(current), []byte(expected)) != 1 {
			return common.ErrVersionConflict
		}
		return nil
	})
}

// writeAuthFields runs under WATCH on the user hash. check sees the stored
// token; a concurrent write to the hash aborts EXEC and reports a conflict.
func (r *RedisRepository) writeAuthFields(ctx context.Context, id int64, fields models.AuthFields, check func(current string, ok bool) error) error {
	key := userKey(id)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("redis exists: %w", err)
		}
		if n == 0 {
			return common.ErrNotFound
		}

		if check != nil {
			current, err := tx.HGet(ctx, key, fieldToken).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return fmt.Errorf("redis hget: %w", err)
			}
			if err := check(current, err == nil); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldTokenExpiry, fields.RefreshTokenExpiryTime.UnixMilli())
			if fields.RefreshToken == nil {
				pipe.HDel(ctx, key, fieldToken)
			} else {
				pipe.HSet(ctx, key, fieldToken, *fields.RefreshToken)
			}
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		if check == nil {
			return fmt.Errorf("redis exec: %w", err)
		}
		return common.ErrVersionConflict
	}
	return err
}

func encodeUser(u *models.User) map[string]any {
	m := map[string]any{
		fieldID:           u.ID,
		fieldName:         u.Name,
		fieldEmail:        u.Email,
		fieldPasswordHash: u.PasswordHash,
		fieldRole:         u.Role.String(),
		fieldCreatedAt:    u.CreatedAt.UnixMilli(),
		fieldTokenExpiry:  u.RefreshTokenExpiryTime.UnixMilli(),
	}
	if u.RefreshToken != nil {
		m[fieldToken] = *u.RefreshToken
	}
	return m
}

func decodeUser(h map[string]string) (*models.User, error) {
	u := &models.User{
		Name:         h[fieldName],
		Email:        h[fieldEmail],
		PasswordHash: h[fieldPasswordHash],
	}

	var err error
	if u.ID, err = strconv.ParseInt(h[fieldID], 10, 64); err != nil {
		return nil, fmt.Errorf("decode user id: %w", err)
	}
	if u.Role, err = models.ParseRole(h[fieldRole]); err != nil {
		return nil, fmt.Errorf("user %d: %w", u.ID, err)
	}
	if u.CreatedAt, err = parseMillis(h[fieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	if u.RefreshTokenExpiryTime, err = parseMillis(h[fieldTokenExpiry]); err != nil {
		return nil, fmt.Errorf("decode refresh_token_expiry_time: %w", err)
	}
	if tok, ok := h[fieldToken]; ok {
		u.RefreshToken = &tok
	}
	return u, nil
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
