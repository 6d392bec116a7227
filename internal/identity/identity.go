// Package identity resolves bearer tokens into actors. Role and name are
// always read from the user table, so a token never carries authority the
// database does not confirm.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/zulandar/punchlist/internal/access"
	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/models"
	"gorm.io/gorm"
)

// Claims are the JWT claims issued for a user. Subject holds the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// Issue signs an HS256 token for userID valid for ttl.
func Issue(secret string, userID uint, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, nil
}

// Resolver turns a bearer token into an actor.
type Resolver interface {
	Resolve(ctx context.Context, token string) (access.Actor, error)
}

// Options configures a Verifier.
type Options struct {
	Secret    string
	CacheSize int
	CacheTTL  time.Duration
	Timeout   time.Duration
}

// Verifier validates tokens and loads the actor, caching resolved actors
// per user for a short TTL.
type Verifier struct {
	db      *gorm.DB
	secret  []byte
	timeout time.Duration
	cache   *expirable.LRU[uint, access.Actor]
}

// NewVerifier creates a Verifier backed by db.
func NewVerifier(db *gorm.DB, opts Options) *Verifier {
	size := opts.CacheSize
	if size <= 0 {
		size = 1024
	}
	return &Verifier{
		db:      db,
		secret:  []byte(opts.Secret),
		timeout: opts.Timeout,
		cache:   expirable.NewLRU[uint, access.Actor](size, nil, opts.CacheTTL),
	}
}

// Resolve validates token and returns the actor it names. Bad, expired or
// orphaned tokens yield Unauthorized; a slow or failing user store yields
// Dependency.
func (v *Verifier) Resolve(ctx context.Context, token string) (access.Actor, error) {
	if token == "" {
		return access.Actor{}, apperr.New(apperr.Unauthorized, "missing token")
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return access.Actor{}, apperr.Wrap(apperr.Unauthorized, err, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return access.Actor{}, apperr.New(apperr.Unauthorized, "invalid token")
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return access.Actor{}, apperr.New(apperr.Unauthorized, "invalid token subject")
	}

	if a, ok := v.cache.Get(uint(id)); ok {
		return a, nil
	}
	a, err := v.Lookup(ctx, uint(id))
	if err != nil {
		return access.Actor{}, err
	}
	v.cache.Add(a.ID, a)
	return a, nil
}

// Lookup loads the actor for userID straight from the user table.
func (v *Verifier) Lookup(ctx context.Context, userID uint) (access.Actor, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}
	var u models.User
	err := v.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		return access.Actor{}, apperr.New(apperr.Unauthorized, "unknown user")
	default:
		return access.Actor{}, apperr.Wrap(apperr.Dependency, err, "identity store unavailable")
	}
	if !u.Role.Valid() {
		return access.Actor{}, apperr.New(apperr.Unauthorized, "user has no valid role")
	}
	return access.Actor{ID: u.ID, Role: u.Role, FullName: u.FullName}, nil
}
