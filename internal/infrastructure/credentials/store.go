// Package credentials holds the bearer token attached to remote cart calls and derives
// the current Identity from its claims.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront-cart/internal/domain"
	"storefront-cart/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

type Store struct {
	mu      sync.Mutex
	records domain.RecordStore
	key     string
	secret  []byte // optional; claims are only decoded when empty
	now     func() time.Time
}

type Option func(*Store)

// WithSecret verifies HMAC signatures instead of just decoding claims.
func WithSecret(secret string) Option {
	return func(s *Store) {
		if secret != "" {
			s.secret = []byte(secret)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(records domain.RecordStore, key string, opts ...Option) *Store {
	s := &Store{records: records, key: key, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

type claims struct {
	Sub   string
	Email string
	Exp   time.Time
}

func (s *Store) parse(tokenString string) (claims, error) {
	mc := jwt.MapClaims{}
	var err error
	if len(s.secret) > 0 {
		parser := jwt.NewParser(jwt.WithTimeFunc(s.now))
		_, err = parser.ParseWithClaims(tokenString, mc, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		})
	} else {
		_, _, err = jwt.NewParser().ParseUnverified(tokenString, mc)
	}
	if err != nil {
		return claims{}, err
	}

	c := claims{}
	c.Sub, _ = mc["sub"].(string)
	c.Email, _ = mc["email"].(string)
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.Exp = exp.Time
	}
	if c.Sub == "" {
		return claims{}, errors.New("token has no subject")
	}
	if !c.Exp.IsZero() && !s.now().Before(c.Exp) {
		return claims{}, jwt.ErrTokenExpired
	}
	return c, nil
}

func (s *Store) session(ctx context.Context) (domain.Session, bool) {
	raw, err := s.records.Load(ctx, s.key)
	if err != nil {
		return domain.Session{}, false
	}
	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil || sess.AccessToken == "" {
		return domain.Session{}, false
	}
	return sess, true
}

// Current returns the identity carried by the stored token. Missing, undecodable or
// expired tokens are anonymous.
func (s *Store) Current(ctx context.Context) domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.session(ctx)
	if !ok {
		return domain.Anonymous
	}
	c, err := s.parse(sess.AccessToken)
	if err != nil {
		logger.WithContext(ctx).Debug().Err(err).Msg("Stored credential not usable")
		return domain.Anonymous
	}
	return domain.Identity{UserID: c.Sub, Email: c.Email}
}

// Token returns the raw bearer token, if one is stored.
func (s *Store) Token(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.session(ctx)
	return sess.AccessToken, ok
}

// Save validates and persists accessToken, returning the identity it carries.
func (s *Store) Save(ctx context.Context, accessToken string) (domain.Identity, error) {
	c, err := s.parse(accessToken)
	if err != nil {
		return domain.Anonymous, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	raw, err := json.Marshal(domain.Session{AccessToken: accessToken, ExpiresAt: c.Exp})
	if err != nil {
		return domain.Anonymous, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.records.Save(ctx, s.key, raw); err != nil {
		return domain.Anonymous, fmt.Errorf("save credentials: %w", err)
	}
	return domain.Identity{UserID: c.Sub, Email: c.Email}, nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records.Delete(ctx, s.key)
}
