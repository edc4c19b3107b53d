package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Player is the authenticated identity carried by a session token.
type Player struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type Config struct {
	Secret     string
	CookieName string
	TTL        time.Duration
}

// Verifier signs and verifies HS256 session tokens. Tokens are issued by the
// account service; Sign exists for tooling and tests.
type Verifier struct {
	secret     []byte
	cookieName string
	ttl        time.Duration
	now        func() time.Time
}

func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "duel_token"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 14 * 24 * time.Hour
	}
	return &Verifier{
		secret:     []byte(cfg.Secret),
		cookieName: cfg.CookieName,
		ttl:        cfg.TTL,
		now:        time.Now,
	}, nil
}

func (v *Verifier) Sign(p Player) (string, time.Time, error) {
	now := v.now()
	exp := now.Add(v.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       p.ID,
		"username": p.Username,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	})
	ss, err := token.SignedString(v.secret)
	return ss, exp, err
}

func (v *Verifier) Verify(tokenStr string) (*Player, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	id, _ := claims["id"].(string)
	username, _ := claims["username"].(string)
	if id == "" {
		return nil, ErrInvalidToken
	}
	return &Player{ID: id, Username: username}, nil
}

// TokenFromRequest reads the token from the Authorization header, the
// session cookie or, for browser WebSocket upgrades, the token query param.
func (v *Verifier) TokenFromRequest(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(v.cookieName); err == nil {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

type contextKey string

var playerCtxKey = contextKey("player")

// RequireAuth rejects requests without a valid token and stores the player in
// the request context.
func (v *Verifier) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := v.Verify(v.TokenFromRequest(r))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPlayer(r.Context(), p)))
	})
}

func WithPlayer(ctx context.Context, p *Player) context.Context {
	return context.WithValue(ctx, playerCtxKey, p)
}

func PlayerFromContext(ctx context.Context) (*Player, bool) {
	p, _ := ctx.Value(playerCtxKey).(*Player)
	return p, p != nil
}
