// Package fakeapi is a small token-protected HTTP API for exercising the
// operator against a real server. Tokens are HS256 JWTs minted by the server;
// individual paths can be told to fail a number of times before answering.
package fakeapi

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	// RefreshPath issues a new token for the presented one, expired or not
	RefreshPath = "/auth/refresh"
	// UserPath answers GET /users/:id for a valid token
	UserPath = "/users/:id"
	// PublicPath needs no token
	PublicPath = "/health"

	// DefaultTokenTTL is the lifetime of tokens minted by the refresh route
	DefaultTokenTTL = time.Minute
)

var errBearerMissing = errors.New("bearer token missing")

// Claims carried by every minted token.
type Claims struct {
	jwt.RegisteredClaims
	Generation int64 `json:"gen"`
}

// Server is the fake API.
type Server struct {
	echo   *echo.Echo
	secret []byte
	ttl    time.Duration

	mu       sync.Mutex
	failures map[string][]int
	hits     map[string]int

	generation atomic.Int64
	refreshes  atomic.Int32
}

// New creates a server that signs tokens with secret.
func New(secret []byte) *Server {
	s := &Server{
		echo:     echo.New(),
		secret:   secret,
		ttl:      DefaultTokenTTL,
		failures: make(map[string][]int),
		hits:     make(map[string]int),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(s.countAndFail)

	s.echo.POST(RefreshPath, s.refresh)
	s.echo.GET(UserPath, s.user)
	s.echo.GET(PublicPath, func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	return s
}

// Handler exposes the API for httptest or http.Server.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Mint signs a token for subject expiring after ttl. A negative ttl yields an
// already expired token.
func (s *Server) Mint(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Generation: s.generation.Add(1),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// FailNext makes the next len(statuses) requests to path answer with the
// given statuses, in order.
func (s *Server) FailNext(path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], statuses...)
}

// Hits returns how many requests reached path, failed ones included.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// Refreshes returns how many tokens the refresh route issued.
func (s *Server) Refreshes() int {
	return int(s.refreshes.Load())
}

func (s *Server) countAndFail(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path

		s.mu.Lock()
		s.hits[path]++
		var status int
		if queued := s.failures[path]; len(queued) > 0 {
			status = queued[0]
			s.failures[path] = queued[1:]
		}
		s.mu.Unlock()

		if status != 0 {
			return c.JSON(status, map[string]string{"error": http.StatusText(status)})
		}
		return next(c)
	}
}

func (s *Server) refresh(c echo.Context) error {
	// the presented token only needs a valid signature; expiry is the reason
	// for refreshing
	claims, err := s.parse(c, jwt.WithoutClaimsValidation())
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}

	token, err := s.Mint(claims.Subject, s.ttl)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	s.refreshes.Add(1)
	return c.JSON(http.StatusOK, map[string]any{
		"token":      token,
		"expires_in": int(s.ttl.Seconds()),
	})
}

func (s *Server) user(c echo.Context) error {
	claims, err := s.parse(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"id":         c.Param("id"),
		"subject":    claims.Subject,
		"generation": claims.Generation,
	})
}

func (s *Server) parse(c echo.Context, opts ...jwt.ParserOption) (*Claims, error) {
	raw, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
	if !ok || raw == "" {
		return nil, errBearerMissing
	}

	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
