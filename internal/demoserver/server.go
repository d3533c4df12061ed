package demoserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/samvad-hq/samvad-request/internal/logger"
)

const (
	defaultAccessTTL  = 30 * time.Second
	defaultRefreshTTL = 24 * time.Hour
	issuer            = "samvad-authdemo"
)

// Options configures the demo auth server.
type Options struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Users maps usernames to passwords accepted by /login.
	Users map[string]string
}

// Session is the token payload returned by /login and /refreshToken.
type Session struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg,omitempty"`
	Data any    `json:"data,omitempty"`
}

type refreshEntry struct {
	subject string
	expires time.Time
}

// Server is a small JWT backend with a rotating refresh token endpoint and
// protected /api* routes that reject expired access tokens with 401.
type Server struct {
	opts Options
	echo *echo.Echo
	log  logger.Logger
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]refreshEntry

	refreshes atomic.Int64
}

// New builds the server and registers its routes.
func New(opts Options, log logger.Logger) (*Server, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("demo server secret must not be empty")
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = defaultAccessTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = defaultRefreshTTL
	}
	if log == nil {
		log = logger.NopLogger{}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		opts:     opts,
		echo:     e,
		log:      log,
		now:      time.Now,
		sessions: make(map[string]refreshEntry),
	}

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = fmt.Sprint(he.Message)
		}
		s.log.WarnObj("demo request error", "demo_http_error", map[string]any{
			"status": code,
			"path":   c.Request().URL.Path,
			"error":  msg,
		})
		if !c.Response().Committed {
			_ = c.JSON(code, envelope{Code: code, Msg: msg})
		}
	}

	e.POST("/login", s.handleLogin)
	e.POST("/refreshToken", s.handleRefresh)
	e.GET("/refreshToken", s.handleRefresh)
	e.GET("/public", s.handlePublic)
	e.Any("/api*", s.handleAPI, s.requireToken)
	return s, nil
}

// Handler exposes the routes for use with net/http servers and httptest.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.log.InfoObj("demo auth server listening", "demo_server", map[string]any{
		"addr":        addr,
		"access_ttl":  s.opts.AccessTTL.String(),
		"refresh_ttl": s.opts.RefreshTTL.String(),
	})
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.echo.Listener = ln
	return s.Start(ln.Addr().String())
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Refreshes reports how many refresh tokens have been exchanged.
func (s *Server) Refreshes() int64 { return s.refreshes.Load() }

// Issue mints a session for subject whose access token lives for accessTTL.
// A non-positive accessTTL yields an already expired access token.
func (s *Server) Issue(subject string, accessTTL time.Duration) (Session, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(accessTTL)),
		ID:        uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.opts.Secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken := uuid.NewString()
	s.mu.Lock()
	s.sessions[refreshToken] = refreshEntry{subject: subject, expires: now.Add(s.opts.RefreshTTL)}
	s.mu.Unlock()

	expiresIn := int64(accessTTL / time.Second)
	if expiresIn < 0 {
		expiresIn = 0
	}
	return Session{
		Token:        token,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
	}, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid login payload")
	}
	want, ok := s.opts.Users[req.Username]
	if !ok || want != req.Password {
		return echo.NewHTTPError(http.StatusForbidden, "invalid credentials")
	}
	session, err := s.Issue(req.Username, s.opts.AccessTTL)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Code: http.StatusOK, Msg: "logged in", Data: session})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" query:"refresh_token"`
}

// handleRefresh exchanges a refresh token for a new session. Refresh tokens
// are single use.
func (s *Server) handleRefresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid refresh payload")
	}
	if req.RefreshToken == "" {
		req.RefreshToken = c.QueryParam("refresh_token")
	}

	s.mu.Lock()
	entry, ok := s.sessions[req.RefreshToken]
	delete(s.sessions, req.RefreshToken)
	s.mu.Unlock()
	if !ok || s.now().After(entry.expires) {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token invalid")
	}

	session, err := s.Issue(entry.subject, s.opts.AccessTTL)
	if err != nil {
		return err
	}
	n := s.refreshes.Add(1)
	s.log.InfoObj("demo session refreshed", "demo_refresh", map[string]any{
		"subject": entry.subject,
		"count":   n,
	})
	return c.JSON(http.StatusOK, envelope{Code: http.StatusOK, Msg: "refreshed", Data: session})
}

func (s *Server) handlePublic(c echo.Context) error {
	return c.JSON(http.StatusOK, envelope{Code: http.StatusOK, Msg: "ok", Data: map[string]string{"path": c.Request().URL.Path}})
}

func (s *Server) handleAPI(c echo.Context) error {
	return c.JSON(http.StatusOK, envelope{
		Code: http.StatusOK,
		Msg:  "ok",
		Data: map[string]string{
			"path":    c.Request().URL.Path,
			"subject": fmt.Sprint(c.Get("subject")),
		},
	})
}

// requireToken rejects requests without a valid, unexpired bearer token.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer"))
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
		}

		var claims jwt.RegisteredClaims
		_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
			return s.opts.Secret, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithTimeFunc(s.now),
		)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
		case err != nil:
			return echo.NewHTTPError(http.StatusUnauthorized, "token invalid")
		}
		c.Set("subject", claims.Subject)
		return next(c)
	}
}
