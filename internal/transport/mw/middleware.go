package mw

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"vn.io.arda/rolesync/internal/metrics"
)

// keycloakClaims is the subset of a Keycloak access token the admin API reads.
type keycloakClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string `json:"preferred_username"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

// NewKeyfunc builds a jwt.Keyfunc backed by the realm's JWKS endpoint,
// refreshed in the background. Startup does not fail if Keycloak is not up yet.
func NewKeyfunc(ctx context.Context, jwksURL string, refresh time.Duration) (jwt.Keyfunc, error) {
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Ctx:                       ctx,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refresh,
		RefreshErrorHandler: func(_ context.Context, err error) {
			log.Error().Err(err).Str("url", jwksURL).Msg("JWKS refresh failed")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("jwks storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Ctx: ctx, Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("jwks keyfunc: %w", err)
	}
	return k.Keyfunc, nil
}

// JWTAuth validates the Bearer token issued by Keycloak (RS256, signature
// checked against the realm JWKS). An empty issuer skips the issuer check.
// The validated claims are stored in echo.Context for downstream use.
func JWTAuth(kf jwt.Keyfunc, issuer string, leeway time.Duration) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims := &keycloakClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, kf, opts...)
			if err != nil || !token.Valid {
				log.Warn().Err(err).Msg("JWT verification failed")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}
			if claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token without subject")
			}

			// Store validated info in context
			c.Set("userID", claims.Subject)
			c.Set("username", claims.PreferredUsername)
			c.Set("roles", claims.RealmAccess.Roles)

			return next(c)
		}
	}
}

// RequireRole rejects requests whose token lacks the given realm role.
// Must run after JWTAuth.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			roles, _ := c.Get("roles").([]string)
			if !slices.Contains(roles, role) {
				return echo.NewHTTPError(http.StatusForbidden, "role "+role+" required")
			}
			return next(c)
		}
	}
}

// Metrics records request count and duration per route.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			path := c.Path() // route template, keeps label cardinality bounded
			method := c.Request().Method

			metrics.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
