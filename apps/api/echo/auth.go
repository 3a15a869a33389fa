package echoapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/user"
)

const (
	contextClaimsKey   = "claims"
	contextIdentityKey = "identity"
	contextDemoKey     = "demoIdentity"
)

// DemoUsername is the account token-less requests act as in development.
// `admin seed` creates it.
const DemoUsername = "admin"

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Username     string `json:"username,omitempty"`
	Email        string `json:"email,omitempty"`
	Department   string `json:"department,omitempty"`
	Role         string `json:"role,omitempty"`
}

func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

func NewUserClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()

	oriat := now.Unix()
	if len(origIat) > 0 && origIat[0] > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    conf.AppName,
			Subject:   strconv.FormatInt(usr.ID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(conf.Server.JWTExpirationDelta)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Email:        usr.Email,
		Department:   usr.Department,
		Role:         usr.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	if conf.SecretKey == "" {
		return "", errMissingSecret
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func parseToken(conf *core.Config, tokenStr string) (*Claims, error) {
	if conf.SecretKey == "" {
		return nil, errMissingSecret
	}
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(conf.SecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, errTokenExpired
	default:
		return nil, errInvalidToken
	}
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get(echo.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type authenticator struct {
	conf   *core.Config
	usrSvc *user.Service
}

// identify verifies tokenStr and loads the active user it was issued to.
func (a authenticator) identify(ctx context.Context, tokenStr string) (*core.Identity, *Claims, error) {
	claims, err := parseToken(a.conf, tokenStr)
	if err != nil {
		return nil, nil, err
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, nil, errInvalidToken
	}
	usr, err := a.usrSvc.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, nil, errInactiveUser
		}
		return nil, nil, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return nil, nil, errInactiveUser
	}
	return usr.Identity(), claims, nil
}

// middleware rejects requests without a valid bearer token.
// In development a token-less request carrying the demo identity goes through.
func (a authenticator) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr := bearerToken(c.Request())
			if tokenStr == "" {
				if demo, ok := c.Get(contextDemoKey).(*core.Identity); ok {
					setIdentity(c, demo)
					return next(c)
				}
				return errTokenRequired
			}

			id, claims, err := a.identify(c.Request().Context(), tokenStr)
			if err != nil {
				return err
			}
			c.Set(contextClaimsKey, claims)
			setIdentity(c, id)
			return next(c)
		}
	}
}

// demoIdentity attaches the DemoUsername account to requests that carry no credentials at all.
// Without that account, or when it is inactive, such requests stay anonymous.
func (a authenticator) demoIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if bearerToken(c.Request()) != "" || c.QueryParam("token") != "" {
			return next(c)
		}
		usr, err := a.usrSvc.GetByUsernameOrEmail(c.Request().Context(), DemoUsername)
		if err != nil {
			if core.IsNotFound(err) {
				return next(c)
			}
			return errors.Wrap(err, "finding demo user")
		}
		if usr.IsActive {
			demo := usr.Identity()
			demo.Demo = true
			c.Set(contextDemoKey, demo)
		}
		return next(c)
	}
}

func setIdentity(c echo.Context, id *core.Identity) {
	c.Set(contextIdentityKey, id)
	c.SetRequest(c.Request().WithContext(core.WithIdentity(c.Request().Context(), id)))
}

func identityFrom(c echo.Context) (*core.Identity, bool) {
	if id, ok := c.Get(contextIdentityKey).(*core.Identity); ok && id != nil {
		return id, true
	}
	return core.IdentityFrom(c.Request().Context())
}

func ctxIdentity(c echo.Context) (*core.Identity, error) {
	if id, ok := identityFrom(c); ok {
		return id, nil
	}
	return nil, errUnauthorized
}

func ctxClaims(c echo.Context) (*Claims, bool) {
	claims, ok := c.Get(contextClaimsKey).(*Claims)
	return claims, ok
}

// requireRole only lets through callers having one of roles.
func requireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := ctxIdentity(c)
			if err != nil {
				return err
			}
			if !id.HasAnyRole(roles...) {
				return errHttpForbidden
			}
			return next(c)
		}
	}
}

var (
	staffOnly = requireRole(user.StaffRoles...)
	adminOnly = requireRole(user.RoleAdmin)
)

// refreshToken issues a new token for the caller as long as the original login is recent enough.
func refreshToken(c echo.Context, conf *core.Config, svc *user.Service) (string, error) {
	id, err := ctxIdentity(c)
	if err != nil {
		return "", err
	}

	var origIat int64
	if claims, ok := ctxClaims(c); ok {
		origIat = claims.OrigIssuedAt
		expTime := time.Unix(origIat, 0).Add(conf.Server.JWTRefreshExpirationDelta)
		if time.Now().After(expTime) {
			return "", errRefreshExpired
		}
	}

	usr, err := svc.GetByID(c.Request().Context(), id.ID)
	if err != nil {
		return "", errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return "", errAccountDeactivated
	}
	return GenerateToken(conf, NewUserClaims(conf, usr, origIat))
}
