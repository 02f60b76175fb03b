package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/faculty"
)

const (
	contextTokenKey   = "facultyToken"
	contextFacultyKey = "faculty"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Name   string   `json:"name,omitempty"`
	Email  string   `json:"email,omitempty"`
	IsHead bool     `json:"is_head,omitempty"`
	Roles  []string `json:"roles,omitempty"`
}

// jwtConfig is the JWT auth middleware config.
func jwtConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

func GetFacultyClaims(conf *core.Config, fac faculty.Faculty) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   fac.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:   fac.Name,
		Email:  fac.Email,
		IsHead: fac.IsHead(),
		Roles:  fac.Roles,
	}
}

// GenerateToken generates a signed JWT token string representing the faculty Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextFaculty loads the authenticated faculty member once per request.
// Deactivated members are refused even with a valid token.
func getContextFaculty(ctx echo.Context, svc *faculty.Service) (faculty.Faculty, error) {
	if fac, ok := ctx.Get(contextFacultyKey).(faculty.Faculty); ok {
		return fac, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return faculty.Faculty{}, err
	}
	fac, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if core.IsNotFound(err) {
			return faculty.Faculty{}, errUnauthorized
		}
		return faculty.Faculty{}, errors.Wrap(err, "finding faculty by ID")
	}
	if !fac.IsActive {
		return faculty.Faculty{}, errAccountDeactivated
	}
	ctx.Set(contextFacultyKey, fac)
	return fac, nil
}
