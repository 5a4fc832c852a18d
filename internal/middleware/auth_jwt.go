package middleware

import (
	"errors"
	"net/http"
	"strings"

	"storefront/internal/config"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey    = "user_id"    // string(uuid)
	CtxUserEmailKey = "user_email" // string
)

var errNoToken = errors.New("no bearer token")

// bearerAuth用のJWT検証ミドルウェア。
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, email, err := authenticate(c, cfg.JWTSecret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//contextへ保存
			c.Set(CtxUserIDKey, userID)
			c.Set(CtxUserEmailKey, email)
			return next(c)
		}
	}
}

// ゲストも通すJWT検証（checkoutやcart用）。
// ヘッダが無ければそのまま通し、あるのに不正なら401。
func OptionalAuthJWT(cfg config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, email, err := authenticate(c, cfg.JWTSecret)
			if errors.Is(err, errNoToken) {
				return next(c)
			}
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			c.Set(CtxUserIDKey, userID)
			c.Set(CtxUserEmailKey, email)
			return next(c)
		}
	}
}

// Authorizationヘッダを検証してsub(uuid)とemailを返す
func authenticate(c echo.Context, secret string) (string, string, error) {
	//Authorizationヘッダを取得
	authz := c.Request().Header.Get("Authorization")
	if authz == "" {
		return "", "", errNoToken
	}

	//Bearer形式か確認してtokenを抜く
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", "", errors.New("invalid authorization header")
	}
	rawToken := strings.TrimSpace(parts[1])
	if rawToken == "" {
		return "", "", errors.New("empty token")
	}

	//JWTをパースして検証する
	token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || token == nil || !token.Valid {
		return "", "", errors.New("invalid token")
	}

	//claimsを取り出す
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid claims")
	}

	//user_idを取り出す（認証基盤のuuid）
	userID, err := parseUserID(claims["sub"])
	if err != nil {
		return "", "", err
	}

	email, _ := parseString(claims["email"])
	return userID, email, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

func parseUserID(v interface{}) (string, error) {
	s, err := parseString(v)
	if err != nil {
		return "", errors.New("invalid sub")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return "", errors.New("invalid sub")
	}
	return id.String(), nil
}

func parseString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.New("invalid string")
	}
	return s, nil
}

// AuthJWTが入れたuser_idを取り出す（無ければ空文字）
func UserIDFrom(c echo.Context) string {
	id, _ := c.Get(CtxUserIDKey).(string)
	return id
}
