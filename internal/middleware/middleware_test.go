package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

const testUserID = "2f1d7a4e-5b7c-4c1e-9d0a-6b3f2e1c0a99"

// =====================
// UserRoleRepository モック
// =====================

type MockUserRoleRepo struct {
	mock.Mock
}

func (m *MockUserRoleRepo) HasRole(ctx context.Context, userID string, role model.Role) (bool, error) {
	args := m.Called(ctx, userID, role)
	return args.Bool(0), args.Error(1)
}

var _ repository.UserRoleRepository = (*MockUserRoleRepo)(nil)

// =====================
// helper
// =====================

type okResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	OwnerUser   string `json:"owner_user"`
	OwnerGuest  string `json:"owner_guest"`
	CartSession string `json:"cart_session"`
}

func mustMakeJWT(t *testing.T, secret string, sub any, method jwt.SigningMethod) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":   sub,
		"email": "buyer@example.com",
		"iat":   1,
		"exp":   9999999999,
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return s
}

func newEcho(mws ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.GET("/t", func(c echo.Context) error {
		owner := CartOwnerFrom(c)
		email, _ := c.Get(CtxUserEmailKey).(string)
		return c.JSON(http.StatusOK, okResponse{
			UserID:      UserIDFrom(c),
			Email:       email,
			OwnerUser:   owner.UserID,
			OwnerGuest:  owner.SessionID,
			CartSession: CartSessionFrom(c),
		})
	}, mws...)
	return e
}

func runRequest(t *testing.T, e *echo.Echo, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeOK(t *testing.T, rec *httptest.ResponseRecorder) okResponse {
	t.Helper()
	var r okResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&r))
	return r
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var r errorResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r.Error
}

var testCfg = config.Config{JWTSecret: testSecret}

// =====================
// AuthJWT
// =====================

func TestAuthJWT_ValidToken(t *testing.T) {
	e := newEcho(AuthJWT(testCfg))
	token := mustMakeJWT(t, testSecret, testUserID, jwt.SigningMethodHS256)

	rec := runRequest(t, e, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeOK(t, rec)
	assert.Equal(t, testUserID, body.UserID)
	assert.Equal(t, "buyer@example.com", body.Email)
}

func TestAuthJWT_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing header":  "",
		"not bearer":      "Basic abc",
		"empty token":     "Bearer ",
		"wrong secret":    "Bearer " + mustMakeJWT(t, "other", testUserID, jwt.SigningMethodHS256),
		"wrong algorithm": "Bearer " + mustMakeJWT(t, testSecret, testUserID, jwt.SigningMethodHS512),
		"sub not uuid":    "Bearer " + mustMakeJWT(t, testSecret, "42", jwt.SigningMethodHS256),
		"sub not string":  "Bearer " + mustMakeJWT(t, testSecret, 42, jwt.SigningMethodHS256),
	}

	e := newEcho(AuthJWT(testCfg))
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			h := map[string]string{}
			if header != "" {
				h["Authorization"] = header
			}
			rec := runRequest(t, e, h)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthorized", decodeError(t, rec))
		})
	}
}

func TestOptionalAuthJWT(t *testing.T) {
	e := newEcho(OptionalAuthJWT(testCfg))

	//ヘッダなしはゲストとして通す
	rec := runRequest(t, e, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeOK(t, rec).UserID)

	//不正なトークンは通さない
	rec = runRequest(t, e, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := mustMakeJWT(t, testSecret, testUserID, jwt.SigningMethodHS256)
	rec = runRequest(t, e, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testUserID, decodeOK(t, rec).UserID)
}

// =====================
// CartOwner
// =====================

func TestCartOwner_GuestGetsNewToken(t *testing.T) {
	e := newEcho(OptionalAuthJWT(testCfg), CartOwner())

	rec := runRequest(t, e, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	issued := rec.Header().Get(CartSessionHeader)
	_, err := uuid.Parse(issued)
	require.NoError(t, err)
	body := decodeOK(t, rec)
	assert.Equal(t, issued, body.OwnerGuest)
	assert.Empty(t, body.OwnerUser)
}

func TestCartOwner_GuestKeepsValidToken(t *testing.T) {
	e := newEcho(OptionalAuthJWT(testCfg), CartOwner())
	token := uuid.NewString()

	rec := runRequest(t, e, map[string]string{CartSessionHeader: token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, token, rec.Header().Get(CartSessionHeader))
	assert.Equal(t, token, decodeOK(t, rec).OwnerGuest)
}

func TestCartOwner_MalformedTokenIsReplaced(t *testing.T) {
	e := newEcho(OptionalAuthJWT(testCfg), CartOwner())

	rec := runRequest(t, e, map[string]string{CartSessionHeader: "'; drop table"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, "'; drop table", decodeOK(t, rec).OwnerGuest)
}

func TestCartOwner_LoggedInUserOwnsCart(t *testing.T) {
	e := newEcho(OptionalAuthJWT(testCfg), CartOwner())
	token := mustMakeJWT(t, testSecret, testUserID, jwt.SigningMethodHS256)
	guest := uuid.NewString()

	rec := runRequest(t, e, map[string]string{
		"Authorization":   "Bearer " + token,
		CartSessionHeader: guest,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeOK(t, rec)
	assert.Equal(t, testUserID, body.OwnerUser)
	assert.Empty(t, body.OwnerGuest)
	//マージ用に残る
	assert.Equal(t, guest, body.CartSession)
	assert.Empty(t, rec.Header().Get(CartSessionHeader))
}

// =====================
// AdminRoleGuard
// =====================

func TestAdminRoleGuard(t *testing.T) {
	token := "Bearer " + mustMakeJWT(t, testSecret, testUserID, jwt.SigningMethodHS256)

	t.Run("admin passes", func(t *testing.T) {
		roles := new(MockUserRoleRepo)
		roles.On("HasRole", mock.Anything, testUserID, model.RoleAdmin).Return(true, nil).Once()

		rec := runRequest(t, newEcho(AuthJWT(testCfg), AdminRoleGuard(roles)), map[string]string{"Authorization": token})
		assert.Equal(t, http.StatusOK, rec.Code)
		roles.AssertExpectations(t)
	})

	t.Run("user is forbidden", func(t *testing.T) {
		roles := new(MockUserRoleRepo)
		roles.On("HasRole", mock.Anything, testUserID, model.RoleAdmin).Return(false, nil).Once()

		rec := runRequest(t, newEcho(AuthJWT(testCfg), AdminRoleGuard(roles)), map[string]string{"Authorization": token})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "admin only", decodeError(t, rec))
	})

	t.Run("lookup error", func(t *testing.T) {
		roles := new(MockUserRoleRepo)
		roles.On("HasRole", mock.Anything, testUserID, model.RoleAdmin).Return(false, errors.New("db down")).Once()

		rec := runRequest(t, newEcho(AuthJWT(testCfg), AdminRoleGuard(roles)), map[string]string{"Authorization": token})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("no auth", func(t *testing.T) {
		roles := new(MockUserRoleRepo)
		rec := runRequest(t, newEcho(AdminRoleGuard(roles)), nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		roles.AssertNotCalled(t, "HasRole", mock.Anything, mock.Anything, mock.Anything)
	})
}
