package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

func privateApp(secret string) *fiber.App {
	app := fiber.New()
	app.Get("/private", JWTMiddleware(secret), func(c *fiber.Ctx) error {
		if UserID(c) == "" {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		return c.SendString(UserID(c))
	})
	return app
}

func TestJWTMiddleware(t *testing.T) {
	app := privateApp("secret")

	// missing token
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized")
	}

	// valid token
	token, err := Sign("secret", "user-1", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected ok, got %d", resp.StatusCode)
	}
}

func TestJWTMiddlewareRejects(t *testing.T) {
	app := privateApp("secret")

	wrongSecret, _ := Sign("other", "user-1", time.Minute)
	expired, _ := Sign("secret", "user-1", -time.Minute)
	noUser, _ := Sign("secret", "", time.Minute)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]string{
		"wrong secret": "Bearer " + wrongSecret,
		"expired":      "Bearer " + expired,
		"no user":      "Bearer " + noUser,
		"alg none":     "Bearer " + none,
		"bad scheme":   "Basic abc",
		"garbage":      "Bearer not-a-jwt",
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set("Authorization", header)
		resp, _ := app.Test(req)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected unauthorized, got %d", name, resp.StatusCode)
		}
	}
}

func TestJWTMiddlewareClaimsTypeMismatch(t *testing.T) {
	old := parseMiddlewareClaimsFn
	defer func() { parseMiddlewareClaimsFn = old }()
	parseMiddlewareClaimsFn = func(string, jwt.Claims, jwt.Keyfunc, ...jwt.ParserOption) (*jwt.Token, error) {
		return &jwt.Token{Claims: jwt.MapClaims{}, Valid: true}, nil
	}

	app := privateApp("secret")
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer x")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized")
	}

	parseMiddlewareClaimsFn = func(string, jwt.Claims, jwt.Keyfunc, ...jwt.ParserOption) (*jwt.Token, error) {
		return nil, errors.New("boom")
	}
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized on parse error")
	}
}

func TestBearerFromHeader(t *testing.T) {
	if bearerFromHeader("bearer abc") != "abc" {
		t.Fatalf("expected case-insensitive scheme")
	}
	if bearerFromHeader("abc") != "" {
		t.Fatalf("expected empty token")
	}
}
