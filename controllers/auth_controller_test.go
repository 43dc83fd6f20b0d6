package controller

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"coachflow/config"
	"coachflow/middleware"
	"coachflow/models"
)

func newAuthApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	// The JWT helpers and the middleware read package-level state
	config.AppConfig.EncryptionKey = "unit-test-signing-key"
	config.DB = db

	if err := models.CreateDefaultAdmin(db, "admin@example.com", "correct horse battery"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	ac := NewAuthController(db)
	app := fiber.New()
	app.Post("/auth/login", ac.Login)
	app.Post("/auth/refresh", ac.RefreshToken)

	protected := app.Group("", middleware.Protected())
	protected.Get("/auth/me", ac.GetCurrentAdmin)
	return app
}

func TestLoginSuccess(t *testing.T) {
	db := setupTestDB(t)
	app := newAuthApp(t, db)

	status, body := postJSON(t, app, "/auth/login",
		`{"email": "admin@example.com", "password": "correct horse battery"}`, nil)
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Fatal("no access token in response")
	}
	if body["refresh_token"] == "" || body["refresh_token"] == nil {
		t.Fatal("no refresh token in response")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	db := setupTestDB(t)
	app := newAuthApp(t, db)

	status, _ := postJSON(t, app, "/auth/login",
		`{"email": "admin@example.com", "password": "guess"}`, nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("status = %d for wrong password, want 401", status)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	db := setupTestDB(t)
	app := newAuthApp(t, db)

	status, _ := postJSON(t, app, "/auth/login",
		`{"email": "nobody@example.com", "password": "whatever"}`, nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("status = %d for unknown email, want 401", status)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	db := setupTestDB(t)
	app := newAuthApp(t, db)

	req := httptest.NewRequest("GET", "/auth/me", nil)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d without a token, want 401", resp.StatusCode)
	}
}

func TestProtectedRouteWithToken(t *testing.T) {
	db := setupTestDB(t)
	app := newAuthApp(t, db)

	_, body := postJSON(t, app, "/auth/login",
		`{"email": "admin@example.com", "password": "correct horse battery"}`, nil)
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatal("login produced no access token")
	}

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d with a valid token, want 200", resp.StatusCode)
	}
}

func TestRefreshRotation(t *testing.T) {
	db := setupTestDB(t)
	app := newAuthApp(t, db)

	_, body := postJSON(t, app, "/auth/login",
		`{"email": "admin@example.com", "password": "correct horse battery"}`, nil)
	refresh, _ := body["refresh_token"].(string)

	status, rotated := postJSON(t, app, "/auth/refresh",
		`{"refresh_token": "`+refresh+`"}`, nil)
	if status != fiber.StatusOK {
		t.Fatalf("refresh status = %d, want 200", status)
	}
	if rotated["access_token"] == nil || rotated["refresh_token"] == nil {
		t.Fatal("refresh did not return a new token pair")
	}

	status, _ = postJSON(t, app, "/auth/refresh", `{"refresh_token": "garbage"}`, nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("refresh with a bogus token = %d, want 401", status)
	}
}
