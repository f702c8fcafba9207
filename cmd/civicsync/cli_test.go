package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"civicsync/apperr"
	"civicsync/client"
	"civicsync/config"
	"civicsync/controllers"
	"civicsync/metrics"
	"civicsync/middlewares"
	"civicsync/models"
	"civicsync/routes"
	"civicsync/services"
	"civicsync/store"
	authUtils "civicsync/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	cases := map[string]models.IssueStatus{
		"pending":     models.Pending,
		"In Progress": models.InProgress,
		"in-progress": models.InProgress,
		"in_progress": models.InProgress,
		"RESOLVED":    models.Resolved,
	}
	for raw, want := range cases {
		got, err := parseStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}
	_, err := parseStatus("closed")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestParseCategory(t *testing.T) {
	got, err := parseCategory("public-services")
	require.NoError(t, err)
	assert.Equal(t, models.PublicServices, got)

	got, err = parseCategory("safety")
	require.NoError(t, err)
	assert.Equal(t, models.Safety, got)

	_, err = parseCategory("weather")
	assert.Error(t, err)
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, 2, exitCode(apperr.Validation))
	assert.Equal(t, 3, exitCode(apperr.Forbidden))
	assert.Equal(t, 5, exitCode(apperr.Conflict))
	assert.Equal(t, 1, exitCode(apperr.Internal))
	assert.Equal(t, 5, exitCode(apperr.KindOf(client.ErrInFlight)))
}

func TestRenderIssuePlain(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	it := models.Issue{
		Title:     "Broken bench",
		Category:  models.Infrastructure,
		Status:    models.Pending,
		Votes:     1200,
		CreatedBy: models.ResolvedCreator(models.Profile{Name: "Asha"}),
		CreatedAt: time.Now().Add(-2 * time.Hour),
		Location:  models.Location{Lat: 1, Lng: 2, Address: "Park Rd"},
	}
	out := renderIssue(it)
	assert.Contains(t, out, "Broken bench  Pending")
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "Asha")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "Next: In Progress, Resolved")

	table := renderIssueTable([]models.Issue{it}, func(models.Issue) bool { return true })
	assert.Contains(t, table, "1200 ✓")
	assert.Equal(t, "No issues found.", renderIssueTable(nil, nil))
}

func startServer(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{Domain: "localhost", TokenTTL: time.Hour, IssueLimitPrefix: "issue-limit", IssueDailyLimit: 10}
	tokens, err := authUtils.NewTokenIssuer("test-secret", cfg.TokenTTL)
	require.NoError(t, err)
	users := store.NewMemoryUserStore()
	issues, err := services.NewIssueService(store.NewMemoryIssueStore(), users,
		services.WithLogger(logger), services.WithMetrics(metrics.New(prometheus.NewRegistry())))
	require.NoError(t, err)
	auth, err := services.NewAuthService(users, tokens, store.NewRedisRevocationStore(rdb), services.WithLogger(logger))
	require.NoError(t, err)

	router := gin.New()
	routes.Register(router, routes.Deps{
		Auth:         controllers.NewAuthController(auth, cfg, logger),
		Issues:       controllers.NewIssueController(issues),
		Users:        controllers.NewUserController(issues),
		RequireAuth:  middlewares.AuthMiddleware(auth, logger),
		OptionalAuth: middlewares.OptionalAuth(auth),
		IssueLimiter: middlewares.IssueRateLimiter(rdb, cfg.IssueLimitPrefix, cfg.IssueDailyLimit, logger),
		Gatherer:     prometheus.NewRegistry(),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestCommandFlow(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	url := startServer(t)
	creds := filepath.Join(t.TempDir(), "credentials.json")

	run := func(args ...string) (string, error) {
		var out, errOut bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&errOut)
		rootCmd.SetArgs(append(args, "--api", url, "--credentials", creds))
		err := rootCmd.ExecuteContext(context.Background())
		return out.String(), err
	}

	out, err := run("register", "--name", "Asha", "--email", "asha@example.com", "--password", "secret1")
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome, Asha")

	_, err = run("issues", "report", "--title", "Pothole", "--description", "Deep one", "--category", "safety")
	assert.ErrorIs(t, err, apperr.E(apperr.Validation, "Please select a location on the map"))
	assert.Equal(t, 2, exitCode(apperr.KindOf(err)))

	out, err = run("issues", "report", "--title", "Pothole", "--description", "Deep one",
		"--category", "safety", "--lat", "12.9", "--lng", "77.6")
	require.NoError(t, err)
	fields := strings.Fields(out)
	id := fields[len(fields)-1]

	out, err = run("issues", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Pothole")
	assert.Contains(t, out, "Showing 1 of 1")

	out, err = run("issues", "status", id, "in-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "In Progress")

	_, err = run("issues", "status", id, "pending")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	out, err = run("issues", "vote", id)
	require.NoError(t, err)
	assert.Contains(t, out, "now has 1 votes")

	_, err = run("issues", "vote", id)
	assert.ErrorIs(t, err, apperr.ErrAlreadyVoted)
	assert.Equal(t, 5, exitCode(apperr.KindOf(err)))

	out, err = run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Asha <asha@example.com>")

	out, err = run("logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	out, err = run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in.")

	_, err = run("issues", "vote", id)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}
