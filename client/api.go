package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"civicsync/apperr"
	"civicsync/models"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultBaseURL is where the CLI looks for the server unless told otherwise.
const DefaultBaseURL = "http://localhost:8080"

// TokenSource hands out the credential for authenticated calls.
type TokenSource interface {
	Token() string
}

// AuthBackend issues, validates and revokes credentials.
type AuthBackend interface {
	Login(ctx context.Context, email, password string) (*models.AuthResult, error)
	Register(ctx context.Context, name, email, password string) (*models.AuthResult, error)
	Profile(ctx context.Context, token string) (*models.Principal, error)
	Logout(ctx context.Context, token string) error
}

// FeedBackend serves pages of the issue feed.
type FeedBackend interface {
	ListIssues(ctx context.Context, page, pageSize int, filter models.IssueFilter) (*models.FeedPage, error)
}

// IssueBackend performs single-issue reads and writes.
type IssueBackend interface {
	GetIssue(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	MyIssues(ctx context.Context) ([]models.Issue, error)
	CreateIssue(ctx context.Context, in models.NewIssue) (*models.Issue, error)
	UpdateIssue(ctx context.Context, id primitive.ObjectID, patch models.IssuePatch) (*models.Issue, error)
	DeleteIssue(ctx context.Context, id primitive.ObjectID) error
	Vote(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.IssueStatus) (*models.Issue, error)
}

// API talks to the civicsync HTTP server.
type API struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	mu     sync.RWMutex
	tokens TokenSource
}

type APIOption func(*API)

func WithHTTPClient(c *http.Client) APIOption {
	return func(a *API) { a.http = c }
}

func WithAPILogger(logger *slog.Logger) APIOption {
	return func(a *API) { a.logger = logger }
}

// NewAPI sets no client-side timeout. Calls end when the server answers or
// the caller's context is done.
func NewAPI(baseURL string, opts ...APIOption) *API {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	a := &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetTokenSource wires the session whose credential authenticates calls.
func (a *API) SetTokenSource(ts TokenSource) {
	a.mu.Lock()
	a.tokens = ts
	a.mu.Unlock()
}

func (a *API) token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.tokens == nil {
		return ""
	}
	return a.tokens.Token()
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// do sends one request. token overrides the token source when non-empty.
func (a *API) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return apperr.Wrap(apperr.Internal, "encoding request", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "building request", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token == "" {
		token = a.token()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		a.logger.DebugContext(ctx, "request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return apperr.Wrap(apperr.Transport, "Could not reach the server. Please try again.", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.Transport, "Could not read the server response. Please try again.", err)
	}

	if resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Wrap(apperr.Internal, "decoding response", err)
	}
	return nil
}

func decodeError(status int, raw []byte) error {
	var body errorResponse
	_ = json.Unmarshal(raw, &body)

	kind := apperr.Kind(body.Code)
	if body.Code == "" {
		kind = apperr.FromStatus(status)
	}
	msg := body.Error
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", status)
	}
	return apperr.E(kind, msg)
}

func (a *API) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	var out models.AuthResult
	err := a.do(ctx, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Register(ctx context.Context, name, email, password string) (*models.AuthResult, error) {
	var out models.AuthResult
	err := a.do(ctx, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Profile(ctx context.Context, token string) (*models.Principal, error) {
	if token == "" {
		return nil, apperr.ErrAuthRequired
	}
	var out models.Principal
	if err := a.do(ctx, http.MethodGet, "/api/auth/profile", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return a.do(ctx, http.MethodPost, "/api/auth/logout", token, nil, nil)
}

func (a *API) ListIssues(ctx context.Context, page, pageSize int, filter models.IssueFilter) (*models.FeedPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(pageSize))
	if filter.Category != "" {
		q.Set("category", string(filter.Category))
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}

	var out models.FeedPage
	if err := a.do(ctx, http.MethodGet, "/api/issues?"+q.Encode(), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) GetIssue(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var out models.Issue
	if err := a.do(ctx, http.MethodGet, issuePath(id), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) MyIssues(ctx context.Context) ([]models.Issue, error) {
	var out []models.Issue
	if err := a.do(ctx, http.MethodGet, "/api/users/my-issues", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) Recent(ctx context.Context) ([]models.Issue, error) {
	var out []models.Issue
	if err := a.do(ctx, http.MethodGet, "/api/issues/recent", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) Analytics(ctx context.Context) (*models.Analytics, error) {
	var out models.Analytics
	if err := a.do(ctx, http.MethodGet, "/api/issues/analytics", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) CreateIssue(ctx context.Context, in models.NewIssue) (*models.Issue, error) {
	var out models.Issue
	if err := a.do(ctx, http.MethodPost, "/api/issues", "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) UpdateIssue(ctx context.Context, id primitive.ObjectID, patch models.IssuePatch) (*models.Issue, error) {
	var out models.Issue
	if err := a.do(ctx, http.MethodPut, issuePath(id), "", patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) DeleteIssue(ctx context.Context, id primitive.ObjectID) error {
	return a.do(ctx, http.MethodDelete, issuePath(id), "", nil, nil)
}

func (a *API) Vote(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var out models.Issue
	if err := a.do(ctx, http.MethodPost, issuePath(id)+"/vote", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.IssueStatus) (*models.Issue, error) {
	var out models.Issue
	err := a.do(ctx, http.MethodPatch, issuePath(id)+"/status", "", map[string]string{"status": string(status)}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func issuePath(id primitive.ObjectID) string {
	return "/api/issues/" + id.Hex()
}

// IsNotFound reports whether err means the issue no longer exists.
func IsNotFound(err error) bool {
	return errors.Is(err, apperr.E(apperr.NotFound, ""))
}
