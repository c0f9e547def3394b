package publish

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
)

const defaultAPIURL = "https://api.github.com"

// APIError is a non-2xx response from the GitHub API.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GitHub API HTTP %d: %s", e.StatusCode, e.Body)
}

// GitHubConfig identifies a GitHub App installation on one repository.
type GitHubConfig struct {
	AppID      int64
	PrivateKey []byte // PEM encoded RSA key
	Owner      string
	Repository string
	// APIURL defaults to https://api.github.com.
	APIURL string
}

type GitHubOption func(*GitHub)

func WithHTTPClient(c *http.Client) GitHubOption {
	return func(g *GitHub) { g.httpClient = c }
}

func WithNow(now func() time.Time) GitHubOption {
	return func(g *GitHub) { g.now = now }
}

// GitHub implements Repository with the REST API, authenticating as a
// GitHub App installation.
type GitHub struct {
	cfg        GitHubConfig
	key        *rsa.PrivateKey
	httpClient *http.Client
	now        func() time.Time

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

var _ Repository = (*GitHub)(nil)

func NewGitHub(cfg GitHubConfig, opts ...GitHubOption) (*GitHub, error) {
	if cfg.AppID == 0 || cfg.Owner == "" || cfg.Repository == "" {
		return nil, errors.New("github: app_id, owner and repository are required")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("github: parse private key: %w", err)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	g := &GitHub{
		cfg:        cfg,
		key:        key,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// appJWT signs the short-lived token that authenticates as the App itself.
func (g *GitHub) appJWT() (string, error) {
	now := g.now()
	claims := jwt.RegisteredClaims{
		Issuer: strconv.FormatInt(g.cfg.AppID, 10),
		// Allow for clock drift.
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(g.key)
}

// installationToken returns a cached installation token, minting a new one
// when it is missing or about to expire.
func (g *GitHub) installationToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.token != "" && g.now().Add(time.Minute).Before(g.tokenExp) {
		return g.token, nil
	}

	appToken, err := g.appJWT()
	if err != nil {
		return "", fmt.Errorf("sign app jwt: %w", err)
	}

	var inst struct {
		ID int64 `json:"id"`
	}
	if err := g.do(ctx, appToken, http.MethodGet, g.repoPath("installation"), nil, &inst); err != nil {
		return "", fmt.Errorf("find installation: %w", err)
	}

	var tok struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	path := "/app/installations/" + strconv.FormatInt(inst.ID, 10) + "/access_tokens"
	if err := g.do(ctx, appToken, http.MethodPost, path, nil, &tok); err != nil {
		return "", fmt.Errorf("create installation token: %w", err)
	}
	g.token, g.tokenExp = tok.Token, tok.ExpiresAt
	return g.token, nil
}

func (g *GitHub) repoPath(parts ...string) string {
	return "/repos/" + url.PathEscape(g.cfg.Owner) + "/" + url.PathEscape(g.cfg.Repository) + "/" + strings.Join(parts, "/")
}

func escapePath(p string) string {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// call performs an authenticated installation request.
func (g *GitHub) call(ctx context.Context, method, path string, body, dest any) error {
	token, err := g.installationToken(ctx)
	if err != nil {
		return err
	}
	return g.do(ctx, token, method, path, body, dest)
}

func (g *GitHub) do(ctx context.Context, token, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.APIURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: truncateBody(data, maxErrorBody)}
	}
	if dest == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}

func (g *GitHub) HeadSHA(ctx context.Context, branch string) (string, error) {
	var ref struct {
		Object struct {
			SHA  string `json:"sha"`
			Type string `json:"type"`
		} `json:"object"`
	}
	if err := g.call(ctx, http.MethodGet, g.repoPath("git", "ref", "heads", escapePath(branch)), nil, &ref); err != nil {
		return "", err
	}
	if ref.Object.Type != "commit" {
		return "", fmt.Errorf("ref %s is a %s, not a commit", branch, ref.Object.Type)
	}
	return ref.Object.SHA, nil
}

// CreateBranch maps GitHub's 422 for an existing ref to ErrBranchExists.
func (g *GitHub) CreateBranch(ctx context.Context, name, sha string) error {
	body := map[string]string{"ref": "refs/heads/" + name, "sha": sha}
	err := g.call(ctx, http.MethodPost, g.repoPath("git", "refs"), body, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity {
		return fmt.Errorf("%w: %s: %w", ErrBranchExists, name, err)
	}
	return err
}

func (g *GitHub) GetFile(ctx context.Context, path, ref string) (File, error) {
	var content struct {
		SHA      string `json:"sha"`
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	p := g.repoPath("contents", escapePath(path)) + "?ref=" + url.QueryEscape(ref)
	err := g.call(ctx, http.MethodGet, p, nil, &content)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return File{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return File{}, err
	}
	if content.Encoding != "base64" {
		return File{}, fmt.Errorf("%s: unsupported content encoding %q", path, content.Encoding)
	}
	// The API wraps base64 content at 60 columns.
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		return File{}, fmt.Errorf("%s: decode content: %w", path, err)
	}
	return File{Content: data, SHA: content.SHA}, nil
}

func (g *GitHub) PutFile(ctx context.Context, u FileUpdate) error {
	body := map[string]string{
		"message": u.Message,
		"content": base64.StdEncoding.EncodeToString(u.Content),
		"branch":  u.Branch,
	}
	if u.SHA != "" {
		body["sha"] = u.SHA
	}
	return g.call(ctx, http.MethodPut, g.repoPath("contents", escapePath(u.Path)), body, nil)
}

func (g *GitHub) CreatePullRequest(ctx context.Context, pr PullRequest) (string, error) {
	body := map[string]string{"title": pr.Title, "head": pr.Head, "base": pr.Base, "body": pr.Body}
	var out struct {
		HTMLURL string `json:"html_url"`
	}
	if err := g.call(ctx, http.MethodPost, g.repoPath("pulls"), body, &out); err != nil {
		return "", err
	}
	if out.HTMLURL == "" {
		return "", errors.New("pull request response has no html_url")
	}
	return out.HTMLURL, nil
}

const maxErrorBody = 512

// truncateBody cuts b to at most limit bytes without splitting a UTF-8
// sequence.
func truncateBody(b []byte, limit int) string {
	if len(b) <= limit {
		return string(b)
	}
	end := limit
	for end > 0 && !utf8.RuneStart(b[end]) {
		end--
	}
	return string(b[:end])
}
