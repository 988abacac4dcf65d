package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TestContext holds the state shared by the steps of one scenario. Users are
// named in feature files and mapped to fresh IDs per scenario so runs never
// collide on the server.
type TestContext struct {
	BaseURL    string
	AdminToken string
	SigningKey []byte
	Issuer     string
	Audience   string

	client *http.Client

	users  map[string]string
	actor  string
	values map[string]string

	lastStatus int
	lastHeader http.Header
	lastBody   []byte
}

func NewTestContext() *TestContext {
	base := os.Getenv("E2E_BASE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	tc := &TestContext{
		BaseURL:    strings.TrimRight(base, "/"),
		AdminToken: os.Getenv("E2E_ADMIN_TOKEN"),
		SigningKey: []byte(os.Getenv("E2E_JWT_SIGNING_KEY")),
		Issuer:     os.Getenv("E2E_JWT_ISSUER"),
		Audience:   os.Getenv("E2E_JWT_AUDIENCE"),
		client:     &http.Client{Timeout: 10 * time.Second},
	}
	tc.Reset()
	return tc
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.users = map[string]string{}
	tc.values = map[string]string{}
	tc.actor = ""
	tc.lastStatus = 0
	tc.lastHeader = nil
	tc.lastBody = nil
}

// ActAs makes name the caller of subsequent user requests, assigning an ID on
// first use.
func (tc *TestContext) ActAs(name string) {
	if _, ok := tc.users[name]; !ok {
		tc.users[name] = uuid.NewString()
	}
	tc.actor = name
}

func (tc *TestContext) UserID(name string) (string, error) {
	userID, ok := tc.users[name]
	if !ok {
		return "", fmt.Errorf("unknown user %q", name)
	}
	return userID, nil
}

func (tc *TestContext) Remember(key, value string) { tc.values[key] = value }

func (tc *TestContext) Recall(key string) (string, error) {
	v, ok := tc.values[key]
	if !ok {
		return "", fmt.Errorf("nothing remembered as %q", key)
	}
	return v, nil
}

func (tc *TestContext) GET(path string) error {
	return tc.userRequest(http.MethodGet, path, nil)
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.userRequest(http.MethodPost, path, body)
}

func (tc *TestContext) AdminGET(path string) error {
	return tc.do(http.MethodGet, path, nil, map[string]string{"X-Admin-Token": tc.AdminToken})
}

func (tc *TestContext) AdminPOST(path string, body any) error {
	return tc.do(http.MethodPost, path, body, map[string]string{"X-Admin-Token": tc.AdminToken})
}

func (tc *TestContext) LastStatus() int { return tc.lastStatus }

func (tc *TestContext) LastHeader(name string) string { return tc.lastHeader.Get(name) }

func (tc *TestContext) LastBody() []byte { return tc.lastBody }

// ResponseField resolves a dotted path such as "decision.decision" in the last
// JSON response body.
func (tc *TestContext) ResponseField(path string) (any, error) {
	var doc any
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w (body: %s)", err, tc.lastBody)
	}
	cur := doc
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", path, part)
		}
		cur, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not found in response: %s", path, tc.lastBody)
		}
	}
	return cur, nil
}

func (tc *TestContext) userRequest(method, path string, body any) error {
	headers := map[string]string{}
	if tc.actor != "" {
		token, err := tc.mintToken(tc.users[tc.actor])
		if err != nil {
			return err
		}
		headers["Authorization"] = "Bearer " + token
	}
	return tc.do(method, path, body, headers)
}

func (tc *TestContext) mintToken(subject string) (string, error) {
	if len(tc.SigningKey) == 0 {
		return "", fmt.Errorf("E2E_JWT_SIGNING_KEY is not set")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    tc.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
	}
	if tc.Audience != "" {
		claims.Audience = jwt.ClaimStrings{tc.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.SigningKey)
}

func (tc *TestContext) do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	tc.lastStatus = resp.StatusCode
	tc.lastHeader = resp.Header
	return nil
}
