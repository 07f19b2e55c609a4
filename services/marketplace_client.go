// services/marketplace_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"partnership-sync/config"
	"partnership-sync/logger"
)

const (
	bodyPrefixLen   = 512
	maxResponseSize = 64 << 20
)

// PageRequest describes one page of a marketplace list endpoint.
type PageRequest struct {
	Endpoint string // path below the base URL
	Method   string // POST (default) or GET
	Page     int    // 1-based
	Limit    int
	Order    string
	Sort     string
	// Filter fields are sent as set_<field>=true plus <field>=value.
	Filter map[string]any
}

// Page is one decoded list response. TotalCount and TotalPages are nil when
// the source did not report them.
type Page struct {
	Records    []json.RawMessage
	TotalCount *int
	TotalPages *int
	Raw        []byte
}

// MarketplaceClient talks to the marketplace list endpoints. It is safe for
// concurrent use by several sync runs; the login token is shared.
type MarketplaceClient struct {
	baseURL      string
	apiKey       string
	apiKeyHeader string
	username     string
	password     string
	loginPath    string
	httpClient   *http.Client

	mu      sync.RWMutex
	token   string
	cookies []*http.Cookie
}

// NewMarketplaceClient builds a client from configuration.
func NewMarketplaceClient(cfg config.MarketplaceConfig) *MarketplaceClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	header := cfg.APIKeyHeader
	if header == "" {
		header = "X-Api-Key"
	}
	return &MarketplaceClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		apiKeyHeader: header,
		username:     cfg.Username,
		password:     cfg.Password,
		loginPath:    cfg.LoginPath,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

func (c *MarketplaceClient) canLogin() bool {
	return c.username != "" && c.loginPath != ""
}

func (c *MarketplaceClient) hasToken() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != "" || len(c.cookies) > 0
}

// FetchPage requests one page. A 401 triggers exactly one login followed by
// exactly one retry of the original request; any other failure is returned
// as a *SourceFetchError.
func (c *MarketplaceClient) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	log := logger.FromContext(ctx)

	if req.Page < 1 {
		req.Page = 1
	}
	req.Limit = config.ClampPageSize(req.Limit)

	if c.canLogin() && !c.hasToken() {
		if err := c.Login(ctx); err != nil {
			return nil, &SourceFetchError{Endpoint: req.Endpoint, StatusCode: http.StatusUnauthorized, Err: fmt.Errorf("%w: %v", ErrUnauthorized, err)}
		}
	}

	status, body, err := c.do(ctx, req)
	if err != nil {
		return nil, &SourceFetchError{Endpoint: req.Endpoint, Err: err}
	}

	if status == http.StatusUnauthorized {
		if !c.canLogin() {
			return nil, &SourceFetchError{Endpoint: req.Endpoint, StatusCode: status, BodyPrefix: prefix(body, bodyPrefixLen), Err: ErrUnauthorized}
		}
		log.Warn().Str("endpoint", req.Endpoint).Int("page", req.Page).Msg("marketplace returned 401, re-authenticating once")
		if err := c.Login(ctx); err != nil {
			return nil, &SourceFetchError{Endpoint: req.Endpoint, StatusCode: status, BodyPrefix: prefix(body, bodyPrefixLen), Err: fmt.Errorf("%w: re-authentication failed: %v", ErrUnauthorized, err)}
		}
		status, body, err = c.do(ctx, req)
		if err != nil {
			return nil, &SourceFetchError{Endpoint: req.Endpoint, Err: fmt.Errorf("retry after re-authentication: %w", err)}
		}
		if status == http.StatusUnauthorized {
			return nil, &SourceFetchError{Endpoint: req.Endpoint, StatusCode: status, BodyPrefix: prefix(body, bodyPrefixLen), Err: ErrUnauthorized}
		}
	}

	if status < 200 || status > 299 {
		return nil, &SourceFetchError{Endpoint: req.Endpoint, StatusCode: status, BodyPrefix: prefix(body, bodyPrefixLen), Err: errors.New("unexpected status")}
	}

	page, err := ParsePage(body)
	if err != nil {
		return nil, &SourceFetchError{Endpoint: req.Endpoint, StatusCode: status, BodyPrefix: prefix(body, bodyPrefixLen), Err: err}
	}

	log.Debug().
		Str("endpoint", req.Endpoint).
		Int("page", req.Page).
		Int("records", len(page.Records)).
		Msg("fetched marketplace page")
	return page, nil
}

func (c *MarketplaceClient) do(ctx context.Context, req PageRequest) (int, []byte, error) {
	params := requestParams(req)

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodPost
	}

	u, err := url.Parse(c.baseURL + "/" + strings.TrimLeft(req.Endpoint, "/"))
	if err != nil {
		return 0, nil, fmt.Errorf("invalid endpoint %q: %w", req.Endpoint, err)
	}

	var body io.Reader
	if method == http.MethodGet {
		q := u.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			q.Set(k, fmt.Sprint(params[k]))
		}
		u.RawQuery = q.Encode()
	} else {
		payload, err := json.Marshal(params)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, data, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, data, nil
}

func (c *MarketplaceClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHeader, c.apiKey)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
}

// requestParams builds the fixed filter-object shape the marketplace expects.
func requestParams(req PageRequest) map[string]any {
	params := map[string]any{
		"page":  req.Page,
		"limit": req.Limit,
	}
	if req.Order != "" {
		params["order"] = req.Order
	}
	if req.Sort != "" {
		params["sort"] = req.Sort
	}
	for field, value := range req.Filter {
		if field == "" || value == nil {
			continue
		}
		params["set_"+field] = true
		params[field] = value
	}
	return params
}

// Login performs the login handshake and stores the bearer token and any
// session cookies for later requests.
func (c *MarketplaceClient) Login(ctx context.Context) error {
	if !c.canLogin() {
		return errors.New("no marketplace credentials configured")
	}
	payload, _ := json.Marshal(map[string]string{
		"email":    c.username,
		"username": c.username,
		"password": c.password,
	})
	u := c.baseURL + "/" + strings.TrimLeft(c.loginPath, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("login returned status %d: %s", resp.StatusCode, prefix(body, bodyPrefixLen))
	}

	token := extractToken(body)
	cookies := resp.Cookies()
	if token == "" && len(cookies) == 0 {
		return errors.New("login response carried neither a token nor a session cookie")
	}

	c.mu.Lock()
	c.token = token
	c.cookies = cookies
	c.mu.Unlock()
	return nil
}

func extractToken(body []byte) string {
	o, err := parseObject(body)
	if err != nil {
		return ""
	}
	keys := []string{"token", "access_token", "accessToken"}
	return firstNonEmpty(o.str(keys...), o.object("data").str(keys...), o.object("data").object("token").str("access_token", "token"))
}

// ParsePage decodes the list envelopes the marketplace uses:
//
//	{"data": [...], "total": n, "total_page": n}
//	{"data": {"data"|"list"|"items"|"rows": [...], "total": n, "total_page": n}}
//	{"data": [...], "meta"|"pagination": {"total": n, "total_pages": n}}
//	[...]
func ParsePage(body []byte) (*Page, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty response body")
	}
	if trimmed[0] == '[' {
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode record array: %w", err)
		}
		return &Page{Records: records, Raw: body}, nil
	}

	root, err := parseObject(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode response envelope: %w", err)
	}

	listKeys := []string{"data", "records", "list", "items", "rows", "result"}
	containers := []rawObject{root}
	if nested := root.object("data", "result"); nested != nil {
		containers = append([]rawObject{nested}, containers...)
	}

	page := &Page{Raw: body}
	found := false
	for _, c := range containers {
		if records, ok := c.list(listKeys...); ok && !isSingleObjectList(c, listKeys) {
			page.Records = records
			found = true
			break
		}
	}
	if !found {
		if err := checkEmptyEnvelope(root, listKeys); err != nil {
			return nil, err
		}
	}

	metas := append(containers, root.object("meta", "pagination"), root.object("data").object("meta", "pagination"))
	for _, m := range metas {
		if page.TotalCount == nil {
			page.TotalCount = m.integer("total", "total_data", "total_count", "count_total")
		}
		if page.TotalPages == nil {
			page.TotalPages = m.integer("total_page", "total_pages", "last_page", "page_count")
		}
	}
	return page, nil
}

var pageCountKeys = []string{
	"total", "total_data", "total_count", "count_total",
	"total_page", "total_pages", "last_page", "page_count",
}

// checkEmptyEnvelope accepts a response without records only when it is
// recognisably an empty list: "data" is null, or an object that carries a
// null list or page counts. Error envelopes such as
// {"data":{"message":"token expired"}} or a scalar "data" are rejected.
func checkEmptyEnvelope(root rawObject, listKeys []string) error {
	data, present := root["data"]
	if !present {
		return errors.New("response has no record list")
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		return nil
	}
	if data[0] != '{' {
		return fmt.Errorf("response data is not a record list: %s", prefix(data, 64))
	}
	nested, err := parseObject(data)
	if err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	for _, k := range listKeys {
		if v, ok := nested[k]; ok && bytes.Equal(bytes.TrimSpace(v), jsonNull) {
			return nil
		}
	}
	if nested.has(pageCountKeys...) {
		return nil
	}
	return fmt.Errorf("response data carries no record list: %s", prefix(data, 64))
}

// isSingleObjectList reports whether the first list key resolves to an object
// rather than an array; such an object is a nested container, not a record.
func isSingleObjectList(o rawObject, keys []string) bool {
	v, ok := o.first(keys...)
	return ok && len(v) > 0 && v[0] == '{'
}
