package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ghapi "github.com/cli/go-gh/v2/pkg/api"

	apperrors "github.com/kyleking/gen-console/internal/errors"
	"github.com/kyleking/gen-console/internal/logging"
)

// anonymousToken stands in for a missing token so go-gh never falls back to
// the gh CLI's stored credentials for a non-GitHub host. stripAnonymous
// removes it again before the request leaves the process.
const anonymousToken = "anonymous"

// Client is the JSON collaborator both screens use to reach the admin backend.
// Paths are relative to the configured base URL.
type Client interface {
	Get(ctx context.Context, path string, query url.Values, resp interface{}) error
	Post(ctx context.Context, path string, body, resp interface{}) error
	Put(ctx context.Context, path string, body, resp interface{}) error
	Delete(ctx context.Context, path string, resp interface{}) error
}

// Options configures a REST client
type Options struct {
	BaseURL string
	// Token is sent as "Authorization: token <Token>". When empty, requests
	// carry no Authorization header at all.
	Token     string
	Timeout   time.Duration
	TraceHTTP bool
	// TraceOutput receives go-gh's HTTP trace when TraceHTTP is set; defaults to stderr
	TraceOutput io.Writer
	// Transport overrides the underlying round tripper (tests wrap it with a recorder)
	Transport http.RoundTripper
	Logger    *logging.Logger
}

type restClient struct {
	base   *url.URL
	http   *http.Client
	logger *logging.Logger
}

// NewClient builds a Client on top of go-gh's HTTP client stack
func NewClient(opts Options) (Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Host == "" {
		return nil, apperrors.NewConfigError(fmt.Sprintf("invalid api base url %q", opts.BaseURL), "api.base_url")
	}

	token := opts.Token
	if token == "" {
		token = anonymousToken
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	if opts.Token == "" {
		transport = stripAnonymous{next: transport}
	}

	ghOpts := ghapi.ClientOptions{
		Host:               base.Hostname(),
		AuthToken:          token,
		SkipDefaultHeaders: true,
		Headers: map[string]string{
			"Accept":     "application/json",
			"User-Agent": "gen-console",
		},
		LogIgnoreEnv: true,
		Timeout:      opts.Timeout,
		Transport:    transport,
	}

	if opts.TraceHTTP {
		ghOpts.Log = opts.TraceOutput
		if ghOpts.Log == nil {
			ghOpts.Log = os.Stderr
		}
		ghOpts.LogVerboseHTTP = true
	}

	httpClient, err := ghapi.NewHTTPClient(ghOpts)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeConfig, "failed to create HTTP client")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &restClient{
		base:   base,
		http:   httpClient,
		logger: logger.WithField("component", "api"),
	}, nil
}

// stripAnonymous drops the placeholder Authorization header go-gh adds when
// no token is configured
type stripAnonymous struct {
	next http.RoundTripper
}

func (t stripAnonymous) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") == "token "+anonymousToken {
		req = req.Clone(req.Context())
		req.Header.Del("Authorization")
	}

	return t.next.RoundTrip(req)
}

func (c *restClient) Get(ctx context.Context, path string, query url.Values, resp interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, resp)
}

func (c *restClient) Post(ctx context.Context, path string, body, resp interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, resp)
}

func (c *restClient) Put(ctx context.Context, path string, body, resp interface{}) error {
	return c.do(ctx, http.MethodPut, path, nil, body, resp)
}

func (c *restClient) Delete(ctx context.Context, path string, resp interface{}) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, resp)
}

func (c *restClient) resolve(path string, query url.Values) string {
	u := c.base.JoinPath(strings.TrimPrefix(path, "/"))
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	return u.String()
}

func (c *restClient) do(ctx context.Context, method, path string, query url.Values, body, resp interface{}) error {
	target := c.resolve(path, query)

	var reader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrTypeInternal, "failed to encode request body")
		}

		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrTypeInternal, "failed to build %s %s", method, path)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	res, err := c.http.Do(req)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return apperrors.Wrapf(ctxErr, apperrors.ErrTypeClosed, "%s %s cancelled", method, path)
		}

		return apperrors.Wrapf(err, apperrors.ErrTypeNetwork, "%s %s failed", method, path).
			WithSuggestion("Check that the backend is running and GEN_CONSOLE_API_BASE_URL points at it")
	}
	defer res.Body.Close()

	c.logger.WithFields(map[string]interface{}{
		"method":   method,
		"path":     path,
		"status":   res.StatusCode,
		"duration": time.Since(start),
	}).Debug("api request")

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return classify(ghapi.HandleHTTPError(res), method, path)
	}

	if resp == nil || res.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(resp); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.Wrapf(err, apperrors.ErrTypeAPI, "failed to decode %s %s response", method, path)
	}

	return nil
}

// classify turns go-gh's HTTPError into a typed error keyed by status
func classify(err error, method, path string) error {
	var httpErr *ghapi.HTTPError
	if !errors.As(err, &httpErr) {
		return apperrors.Wrapf(err, apperrors.ErrTypeAPI, "%s %s failed", method, path)
	}

	msg := httpErr.Message
	if msg == "" {
		msg = http.StatusText(httpErr.StatusCode)
	}

	switch {
	case httpErr.StatusCode == http.StatusNotFound:
		return apperrors.Wrapf(err, apperrors.ErrTypeNotFound, "%s %s: %s", method, path, msg)
	case httpErr.StatusCode == http.StatusConflict:
		return apperrors.Wrapf(err, apperrors.ErrTypeConflict, "%s %s: %s", method, path, msg)
	case httpErr.StatusCode == http.StatusBadRequest || httpErr.StatusCode == http.StatusUnprocessableEntity:
		return apperrors.Wrapf(err, apperrors.ErrTypeValidation, "%s %s: %s", method, path, msg)
	case httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden:
		return apperrors.Wrapf(err, apperrors.ErrTypeAPI, "%s %s: %s", method, path, msg).
			WithSuggestion("Set GEN_CONSOLE_API_TOKEN to the backend's token")
	default:
		return apperrors.Wrapf(err, apperrors.ErrTypeAPI, "%s %s: %s", method, path, msg)
	}
}

// StatusCode extracts the HTTP status from an error returned by Client, or 0
func StatusCode(err error) int {
	var httpErr *ghapi.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}

	return 0
}
