package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/ports"
)

const (
	acceptHeader  = "application/vnd.github+json"
	apiVersion    = "2022-11-28"
	userAgent     = "csd-cli/1.0"
	maxErrorBody  = 200
	assetPageSize = 100
)

// GitHubReleaseGateway implements the ReleaseGateway interface against
// the GitHub REST API.
type GitHubReleaseGateway struct {
	apiURL      string
	uploadURL   string
	token       string
	httpClient  *http.Client
	retryPolicy *RetryPolicy
	breaker     *CircuitBreaker
	logger      ports.LoggingGateway
	stats       ports.RequestStats
	lastError   string
	mutex       sync.RWMutex
}

// RetryPolicy defines retry behavior
type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay"`
	Multiplier  float64       `json:"multiplier"`
}

// DefaultRetryPolicy returns a sensible default retry policy
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// CircuitBreaker implements circuit breaker pattern
type CircuitBreaker struct {
	maxFailures     int
	resetTimeout    time.Duration
	failureCount    int
	lastFailureTime time.Time
	state           CircuitBreakerState
	mutex           sync.RWMutex
}

// CircuitBreakerState represents the circuit breaker state
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

// CanExecute returns true if the circuit breaker allows execution
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.lastFailureTime) >= cb.resetTimeout {
			cb.state = StateHalfOpen
			return true
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

// RecordSuccess records a successful execution
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount = 0
	cb.state = StateClosed
}

// RecordFailure records a failed execution
func (cb *CircuitBreaker) RecordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount++
	cb.lastFailureTime = time.Now()

	if cb.failureCount >= cb.maxFailures {
		cb.state = StateOpen
	}
}

// NewGitHubReleaseGateway creates a gateway for the given API endpoints.
// A timeout of zero falls back to 30 seconds.
func NewGitHubReleaseGateway(apiURL, uploadURL, token string, timeout time.Duration, logger ports.LoggingGateway) *GitHubReleaseGateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GitHubReleaseGateway{
		apiURL:    strings.TrimSuffix(apiURL, "/"),
		uploadURL: strings.TrimSuffix(uploadURL, "/"),
		token:     token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryPolicy: DefaultRetryPolicy(),
		breaker:     NewCircuitBreaker(5, 60*time.Second),
		logger:      logger,
	}
}

// NewTestReleaseGateway creates a gateway with test-friendly settings
func NewTestReleaseGateway(apiURL, uploadURL, token string, logger ports.LoggingGateway) *GitHubReleaseGateway {
	return &GitHubReleaseGateway{
		apiURL:    strings.TrimSuffix(apiURL, "/"),
		uploadURL: strings.TrimSuffix(uploadURL, "/"),
		token:     token,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		retryPolicy: &RetryPolicy{
			MaxAttempts: 2,
			BaseDelay:   10 * time.Millisecond,
			MaxDelay:    100 * time.Millisecond,
			Multiplier:  2.0,
		},
		breaker: NewCircuitBreaker(3, 5*time.Second),
		logger:  logger,
	}
}

// apiError carries the status code so retry decisions can be made on it
type apiError struct {
	StatusCode int
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("GitHub API returned status %d: %s", e.StatusCode, e.Message)
}

// FindReleaseByTag returns the release for a tag, ErrReleaseNotFound if absent
func (g *GitHubReleaseGateway) FindReleaseByTag(ctx context.Context, repo ports.Repo, tag string) (*ports.Release, error) {
	if repo.IsZero() {
		return nil, fmt.Errorf("repository is required")
	}
	if tag == "" {
		return nil, fmt.Errorf("tag is required")
	}

	g.logger.Log(ports.LogLevelDebug, "Looking up release", map[string]interface{}{
		"repository": repo.String(),
		"tag":        tag,
	})

	var release ports.Release
	requestURL := fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s",
		g.apiURL, repo.Owner, repo.Name, url.PathEscape(tag))

	err := g.executeWithRetry(ctx, g.retryPolicy.MaxAttempts, func() error {
		return g.getJSONRequest(ctx, requestURL, &release)
	})
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("no release tagged %s in %s: %w", tag, repo, ports.ErrReleaseNotFound)
		}
		return nil, err
	}

	// GitHub returns the upload URL as a URI template, strip the
	// {?name,label} suffix so callers can append query parameters.
	release.UploadURL = trimURLTemplate(release.UploadURL)
	if release.UploadURL == "" {
		release.UploadURL = fmt.Sprintf("%s/repos/%s/%s/releases/%d/assets",
			g.uploadURL, repo.Owner, repo.Name, release.ID)
	}
	return &release, nil
}

// ListAssets returns the assets attached to a release. A release carries
// at most a handful of assets, one page is enough.
func (g *GitHubReleaseGateway) ListAssets(ctx context.Context, repo ports.Repo, releaseID int64) ([]ports.Asset, error) {
	if repo.IsZero() {
		return nil, fmt.Errorf("repository is required")
	}

	var assets []ports.Asset
	requestURL := fmt.Sprintf("%s/repos/%s/%s/releases/%d/assets?per_page=%d",
		g.apiURL, repo.Owner, repo.Name, releaseID, assetPageSize)

	err := g.executeWithRetry(ctx, g.retryPolicy.MaxAttempts, func() error {
		return g.getJSONRequest(ctx, requestURL, &assets)
	})
	if err != nil {
		return nil, err
	}
	return assets, nil
}

// UploadAsset attaches a file to a release. Uploads retry only when the
// body can be rewound.
func (g *GitHubReleaseGateway) UploadAsset(ctx context.Context, release *ports.Release, name, contentType string, body io.Reader, size int64) (*ports.Asset, error) {
	if release == nil {
		return nil, fmt.Errorf("release is required")
	}
	uploadURL := trimURLTemplate(release.UploadURL)
	if uploadURL == "" {
		return nil, fmt.Errorf("release %s has no upload URL", release.TagName)
	}
	if name == "" {
		return nil, fmt.Errorf("asset name is required")
	}

	g.logger.Log(ports.LogLevelInfo, "Uploading release asset", map[string]interface{}{
		"asset":      name,
		"size_bytes": size,
		"release":    release.TagName,
	})

	requestURL := uploadURL + "?name=" + url.QueryEscape(name)

	seeker, canRewind := body.(io.Seeker)
	attempts := g.retryPolicy.MaxAttempts
	if !canRewind {
		attempts = 1
	}

	var asset ports.Asset
	err := g.executeWithRetry(ctx, attempts, func() error {
		if canRewind {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("failed to rewind upload body: %w", err)
			}
		}
		return g.uploadRequest(ctx, requestURL, contentType, body, size, &asset)
	})
	if err != nil {
		return nil, err
	}

	g.recordUpload(size)
	return &asset, nil
}

// DeleteAsset removes an asset from a release
func (g *GitHubReleaseGateway) DeleteAsset(ctx context.Context, repo ports.Repo, assetID int64) error {
	if repo.IsZero() {
		return fmt.Errorf("repository is required")
	}

	requestURL := fmt.Sprintf("%s/repos/%s/%s/releases/assets/%d",
		g.apiURL, repo.Owner, repo.Name, assetID)

	return g.executeWithRetry(ctx, g.retryPolicy.MaxAttempts, func() error {
		return g.deleteRequest(ctx, requestURL)
	})
}

// TestConnection verifies the API is reachable with the configured token.
// The rate limit endpoint answers without consuming quota and rejects
// bad credentials.
func (g *GitHubReleaseGateway) TestConnection(ctx context.Context) error {
	g.logger.Log(ports.LogLevelDebug, "Testing GitHub API connection", map[string]interface{}{
		"endpoint": g.apiURL,
	})

	start := time.Now()
	err := g.executeWithRetry(ctx, g.retryPolicy.MaxAttempts, func() error {
		var out struct {
			Resources map[string]json.RawMessage `json:"resources"`
		}
		return g.getJSONRequest(ctx, g.apiURL+"/rate_limit", &out)
	})
	if err != nil {
		return err
	}

	g.logger.Log(ports.LogLevelInfo, "GitHub API connection test successful", map[string]interface{}{
		"latency_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// GetRequestStats returns gateway request statistics
func (g *GitHubReleaseGateway) GetRequestStats() ports.RequestStats {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.stats
}

// executeWithRetry executes a function with retry logic and circuit breaker
func (g *GitHubReleaseGateway) executeWithRetry(ctx context.Context, attempts int, fn func() error) error {
	if !g.breaker.CanExecute() {
		return fmt.Errorf("circuit breaker is open")
	}

	var lastErr error
	attempt := 0
	for ; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := g.calculateDelay(attempt)
			g.logger.Log(ports.LogLevelDebug, "Retrying request", map[string]interface{}{
				"attempt": attempt + 1,
				"delay":   delay.String(),
			})
			g.recordRetry()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		g.recordAttempt()

		err := fn()
		if err == nil {
			g.breaker.RecordSuccess()
			g.recordSuccess()
			return nil
		}

		lastErr = err
		g.breaker.RecordFailure()
		g.recordFailure(err)

		if !g.shouldRetry(err) {
			attempt++
			break
		}
	}

	return fmt.Errorf("request failed after %d attempt(s): %w", attempt, lastErr)
}

// getJSONRequest performs an authenticated GET and decodes the response
func (g *GitHubReleaseGateway) getJSONRequest(ctx context.Context, requestURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	g.setRequestHeaders(req)
	g.logHTTPRequest(req)

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	g.logHTTPResponse(resp, latency)

	if err := checkStatus(resp.StatusCode, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	g.updateLatency(latency)
	return nil
}

// uploadRequest streams the asset body to the upload endpoint
func (g *GitHubReleaseGateway) uploadRequest(ctx context.Context, requestURL, contentType string, body io.Reader, size int64, out *ports.Asset) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, body)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	// The upload endpoint insists on an exact Content-Length.
	req.ContentLength = size
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	g.setRequestHeaders(req)
	req.Header.Set("Content-Type", contentType)
	g.logHTTPRequest(req)

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return fmt.Errorf("failed to upload asset: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read upload response: %w", err)
	}
	g.logHTTPResponse(resp, latency)

	if err := checkStatus(resp.StatusCode, respBody); err != nil {
		return err
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode upload response: %w", err)
	}

	g.updateLatency(latency)
	return nil
}

// deleteRequest performs an authenticated DELETE expecting no content
func (g *GitHubReleaseGateway) deleteRequest(ctx context.Context, requestURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create delete request: %w", err)
	}
	g.setRequestHeaders(req)
	g.logHTTPRequest(req)

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return fmt.Errorf("failed to send delete request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	g.logHTTPResponse(resp, latency)

	if err := checkStatus(resp.StatusCode, body); err != nil {
		return err
	}

	g.updateLatency(latency)
	return nil
}

// setRequestHeaders sets common request headers
func (g *GitHubReleaseGateway) setRequestHeaders(req *http.Request) {
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", userAgent)

	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
}

// checkStatus maps non-2xx responses to apiError
func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	if statusCode == http.StatusUnauthorized {
		return &apiError{StatusCode: statusCode, Message: "authentication failed - check your GitHub token"}
	}
	return &apiError{StatusCode: statusCode, Message: errorMessage(body)}
}

// errorMessage extracts the message field GitHub puts in error bodies
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return msg
}

// trimURLTemplate strips the RFC 6570 template suffix from a URL
func trimURLTemplate(s string) string {
	if i := strings.Index(s, "{"); i >= 0 {
		return s[:i]
	}
	return s
}

// calculateDelay calculates the delay for retry attempts
func (g *GitHubReleaseGateway) calculateDelay(attempt int) time.Duration {
	delay := time.Duration(float64(g.retryPolicy.BaseDelay) *
		float64(attempt) * g.retryPolicy.Multiplier)

	if delay > g.retryPolicy.MaxDelay {
		delay = g.retryPolicy.MaxDelay
	}

	return delay
}

// shouldRetry determines if an error should trigger a retry
func (g *GitHubReleaseGateway) shouldRetry(err error) bool {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusRequestTimeout:
			return true
		}
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return false
		}
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Network errors are worth another attempt.
	return true
}

// isDebugEnabled checks if debug logging is enabled
func (g *GitHubReleaseGateway) isDebugEnabled() bool {
	if g.logger != nil && g.logger.GetLogLevel() == ports.LogLevelDebug {
		return true
	}
	return os.Getenv("CSD_DEBUG") == "true"
}

// logHTTPRequest logs HTTP request details for debugging
func (g *GitHubReleaseGateway) logHTTPRequest(req *http.Request) {
	if !g.isDebugEnabled() {
		return
	}
	g.logger.Log(ports.LogLevelDebug, "HTTP Request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})
}

// logHTTPResponse logs HTTP response details for debugging
func (g *GitHubReleaseGateway) logHTTPResponse(resp *http.Response, latency time.Duration) {
	if !g.isDebugEnabled() {
		return
	}
	g.logger.Log(ports.LogLevelDebug, "HTTP Response", map[string]interface{}{
		"status_code": resp.StatusCode,
		"latency_ms":  latency.Milliseconds(),
	})
}

func (g *GitHubReleaseGateway) recordAttempt() {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.stats.TotalRequests++
	g.stats.LastRequestTime = time.Now()
}

func (g *GitHubReleaseGateway) recordSuccess() {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.stats.SuccessfulRequests++
	g.lastError = ""
}

func (g *GitHubReleaseGateway) recordFailure(err error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.stats.FailedRequests++
	g.lastError = err.Error()
}

func (g *GitHubReleaseGateway) recordRetry() {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.stats.RetriedRequests++
}

func (g *GitHubReleaseGateway) recordUpload(size int64) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.stats.TotalBytesUploaded += size
}

// updateLatency updates average latency
func (g *GitHubReleaseGateway) updateLatency(latency time.Duration) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.stats.AverageLatency == 0 {
		g.stats.AverageLatency = latency
	} else {
		// Simple moving average
		g.stats.AverageLatency = (g.stats.AverageLatency + latency) / 2
	}
}
