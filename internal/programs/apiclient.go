package programs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/delegation-oracle/internal/circuitbreaker"
)

const lamportsPerSOL = 1_000_000_000.0

// apiClient is the shared HTTP client for program endpoints. Each
// endpoint gets its own circuit breaker so one dead API cannot drag
// every scan through its retry budget.
type apiClient struct {
	httpClient *http.Client

	mu       sync.Mutex
	breakers map[string]*circuitbreaker.Breaker
}

func newAPIClient() *apiClient {
	return &apiClient{
		httpClient: newRetryClient(),
		breakers:   make(map[string]*circuitbreaker.Breaker),
	}
}

// newRetryClient creates an HTTP client with retry logic
func newRetryClient() *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 3 * time.Second
	retryClient.HTTPClient.Timeout = 12 * time.Second
	retryClient.Logger = nil
	return retryClient.StandardClient()
}

func (c *apiClient) breakerFor(endpoint string) *circuitbreaker.Breaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.breakers[endpoint]
	if !ok {
		b = circuitbreaker.New(endpoint)
		c.breakers[endpoint] = b
	}
	return b
}

// fetchJSON GETs url and decodes the body into an arbitrary JSON value.
// Calls are gated by the endpoint's circuit breaker.
func (c *apiClient) fetchJSON(ctx context.Context, url string) (any, error) {
	breaker := c.breakerFor(url)
	if err := breaker.Allow(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "delegation-oracle/0.2")

	logrus.WithField("url", url).Debug("Fetching program API")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		breaker.RecordFailure()
		return nil, fmt.Errorf("error fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		breaker.RecordFailure()
		return nil, fmt.Errorf("error reading response from %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		breaker.RecordFailure()
		return nil, fmt.Errorf("GET %s returned %d: %s", url, resp.StatusCode, preview(body, 180))
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		breaker.RecordFailure()
		return nil, fmt.Errorf("invalid JSON response from %s: %w", url, err)
	}
	breaker.RecordSuccess()
	return value, nil
}

func preview(body []byte, max int) string {
	s := string(body)
	if len(s) > max {
		s = s[:max]
	}
	return strings.TrimSpace(s)
}

// parseEligibleValidators extracts delegation-set entries from an
// arbitrary API payload. Program APIs disagree on field names and
// nesting, so extraction probes a list of candidate paths and keeps
// the first non-empty hit per entry. Duplicate vote pubkeys are
// dropped; extraction stops at maxItems.
func parseEligibleValidators(payload any, votePaths, scorePaths, delegationPaths []string, maxItems int) []EligibleValidator {
	seen := make(map[string]bool)
	var out []EligibleValidator

	for _, array := range candidateObjectArrays(payload) {
		for _, entry := range array {
			object, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			votePubkey, ok := stringFromPaths(object, votePaths)
			if !ok || seen[votePubkey] {
				continue
			}
			seen[votePubkey] = true

			validator := EligibleValidator{VotePubkey: votePubkey}
			if score, ok := numberFromPaths(object, scorePaths); ok {
				validator.Score = &score
			}
			if delegated, ok := numberFromPaths(object, delegationPaths); ok {
				sol := lamportsToSOLIfNeeded(delegated)
				validator.DelegatedSOL = &sol
			}

			out = append(out, validator)
			if len(out) >= maxItems {
				return out
			}
		}
	}
	return out
}

// lamportsToSOLIfNeeded converts values that are clearly lamports.
// Anything at or above one SOL worth of lamports cannot plausibly be a
// SOL amount in this domain.
func lamportsToSOLIfNeeded(value float64) float64 {
	if value >= lamportsPerSOL || value <= -lamportsPerSOL {
		return value / lamportsPerSOL
	}
	return value
}

// bpsToPercentIfNeeded converts basis-point fee fields to percent
func bpsToPercentIfNeeded(value float64) float64 {
	if value > 100.0 || value < -100.0 {
		return value / 100.0
	}
	return value
}

// candidateObjectArrays finds arrays of objects at the payload root or
// under the container keys program APIs commonly use.
func candidateObjectArrays(payload any) [][]any {
	var arrays [][]any
	if arr, ok := payload.([]any); ok && looksLikeObjectArray(arr) {
		arrays = append(arrays, arr)
	}

	object, ok := payload.(map[string]any)
	if !ok {
		return arrays
	}
	containerKeys := []string{
		"validators", "data", "result", "items", "list",
		"eligible_validators", "validator_list",
	}
	for _, key := range containerKeys {
		value, ok := getCaseInsensitive(object, key)
		if !ok {
			continue
		}
		if arr, ok := value.([]any); ok && looksLikeObjectArray(arr) {
			arrays = append(arrays, arr)
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			for _, nestedKey := range []string{"validators", "items", "list", "data"} {
				if inner, ok := getCaseInsensitive(nested, nestedKey); ok {
					if arr, ok := inner.([]any); ok && looksLikeObjectArray(arr) {
						arrays = append(arrays, arr)
					}
				}
			}
		}
	}
	return arrays
}

func looksLikeObjectArray(arr []any) bool {
	for i, entry := range arr {
		if i >= 5 {
			break
		}
		if _, ok := entry.(map[string]any); ok {
			return true
		}
	}
	return false
}

// stringFromPaths resolves dot-separated candidate paths against the
// object and returns the first usable string.
func stringFromPaths(object map[string]any, paths []string) (string, bool) {
	for _, path := range paths {
		value, ok := pathValue(object, path)
		if !ok {
			continue
		}
		switch v := value.(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed, true
			}
		case float64:
			return fmt.Sprintf("%g", v), true
		}
	}
	return "", false
}

func numberFromPaths(object map[string]any, paths []string) (float64, bool) {
	for _, path := range paths {
		value, ok := pathValue(object, path)
		if !ok {
			continue
		}
		if n, ok := toFloat64(value); ok {
			return n, true
		}
	}
	return 0, false
}

func pathValue(object map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	current, ok := getCaseInsensitive(object, segments[0])
	if !ok {
		return nil, false
	}
	for _, segment := range segments[1:] {
		nested, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = getCaseInsensitive(nested, segment)
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func getCaseInsensitive(object map[string]any, key string) (any, bool) {
	if value, ok := object[key]; ok {
		return value, true
	}
	for k, v := range object {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// toFloat64 accepts numbers and the numeric-string shapes program APIs
// emit ("1,234", "8.5%", "1_000").
func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case string:
		sanitized := strings.NewReplacer(",", "", "%", "", "_", "").Replace(strings.TrimSpace(v))
		if parsed, err := strconv.ParseFloat(sanitized, 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}
