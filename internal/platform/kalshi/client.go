// Package kalshi implements the REST and WebSocket clients for the Kalshi
// exchange API.
package kalshi

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

// Client is the REST client for the Kalshi exchange API. All requests are
// RSA-PSS signed and pass through a shared rate limiter so concurrent market
// evaluations cannot trip the exchange's per-key limits.
type Client struct {
	baseURL    string
	apiKeyID   string
	privateKey *rsa.PrivateKey
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	// Short-lived caches for portfolio reads. Exposure checks bypass them.
	cacheMu        sync.Mutex
	positionsCache cached[[]domain.Holding]
	ordersCache    cached[[]domain.RestingOrder]
	cacheTTL       time.Duration
}

type cached[T any] struct {
	value   T
	fetched time.Time
}

// NewClient creates a new Kalshi REST client. requestsPerSecond bounds the
// outbound request rate; Kalshi's documented basic-tier limit is 10/s.
func NewClient(baseURL, apiKeyID string, requestsPerSecond float64, logger *slog.Logger) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 8
	}
	return &Client{
		baseURL:  baseURL,
		apiKeyID: apiKeyID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)),
		logger:   logger.With(slog.String("component", "kalshi")),
		cacheTTL: 10 * time.Second,
	}
}

// SetCacheTTL overrides the portfolio cache TTL.
func (c *Client) SetCacheTTL(ttl time.Duration) {
	c.cacheMu.Lock()
	c.cacheTTL = ttl
	c.cacheMu.Unlock()
}

// LoadRSAPrivateKey reads a PEM file from disk and configures the client for
// signed requests.
func (c *Client) LoadRSAPrivateKey(path string) error {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("kalshi: read private key: %w", err)
	}
	return c.SetRSAPrivateKey(pemBytes)
}

// SetRSAPrivateKey loads an RSA private key from PEM-encoded bytes.
func (c *Client) SetRSAPrivateKey(pemBytes []byte) error {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return errors.New("kalshi: no PEM block found in private key")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS1 as fallback.
		pkcs1Key, pkcs1Err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if pkcs1Err != nil {
			return fmt.Errorf("kalshi: parse private key: %w (pkcs1: %v)", err, pkcs1Err)
		}
		c.privateKey = pkcs1Key
		return nil
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("kalshi: expected RSA private key, got %T", key)
	}
	c.privateKey = rsaKey
	return nil
}

// --------------------------------------------------------------------------
// Transport
// --------------------------------------------------------------------------

// doSignedRequest builds, signs, rate-limits, sends and reads an HTTP
// request against the Kalshi API. path must include the query string; the
// signature covers the path without it.
func (c *Client) doSignedRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	fullURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if err := c.signRequest(req, method, signingPath(path)); err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// signingPath strips the query string; the signature covers only the path.
func signingPath(path string) string {
	for i := 0; i < len(path); i++ {
		if path[i] == '?' {
			return path[:i]
		}
	}
	return path
}

// signRequest adds RSA authentication headers. Kalshi uses RSA-PSS-SHA256
// signatures over timestamp + method + "/trade-api/v2" + path.
func (c *Client) signRequest(req *http.Request, method, path string) error {
	if c.privateKey == nil {
		return errors.New("kalshi: RSA private key not configured")
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	message := ts + method + "/trade-api/v2" + path

	hash := sha256.Sum256([]byte(message))
	signature, err := rsa.SignPSS(rand.Reader, c.privateKey, crypto.SHA256, hash[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return fmt.Errorf("RSA sign: %w", err)
	}

	req.Header.Set("KALSHI-ACCESS-KEY", c.apiKeyID)
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", base64.StdEncoding.EncodeToString(signature))
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", ts)

	return nil
}

// checkStatus maps non-2xx HTTP status codes to domain errors so callers can
// branch with errors.Is.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr ErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("kalshi: %s (%s): %w", apiErr.Message, apiErr.Code, domain.ErrNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("kalshi: %s (%s): %w", apiErr.Message, apiErr.Code, domain.ErrUnauthorized)
	case http.StatusTooManyRequests:
		return fmt.Errorf("kalshi: %s (%s): %w", apiErr.Message, apiErr.Code, domain.ErrRateLimited)
	case http.StatusBadRequest:
		return fmt.Errorf("kalshi: bad request: %s (%s): %w", apiErr.Message, apiErr.Code, domain.ErrInvalidOrder)
	default:
		return fmt.Errorf("kalshi: HTTP %d: %s (%s)", statusCode, apiErr.Message, apiErr.Code)
	}
}
