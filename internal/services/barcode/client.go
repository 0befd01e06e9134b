// Package barcode looks up product names for scanned barcodes and tracks the
// scanning session of the add-item form.
package barcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/benvon/smart-pantry/internal/kv"
	"github.com/benvon/smart-pantry/internal/logger"
	"github.com/benvon/smart-pantry/internal/validation"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the go-upc.com API root
	DefaultBaseURL = "https://go-upc.com/api/v1"
	// DefaultTimeout is the default timeout for lookups
	DefaultTimeout = 10 * time.Second

	// ScanningName is shown while no product has been read yet
	ScanningName = "Scanning..."
	// NotFoundName is shown when a code has no product
	NotFoundName = "Product Not Found"

	cachePrefix = "barcode:"
)

// ErrInvalidCode is returned for codes that are not 6 to 14 digits
var ErrInvalidCode = errors.New("invalid barcode")

// Lookup resolves a barcode to a product name
type Lookup interface {
	Lookup(ctx context.Context, code string) (string, error)
}

// productInfo is the go-upc response body
type productInfo struct {
	Code     string `json:"code"`
	CodeType string `json:"codeType"`
	Product  *struct {
		Name     string `json:"name"`
		Brand    string `json:"brand"`
		Category string `json:"category"`
	} `json:"product"`
}

// Client looks up products on go-upc.com and caches names in the kv store
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cache   kv.Store
	logger  *zap.Logger
}

var _ Lookup = (*Client)(nil)

// NewClient creates a lookup client. cache may be nil.
func NewClient(baseURL, apiKey string, cache kv.Store, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: DefaultTimeout},
		cache:   cache,
		logger:  log,
	}
}

// ValidateCode checks that code looks like an EAN/UPC barcode
func ValidateCode(code string) error {
	if err := validation.Validate.Var(code, "required,numeric,min=6,max=14"); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidCode, logger.SanitizeText(code))
	}
	return nil
}

// Lookup returns the product name for code, or NotFoundName when the service
// has no usable product. Transport failures are returned as errors.
func (c *Client) Lookup(ctx context.Context, code string) (string, error) {
	if err := ValidateCode(code); err != nil {
		return "", err
	}

	if name, ok := c.cached(ctx, code); ok {
		return name, nil
	}

	endpoint := fmt.Sprintf("%s/code/%s?key=%s", c.baseURL, url.PathEscape(code), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("barcode lookup failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.logger.Info("barcode_product_not_found", zap.String("code", code))
		return NotFoundName, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", fmt.Errorf("barcode lookup returned status %d", resp.StatusCode)
	}

	var info productInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil || info.Product == nil || strings.TrimSpace(info.Product.Name) == "" {
		c.logger.Info("barcode_product_not_found", zap.String("code", code))
		return NotFoundName, nil
	}

	name := strings.TrimSpace(info.Product.Name)
	c.store(ctx, code, name)
	c.logger.Debug("barcode_product_found", zap.String("code", code), logger.Text("name", name))
	return name, nil
}

func (c *Client) cached(ctx context.Context, code string) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	data, err := c.cache.Get(ctx, cachePrefix+code)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			c.logger.Warn("barcode_cache_read_failed", zap.Error(err))
		}
		return "", false
	}
	return string(data), true
}

func (c *Client) store(ctx context.Context, code, name string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Put(ctx, cachePrefix+code, []byte(name)); err != nil {
		c.logger.Warn("barcode_cache_write_failed", zap.Error(err))
	}
}

// UsableName returns name unless it is one of the placeholder names, in which
// case it returns the empty string.
func UsableName(name string) string {
	if name == ScanningName || name == NotFoundName {
		return ""
	}
	return name
}
