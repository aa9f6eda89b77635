package woocommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mobilepoint/comparator-stoc-api/internal/models"
)

// Config holds storefront connection settings.
type Config struct {
	URL            string // storefront base URL, e.g. https://shop.example.com
	ConsumerKey    string
	ConsumerSecret string
	PageSize       int           // items per page (default 100)
	Timeout        time.Duration // per request (default 30s)
	PageDelay      time.Duration // pause between listing pages
	VariationDelay time.Duration // pause between variation pages
	FailureBudget  int           // consecutive page failures tolerated (default 3)
	MaxPages       int           // safety stop per listing (default 10000)
	UserAgent      string
	HTTPClient     *http.Client
}

// product is the subset of a WooCommerce product or variation we consume.
type product struct {
	ID            int64              `json:"id"`
	SKU           models.LooseString `json:"sku"`
	Name          models.LooseString `json:"name"`
	Type          string             `json:"type"`
	StockQuantity models.LooseFloat  `json:"stock_quantity"`
	StockStatus   string             `json:"stock_status"`
}

// Client is a thin REST v3 client.
type Client struct {
	baseURL    string
	key        string
	secret     string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient validates the base URL and builds a client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.URL)
	if base == "" {
		return nil, fmt.Errorf("woocommerce URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid woocommerce URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "comparator-stoc/1.0"
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/") + "/wp-json/wc/v3",
		key:        cfg.ConsumerKey,
		secret:     cfg.ConsumerSecret,
		userAgent:  ua,
		timeout:    timeout,
		httpClient: hc,
	}, nil
}

// pageRequest identifies one page of a listing.
type pageRequest struct {
	Path      string // "products" or "products/{id}/variations"
	Page      int
	PerPage   int
	Published bool
	Fields    []string
}

// statusError is returned for non-2xx responses.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// fetchPage performs one GET and decodes the item array.
func (c *Client) fetchPage(ctx context.Context, req pageRequest) ([]product, int, error) {
	u, err := url.Parse(c.baseURL + "/" + req.Path)
	if err != nil {
		return nil, 0, err
	}
	q := u.Query()
	q.Set("per_page", strconv.Itoa(req.PerPage))
	q.Set("page", strconv.Itoa(req.Page))
	if req.Published {
		q.Set("status", "publish")
	}
	if len(req.Fields) > 0 {
		q.Set("_fields", strings.Join(req.Fields, ","))
	}
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, err
	}
	httpReq.SetBasicAuth(c.key, c.secret)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, resp.StatusCode, &statusError{Status: resp.StatusCode, Body: snippet}
	}

	var items []product
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode page: %w", err)
	}
	return items, resp.StatusCode, nil
}
