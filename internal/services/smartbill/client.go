package smartbill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mobilepoint/comparator-stoc-api/internal/models"
	"github.com/mobilepoint/comparator-stoc-api/internal/reconcile"
)

const defaultURL = "https://ws.smartbill.ro/SBORO/api"

// Config holds SmartBill credentials and the warehouse to read.
type Config struct {
	URL           string // API base, defaults to the public SmartBill endpoint
	Email         string
	Token         string
	CIF           string // company fiscal code
	WarehouseName string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// stocksResponse is the documented shape of GET /stocks:
//
//	{"list": [{"warehouse": {...}, "products": [{"productCode", "productName", "quantity"}]}]}
type stocksResponse struct {
	List []struct {
		Products []stockProduct `json:"products"`
	} `json:"list"`
}

type stockProduct struct {
	ProductCode models.LooseString `json:"productCode"`
	ProductName models.LooseString `json:"productName"`
	Quantity    models.LooseFloat  `json:"quantity"`
}

// Client reads one warehouse from the SmartBill stocks API. It implements
// reconcile.LedgerSource.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	log        logrus.FieldLogger
	now        func() time.Time
}

// NewClient validates the configuration.
func NewClient(cfg Config, log logrus.FieldLogger) (*Client, error) {
	if cfg.Email == "" || cfg.Token == "" {
		return nil, fmt.Errorf("smartbill email and token are required")
	}
	if cfg.CIF == "" {
		return nil, fmt.Errorf("smartbill CIF is required")
	}
	if cfg.WarehouseName == "" {
		return nil, fmt.Errorf("smartbill warehouse name is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		base = defaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: hc,
		log:        log.WithField("component", "smartbill"),
		now:        time.Now,
	}, nil
}

// Name identifies the ledger in reports.
func (c *Client) Name() string {
	return "smartbill:" + c.cfg.WarehouseName
}

// FetchLedger returns today's stock lines for the configured warehouse.
// Transport failures and non-2xx statuses are fatal; a body that does not
// match the documented schema degrades to an empty ledger.
func (c *Client) FetchLedger(ctx context.Context) ([]models.LedgerEntry, error) {
	q := url.Values{}
	q.Set("cif", c.cfg.CIF)
	q.Set("date", c.now().Format("2006-01-02"))
	q.Set("warehouseName", c.cfg.WarehouseName)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stocks?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.cfg.Email, c.cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", reconcile.ErrLedgerUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", reconcile.ErrLedgerUnreachable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", reconcile.ErrLedgerUnreachable, resp.StatusCode)
	}

	entries, err := ParseStocks(body)
	if err != nil {
		c.log.WithError(err).Warn("⚠️ SmartBill response did not match the stocks schema, using an empty ledger")
		return []models.LedgerEntry{}, nil
	}
	c.log.WithFields(logrus.Fields{"warehouse": c.cfg.WarehouseName, "entries": len(entries)}).Info("✅ SmartBill stocks fetched")
	return entries, nil
}

var errSchema = errors.New("unexpected stocks schema")

// ParseStocks decodes a stocks response strictly against the documented
// schema. Blank product codes are dropped and unreadable quantities become 0.
func ParseStocks(body []byte) ([]models.LedgerEntry, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errSchema, err)
	}
	if _, ok := raw["list"]; !ok {
		return nil, fmt.Errorf("%w: missing \"list\"", errSchema)
	}

	var resp stocksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", errSchema, err)
	}

	entries := make([]models.LedgerEntry, 0)
	for _, w := range resp.List {
		for _, p := range w.Products {
			code := strings.TrimSpace(p.ProductCode.String())
			if code == "" {
				continue
			}
			entries = append(entries, models.LedgerEntry{
				Code:     code,
				Name:     p.ProductName.String(),
				Quantity: p.Quantity.OrZero(),
			})
		}
	}
	return entries, nil
}
