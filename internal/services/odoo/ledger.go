package odoo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mobilepoint/comparator-stoc-api/internal/models"
	"github.com/mobilepoint/comparator-stoc-api/internal/reconcile"
)

const pageLimit = 1000

// Config holds Odoo connection settings
type Config struct {
	URL           string
	Database      string
	Username      string
	Password      string
	WarehouseName string
	Timeout       time.Duration
}

// many2one decodes Odoo relational fields, which arrive as [id, "name"] or false.
type many2one struct {
	ID   int64
	Name string
}

func (m *many2one) UnmarshalJSON(data []byte) error {
	*m = many2one{}
	var pair []interface{}
	if err := json.Unmarshal(data, &pair); err != nil || len(pair) == 0 {
		return nil
	}
	if id, ok := pair[0].(float64); ok {
		m.ID = int64(id)
	}
	if len(pair) > 1 {
		if name, ok := pair[1].(string); ok {
			m.Name = name
		}
	}
	return nil
}

type warehouse struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	LotStockID many2one `json:"lot_stock_id"`
}

type quant struct {
	ID        int64             `json:"id"`
	ProductID many2one          `json:"product_id"`
	Quantity  models.LooseFloat `json:"quantity"`
}

type product struct {
	ID          int64              `json:"id"`
	DefaultCode models.LooseString `json:"default_code"`
	Name        models.LooseString `json:"name"`
}

// LedgerSource reads on-hand quantities of one Odoo warehouse. It
// implements reconcile.LedgerSource.
type LedgerSource struct {
	client *Client
	cfg    Config
	log    logrus.FieldLogger
	mu     sync.Mutex // xmlrpc calls and Uid are not shared across goroutines
}

// NewLedgerSource creates an Odoo ledger source.
func NewLedgerSource(cfg Config, log logrus.FieldLogger) (*LedgerSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("odoo URL is required")
	}
	if cfg.WarehouseName == "" {
		return nil, fmt.Errorf("odoo warehouse name is required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LedgerSource{
		client: NewClient(strings.TrimRight(cfg.URL, "/"), cfg.Database, cfg.Username, cfg.Password, cfg.Timeout),
		cfg:    cfg,
		log:    log.WithField("component", "odoo"),
	}, nil
}

// Name identifies the ledger in reports.
func (s *LedgerSource) Name() string {
	return "odoo:" + s.cfg.WarehouseName
}

// FetchLedger sums stock.quant quantities below the warehouse stock
// location, per product internal reference (default_code).
func (s *LedgerSource) FetchLedger(ctx context.Context) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client.Uid == 0 {
		if _, err := s.client.Authenticate(); err != nil {
			return nil, fmt.Errorf("%w: %v", reconcile.ErrLedgerUnreachable, err)
		}
	}

	var warehouses []warehouse
	err := s.client.SearchRead("stock.warehouse", []interface{}{
		[]interface{}{"name", "=", s.cfg.WarehouseName},
	}, []string{"name", "lot_stock_id"}, 1, 0, &warehouses)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", reconcile.ErrLedgerUnreachable, err)
	}
	if len(warehouses) == 0 || warehouses[0].LotStockID.ID == 0 {
		return nil, fmt.Errorf("odoo warehouse %q not found", s.cfg.WarehouseName)
	}
	locationID := warehouses[0].LotStockID.ID

	var quants []quant
	for offset := 0; ; offset += pageLimit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var page []quant
		err := s.client.SearchRead("stock.quant", []interface{}{
			[]interface{}{"location_id", "child_of", locationID},
		}, []string{"product_id", "quantity"}, pageLimit, offset, &page)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", reconcile.ErrLedgerUnreachable, err)
		}
		quants = append(quants, page...)
		if len(page) < pageLimit {
			break
		}
	}

	ids := productIDs(quants)
	products := make(map[int64]product, len(ids))
	for start := 0; start < len(ids); start += pageLimit {
		end := start + pageLimit
		if end > len(ids) {
			end = len(ids)
		}
		var page []product
		if err := s.client.Read("product.product", ids[start:end], []string{"default_code", "name"}, &page); err != nil {
			return nil, fmt.Errorf("%w: %v", reconcile.ErrLedgerUnreachable, err)
		}
		for _, p := range page {
			products[p.ID] = p
		}
	}

	entries := aggregateQuants(quants, products)
	s.log.WithFields(logrus.Fields{
		"warehouse": s.cfg.WarehouseName,
		"quants":    len(quants),
		"entries":   len(entries),
	}).Info("✅ Odoo: Ledger fetched")
	return entries, nil
}

func productIDs(quants []quant) []int64 {
	seen := make(map[int64]struct{}, len(quants))
	ids := make([]int64, 0, len(quants))
	for _, q := range quants {
		if q.ProductID.ID == 0 {
			continue
		}
		if _, ok := seen[q.ProductID.ID]; ok {
			continue
		}
		seen[q.ProductID.ID] = struct{}{}
		ids = append(ids, q.ProductID.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// aggregateQuants sums quant quantities per product code. Products without
// an internal reference cannot be matched to a SKU and are dropped.
func aggregateQuants(quants []quant, products map[int64]product) []models.LedgerEntry {
	byCode := make(map[string]*models.LedgerEntry)
	order := make([]string, 0)
	for _, q := range quants {
		p, ok := products[q.ProductID.ID]
		if !ok {
			continue
		}
		code := strings.TrimSpace(p.DefaultCode.String())
		if code == "" {
			continue
		}
		e, ok := byCode[code]
		if !ok {
			name := p.Name.String()
			if name == "" {
				name = q.ProductID.Name
			}
			e = &models.LedgerEntry{Code: code, Name: name}
			byCode[code] = e
			order = append(order, code)
		}
		e.Quantity += q.Quantity.OrZero()
	}

	entries := make([]models.LedgerEntry, 0, len(order))
	for _, code := range order {
		entries = append(entries, *byCode[code])
	}
	return entries
}
