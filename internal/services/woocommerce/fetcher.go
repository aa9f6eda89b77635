package woocommerce

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mobilepoint/comparator-stoc-api/internal/models"
	"github.com/mobilepoint/comparator-stoc-api/internal/reconcile"
)

const (
	defaultPageSize      = 100
	defaultFailureBudget = 3
	defaultMaxPages      = 10000
)

// Fetcher walks the storefront catalog page by page. It implements
// reconcile.CatalogSource.
//
// Requests are strictly sequential with a small pause between them; the
// storefront enforces request-rate ceilings and serial requests need no
// separate throttling.
type Fetcher struct {
	client *Client
	cfg    Config
	log    logrus.FieldLogger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewFetcher builds a fetcher from storefront settings.
func NewFetcher(cfg Config, log logrus.FieldLogger) (*Fetcher, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.FailureBudget <= 0 {
		cfg.FailureBudget = defaultFailureBudget
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Fetcher{
		client: client,
		cfg:    cfg,
		log:    log.WithField("component", "woocommerce"),
		now:    time.Now,
		sleep:  sleepContext,
	}, nil
}

type parent struct {
	id   int64
	name string
}

// Walk emits every stocked catalog item in arrival order: the top-level
// listing in ascending page order first, then the variations of each
// variable product in the order the parents were listed. Variable parents
// themselves are never emitted, and neither are blank SKUs.
func (f *Fetcher) Walk(ctx context.Context, opts reconcile.WalkOptions, yield func(models.CatalogItem) error) (reconcile.WalkStats, error) {
	var stats reconcile.WalkStats
	var parents []parent

	f.log.Info("📥 Fetching storefront products...")
	err := f.paginate(ctx, pageRequest{Path: "products", Published: true, Fields: opts.Fields}, f.cfg.PageDelay, &stats, func(items []product) error {
		observed := f.now().UTC()
		for _, p := range items {
			kind := models.ItemKind(p.Type)
			switch {
			case kind == models.KindVariable:
				stats.VariableParent++
				parents = append(parents, parent{id: p.ID, name: p.Name.String()})
			case kind.Stocked() && kind != models.KindVariation:
				if err := f.emit(toItem(p, kind, 0, "", observed), &stats, yield); err != nil {
					return err
				}
			default:
				f.log.WithFields(logrus.Fields{"id": p.ID, "type": p.Type}).Warn("⚠️ Skipping product of unknown type")
			}
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	if opts.SkipVariations || len(parents) == 0 {
		return stats, nil
	}

	f.log.WithField("variable_products", len(parents)).Info("🔄 Fetching variations...")
	for idx, par := range parents {
		req := pageRequest{Path: fmt.Sprintf("products/%d/variations", par.id), Fields: opts.Fields}
		err := f.paginate(ctx, req, f.cfg.VariationDelay, &stats, func(items []product) error {
			observed := f.now().UTC()
			for _, v := range items {
				stats.Variations++
				if err := f.emit(toItem(v, models.KindVariation, par.id, par.name, observed), &stats, yield); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return stats, err
		}
		if (idx+1)%20 == 0 {
			f.log.WithFields(logrus.Fields{"done": idx + 1, "total": len(parents), "variations": stats.Variations}).Info("🔄 Variations progress")
		}
	}
	return stats, nil
}

func (f *Fetcher) emit(item models.CatalogItem, stats *reconcile.WalkStats, yield func(models.CatalogItem) error) error {
	if item.NormalizedSKU() == "" {
		stats.BlankSKUs++
		return nil
	}
	stats.Items++
	return yield(item)
}

// paginate requests pages 1, 2, ... until an empty page. A failed page is
// skipped and the walk moves on; more than FailureBudget consecutive
// failures abort the listing.
func (f *Fetcher) paginate(ctx context.Context, req pageRequest, delay time.Duration, stats *reconcile.WalkStats, handle func([]product) error) error {
	req.PerPage = f.cfg.PageSize
	consecutive := 0

	for page := 1; page <= f.cfg.MaxPages; page++ {
		if page > 1 && delay > 0 {
			if err := f.sleep(ctx, delay); err != nil {
				return err
			}
		}
		req.Page = page

		items, status, err := f.client.fetchPage(ctx, req)
		stats.Pages++
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			perr := &reconcile.PageError{Listing: req.Path, Page: page, Status: status, Err: err}
			if req.Path == "products" && page == 1 && unreachable(err, status) {
				return fmt.Errorf("%w: %w", reconcile.ErrCatalogUnreachable, perr)
			}

			stats.PagesFailed++
			consecutive++
			f.log.WithFields(logrus.Fields{
				"listing":     req.Path,
				"page":        page,
				"status":      status,
				"consecutive": consecutive,
			}).WithError(err).Warn("⚠️ Catalog page failed, skipping")

			if consecutive > f.cfg.FailureBudget {
				return fmt.Errorf("%s: %d consecutive page failures: %w (last: %w)",
					req.Path, consecutive, reconcile.ErrFailureBudgetExceeded, perr)
			}
			continue
		}
		consecutive = 0

		if len(items) == 0 {
			return nil
		}
		if err := handle(items); err != nil {
			return err
		}
	}

	f.log.WithFields(logrus.Fields{"listing": req.Path, "max_pages": f.cfg.MaxPages}).Warn("⚠️ Listing stopped at page limit")
	return nil
}

// unreachable reports failures that no amount of paging will fix: the host
// cannot be dialled or the credentials are rejected.
func unreachable(err error, status int) bool {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func toItem(p product, kind models.ItemKind, parentID int64, parentName string, observed time.Time) models.CatalogItem {
	name := p.Name.String()
	if name == "" {
		name = parentName
	}
	return models.CatalogItem{
		SKU:          p.SKU.String(),
		ExternalID:   p.ID,
		ParentID:     parentID,
		Name:         name,
		Kind:         kind,
		Quantity:     p.StockQuantity.Ptr(),
		Availability: models.ParseAvailability(p.StockStatus),
		ObservedAt:   observed,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
