package dashboard

import (
	"context"
	"log"
	"time"

	"apotekku/backend/internal/cache"
	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
)

// Source is the read side the dashboard is computed from.
type Source interface {
	store.ReportStore
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
	ListBatches(ctx context.Context, filter domain.BatchFilter) ([]domain.Batch, error)
}

type Options struct {
	LowStockThreshold int
	NearExpiryDays    int
	TopN              int
	RecentSales       int
	Months            int
}

type Engine struct {
	source   Source
	cache    cache.DashboardCache
	cacheTTL time.Duration
	opts     Options
}

func NewEngine(source Source, cacheStore cache.DashboardCache, cacheTTL time.Duration, opts Options) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopDashboardCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	if opts.LowStockThreshold <= 0 {
		opts.LowStockThreshold = 50
	}
	if opts.NearExpiryDays <= 0 {
		opts.NearExpiryDays = domain.DefaultNearExpiryDays
	}
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	if opts.RecentSales <= 0 {
		opts.RecentSales = 5
	}
	if opts.Months <= 0 {
		opts.Months = 6
	}

	return &Engine{
		source:   source,
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		opts:     opts,
	}
}

// Build returns the dashboard for the UTC day of now, served from cache when
// a fresh copy exists. Cache failures fall through to a recompute.
func (e *Engine) Build(ctx context.Context, now time.Time) (domain.Dashboard, error) {
	key := cacheKey(now)
	if cached, ok, err := e.cache.Get(ctx, key); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[dashboard] WARN: cache get failed: %v", err)
	}

	dash, err := e.compute(ctx, now)
	if err != nil {
		return domain.Dashboard{}, err
	}
	if err := e.cache.Set(ctx, key, &dash, e.cacheTTL); err != nil {
		log.Printf("[dashboard] WARN: cache set failed: %v", err)
	}
	return dash, nil
}

// Invalidate drops the cached dashboard for the day of at.
func (e *Engine) Invalidate(ctx context.Context, at time.Time) {
	if err := e.cache.Delete(ctx, cacheKey(at)); err != nil {
		log.Printf("[dashboard] WARN: cache invalidate failed: %v", err)
	}
}

func (e *Engine) compute(ctx context.Context, now time.Time) (domain.Dashboard, error) {
	today := domain.DateOf(now)

	stats, err := e.source.GetInventoryStats(ctx, today, e.opts.NearExpiryDays)
	if err != nil {
		return domain.Dashboard{}, err
	}
	todaySales, err := e.source.SumCompletedSales(ctx, today, today.AddDate(0, 0, 1))
	if err != nil {
		return domain.Dashboard{}, err
	}
	recent, err := e.source.ListSales(ctx, domain.SaleFilter{Limit: e.opts.RecentSales})
	if err != nil {
		return domain.Dashboard{}, err
	}
	lowStock, err := e.source.ListLowStock(ctx, e.opts.LowStockThreshold, e.opts.TopN)
	if err != nil {
		return domain.Dashboard{}, err
	}
	windowEnd := today.AddDate(0, 0, e.opts.NearExpiryDays)
	expiring, err := e.source.ListBatches(ctx, domain.BatchFilter{
		InStockOnly:   true,
		ExpiryFrom:    &today,
		ExpiryTo:      &windowEnd,
		OrderByExpiry: true,
		Limit:         e.opts.TopN,
	})
	if err != nil {
		return domain.Dashboard{}, err
	}
	monthly, err := e.monthlyRevenue(ctx, today)
	if err != nil {
		return domain.Dashboard{}, err
	}

	return domain.Dashboard{
		Date:              today.Format("2006-01-02"),
		ActiveMedicines:   stats.ActiveMedicines,
		TotalStock:        stats.TotalStock,
		TodaySales:        todaySales,
		ExpiredBatches:    stats.ExpiredBatches,
		NearExpiryBatches: stats.NearExpiryBatches,
		RecentSales:       recent,
		LowStock:          lowStock,
		ExpiringSoon:      expiring,
		MonthlyRevenue:    monthly,
		GeneratedAt:       now.UTC(),
	}, nil
}

// monthlyRevenue returns the trailing months oldest first, ending with the
// month of today.
func (e *Engine) monthlyRevenue(ctx context.Context, today time.Time) ([]domain.MonthlyRevenue, error) {
	current := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	series := make([]domain.MonthlyRevenue, 0, e.opts.Months)
	for i := e.opts.Months - 1; i >= 0; i-- {
		start := current.AddDate(0, -i, 0)
		total, err := e.source.SumCompletedSales(ctx, start, start.AddDate(0, 1, 0))
		if err != nil {
			return nil, err
		}
		series = append(series, domain.MonthlyRevenue{
			Month:   start.Format("2006-01"),
			Label:   start.Format("Jan 2006"),
			Revenue: total.Revenue,
		})
	}
	return series, nil
}

func cacheKey(at time.Time) string {
	return "dashboard:" + domain.DateOf(at).Format("20060102")
}
