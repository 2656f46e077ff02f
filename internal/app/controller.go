package app

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"scaletrack/internal/cache"
	"scaletrack/internal/domain"
)

// PeriodData is one period's worth of fetched data: daily records at month
// granularity, monthly averages at year granularity. Exactly one of the two
// slices is populated, matching Granularity.
type PeriodData struct {
	Key         string                   `json:"periodKey"`
	Granularity domain.Granularity       `json:"granularity"`
	Records     []domain.Record          `json:"records,omitempty"`
	Averages    []domain.AggregateRecord `json:"averages,omitempty"`
}

// Controller serves period reads for one owner, consulting the cache before
// the record source. Concurrent fetches for the same period share a single
// in-flight source call; a failed fetch leaves the cache exactly as it was.
type Controller struct {
	ownerID int64
	source  domain.RecordSource
	store   *cache.Store
	metrics *cache.Metrics
	logger  *zap.Logger
	group   singleflight.Group
	now     func() time.Time
}

// NewController creates a controller for ownerID over the given store.
func NewController(ownerID int64, source domain.RecordSource, store *cache.Store, metrics *cache.Metrics, logger *zap.Logger) *Controller {
	return &Controller{
		ownerID: ownerID,
		source:  source,
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// FetchRecords returns the period containing ref at the requested
// granularity. A trusted cache hit returns without touching the source; a
// miss or stale entry fetches from the source and caches the result on
// success. Errors from the source propagate unchanged and nothing is written
// to the cache, so a later retry starts from a clean slate.
func (c *Controller) FetchRecords(ctx context.Context, ref time.Time, g domain.Granularity) (*PeriodData, error) {
	if g == domain.GranularityYear {
		return c.fetchYear(ctx, ref)
	}
	return c.fetchMonth(ctx, ref)
}

func (c *Controller) fetchMonth(ctx context.Context, ref time.Time) (*PeriodData, error) {
	key := domain.PeriodKey(ref, domain.GranularityMonth)
	if cache.Trustworthy(key, domain.GranularityMonth, c.now()) {
		if records, ok := c.store.Daily(key); ok {
			c.metrics.Hit(domain.GranularityMonth)
			return &PeriodData{Key: key, Granularity: domain.GranularityMonth, Records: records}, nil
		}
	}
	c.metrics.Miss(domain.GranularityMonth)

	v, err, _ := c.group.Do("month/"+key, func() (any, error) {
		start, end := domain.MonthWindow(ref, c.now())
		records, err := c.source.ListRange(ctx, c.ownerID, start, end)
		if err != nil {
			return nil, err
		}
		c.store.PutDaily(key, records)
		return records, nil
	})
	if err != nil {
		c.logger.Warn("month fetch failed",
			zap.String("period", key),
			zap.Int64("owner", c.ownerID),
			zap.Error(err))
		return nil, err
	}
	return &PeriodData{Key: key, Granularity: domain.GranularityMonth, Records: v.([]domain.Record)}, nil
}

func (c *Controller) fetchYear(ctx context.Context, ref time.Time) (*PeriodData, error) {
	key := domain.PeriodKey(ref, domain.GranularityYear)
	if averages, ok := c.store.Aggregates(key); ok {
		c.metrics.Hit(domain.GranularityYear)
		return &PeriodData{Key: key, Granularity: domain.GranularityYear, Averages: averages}, nil
	}
	c.metrics.Miss(domain.GranularityYear)

	v, err, _ := c.group.Do("year/"+key, func() (any, error) {
		start, end := domain.YearWindow(ref)
		averages, err := c.source.ListMonthlyAverages(ctx, c.ownerID, start, end)
		if err != nil {
			return nil, err
		}
		c.store.PutAggregates(key, averages)
		return averages, nil
	})
	if err != nil {
		c.logger.Warn("year fetch failed",
			zap.String("period", key),
			zap.Int64("owner", c.ownerID),
			zap.Error(err))
		return nil, err
	}
	return &PeriodData{Key: key, Granularity: domain.GranularityYear, Averages: v.([]domain.AggregateRecord)}, nil
}
