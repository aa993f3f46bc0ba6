package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/agrivet-pos/internal/transactions"
	"github.com/angelmondragon/agrivet-pos/pkg/logger"
)

const closeMarkerTTL = 72 * time.Hour

type summaryReader interface {
	DailySummary(ctx context.Context, day time.Time) (*transactions.DailySummary, error)
}

// closeMarkers remembers which days were already reported.
type closeMarkers interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	DailyCloseKey(day string) string
}

// DailyCloseJobParams configure the end-of-day report.
type DailyCloseJobParams struct {
	Logger   *logger.Logger
	Sales    summaryReader
	Markers  closeMarkers
	Location *time.Location
}

type dailyCloseJob struct {
	logg    *logger.Logger
	sales   summaryReader
	markers closeMarkers
	loc     *time.Location
	now     func() time.Time
}

// NewDailyCloseJob returns a job that logs the previous day's sales totals
// once. Markers may be nil, in which case every run reports.
func NewDailyCloseJob(params DailyCloseJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sales == nil {
		return nil, fmt.Errorf("sales reader required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	return &dailyCloseJob{
		logg:    params.Logger,
		sales:   params.Sales,
		markers: params.Markers,
		loc:     loc,
		now:     time.Now,
	}, nil
}

func (j *dailyCloseJob) Name() string { return "daily-close" }

func (j *dailyCloseJob) Run(ctx context.Context) error {
	today := j.now().In(j.loc)
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, j.loc).AddDate(0, 0, -1)
	label := day.Format(time.DateOnly)

	if j.markers != nil {
		first, err := j.markers.SetNX(ctx, j.markers.DailyCloseKey(label), j.now().UTC().Format(time.RFC3339), closeMarkerTTL)
		if err != nil {
			return fmt.Errorf("claim close marker: %w", err)
		}
		if !first {
			return nil
		}
	}

	summary, err := j.sales.DailySummary(ctx, day)
	if err != nil {
		if j.markers != nil {
			_ = j.markers.Del(ctx, j.markers.DailyCloseKey(label))
		}
		return fmt.Errorf("daily summary %s: %w", label, err)
	}

	byMethod := make(map[string]string, len(summary.ByMethod))
	for _, m := range summary.ByMethod {
		byMethod[string(m.PaymentMethod)] = m.Gross.StringFixed(2)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"day":       summary.Day,
		"sales":     summary.Count,
		"gross":     summary.Gross.StringFixed(2),
		"by_method": byMethod,
	}), "daily close")
	return nil
}
