package chat

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/apollo-risk/risk-assistant/internal/model"
	"github.com/apollo-risk/risk-assistant/pkg/logger"
	"github.com/apollo-risk/risk-assistant/pkg/metrics"
)

var tracer = otel.Tracer("github.com/apollo-risk/risk-assistant/internal/chat")

// DataSource is the read side of the data store the assistant is grounded in.
type DataSource interface {
	DashboardSummary(ctx context.Context, scope model.Scope) (model.DashboardSummary, error)
	TopRisks(ctx context.Context, n int, scope model.Scope) ([]model.TopRisk, error)
	SiteSummaries(ctx context.Context, serviceID *int64) ([]model.GroupSummary, error)
	CategorySummaries(ctx context.Context, scope model.Scope) ([]model.GroupSummary, error)
	OwnerSummaries(ctx context.Context, scope model.Scope) ([]model.GroupSummary, error)
	TrendSeries(ctx context.Context, months int, scope model.Scope) ([]model.TrendPoint, error)
	Watchlist(ctx context.Context, scope model.Scope) ([]model.WatchlistItem, error)
	Sites(ctx context.Context) ([]model.Site, error)
	Services(ctx context.Context) ([]model.Service, error)
	Categories(ctx context.Context) ([]model.Category, error)
	Users(ctx context.Context) ([]model.User, error)
}

const (
	DefaultTopRisks    = 10
	DefaultTrendMonths = 6
	defaultParallelism = 4
)

// AssemblerOptions tunes context assembly. Zero values select the defaults.
type AssemblerOptions struct {
	TopRisks    int
	TrendMonths int

	// Parallelism bounds concurrent data store queries.
	Parallelism int
}

// Assembler gathers a ContextSnapshot from a DataSource.
type Assembler struct {
	source DataSource
	logger *logger.Logger
	opts   AssemblerOptions
}

// NewAssembler creates an assembler over source.
func NewAssembler(source DataSource, log *logger.Logger, opts AssemblerOptions) *Assembler {
	if opts.TopRisks <= 0 {
		opts.TopRisks = DefaultTopRisks
	}
	if opts.TrendMonths <= 0 {
		opts.TrendMonths = DefaultTrendMonths
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = defaultParallelism
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Assembler{source: source, logger: log, opts: opts}
}

// Assemble fetches every section concurrently. A failed fetch is logged and
// its section left empty; assembly itself never fails.
func (a *Assembler) Assemble(ctx context.Context, scope model.Scope) ContextSnapshot {
	ctx, span := tracer.Start(ctx, "chat.assemble_context")
	defer span.End()

	snap := ContextSnapshot{TrendMonths: a.opts.TrendMonths}
	var failed atomic.Int32

	g := new(errgroup.Group)
	g.SetLimit(a.opts.Parallelism)

	// Each fetch writes only its own snapshot field.
	fetch := func(section string, fn func(ctx context.Context) error) {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
				if err != nil {
					failed.Add(1)
					metrics.ContextSectionFailures.WithLabelValues(section).Inc()
					a.logger.Warn("context section unavailable",
						zap.String("section", section),
						zap.String("correlation_id", logger.CorrelationID(ctx)),
						zap.Error(err),
					)
				}
				err = nil
			}()
			return fn(ctx)
		})
	}

	fetch("summary", func(ctx context.Context) error {
		s, err := a.source.DashboardSummary(ctx, scope)
		if err != nil {
			return err
		}
		if s.TotalRisks > 0 {
			snap.Summary = &s
		}
		return nil
	})
	fetch("top_risks", func(ctx context.Context) (err error) {
		snap.TopRisks, err = a.source.TopRisks(ctx, a.opts.TopRisks, scope)
		return err
	})
	fetch("sites", func(ctx context.Context) (err error) {
		snap.Sites, err = a.source.SiteSummaries(ctx, scope.ServiceID)
		return err
	})
	fetch("categories", func(ctx context.Context) (err error) {
		snap.Categories, err = a.source.CategorySummaries(ctx, scope)
		return err
	})
	fetch("owners", func(ctx context.Context) (err error) {
		snap.Owners, err = a.source.OwnerSummaries(ctx, scope)
		return err
	})
	fetch("trend", func(ctx context.Context) (err error) {
		snap.Trend, err = a.source.TrendSeries(ctx, a.opts.TrendMonths, scope)
		return err
	})
	fetch("watchlist", func(ctx context.Context) (err error) {
		snap.Watchlist, err = a.source.Watchlist(ctx, scope)
		return err
	})
	fetch("site_list", func(ctx context.Context) (err error) {
		snap.SiteList, err = a.source.Sites(ctx)
		return err
	})
	fetch("service_list", func(ctx context.Context) (err error) {
		snap.ServiceList, err = a.source.Services(ctx)
		return err
	})
	fetch("category_list", func(ctx context.Context) (err error) {
		snap.CategoryList, err = a.source.Categories(ctx)
		return err
	})
	fetch("user_list", func(ctx context.Context) (err error) {
		snap.UserList, err = a.source.Users(ctx)
		return err
	})

	_ = g.Wait()

	span.SetAttributes(attribute.Int("chat.context.failed_sections", int(failed.Load())))
	return snap
}
