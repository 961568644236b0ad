package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/homerly/rental_backend/config"
	"github.com/homerly/rental_backend/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("homerly-sweeper")

const sweepLockTTL = 5 * time.Minute

// Sweep is one periodic status job. It returns the number of rows moved.
type Sweep struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

type SweepResult struct {
	Name     string
	Affected int
	Skipped  bool
	Err      error
}

// Sweeper expires leases and flags overdue invoices on a fixed interval.
type Sweeper struct {
	Logger       *logrus.Logger
	Locker       *redislock.Client
	PollInterval time.Duration
	Sweeps       []Sweep
}

func NewSweeper(logger *logrus.Logger, locker *redislock.Client) *Sweeper {
	return &Sweeper{
		Logger:       logger,
		Locker:       locker,
		PollInterval: config.SweepInterval(),
		Sweeps: []Sweep{
			{Name: "tenancy-expiry", Run: models.UpdateExpiredTenancies},
			{Name: "invoice-overdue", Run: models.UpdateOverdueInvoices},
		},
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.PollInterval):
		}
	}
}

// RunOnce runs every sweep a single time. A sweep whose lock is held by
// another instance is reported as skipped.
func (s *Sweeper) RunOnce(ctx context.Context) []SweepResult {
	results := make([]SweepResult, 0, len(s.Sweeps))
	for _, sweep := range s.Sweeps {
		results = append(results, s.runSweep(ctx, sweep))
	}
	return results
}

func (s *Sweeper) runSweep(ctx context.Context, sweep Sweep) SweepResult {
	ctx, span := tracer.Start(ctx, "sweep."+sweep.Name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("sweep.name", sweep.Name)),
	)
	defer span.End()
	result := SweepResult{Name: sweep.Name}

	if s.Locker != nil {
		lock, err := s.Locker.Obtain(ctx, "lock:sweep:"+sweep.Name, sweepLockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			span.SetAttributes(attribute.Bool("sweep.skipped", true))
			result.Skipped = true
			s.log().WithField("sweep", sweep.Name).Info("sweep lock held elsewhere; skipping")
			return result
		} else if err != nil {
			s.log().WithField("sweep", sweep.Name).Warn("error obtaining sweep lock; proceeding without lock: " + err.Error())
		} else {
			defer func() {
				if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil {
					s.log().WithField("sweep", sweep.Name).Warn("failed to release sweep lock: " + releaseErr.Error())
				}
			}()
		}
	}

	affected, err := sweep.Run(ctx)
	result.Affected = affected
	result.Err = err
	span.SetAttributes(attribute.Int("sweep.affected", affected))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		config.LogError(s.log().WithContext(ctx), "workflow", "Sweeper.runSweep", sweep.Name, nil, err)
		return result
	}
	if affected > 0 {
		s.log().WithFields(logrus.Fields{
			"sweep":    sweep.Name,
			"affected": affected,
		}).Info("sweep completed")
	}
	return result
}

func (s *Sweeper) log() *logrus.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return config.GetLogger()
}
