package workflow

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/homerly/rental_backend/config"
	"github.com/homerly/rental_backend/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func quietLogger() (*logrus.Logger, *test.Hook) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l, test.NewLocal(l)
}

func TestRunOnceReportsEachSweep(t *testing.T) {
	log, hook := quietLogger()
	boom := errors.New("database is gone")
	s := &Sweeper{
		Logger: log,
		Sweeps: []Sweep{
			{Name: "fine", Run: func(context.Context) (int, error) { return 3, nil }},
			{Name: "broken", Run: func(context.Context) (int, error) { return 0, boom }},
			{Name: "idle", Run: func(context.Context) (int, error) { return 0, nil }},
		},
	}

	results := s.RunOnce(context.Background())
	require.Len(t, results, 3)
	assert.Equal(t, SweepResult{Name: "fine", Affected: 3}, results[0])
	assert.ErrorIs(t, results[1].Err, boom)
	assert.False(t, results[1].Skipped)
	assert.Equal(t, SweepResult{Name: "idle"}, results[2])

	var errorsLogged int
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			errorsLogged++
		}
	}
	assert.Equal(t, 1, errorsLogged)
}

func TestRunStopsOnCancel(t *testing.T) {
	log, _ := quietLogger()
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sweeper{
		Logger:       log,
		PollInterval: time.Millisecond,
		Sweeps: []Sweep{{Name: "count", Run: func(context.Context) (int, error) {
			if calls.Add(1) == 3 {
				cancel()
			}
			return 0, nil
		}}},
	}

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
	assert.EqualValues(t, 3, calls.Load())
}

func TestNewSweeperOnEmptyDatabase(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.Migrate(db))
	prev := config.GetDB()
	config.SetDB(db)
	t.Cleanup(func() {
		config.SetDB(prev)
		_ = sqlDB.Close()
	})

	log, _ := quietLogger()
	s := NewSweeper(log, nil)
	assert.Equal(t, config.SweepInterval(), s.PollInterval)

	results := s.RunOnce(context.Background())
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Err, r.Name)
		assert.Zero(t, r.Affected, r.Name)
	}
}
