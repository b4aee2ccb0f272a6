// Package stats runs the background transfer sampler: a ticker loop that
// records per-interface transfer counters into stats_history, refreshes the
// Prometheus gauges, and prunes aged rows once a day.
package stats

import (
	"context"
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"

	"wg-console/internal/database"
	"wg-console/internal/metrics"
	"wg-console/internal/settings"
	"wg-console/internal/vpn"
)

// DefaultInterval is the sampling cadence when none is configured.
const DefaultInterval = 60 * time.Second

// InterfaceLister is the slice of the engine the sampler needs.
type InterfaceLister interface {
	List(ctx context.Context) ([]*vpn.InterfaceView, error)
}

// Sample is one recorded transfer data point.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	RxBytes   int64     `json:"rx_bytes"`
	TxBytes   int64     `json:"tx_bytes"`
}

// Sampler periodically records interface transfer totals.
type Sampler struct {
	db       *sql.DB
	engine   InterfaceLister
	settings *settings.Store
	interval time.Duration
	now      func() time.Time
}

// NewSampler builds a sampler; a zero interval selects DefaultInterval.
func NewSampler(db *sql.DB, engine InterfaceLister, store *settings.Store, interval time.Duration) *Sampler {
	return NewSamplerWithClock(db, engine, store, interval, time.Now)
}

// NewSamplerWithClock is NewSampler with an injectable clock for tests.
func NewSamplerWithClock(db *sql.DB, engine InterfaceLister, store *settings.Store, interval time.Duration, now func() time.Time) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{db: db, engine: engine, settings: store, interval: interval, now: now}
}

// Run samples immediately, then on every tick until the context is canceled.
// A daily tick prunes aged database rows.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	daily := time.NewTicker(24 * time.Hour)
	defer daily.Stop()

	s.sample(ctx)
	for {
		select {
		case <-ticker.C:
			s.sample(ctx)
		case <-daily.C:
			s.cleanup()
		case <-ctx.Done():
			return
		}
	}
}

// sample records one data point per active interface and refreshes the
// gauges for every interface. Inactive interfaces publish zero gauges but do
// not produce history rows; there is no runtime state to record.
func (s *Sampler) sample(ctx context.Context) {
	views, err := s.engine.List(ctx)
	if err != nil {
		logrus.Warnf("Stats sample skipped: %v", err)
		return
	}

	metrics.ResetInterfaceSeries()
	metrics.SetInterfaceCount(len(views))

	timestamp := s.now().Unix()
	for _, view := range views {
		metrics.SetInterfaceStats(view.Name, view.OnlinePeerCount, view.TransferRx, view.TransferTx)
		if !view.Active {
			continue
		}
		_, err := s.db.Exec(
			`INSERT INTO stats_history (interface, timestamp, rx_bytes, tx_bytes) VALUES (?, ?, ?, ?)`,
			view.Name, timestamp, view.TransferRx, view.TransferTx,
		)
		if err != nil {
			logrus.Warnf("Failed to record sample for %s: %v", view.Name, err)
		}
	}
}

func (s *Sampler) cleanup() {
	retention, err := s.settings.Retention()
	if err != nil {
		logrus.Warnf("Cleanup skipped, retention unavailable: %v", err)
		return
	}
	days := 0
	if retention.Enabled {
		days = retention.Days
	}
	if err := database.Cleanup(s.db, days); err != nil {
		logrus.Warnf("Cleanup failed: %v", err)
	}
}

// History returns the recorded samples for one interface since the given
// time, oldest first.
func (s *Sampler) History(name string, since time.Time) ([]Sample, error) {
	rows, err := s.db.Query(
		`SELECT timestamp, rx_bytes, tx_bytes FROM stats_history WHERE interface = ? AND timestamp >= ? ORDER BY timestamp ASC`,
		name, since.Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples := []Sample{}
	for rows.Next() {
		var (
			timestamp int64
			sample    Sample
		)
		if err := rows.Scan(&timestamp, &sample.RxBytes, &sample.TxBytes); err != nil {
			return nil, err
		}
		sample.Timestamp = time.Unix(timestamp, 0).UTC()
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}
