package service

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"pharmacy-service/internal/repository"
	"pharmacy-service/prometheus"
)

// InventoryMonitor periodically publishes low-stock and expiring product counts
type InventoryMonitor struct {
	products       repository.ProductRepository
	threshold      int
	expiringWithin time.Duration
	cron           *cron.Cron
	wg             sync.WaitGroup
	log            *zap.Logger
}

func NewInventoryMonitor(products repository.ProductRepository, threshold int, expiringWithin time.Duration, log *zap.Logger) *InventoryMonitor {
	return &InventoryMonitor{
		products:       products,
		threshold:      threshold,
		expiringWithin: expiringWithin,
		cron:           cron.New(),
		log:            log,
	}
}

// Start schedules the check on spec and runs it once immediately
func (m *InventoryMonitor) Start(spec string) error {
	if _, err := m.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, _, err := m.Check(ctx); err != nil {
			m.log.Error("Inventory check failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	m.cron.Start()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, _, err := m.Check(ctx); err != nil {
			m.log.Error("Inventory check failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop waits for running checks, the initial one included, to finish
func (m *InventoryMonitor) Stop() {
	<-m.cron.Stop().Done()
	m.wg.Wait()
}

// Check counts low-stock and expiring products and updates the gauges
func (m *InventoryMonitor) Check(ctx context.Context) (lowStock, expiring int, err error) {
	low, err := m.products.LowStock(ctx, m.threshold, 0)
	if err != nil {
		return 0, 0, err
	}
	now := time.Now()
	exp, err := m.products.Expiring(ctx, now, now.Add(m.expiringWithin), 0)
	if err != nil {
		return 0, 0, err
	}

	prometheus.SetInventoryGauges(len(low), len(exp))
	if len(low) > 0 || len(exp) > 0 {
		m.log.Warn("Inventory needs attention",
			zap.Int("low_stock", len(low)),
			zap.Int("expiring", len(exp)),
			zap.Int("threshold", m.threshold))
	} else {
		m.log.Debug("Inventory check passed")
	}
	return len(low), len(exp), nil
}
