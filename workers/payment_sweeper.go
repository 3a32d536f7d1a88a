package workers

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultSweepBatch bounds how many orders one sweep expires.
const DefaultSweepBatch = 100

// StaleOrderExpirer cancels unpaid orders past their payment window.
type StaleOrderExpirer interface {
	ExpireStaleOrders(ctx context.Context, limit int) (int, error)
}

// PaymentSweeper periodically expires unpaid orders. It backs up the delayed
// payment_check events, which are lost when the broker is down or lacks the delay plugin.
type PaymentSweeper struct {
	expirer  StaleOrderExpirer
	interval time.Duration
	batch    int
}

func NewPaymentSweeper(expirer StaleOrderExpirer, interval time.Duration) *PaymentSweeper {
	return &PaymentSweeper{
		expirer:  expirer,
		interval: interval,
		batch:    DefaultSweepBatch,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *PaymentSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.WithField("interval", s.interval).Info("payment sweeper started")

	for {
		s.SweepOnce(ctx)

		select {
		case <-ctx.Done():
			log.Info("payment sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce expires batches until a batch comes back short. It returns the number of expired orders.
func (s *PaymentSweeper) SweepOnce(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		n, err := s.expirer.ExpireStaleOrders(ctx, s.batch)
		total += n
		if err != nil {
			log.WithError(err).Error("payment sweep failed")
			break
		}
		if n < s.batch {
			break
		}
	}

	if total > 0 {
		log.WithField("expired", total).Info("expired unpaid orders")
	}
	return total
}
