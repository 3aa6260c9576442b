package worker

import (
	"context"
	"time"

	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/service"
)

// OfferExpiry periodically sweeps open offers whose deadline has passed and
// marks them expired. Sweeps are idempotent, so overlapping deployments of
// the service can run the worker concurrently without coordination.
type OfferExpiry struct {
	offerService service.OfferService
	interval     time.Duration
	log          logger.Logger
	stop         chan struct{}
	done         chan struct{}
}

func NewOfferExpiry(offerService service.OfferService, interval time.Duration, log logger.Logger) *OfferExpiry {
	return &OfferExpiry{
		offerService: offerService,
		interval:     interval,
		log:          log,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called or ctx is cancelled.
func (w *OfferExpiry) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *OfferExpiry) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Infof("Offer expiry worker started (interval %s)", w.interval)
	for {
		select {
		case <-ctx.Done():
			w.log.Infof("Offer expiry worker stopping: %v", ctx.Err())
			return
		case <-w.stop:
			w.log.Infof("Offer expiry worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *OfferExpiry) sweep(ctx context.Context) {
	expired, err := w.offerService.ExpireOffers(ctx, time.Now().UTC())
	if err != nil {
		w.log.Errorf("Offer expiry sweep failed: %v", err)
		return
	}
	if expired > 0 {
		w.log.Infof("Offer expiry sweep marked %d offer(s) expired", expired)
	}
}

// Stop signals the loop to exit and waits for the in-flight sweep to finish.
func (w *OfferExpiry) Stop() {
	close(w.stop)
	<-w.done
}
