package mailer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

// Dispatcher delivers persisted outbox rows with bounded concurrency.
type Dispatcher interface {
	Start(ctx context.Context) error
	Shutdown()
	Enqueue(ctx context.Context, deliveryID int64) error
	Resume(ctx context.Context) error
	Cancel(ctx context.Context, deliveryID int64) error
}

type Config struct {
	From          string
	MaxConcurrent int
	MaxAttempts   int
	RetryDelay    time.Duration
	SendTimeout   time.Duration
	Logger        *logrus.Logger
}

type dispatcher struct {
	cfg        Config
	deliveries repository.DeliveryRepository
	sender     Sender

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	active map[int64]*deliveryHandle
}

type deliveryHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewDispatcher(cfg Config, deliveries repository.DeliveryRepository, sender Sender) Dispatcher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &dispatcher{
		cfg:        cfg,
		deliveries: deliveries,
		sender:     sender,
		sem:        make(chan struct{}, cfg.MaxConcurrent),
		active:     make(map[int64]*deliveryHandle),
	}
}

func (d *dispatcher) Start(ctx context.Context) error {
	if d.sender == nil {
		return fmt.Errorf("mail sender is required")
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.cfg.Logger.Infof("mail dispatcher started, concurrency %d", d.cfg.MaxConcurrent)
	return nil
}

func (d *dispatcher) Shutdown() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.cfg.Logger.Info("mail dispatcher stopped")
}

func (d *dispatcher) Enqueue(ctx context.Context, deliveryID int64) error {
	if d.ctx == nil {
		return fmt.Errorf("mail dispatcher not started")
	}
	delivery, err := d.deliveries.Get(ctx, deliveryID)
	if err != nil {
		return err
	}
	d.spawn(*delivery)
	return nil
}

// Resume picks up rows left pending or mid-send by a previous process.
func (d *dispatcher) Resume(ctx context.Context) error {
	pending, err := d.deliveries.ListByStatuses(ctx,
		domain.DeliveryStatusPending,
		domain.DeliveryStatusSending,
	)
	if err != nil {
		return err
	}
	for i := range pending {
		d.spawn(pending[i])
	}
	return nil
}

func (d *dispatcher) spawn(delivery domain.MailDelivery) {
	deliveryCtx, cancel := context.WithCancel(d.ctx)
	handle := &deliveryHandle{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if !d.register(delivery.ID, handle) {
		cancel()
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			cancel()
			d.unregister(delivery.ID)
			close(handle.done)
		}()
		select {
		case <-d.ctx.Done():
			return
		case <-deliveryCtx.Done():
			return
		case d.sem <- struct{}{}:
			defer func() { <-d.sem }()
			d.handle(deliveryCtx, &delivery)
		}
	}()
}

// register reports false when the delivery is already in flight.
func (d *dispatcher) register(id int64, handle *deliveryHandle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, running := d.active[id]; running {
		return false
	}
	d.active[id] = handle
	return true
}

func (d *dispatcher) unregister(id int64) {
	d.mu.Lock()
	delete(d.active, id)
	d.mu.Unlock()
}

func (d *dispatcher) getHandle(id int64) (*deliveryHandle, bool) {
	d.mu.Lock()
	handle, ok := d.active[id]
	d.mu.Unlock()
	return handle, ok
}

func (d *dispatcher) Cancel(ctx context.Context, deliveryID int64) error {
	handle, ok := d.getHandle(deliveryID)
	if !ok {
		return nil
	}
	handle.cancel()

	select {
	case <-handle.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *dispatcher) handle(ctx context.Context, delivery *domain.MailDelivery) {
	logger := d.cfg.Logger.WithFields(logrus.Fields{
		"delivery_id": delivery.ID,
		"kind":        delivery.Kind,
	})
	switch delivery.Status {
	case domain.DeliveryStatusSent:
		logger.Debug("delivery already sent, skipping")
		return
	case domain.DeliveryStatusFailed:
		logger.Debug("delivery already failed, skipping")
		return
	case domain.DeliveryStatusCancelled:
		logger.Debug("delivery cancelled, skipping")
		return
	}

	if err := d.deliveries.UpdateStatus(ctx, delivery.ID, domain.DeliveryStatusSending, nil); err != nil {
		logger.Errorf("update status failed: %v", err)
		return
	}

	msg := Message{
		From:    d.cfg.From,
		To:      []string{delivery.Recipient},
		Subject: delivery.Subject,
		Body:    delivery.Body,
	}

	for {
		attempts, err := d.deliveries.IncrementAttempts(ctx, delivery.ID)
		if err != nil {
			logger.Errorf("increment attempts: %v", err)
			return
		}

		sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		err = d.sender.Send(sendCtx, msg)
		cancel()
		if err == nil {
			if err := d.deliveries.MarkSent(ctx, delivery.ID); err != nil {
				logger.Warnf("mark sent: %v", err)
			}
			logger.Info("mail delivered")
			return
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			logger.Info("delivery cancelled")
			return
		}

		logger.Warnf("send attempt %d failed: %v", attempts, err)
		if attempts >= d.cfg.MaxAttempts {
			d.fail(delivery.ID, err, logger)
			return
		}

		select {
		case <-ctx.Done():
			logger.Info("delivery cancelled while waiting to retry")
			return
		case <-time.After(d.cfg.RetryDelay):
		}
	}
}

func (d *dispatcher) fail(id int64, cause error, logger *logrus.Entry) {
	msg := cause.Error()
	// detached from the delivery context so a shutdown does not lose the failure
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.deliveries.UpdateStatus(ctx, id, domain.DeliveryStatusFailed, &msg); err != nil {
		logger.Errorf("mark failed: %v", err)
	}
}
