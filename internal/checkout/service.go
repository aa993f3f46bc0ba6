package checkout

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/angelmondragon/agrivet-pos/internal/cart"
	"github.com/angelmondragon/agrivet-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/agrivet-pos/pkg/errors"
	"github.com/angelmondragon/agrivet-pos/pkg/logger"
	"github.com/angelmondragon/agrivet-pos/pkg/metrics"
)

var (
	ErrCheckoutFailed     = pkgerrors.New(pkgerrors.CodeCheckoutFailed, "transaction sink rejected the sale")
	ErrCheckoutTimedOut   = pkgerrors.New(pkgerrors.CodeCheckoutTimedOut, "transaction sink did not answer in time")
	ErrCheckoutInProgress = cart.ErrCheckoutInProgress
)

const defaultSinkTimeout = 10 * time.Second

// SinkResult is the sink's verdict on a submitted sale.
type SinkResult struct {
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// Sink durably records completed sales.
type Sink interface {
	Submit(ctx context.Context, payload TransactionPayload) (SinkResult, error)
}

// Cart is the part of a cart a checkout drives.
type Cart interface {
	Lines() iter.Seq[cart.LineView]
	Clear()
	BeginCheckout() error
	EndCheckout()
}

// Request carries the cashier's checkout choices.
type Request struct {
	PaymentMethod string
	Notes         *string
	SessionID     string
	CashierID     string
}

// Result describes a successful checkout.
type Result struct {
	TransactionID string             `json:"transaction_id"`
	Payload       TransactionPayload `json:"payload"`
}

// Options tunes the checkout service.
type Options struct {
	SinkTimeout    time.Duration
	PaymentMethods []string
	Metrics        *metrics.CheckoutMetrics
	Logger         *logger.Logger
}

// Service assembles and submits checkouts. A checkout runs in three phases so
// a caller holding a lock around the cart can release it during the sink call:
// Prepare freezes the cart and builds the payload, Submit talks to the sink,
// Complete clears or keeps the cart and unfreezes it.
type Service struct {
	sink    Sink
	timeout time.Duration
	methods map[string]struct{}
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
}

func NewService(sink Sink, opts Options) (*Service, error) {
	if sink == nil {
		return nil, fmt.Errorf("transaction sink required")
	}
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = defaultSinkTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	methods := make(map[string]struct{})
	for _, m := range opts.PaymentMethods {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			methods[m] = struct{}{}
		}
	}
	return &Service{
		sink:    sink,
		timeout: opts.SinkTimeout,
		methods: methods,
		metrics: opts.Metrics,
		logg:    opts.Logger,
	}, nil
}

// Prepare validates the request, builds the payload and marks the cart as
// checking out. Every error leaves the cart as it was.
func (s *Service) Prepare(c Cart, req Request) (TransactionPayload, error) {
	method, err := s.paymentMethod(req.PaymentMethod)
	if err != nil {
		return TransactionPayload{}, err
	}
	payload, err := BuildPayload(c, method, req.Notes)
	if err != nil {
		s.metrics.Observe(metrics.OutcomeEmptyCart, 0)
		return TransactionPayload{}, err
	}
	if err := c.BeginCheckout(); err != nil {
		s.metrics.Observe(metrics.OutcomeInProgress, 0)
		return TransactionPayload{}, err
	}
	payload.SessionID = req.SessionID
	payload.CashierID = req.CashierID
	return payload, nil
}

// Submit sends the payload to the sink once, bounded by the configured timeout.
func (s *Service) Submit(ctx context.Context, payload TransactionPayload) (Result, error) {
	start := time.Now()
	sinkCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.submit(sinkCtx, payload)
	elapsed := time.Since(start)

	switch {
	case err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || sinkCtx.Err() != nil):
		s.metrics.Observe(metrics.OutcomeTimedOut, elapsed)
		s.logg.Warn(s.logg.WithField(ctx, "elapsed_ms", elapsed.Milliseconds()), "checkout.sink_timed_out")
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeCheckoutTimedOut, err, "transaction sink did not answer in time")
	case err != nil:
		s.metrics.Observe(metrics.OutcomeFailed, elapsed)
		s.logg.Error(ctx, "checkout.sink_error", err)
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeCheckoutFailed, err, "transaction sink unavailable")
	case !res.Success:
		s.metrics.Observe(metrics.OutcomeFailed, elapsed)
		reason := res.Error
		if reason == "" {
			reason = "transaction sink rejected the sale"
		}
		s.logg.Warn(s.logg.WithField(ctx, "reason", reason), "checkout.sink_rejected")
		return Result{}, pkgerrors.New(pkgerrors.CodeCheckoutFailed, reason).
			WithDetails(map[string]any{"reason": reason})
	}

	s.metrics.Observe(metrics.OutcomeSuccess, elapsed)
	s.metrics.ObserveSale(payload.Total.InexactFloat64(), len(payload.Items))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"transaction_id": res.TransactionID,
		"items":          len(payload.Items),
		"total":          payload.Total.StringFixed(2),
	}), "checkout.completed")
	return Result{TransactionID: res.TransactionID, Payload: payload}, nil
}

// Complete clears the cart after a successful submission and always ends the
// pending checkout. A failed submission leaves every line as it was.
func (s *Service) Complete(c Cart, submitErr error) {
	if submitErr == nil {
		c.Clear()
	}
	c.EndCheckout()
}

// Checkout runs Prepare, Submit and Complete back to back. Callers sharing the
// cart across goroutines should run the phases themselves under their lock.
func (s *Service) Checkout(ctx context.Context, c Cart, req Request) (Result, error) {
	payload, err := s.Prepare(c, req)
	if err != nil {
		return Result{}, err
	}
	res, err := s.Submit(ctx, payload)
	s.Complete(c, err)
	return res, err
}

type submission struct {
	res SinkResult
	err error
}

// submit waits for the sink or the context, whichever finishes first, so a sink
// that ignores cancellation still cannot hold the checkout past its deadline.
func (s *Service) submit(ctx context.Context, payload TransactionPayload) (SinkResult, error) {
	done := make(chan submission, 1)
	go func() {
		res, err := s.sink.Submit(ctx, payload)
		done <- submission{res: res, err: err}
	}()
	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		return SinkResult{}, ctx.Err()
	}
}

func (s *Service) paymentMethod(raw string) (string, error) {
	method, err := enums.ParsePaymentMethod(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}
	if len(s.methods) > 0 {
		if _, ok := s.methods[string(method)]; !ok {
			return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("payment method %q is not accepted", method))
		}
	}
	return string(method), nil
}
