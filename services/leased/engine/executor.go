package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"leasechain/core/events"
	"leasechain/core/types"
	"leasechain/crypto"
	"leasechain/native/dex"
	"leasechain/native/finance"
	"leasechain/native/lease"
	"leasechain/native/platform"
	"leasechain/observability"
	"leasechain/observability/metrics"
	telemetry "leasechain/observability/otel"
)

// Journal records what leases emitted and sent.
type Journal interface {
	Outbox
	RecordEvents(ctx context.Context, lease crypto.Address, evts []*types.Event, at time.Time) error
}

// NonceStore persists the per-customer lease counters.
type NonceStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Call is one message delivered to a lease.
type Call struct {
	Lease  crypto.Address
	Sender crypto.Address
	Funds  []finance.Coin
	Msg    lease.Message
}

// Executor runs lease messages: load and migrate the record, handle the
// message, save the successor and only then dispatch what it sent. Self
// callbacks and collaborator replies are processed before Execute returns.
type Executor struct {
	Machine    *lease.Machine
	Store      *lease.Store
	Nonces     NonceStore
	Host       *Host
	Dispatcher *Dispatcher
	Journal    Journal
	Logger     *slog.Logger
	Metrics    *metrics.LeaseMetrics
	Clock      func() time.Time

	mu sync.Mutex
}

func (e *Executor) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Instantiate opens a lease for sender with the attached downpayment. The
// address is derived from the customer and their lease count.
func (e *Executor) Instantiate(ctx context.Context, sender crypto.Address, funds []finance.Coin, form lease.Form) (crypto.Address, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nonce, err := e.nonce(form.Customer)
	if err != nil {
		return crypto.Address{}, err
	}
	addr := leaseAddress(form.Customer, nonce)
	now := e.now()
	ctx, span := telemetry.Tracer().Start(ctx, "lease.instantiate", trace.WithAttributes(
		attribute.String("lease.address", addr.String()),
		attribute.String("lease.customer", form.Customer.String()),
	))
	defer span.End()

	if err := e.Host.Transfer(sender, addr, funds...); err != nil {
		return crypto.Address{}, e.reject(span, "instantiate", err)
	}
	ids := platform.NewSequencer(addr, 0)
	env := platform.Env{
		Now:      finance.TimestampFrom(now),
		Contract: addr,
		Sender:   sender,
		Funds:    funds,
		Querier:  e.Host,
		IDs:      ids,
	}
	st, batch, err := e.Machine.Instantiate(ctx, env, form)
	if err == nil {
		err = e.Store.Create(addr, lease.Record{State: st, Seq: ids.Seq()})
	}
	if err == nil {
		err = e.Nonces.KVPut(nonceKey(form.Customer), nonce+1)
	}
	if err != nil {
		e.refund(addr, sender, funds)
		return crypto.Address{}, e.reject(span, "instantiate", err)
	}
	e.Metrics.ObserveLatency("instantiate", time.Since(now))
	e.logger().Info("lease instantiated",
		slog.String("lease", addr.String()),
		slog.String("customer", form.Customer.String()),
		slog.String("state_to", st.Kind().String()),
		slog.Int("outbound", len(batch.Messages)))
	e.commit(ctx, addr, batch, now)
	e.drain(ctx, e.dispatch(ctx, addr, env.Now, batch))
	return addr, nil
}

// Execute delivers call and everything it triggers. It returns the kind of
// call.Lease once the queue is drained. Only the first message's failure is
// returned; later failures are logged.
func (e *Executor) Execute(ctx context.Context, call Call) (lease.Kind, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	queue, err := e.step(ctx, call)
	if err != nil {
		return 0, err
	}
	e.drain(ctx, queue)
	rec, err := e.Store.Load(call.Lease)
	if err != nil {
		return 0, err
	}
	return rec.State.Kind(), nil
}

func (e *Executor) drain(ctx context.Context, queue []Call) {
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		more, err := e.step(ctx, next)
		if err != nil {
			e.logger().Error("lease follow-up failed",
				slog.String("lease", next.Lease.String()),
				slog.String("message_type", next.Msg.Operation()),
				slog.Any("error", err))
			continue
		}
		queue = append(queue, more...)
	}
}

func (e *Executor) step(ctx context.Context, call Call) ([]Call, error) {
	started := e.now()
	op := call.Msg.Operation()
	ctx, span := telemetry.Tracer().Start(ctx, "lease."+op, trace.WithAttributes(
		attribute.String("lease.address", call.Lease.String()),
		attribute.String("lease.message", op),
	))
	defer span.End()

	rec, err := e.Store.Load(call.Lease)
	if err != nil {
		return nil, e.reject(span, op, err)
	}
	from := rec.State.Kind()
	span.SetAttributes(attribute.String("lease.state", from.String()))
	if err := e.Host.Transfer(call.Sender, call.Lease, call.Funds...); err != nil {
		return nil, e.reject(span, op, err)
	}
	ids := platform.NewSequencer(call.Lease, rec.Seq)
	env := platform.Env{
		Now:      finance.TimestampFrom(started),
		Contract: call.Lease,
		Sender:   call.Sender,
		Funds:    call.Funds,
		Querier:  e.Host,
		IDs:      ids,
	}
	next, batch, err := e.Machine.Handle(ctx, env, rec.State, call.Msg)
	if err == nil {
		e.settlePacket(call.Lease, call.Msg)
		err = e.preflight(call.Lease, batch)
	}
	if err == nil {
		err = e.Store.Save(call.Lease, lease.Record{State: next, Seq: ids.Seq()})
	}
	if err != nil {
		e.refund(call.Lease, call.Sender, call.Funds)
		return nil, e.reject(span, op, err)
	}

	e.Metrics.RecordTransition(from.String(), next.Kind().String())
	e.Metrics.ObserveLatency(op, time.Since(started))
	e.logger().Info("lease message processed",
		slog.String("lease", call.Lease.String()),
		slog.String("message_type", op),
		slog.String("state_from", from.String()),
		slog.String("state_to", next.Kind().String()),
		slog.Int("outbound", len(batch.Messages)))
	e.commit(ctx, call.Lease, batch, started)
	return e.dispatch(ctx, call.Lease, env.Now, batch), nil
}

// settlePacket releases the coins of an acknowledged transfer packet. A
// packet that timed out or failed hands its coins back to the lease.
func (e *Executor) settlePacket(addr crypto.Address, msg lease.Message) {
	var corr string
	switch m := msg.(type) {
	case lease.OnResponse:
		e.Host.AckPacket(addr, m.Correlation)
		return
	case lease.OnTimeout:
		corr = m.Correlation
	case lease.OnError:
		corr = m.Correlation
	default:
		return
	}
	coin, ok, err := e.Host.RefundPacket(addr, corr)
	if err != nil {
		e.logger().Error("transfer refund failed",
			slog.String("lease", addr.String()),
			slog.String("correlation", corr),
			slog.Any("error", err))
		return
	}
	if ok {
		e.logger().Info("transfer refunded",
			slog.String("lease", addr.String()),
			slog.String("correlation", corr),
			slog.String("coin", coin.String()))
	}
}

// preflight rejects a transition whose outgoing transfers the lease cannot
// fund, so the lease never waits on a packet that was not sent.
func (e *Executor) preflight(addr crypto.Address, batch platform.Batch) error {
	var coins []finance.Coin
	for _, msg := range batch.Messages {
		if transfer, ok := msg.(dex.IbcTransfer); ok {
			coins = append(coins, transfer.Coin)
		}
	}
	if len(coins) == 0 {
		return nil
	}
	return e.Host.Covers(addr, coins...)
}

func (e *Executor) reject(span trace.Span, op string, err error) error {
	class := Classify(err)
	e.Metrics.RecordError(class)
	span.RecordError(err)
	span.SetStatus(codes.Error, class)
	e.logger().Warn("lease message rejected",
		slog.String("message_type", op),
		slog.String("class", class),
		slog.Any("error", err))
	return err
}

func (e *Executor) refund(from, to crypto.Address, funds []finance.Coin) {
	if err := e.Host.Transfer(from, to, funds...); err != nil {
		e.logger().Error("refund failed", slog.String("lease", from.String()), slog.Any("error", err))
	}
}

// commit journals the emitted events and counts the notable ones.
func (e *Executor) commit(ctx context.Context, addr crypto.Address, batch platform.Batch, at time.Time) {
	if len(batch.Events) == 0 {
		return
	}
	for _, evt := range batch.Events {
		observability.Events().RecordEvent(evt.Type)
		switch evt.Type {
		case events.TypeLeaseDexTimeout:
			e.Metrics.RecordDexTimeout(evt.Attributes["stage"])
		case events.TypeLeaseSlippageAnomaly:
			e.Metrics.RecordAnomaly(evt.Attributes["stage"])
		case events.TypeLeaseLiquidationStarted:
			kind := "partial"
			if evt.Attributes["full"] == "true" {
				kind = "full"
			}
			e.Metrics.RecordLiquidation(kind, evt.Attributes["cause"])
		}
	}
	if e.Journal == nil {
		return
	}
	if err := e.Journal.RecordEvents(ctx, addr, batch.Events, at); err != nil {
		e.logger().Error("journal events failed", slog.String("lease", addr.String()), slog.Any("error", err))
	}
}

// dispatch delivers the external messages in order and returns the calls
// they trigger, self callbacks included.
func (e *Executor) dispatch(ctx context.Context, addr crypto.Address, now finance.Timestamp, batch platform.Batch) []Call {
	var queue []Call
	for _, msg := range batch.Messages {
		if cb, ok := msg.(platform.SelfCallback); ok {
			var next lease.Message = lease.DexCallback{}
			if cb.Kind == platform.DexCallbackContinue {
				next = lease.DexCallbackContinue{}
			}
			queue = append(queue, Call{Lease: addr, Sender: addr, Msg: next})
			continue
		}
		followups, err := e.Dispatcher.Dispatch(ctx, addr, now, msg)
		e.Metrics.RecordDispatch(msg.MessageType(), err)
		if err != nil {
			e.logger().Error("outbound message failed",
				slog.String("lease", addr.String()),
				slog.String("message_type", msg.MessageType()),
				slog.Any("error", err))
			continue
		}
		for _, f := range followups {
			queue = append(queue, Call{Lease: f.Lease, Sender: f.Sender, Funds: f.Funds, Msg: f.Msg})
		}
	}
	return queue
}

// Query describes a lease at the current time.
func (e *Executor) Query(ctx context.Context, addr crypto.Address) (lease.StateResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, err := e.Store.Load(addr)
	if err != nil {
		return lease.StateResponse{}, err
	}
	return lease.Query(ctx, rec.State, finance.TimestampFrom(e.now()), e.Host)
}

// List returns every lease address in creation order.
func (e *Executor) List() ([]crypto.Address, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Store.List()
}

// FireAlarms delivers the alarms due now and reports how many were accepted.
func (e *Executor) FireAlarms(ctx context.Context) int {
	delivered := 0
	for _, alarm := range e.Host.DueAlarms(finance.TimestampFrom(e.now())) {
		var msg lease.Message = lease.TimeAlarm{}
		if alarm.Price {
			msg = lease.PriceAlarm{}
		}
		if _, err := e.Execute(ctx, Call{Lease: alarm.Lease, Sender: alarm.Sender, Msg: msg}); err != nil {
			continue
		}
		delivered++
	}
	return delivered
}

// Recover heals every lease that waits on an alarm, a balance poll or a
// self callback, so the subscriptions the host keeps in memory are armed
// again after a restart. It returns the number of leases healed.
func (e *Executor) Recover(ctx context.Context) (int, error) {
	addrs, err := e.List()
	if err != nil {
		return 0, err
	}
	healed := 0
	for _, addr := range addrs {
		e.mu.Lock()
		rec, err := e.Store.Load(addr)
		e.mu.Unlock()
		if err != nil {
			return healed, err
		}
		if !lease.NeedsHeal(rec.State) {
			continue
		}
		if _, err := e.Execute(ctx, Call{Lease: addr, Msg: lease.Heal{}}); err != nil {
			e.logger().Warn("lease recovery failed",
				slog.String("lease", addr.String()),
				slog.Any("error", err))
			continue
		}
		healed++
	}
	return healed, nil
}

// Run fires alarms every interval until ctx is done.
func (e *Executor) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("leased: alarm interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := e.FireAlarms(ctx); n > 0 {
				e.logger().Debug("alarms delivered", slog.Int("count", n))
			}
		}
	}
}

func nonceKey(customer crypto.Address) []byte {
	return append([]byte("leased/nonce/"), customer.Bytes()...)
}

func (e *Executor) nonce(customer crypto.Address) (uint64, error) {
	var n uint64
	if _, err := e.Nonces.KVGet(nonceKey(customer), &n); err != nil {
		return 0, err
	}
	return n, nil
}

func leaseAddress(customer crypto.Address, nonce uint64) crypto.Address {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)
	return crypto.DeriveAddress(crypto.LeasePrefix, []byte("lease"), customer.Bytes(), buf[:])
}
