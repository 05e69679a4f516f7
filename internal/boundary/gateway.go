package boundary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Gateway invokes remote operations on a Runtime and turns every outcome,
// including faults left pending on the runtime, into a Result.
//
// Calls are serialized: a call and its fault check own the runtime until both
// finish, even when the caller has already given up on a timeout.
type Gateway struct {
	runtime Runtime
	timeout time.Duration
	slot    chan struct{}
	log     *logrus.Entry
}

// Option configures a Gateway
type Option func(*Gateway)

// WithTimeout sets a hard deadline for each call. Zero means no deadline
// beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = d
	}
}

// WithLogger sets the log entry used for call tracing
func WithLogger(entry *logrus.Entry) Option {
	return func(g *Gateway) {
		g.log = entry
	}
}

// NewGateway creates a gateway over rt
func NewGateway(rt Runtime, opts ...Option) *Gateway {
	g := &Gateway{
		runtime: rt,
		slot:    make(chan struct{}, 1),
		log:     logrus.WithField("component", "gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Invoke calls op with args and expects a return value whose kind is in expect
func (g *Gateway) Invoke(ctx context.Context, op Operation, args []Value, expect Shape) Result {
	sig, ok := op.Signature()
	if !ok {
		return Result{Op: op, Err: &TransportError{Op: op, Reason: ReasonSignatureMismatch, Err: ErrNoSuchOperation}}
	}
	if err := sig.check(args); err != nil {
		return Result{Op: op, Err: &TransportError{Op: op, Reason: ReasonSignatureMismatch, Err: err}}
	}

	if err := ctx.Err(); err != nil {
		return Result{Op: op, Err: contextError(op, err)}
	}
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return Result{Op: op, Err: contextError(op, ctx.Err())}
	}

	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		defer func() { <-g.slot }()
		done <- g.call(callCtx, op, args, expect)
	}()

	select {
	case r := <-done:
		return r
	case <-callCtx.Done():
		// A result may have landed at the same moment
		select {
		case r := <-done:
			return r
		default:
		}
		g.log.WithFields(logrus.Fields{
			"operation": op.String(),
			"error":     callCtx.Err().Error(),
		}).Warn("Remote call abandoned, outcome unknown")
		return Result{Op: op, Err: contextError(op, callCtx.Err())}
	}
}

// Ping invokes the diagnostic callback operation
func (g *Gateway) Ping(ctx context.Context) error {
	return g.Invoke(ctx, OpCallback, nil, ShapeVoid).Err
}

func (g *Gateway) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout > 0 {
		return context.WithTimeout(ctx, g.timeout)
	}
	return context.WithCancel(ctx)
}

// call dispatches op and always runs the fault check afterwards
func (g *Gateway) call(ctx context.Context, op Operation, args []Value, expect Shape) Result {
	start := time.Now()
	value, callErr := g.dispatchSafely(ctx, op, args)
	result := g.complete(op, value, callErr, expect)

	fields := logrus.Fields{
		"operation": op.String(),
		"args":      len(args),
		"duration":  time.Since(start).String(),
	}
	if result.Err != nil {
		g.log.WithFields(fields).WithError(result.Err).Debug("Remote call failed")
	} else {
		g.log.WithFields(fields).WithField("result", result.Value.String()).Debug("Remote call completed")
	}
	return result
}

func (g *Gateway) dispatchSafely(ctx context.Context, op Operation, args []Value) (v Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runtime adapter panicked: %v", r)
		}
	}()
	return g.dispatch(ctx, op, args)
}

func (g *Gateway) dispatch(ctx context.Context, op Operation, args []Value) (Value, error) {
	switch op {
	case OpInitializeModule:
		return Void(), g.runtime.InitializeModule(ctx)
	case OpCreateKey:
		keyID, _ := args[0].AsString()
		info, _ := args[1].AsString()
		return g.runtime.CreateKey(ctx, keyID, info)
	case OpLoadKey:
		keyID, _ := args[0].AsString()
		return Void(), g.runtime.LoadKey(ctx, keyID)
	case OpEncryptData:
		return g.runtime.EncryptData(ctx, args[0])
	case OpDecryptData:
		return g.runtime.DecryptData(ctx, args[0])
	case OpSignData:
		return g.runtime.SignData(ctx, args[0])
	case OpVerifySignature:
		return g.runtime.VerifySignature(ctx, args[0], args[1])
	case OpCallback:
		return Void(), g.runtime.Callback(ctx)
	default:
		return Void(), ErrNoSuchOperation
	}
}

// complete folds the call outcome and the runtime's fault flag into a Result.
// A pending fault wins over any returned value.
func (g *Gateway) complete(op Operation, value Value, callErr error, expect Shape) Result {
	if diagnostic, pending := g.runtime.PendingFault(); pending {
		g.runtime.ClearFault()
		g.log.WithFields(logrus.Fields{
			"operation":  op.String(),
			"diagnostic": diagnostic,
		}).Warn("Remote fault captured and cleared")
		return Result{Op: op, Err: &RemoteFault{Op: op, Diagnostic: diagnostic}}
	}

	if callErr != nil {
		switch {
		case errors.Is(callErr, ErrException):
			return Result{Op: op, Err: &RemoteFault{Op: op, Diagnostic: callErr.Error()}}
		case errors.Is(callErr, ErrWrongValueType), errors.Is(callErr, ErrNoSuchOperation):
			return Result{Op: op, Err: &TransportError{Op: op, Reason: ReasonSignatureMismatch, Err: callErr}}
		default:
			return Result{Op: op, Err: &TransportError{Op: op, Reason: ReasonCallFailed, Err: callErr}}
		}
	}

	if !expect.Accepts(value.Kind()) {
		err := fmt.Errorf("want %s result, got %s", expect, value.Kind())
		return Result{Op: op, Err: &TransportError{Op: op, Reason: ReasonSignatureMismatch, Err: err}}
	}
	return Result{Op: op, Value: value}
}

func contextError(op Operation, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Op: op, Reason: ReasonTimeout, Err: err}
	}
	return &TransportError{Op: op, Reason: ReasonCanceled, Err: err}
}
