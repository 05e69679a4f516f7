package boundary

import "context"

// FaultChannel exposes a runtime's ambient fault flag. A fault raised during a
// call may stay pending after the call returns, and it poisons every later
// call until cleared.
type FaultChannel interface {
	// PendingFault reports a pending fault and its description
	PendingFault() (diagnostic string, pending bool)
	// ClearFault drops the pending fault
	ClearFault()
}

// Runtime is the adapter for one remote provider runtime. Methods mirror the
// remote operations; payload arguments arrive as bytes or as codec text,
// depending on the deployment, and results come back in the same shape.
//
// A method returns ErrException when the provider raised, ErrWrongValueType
// or ErrNoSuchOperation when the call could not be bound, and any other error
// when the call itself failed.
type Runtime interface {
	FaultChannel

	InitializeModule(ctx context.Context) error
	CreateKey(ctx context.Context, keyID, keyGenInfo string) (Value, error)
	LoadKey(ctx context.Context, keyID string) error
	EncryptData(ctx context.Context, data Value) (Value, error)
	DecryptData(ctx context.Context, data Value) (Value, error)
	SignData(ctx context.Context, data Value) (Value, error)
	VerifySignature(ctx context.Context, data, signature Value) (Value, error)
	Callback(ctx context.Context) error
}
