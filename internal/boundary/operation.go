package boundary

import "fmt"

// Operation identifies one remote call
type Operation int

const (
	OpInitializeModule Operation = iota
	OpCreateKey
	OpLoadKey
	OpEncryptData
	OpDecryptData
	OpSignData
	OpVerifySignature
	OpCallback
)

// Signature is the remote name and parameter shapes of an operation
type Signature struct {
	Name   string
	Params []Shape
}

var signatures = map[Operation]Signature{
	OpInitializeModule: {Name: "initialize_module"},
	OpCreateKey:        {Name: "create_key", Params: []Shape{ShapeString, ShapeString}},
	OpLoadKey:          {Name: "load_key", Params: []Shape{ShapeString}},
	OpEncryptData:      {Name: "encrypt_data", Params: []Shape{ShapePayload}},
	OpDecryptData:      {Name: "decrypt_data", Params: []Shape{ShapePayload}},
	OpSignData:         {Name: "sign_data", Params: []Shape{ShapePayload}},
	OpVerifySignature:  {Name: "verify_signature", Params: []Shape{ShapePayload, ShapePayload}},
	OpCallback:         {Name: "callback"},
}

// Signature returns the operation's call signature
func (op Operation) Signature() (Signature, bool) {
	sig, ok := signatures[op]
	return sig, ok
}

func (op Operation) String() string {
	if sig, ok := signatures[op]; ok {
		return sig.Name
	}
	return fmt.Sprintf("Operation(%d)", int(op))
}

// check validates args against the signature
func (sig Signature) check(args []Value) error {
	if len(args) != len(sig.Params) {
		return fmt.Errorf("%s takes %d arguments, got %d", sig.Name, len(sig.Params), len(args))
	}
	for i, arg := range args {
		if !sig.Params[i].Accepts(arg.Kind()) {
			return fmt.Errorf("%s argument %d: want %s, got %s", sig.Name, i, sig.Params[i], arg.Kind())
		}
	}
	return nil
}
