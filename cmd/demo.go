package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/illarion/keybridge/internal/codec"
	"github.com/illarion/keybridge/internal/core"
	"github.com/illarion/keybridge/internal/provider"
	"github.com/sergi/go-diff/diffmatchpatch"
)

var demoPayload = []byte{1, 0, 255}

// DemoStep is one checked step of the demo scenario
type DemoStep struct {
	Name string
	Err  error
	Diff string // Token diff when a round trip came back different
}

// Demo runs the end-to-end scenario against an in-memory provider in both
// payload encodings and exits with status 1 if any step fails
func (a *App) Demo(ctx context.Context) {
	failed := false
	for _, enc := range []codec.Encoding{codec.EncodingBytes, codec.EncodingText} {
		fmt.Printf("%s encoding:\n", enc)
		for _, step := range a.RunDemo(ctx, enc) {
			if step.Err == nil {
				fmt.Printf("  ok    %s\n", step.Name)
				continue
			}
			failed = true
			fmt.Printf("  FAIL  %s: %s\n", step.Name, step.Err)
			if step.Diff != "" {
				fmt.Printf("        %s\n", step.Diff)
			}
		}
	}
	if failed {
		os.Exit(1)
	}
}

// RunDemo runs the scenario once with enc and reports every step
func (a *App) RunDemo(ctx context.Context, enc codec.Encoding) []DemoStep {
	settings := a.Settings
	settings.Encoding = enc.String()
	demo := &App{Settings: settings, Log: a.Log}

	bridge, gw, err := demo.newBridge(provider.NewMemoryStore())
	if err != nil {
		return []DemoStep{{Name: "setup", Err: err}}
	}
	defer bridge.Close()

	var steps []DemoStep
	check := func(name string, err error) bool {
		steps = append(steps, DemoStep{Name: name, Err: err})
		return err == nil
	}
	roundTrip := func(name string, want, got []byte) {
		step := DemoStep{Name: name}
		if !bytes.Equal(want, got) {
			step.Err = fmt.Errorf("round trip mismatch")
			step.Diff = tokenDiff(want, got)
		}
		steps = append(steps, step)
	}

	if !check("callback", gw.Ping(ctx)) {
		return steps
	}
	if !check("initialize", bridge.Initialize(ctx)) {
		return steps
	}

	symID := "demo-" + uuid.NewString()
	if !check("create "+symID+" AES-128-CBC", created(bridge.CreateKey(ctx, symID, "AES-128-CBC"))) {
		return steps
	}
	_, err = bridge.Encrypt(ctx, demoPayload)
	check("encrypt before load is rejected", expect(err, core.ErrNoActiveKey))
	if !check("load "+symID, bridge.LoadKey(ctx, symID)) {
		return steps
	}
	ct, err := bridge.Encrypt(ctx, demoPayload)
	if check("encrypt", err) {
		pt, err := bridge.Decrypt(ctx, ct)
		if check("decrypt", err) {
			roundTrip("decrypt matches plaintext", demoPayload, pt)
		}
	}

	asymID := "demo-" + uuid.NewString()
	if !check("create "+asymID+" RSA-2048", created(bridge.CreateKey(ctx, asymID, "RSA-2048"))) {
		return steps
	}
	if !check("load "+asymID, bridge.LoadKey(ctx, asymID)) {
		return steps
	}
	sig, err := bridge.Sign(ctx, demoPayload)
	if check("sign", err) {
		valid, err := bridge.Verify(ctx, demoPayload, sig)
		check("verify signature", truth(valid, err, true))
		tampered := append([]byte(nil), demoPayload...)
		tampered[len(tampered)-1]--
		valid, err = bridge.Verify(ctx, tampered, sig)
		check("verify rejects tampered data", truth(valid, err, false))
	}

	check("load of unknown key keeps "+asymID, keptAfterFailedLoad(ctx, bridge, asymID))
	return steps
}

func keptAfterFailedLoad(ctx context.Context, b *core.Bridge, want string) error {
	if err := b.LoadKey(ctx, "demo-missing"); err == nil {
		return fmt.Errorf("load of unknown key succeeded")
	}
	if got := b.Session().ActiveKeyID(); got != want {
		return fmt.Errorf("active key is %q", got)
	}
	return nil
}

func created(ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("provider declined")
	}
	return nil
}

func truth(got bool, err error, want bool) error {
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("got %t, want %t", got, want)
	}
	return nil
}

func expect(err, want error) error {
	if err == nil {
		return fmt.Errorf("expected %v, got success", want)
	}
	if !errors.Is(err, want) {
		return fmt.Errorf("expected %v, got %v", want, err)
	}
	return nil
}

// tokenDiff shows how two payloads differ in codec token form
func tokenDiff(want, got []byte) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(codec.Encode(want), codec.Encode(got), false)
	return dmp.DiffPrettyText(dmp.DiffCleanupSemantic(diffs))
}
