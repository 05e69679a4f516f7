package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	ws, err := Open(dir)
	if err != nil {
		t.Fatalf("Failed to open workspace: %v", err)
	}
	defer ws.Close()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"simple file", "data.bin", "data.bin", nil},
		{"nested", "out/sig.bin", filepath.Join("out", "sig.bin"), nil},
		{"dot segments", "./a/./b.bin", filepath.Join("a", "b.bin"), nil},
		{"absolute inside", filepath.Join(ws.Dir(), "in.bin"), "in.bin", nil},
		{"parent", "../data.bin", "", ErrPathEscapes},
		{"nested parent", "a/../../data.bin", "", ErrPathEscapes},
		{"absolute outside", "/etc/passwd", "", ErrPathEscapes},
		{"empty", "", "", ErrEmptyPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ws.Resolve(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestReadWrite(t *testing.T) {
	dir := t.TempDir()
	ws, err := Open(dir)
	if err != nil {
		t.Fatalf("Failed to open workspace: %v", err)
	}
	defer ws.Close()

	data := []byte{0x01, 0x00, 0xFF}
	if err := ws.WriteFile("out/cipher.bin", data); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "out", "cipher.bin"))
	if err != nil {
		t.Fatalf("File not created: %v", err)
	}
	if info.Mode().Perm() != SecretPerm {
		t.Errorf("Expected mode %o, got %o", SecretPerm, info.Mode().Perm())
	}

	got, err := ws.ReadFile("out/cipher.bin")
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Read back %x", got)
	}
}

func TestEscapePrevention(t *testing.T) {
	dir := t.TempDir()
	ws, err := Open(dir)
	if err != nil {
		t.Fatalf("Failed to open workspace: %v", err)
	}
	defer ws.Close()

	target := filepath.Join(filepath.Dir(dir), "should_not_be_written.bin")
	defer os.Remove(target)

	if err := ws.WriteFile("../should_not_be_written.bin", []byte("x")); err == nil {
		t.Error("Expected error writing outside the workspace")
	}
	if _, err := os.Stat(target); err == nil {
		t.Error("File was created outside the workspace")
	}

	// A symlink pointing outside is stopped by os.Root
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret"), []byte("s"), 0600); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(dir, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if _, err := ws.ReadFile("link/secret"); err == nil {
		t.Error("Expected error reading through symlink")
	}
}
