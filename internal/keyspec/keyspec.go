// Package keyspec parses key generation info strings such as
// "RSA;2048;SHA-256;PKCS1", "AES;128;CBC;PKCS7Padding" or the short forms
// "AES-128-CBC" and "RSA-2048".
package keyspec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrEmptySpec         = errors.New("empty key generation info")
	ErrUnsupportedFamily = errors.New("unsupported key algorithm")
	ErrUnsupportedOption = errors.New("unsupported key option")
)

// Kind separates secret keys from key pairs
type Kind int

const (
	KindUnknown Kind = iota
	KindSymmetric
	KindAsymmetric
)

func (k Kind) String() string {
	switch k {
	case KindSymmetric:
		return "symmetric"
	case KindAsymmetric:
		return "asymmetric"
	default:
		return "unknown"
	}
}

// Family is the key algorithm family
type Family string

const (
	FamilyAES      Family = "AES"
	FamilyDESede   Family = "DESede"
	FamilyChaCha20 Family = "ChaCha20"
	FamilyRSA      Family = "RSA"
	FamilyEC       Family = "EC"
)

// Kind returns the family's key kind
func (f Family) Kind() Kind {
	switch f {
	case FamilyAES, FamilyDESede, FamilyChaCha20:
		return KindSymmetric
	case FamilyRSA, FamilyEC:
		return KindAsymmetric
	default:
		return KindUnknown
	}
}

// Algorithm is a parsed key generation info string
type Algorithm struct {
	Family  Family
	Bits    int    // Key size; 0 for EC, where Curve decides
	Curve   string // EC only: secp256r1, secp384r1, secp521r1
	Mode    string // Symmetric: CBC, GCM, CTR, Poly1305
	Padding string // PKCS7Padding, NoPadding, PKCS1, PSS
	Hash    string // Asymmetric: SHA-256, SHA-384, SHA-512
}

// Kind returns the key kind
func (a Algorithm) Kind() Kind {
	return a.Family.Kind()
}

// Usage is what a key of this algorithm is for
func (a Algorithm) Usage() Usage {
	if a.Kind() == KindAsymmetric {
		return UsageSign
	}
	return UsageEncrypt
}

// String renders the canonical semicolon form
func (a Algorithm) String() string {
	parts := []string{string(a.Family)}
	switch a.Family {
	case FamilyEC:
		parts = append(parts, a.Curve, a.Hash)
	case FamilyRSA:
		parts = append(parts, strconv.Itoa(a.Bits), a.Hash, a.Padding)
	default:
		parts = append(parts, strconv.Itoa(a.Bits), a.Mode)
		if a.Padding != "" {
			parts = append(parts, a.Padding)
		}
	}
	return strings.Join(parts, ";")
}

// Usage of a key
type Usage int

const (
	UsageEncrypt Usage = iota
	UsageSign
)

func (u Usage) String() string {
	if u == UsageSign {
		return "sign"
	}
	return "encrypt"
}

// Classify returns the kind of a key generation info string without fully
// validating it. Unrecognized strings are KindUnknown.
func Classify(info string) Kind {
	fields := split(info)
	if len(fields) == 0 {
		return KindUnknown
	}
	family, ok := lookupFamily(fields[0])
	if !ok {
		return KindUnknown
	}
	return family.Kind()
}

// Parse validates info and fills in defaults
func Parse(info string) (Algorithm, error) {
	fields := split(info)
	if len(fields) == 0 {
		return Algorithm{}, ErrEmptySpec
	}

	family, ok := lookupFamily(fields[0])
	if !ok {
		return Algorithm{}, fmt.Errorf("%w: %s", ErrUnsupportedFamily, fields[0])
	}
	rest := fields[1:]

	switch family {
	case FamilyAES:
		return parseSymmetric(family, rest, 128, []int{128, 192, 256}, "CBC", []string{"CBC", "GCM", "CTR"})
	case FamilyDESede:
		return parseSymmetric(family, rest, 168, []int{168}, "CBC", []string{"CBC"})
	case FamilyChaCha20:
		return parseSymmetric(family, rest, 256, []int{256}, "Poly1305", []string{"Poly1305"})
	case FamilyRSA:
		return parseRSA(rest)
	default:
		return parseEC(rest)
	}
}

func parseSymmetric(family Family, fields []string, defBits int, bits []int, defMode string, modes []string) (Algorithm, error) {
	alg := Algorithm{Family: family, Bits: defBits, Mode: defMode}
	if len(fields) > 0 {
		n, err := strconv.Atoi(fields[0])
		if err != nil || !containsInt(bits, n) {
			return Algorithm{}, fmt.Errorf("%w: %s key size %q", ErrUnsupportedOption, family, fields[0])
		}
		alg.Bits = n
	}
	if len(fields) > 1 {
		mode, ok := matchFold(modes, fields[1])
		if !ok {
			return Algorithm{}, fmt.Errorf("%w: %s mode %q", ErrUnsupportedOption, family, fields[1])
		}
		alg.Mode = mode
	}
	switch alg.Mode {
	case "CBC":
		alg.Padding = "PKCS7Padding"
	default:
		alg.Padding = "NoPadding"
	}
	if len(fields) > 2 {
		padding, ok := matchFold([]string{alg.Padding}, fields[2])
		if !ok && !strings.EqualFold(fields[2], "PKCS5Padding") {
			return Algorithm{}, fmt.Errorf("%w: %s padding %q for %s", ErrUnsupportedOption, family, fields[2], alg.Mode)
		}
		if ok {
			alg.Padding = padding
		}
	}
	return alg, nil
}

func parseRSA(fields []string) (Algorithm, error) {
	alg := Algorithm{Family: FamilyRSA, Bits: 2048, Hash: "SHA-256", Padding: "PKCS1"}
	if len(fields) > 0 {
		n, err := strconv.Atoi(fields[0])
		if err != nil || !containsInt([]int{1024, 2048, 3072, 4096}, n) {
			return Algorithm{}, fmt.Errorf("%w: RSA key size %q", ErrUnsupportedOption, fields[0])
		}
		alg.Bits = n
	}
	if len(fields) > 1 {
		hash, err := parseHash(fields[1])
		if err != nil {
			return Algorithm{}, err
		}
		alg.Hash = hash
	}
	if len(fields) > 2 {
		padding, ok := matchFold([]string{"PKCS1", "PSS"}, fields[2])
		if !ok {
			return Algorithm{}, fmt.Errorf("%w: RSA padding %q", ErrUnsupportedOption, fields[2])
		}
		alg.Padding = padding
	}
	return alg, nil
}

func parseEC(fields []string) (Algorithm, error) {
	alg := Algorithm{Family: FamilyEC, Curve: "secp256r1", Hash: "SHA-256"}
	if len(fields) > 0 {
		curve, ok := matchFold([]string{"secp256r1", "secp384r1", "secp521r1"}, fields[0])
		if !ok {
			return Algorithm{}, fmt.Errorf("%w: EC curve %q", ErrUnsupportedOption, fields[0])
		}
		alg.Curve = curve
	}
	if len(fields) > 1 {
		hash, err := parseHash(fields[1])
		if err != nil {
			return Algorithm{}, err
		}
		alg.Hash = hash
	}
	return alg, nil
}

func parseHash(s string) (string, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(s, "-", ""))
	switch normalized {
	case "SHA256":
		return "SHA-256", nil
	case "SHA384":
		return "SHA-384", nil
	case "SHA512":
		return "SHA-512", nil
	default:
		return "", fmt.Errorf("%w: hash %q", ErrUnsupportedOption, s)
	}
}

// split accepts both "AES;128;CBC" and "AES-128-CBC". Hash names keep their
// dash in the semicolon form, so the dash form is only used without semicolons.
func split(info string) []string {
	info = strings.TrimSpace(info)
	if info == "" {
		return nil
	}
	sep := ";"
	if !strings.Contains(info, ";") {
		sep = "-"
	}
	var fields []string
	for _, f := range strings.Split(info, sep) {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func lookupFamily(s string) (Family, bool) {
	for _, f := range []Family{FamilyAES, FamilyDESede, FamilyChaCha20, FamilyRSA, FamilyEC} {
		if strings.EqualFold(string(f), s) {
			return f, true
		}
	}
	if strings.EqualFold(s, "ECDSA") {
		return FamilyEC, true
	}
	return "", false
}

func matchFold(options []string, s string) (string, bool) {
	for _, o := range options {
		if strings.EqualFold(o, s) {
			return o, true
		}
	}
	return "", false
}

func containsInt(values []int, n int) bool {
	for _, v := range values {
		if v == n {
			return true
		}
	}
	return false
}
