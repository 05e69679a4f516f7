package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/illarion/keybridge/cmd"
	"github.com/illarion/keybridge/internal/config"
	"github.com/illarion/keybridge/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		app, _ := newApp("init", os.Args[2:])
		app.Init()
	case "create":
		runCreate(ctx, os.Args[2:])
	case "encrypt", "decrypt", "sign", "verify":
		runData(ctx, os.Args[1], os.Args[2:])
	case "keys", "ls":
		app, _ := newApp("keys", os.Args[2:])
		app.Keys()
	case "rm":
		app, fs := newApp("rm", os.Args[2:])
		app.Remove(fs.Args())
	case "status":
		app, _ := newApp("status", os.Args[2:])
		app.Status()
	case "passwd":
		app, _ := newApp("passwd", os.Args[2:])
		app.Passwd()
	case "compact":
		app, _ := newApp("compact", os.Args[2:])
		app.Compact()
	case "keyring":
		runKeyring(os.Args[2:])
	case "demo":
		app, _ := newApp("demo", os.Args[2:])
		app.Demo(ctx)
	case "completion":
		runCompletion(os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// commandFlags creates a flag set with the settings overrides every command accepts
func commandFlags(name string, settings *config.Settings) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&settings.Provider, "provider", settings.Provider, "Key provider backend: bbolt, keyring or memory")
	fs.StringVar(&settings.Store, "store", settings.Store, "Key store file for the bbolt provider")
	fs.StringVar(&settings.Encoding, "encoding", settings.Encoding, "Payload encoding across the boundary: bytes or text")
	fs.DurationVar(&settings.Timeout, "timeout", settings.Timeout, "Per-call provider deadline (0 disables)")
	fs.StringVar(&settings.Log.Level, "log-level", settings.Log.Level, "Log level")
	return fs
}

// parseApp loads settings from the environment, applies fs overrides and builds the App
func parseApp(fs *flag.FlagSet, settings *config.Settings, args []string) *cmd.App {
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(settings.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return &cmd.App{Settings: *settings, Log: logger}
}

func loadSettings() config.Settings {
	settings, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return settings
}

func newApp(name string, args []string) (*cmd.App, *flag.FlagSet) {
	settings := loadSettings()
	fs := commandFlags(name, &settings)
	return parseApp(fs, &settings, args), fs
}

func runCreate(ctx context.Context, args []string) {
	settings := loadSettings()
	fs := commandFlags("create", &settings)
	id := fs.String("id", "", "Key id (default: random UUID)")
	app := parseApp(fs, &settings, args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: keybridge create [--id <id>] <algorithm>")
		os.Exit(1)
	}
	app.Create(ctx, *id, fs.Arg(0))
}

func runData(ctx context.Context, command string, args []string) {
	settings := loadSettings()
	fs := commandFlags(command, &settings)
	key := fs.String("key", "", "Key id")
	app := parseApp(fs, &settings, args)

	if fs.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "Usage: keybridge %s --key <id> <input> <output>\n", command)
		os.Exit(1)
	}
	in, out := fs.Arg(0), fs.Arg(1)

	switch command {
	case "encrypt":
		app.Encrypt(ctx, *key, in, out)
	case "decrypt":
		app.Decrypt(ctx, *key, in, out)
	case "sign":
		app.Sign(ctx, *key, in, out)
	case "verify":
		app.Verify(ctx, *key, in, out)
	}
}

func runKeyring(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: keybridge keyring <save|delete|status>")
		os.Exit(1)
	}
	app, _ := newApp("keyring "+args[0], args[1:])

	switch args[0] {
	case "save":
		app.KeyringSave()
	case "delete":
		app.KeyringDelete()
	case "status":
		app.KeyringStatus()
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring command: %s\n", args[0])
		os.Exit(1)
	}
}

func runCompletion(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: keybridge completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func printUsage() {
	fmt.Println("keybridge - Key lifecycle bridge to a secure key provider")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  keybridge <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init        Create a passphrase-protected key store")
	fmt.Println("  create      Create a key")
	fmt.Println("  encrypt     Encrypt a file with a key")
	fmt.Println("  decrypt     Decrypt a file with a key")
	fmt.Println("  sign        Sign a file with a key")
	fmt.Println("  verify      Verify a file signature")
	fmt.Println("  keys, ls    List keys")
	fmt.Println("  rm          Remove keys")
	fmt.Println("  status      Show provider and key store status")
	fmt.Println("  passwd      Change key store passphrase")
	fmt.Println("  compact     Compact key store to reclaim disk space")
	fmt.Println("  keyring     Manage passphrase in OS keyring")
	fmt.Println("  demo        Run the end-to-end self test")
	fmt.Println("  completion  Generate shell completions")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  keybridge init                              # Create key store")
	fmt.Println("  keybridge create --id k1 AES-128-CBC        # Create a key")
	fmt.Println("  keybridge encrypt --key k1 data.bin data.enc")
	fmt.Println("  keybridge demo                              # Self test")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  KEYBRIDGE_PROVIDER, KEYBRIDGE_STORE, KEYBRIDGE_ENCODING, KEYBRIDGE_TIMEOUT,")
	fmt.Println("  KEYBRIDGE_LOG_LEVEL, KEYBRIDGE_LOG_FORMAT, KEYBRIDGE_LOG_FILE, KEYBRIDGE_PASSPHRASE")
	fmt.Println()
	fmt.Println("Use 'keybridge help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "init":
		fmt.Println("keybridge init [--store <file>]")
		fmt.Println()
		fmt.Println("Creates a bbolt key store (default .keybridge).")
		fmt.Println("Prompts for a passphrase that seals all key material.")
		fmt.Println("The passphrase is not stored anywhere unless cached with 'keybridge keyring save'.")
	case "create":
		fmt.Println("keybridge create [--id <id>] <algorithm>")
		fmt.Println()
		fmt.Println("Creates a key with the provider. Without --id a random UUID is used.")
		fmt.Println()
		fmt.Println("Algorithms:")
		fmt.Println("  AES-128-CBC, AES;256;GCM;NoPadding, AES-128-CTR, DESede, ChaCha20")
		fmt.Println("  RSA-2048, RSA;3072;SHA-384;PSS, EC;secp256r1;SHA-256")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  keybridge create --id k1 AES-128-CBC")
		fmt.Println("  keybridge create \"RSA;2048;SHA-256;PKCS1\"")
	case "encrypt", "decrypt":
		fmt.Printf("keybridge %s --key <id> <input> <output>\n", command)
		fmt.Println()
		fmt.Printf("Loads the key and runs %s on the input file.\n", command)
		fmt.Println("Files must be inside the working directory.")
	case "sign":
		fmt.Println("keybridge sign --key <id> <input> <signature>")
		fmt.Println()
		fmt.Println("Signs the input file and writes the signature.")
	case "verify":
		fmt.Println("keybridge verify --key <id> <input> <signature>")
		fmt.Println()
		fmt.Println("Verifies the signature. Exits with status 1 when it does not match.")
	case "keys", "ls":
		fmt.Println("keybridge keys")
		fmt.Println()
		fmt.Println("Lists key ids, algorithms and creation times.")
		fmt.Println("Does not require a passphrase.")
	case "rm":
		fmt.Println("keybridge rm <id> [id...]")
		fmt.Println()
		fmt.Println("Removes keys from the store and compacts it.")
		fmt.Println("Does not require a passphrase.")
	case "status":
		fmt.Println("keybridge status")
		fmt.Println()
		fmt.Println("Shows provider settings, key counts, store details and git warnings.")
		fmt.Println("Does not require a passphrase.")
	case "passwd":
		fmt.Println("keybridge passwd")
		fmt.Println()
		fmt.Println("Changes the key store passphrase and re-seals every key.")
	case "compact":
		fmt.Println("keybridge compact")
		fmt.Println()
		fmt.Println("Compacts the key store to reclaim unused disk space.")
		fmt.Println("This is done automatically after 'rm' and 'passwd'.")
	case "keyring":
		fmt.Println("keybridge keyring <save|delete|status>")
		fmt.Println()
		fmt.Println("Caches the key store passphrase in the OS keyring.")
	case "demo":
		fmt.Println("keybridge demo")
		fmt.Println()
		fmt.Println("Runs create, load, encrypt, decrypt, sign and verify against an")
		fmt.Println("in-memory provider in both payload encodings.")
	case "completion":
		fmt.Println("keybridge completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Setup:")
		fmt.Println("  # Bash - add to ~/.bashrc")
		fmt.Println("  eval \"$(keybridge completion bash)\"")
		fmt.Println()
		fmt.Println("  # Zsh - add to ~/.zshrc")
		fmt.Println("  eval \"$(keybridge completion zsh)\"")
		fmt.Println()
		fmt.Println("  # Fish - add to ~/.config/fish/config.fish")
		fmt.Println("  keybridge completion fish | source")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
