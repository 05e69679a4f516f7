package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_keybridge() {
    local cur prev words cword
    _init_completion || return

    local commands="init create encrypt decrypt sign verify keys rm status passwd compact keyring demo help completion"
    local algorithms="AES-128-CBC AES-256-GCM AES-128-CTR DESede ChaCha20 RSA-2048 RSA-4096 EC"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    if [[ "$prev" == "--key" ]]; then
        COMPREPLY=($(compgen -W "$(keybridge keys 2>/dev/null | tail -n +2 | awk '{print $1}')" -- "$cur"))
        return
    fi

    local cmd="${words[1]}"
    case "$cmd" in
        create)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "--id" -- "$cur"))
            else
                COMPREPLY=($(compgen -W "$algorithms" -- "$cur"))
            fi
            ;;
        encrypt|decrypt|sign|verify)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "--key" -- "$cur"))
            else
                _filedir
            fi
            ;;
        rm)
            COMPREPLY=($(compgen -W "$(keybridge keys 2>/dev/null | tail -n +2 | awk '{print $1}')" -- "$cur"))
            ;;
        keyring)
            COMPREPLY=($(compgen -W "save delete status" -- "$cur"))
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

complete -F _keybridge keybridge
`

const zshCompletion = `#compdef keybridge

_keybridge() {
    local -a commands
    commands=(
        'init:Create a key store'
        'create:Create a key'
        'encrypt:Encrypt a file with a key'
        'decrypt:Decrypt a file with a key'
        'sign:Sign a file with a key'
        'verify:Verify a file signature'
        'keys:List keys'
        'rm:Remove keys'
        'status:Show provider and key store status'
        'passwd:Change key store passphrase'
        'compact:Compact key store to reclaim disk space'
        'keyring:Manage passphrase in OS keyring'
        'demo:Run the end-to-end self test'
        'help:Show help for a command'
        'completion:Generate shell completions'
    )

    _arguments -C \
        '1: :->command' \
        '*: :->args'

    case "$state" in
        command)
            _describe -t commands 'keybridge commands' commands
            ;;
        args)
            case "${words[2]}" in
                create)
                    _arguments \
                        '--id[Key id]:id:' \
                        '1:algorithm:(AES-128-CBC AES-256-GCM AES-128-CTR DESede ChaCha20 RSA-2048 RSA-4096 EC)'
                    ;;
                encrypt|decrypt|sign|verify)
                    _arguments \
                        '--key[Key id]:key:_keybridge_keys' \
                        '*:file:_files'
                    ;;
                rm)
                    _arguments '*:key:_keybridge_keys'
                    ;;
                keyring)
                    _values 'subcommand' save delete status
                    ;;
                help)
                    _describe -t commands 'keybridge commands' commands
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
            esac
            ;;
    esac
}

_keybridge_keys() {
    local -a keys
    keys=(${(f)"$(keybridge keys 2>/dev/null | tail -n +2 | awk '{print $1}')"})
    _describe -t keys 'keys' keys
}

_keybridge "$@"
`

const fishCompletion = `# keybridge fish completions

set -l commands init create encrypt decrypt sign verify keys rm status passwd compact keyring demo help completion

complete -c keybridge -f

# Commands
complete -c keybridge -n "not __fish_seen_subcommand_from $commands" -a init -d 'Create a key store'
complete -c keybridge -n "not __fish_seen_subcommand_from $commands" -a create -d 'Create a key'
complete -c keybridge -n "not __fish_seen_subcommand_from $commands" -a encrypt -d 'Encrypt a file'
complete -c keybridge -n "not __fish_seen_subcommand_from $commands" -a decrypt -d 'Decrypt a file'
complete -c keybridge -n "not __fish_seen_subcommand_from $commands" -a sign -d 'Sign a file'
complete -c keybridge -n "not __fish_seen_subcommand_from $commands" -a verify -d 'Verify a signature'
complete -c keybridge -n "not __fish_seen_subcommand_from $commands" -a keys -d 'List keys'
complete -c keybridge -n "not __fish_seen_subcommand_from $commands" -a rm -d 'Remove keys'
complete -c keybridge -n "not __fish_seen_subcommand_from $commands" -a status -d 'Show status'
complete -c keybridge -n "not __fish_seen_subcommand_from $commands" -a passwd -d 'Change passphrase'
complete -c keybridge -n "not __fish_seen_subcommand_from $commands" -a compact -d 'Compact key store'
complete -c keybridge -n "not __fish_seen_subcommand_from $commands" -a keyring -d 'Manage passphrase in OS keyring'
complete -c keybridge -n "not __fish_seen_subcommand_from $commands" -a demo -d 'Run self test'
complete -c keybridge -n "not __fish_seen_subcommand_from $commands" -a help -d 'Show help'
complete -c keybridge -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Generate completions'

# create
complete -c keybridge -n "__fish_seen_subcommand_from create" -l id -d 'Key id' -r
complete -c keybridge -n "__fish_seen_subcommand_from create" -a "AES-128-CBC AES-256-GCM AES-128-CTR DESede ChaCha20 RSA-2048 RSA-4096 EC"

# data commands
complete -c keybridge -n "__fish_seen_subcommand_from encrypt decrypt sign verify" -l key -d 'Key id' -xa "(keybridge keys 2>/dev/null | tail -n +2 | awk '{print \$1}')"
complete -c keybridge -n "__fish_seen_subcommand_from encrypt decrypt sign verify" -F

# rm
complete -c keybridge -n "__fish_seen_subcommand_from rm" -a "(keybridge keys 2>/dev/null | tail -n +2 | awk '{print \$1}')"

# keyring subcommands
complete -c keybridge -n "__fish_seen_subcommand_from keyring" -a "save delete status"

# help completions
complete -c keybridge -n "__fish_seen_subcommand_from help" -a "$commands"

# completion completions
complete -c keybridge -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`
