package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// Status is the git view of the files keybridge writes
type Status struct {
	IsRepo       bool
	Store        string
	StoreTracked bool
	Tracked      []string // Plaintext tracked by git (bad)
	Unignored    []string // Plaintext not in .gitignore (warning)
}

// IsGitRepo checks if the working directory is inside a git repository
func IsGitRepo(workDir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = workDir
	return cmd.Run() == nil
}

// IsTracked checks if a file is tracked by git
func IsTracked(workDir, path string) bool {
	cmd := exec.Command("git", "ls-files", "--", path)
	cmd.Dir = workDir
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(output))) > 0
}

// IsIgnored checks if a file is ignored by git (handles all .gitignore files)
func IsIgnored(workDir, path string) bool {
	cmd := exec.Command("git", "check-ignore", "-q", "--", path)
	cmd.Dir = workDir
	// Exit code 0 means ignored
	return cmd.Run() == nil
}

// Check inspects the key store and plaintext outputs relative to workDir
func Check(workDir, store string, plaintext []string) *Status {
	status := &Status{Store: store}
	if !IsGitRepo(workDir) {
		return status
	}
	status.IsRepo = true

	if store != "" {
		status.StoreTracked = IsTracked(workDir, store)
	}
	for _, file := range plaintext {
		switch {
		case IsTracked(workDir, file):
			status.Tracked = append(status.Tracked, file)
		case !IsIgnored(workDir, file):
			status.Unignored = append(status.Unignored, file)
		}
	}
	return status
}

// Warnings reports whether Format would print anything
func (s *Status) Warnings() bool {
	return s.IsRepo && (s.StoreTracked || len(s.Tracked) > 0 || len(s.Unignored) > 0)
}

// Format renders the warnings for display
func Format(status *Status) string {
	if !status.Warnings() {
		return ""
	}

	var result strings.Builder
	result.WriteString("\nGit:\n")

	if status.StoreTracked {
		result.WriteString(fmt.Sprintf("   warning: key store %s is tracked by git\n", status.Store))
	}
	for _, file := range status.Tracked {
		result.WriteString(fmt.Sprintf("   error: plaintext %s is tracked by git (run: git rm --cached %s)\n", file, file))
	}
	for _, file := range status.Unignored {
		result.WriteString(fmt.Sprintf("   warning: plaintext %s not in .gitignore\n", file))
	}

	return result.String()
}
