package identity

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// gitTimeout bounds every git subprocess.
const gitTimeout = 3 * time.Second

// GitEmail reads user.email from the local git configuration.
type GitEmail struct {
	// Dir is the working directory for git. Empty uses the process cwd.
	Dir string
}

// Email runs `git config user.email`.
func (g GitEmail) Email(ctx context.Context) (string, error) {
	out, err := runGit(ctx, g.Dir, "config", "user.email")
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", fmt.Errorf("git user.email is not set")
	}
	return out, nil
}

// ProjectRoot returns the top level of the git work tree containing dir.
func ProjectRoot(ctx context.Context, dir string) (string, error) {
	return runGit(ctx, dir, "rev-parse", "--show-toplevel")
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
