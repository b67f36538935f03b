package filesync

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const syncArgument = "contao:files:sync"

// CommandRunner runs the sync console command directly, without a shell.
type CommandRunner struct {
	command    []string
	projectDir string
}

// NewCommandRunner uses command when it is non-empty (split on whitespace);
// otherwise the console binary is discovered under projectDir on every run.
func NewCommandRunner(command, projectDir string) *CommandRunner {
	return &CommandRunner{
		command:    strings.Fields(command),
		projectDir: projectDir,
	}
}

func (r *CommandRunner) Run(ctx context.Context) error {
	args, err := r.resolve()
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.projectDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Debug().Str("command", args[0]).Msg("running file sync command")

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("file sync command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (r *CommandRunner) resolve() ([]string, error) {
	if len(r.command) > 0 {
		return r.command, nil
	}

	candidates := []string{
		filepath.Join(r.projectDir, "vendor", "bin", "contao-console"),
		filepath.Join(r.projectDir, "bin", "console"),
	}
	for _, candidate := range candidates {
		if isExecutable(candidate) {
			return []string{candidate, syncArgument}, nil
		}
	}
	return nil, ErrNoConsole
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
