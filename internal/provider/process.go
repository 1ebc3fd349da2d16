package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/five82/termstack/internal/config"
)

const (
	processWaitDelay = 2 * time.Second
	maxStderrDetail  = 2048
)

// command builds the exec.Cmd for a process or stream source. With shell
// set, the command and its arguments are joined and passed to sh -c.
func command(ctx context.Context, name string, args []string, env map[string]string, dir string, shell bool) *exec.Cmd {
	if shell {
		line := strings.TrimSpace(name + " " + strings.Join(args, " "))
		name, args = "sh", []string{"-c", line}
	}
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = config.ExpandPath(dir)
	}
	cmd.Env = mergeEnv(os.Environ(), env)
	cmd.WaitDelay = processWaitDelay
	configureProcess(cmd)
	return cmd
}

func runProcess(ctx context.Context, s config.ProcessSource) ([]byte, error) {
	cmd := command(ctx, s.Command, s.Args, s.Env, s.WorkingDir, s.Shell)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > maxStderrDetail {
			detail = detail[:maxStderrDetail]
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if detail == "" {
				detail = exitErr.Error()
			}
			return nil, &FetchError{Kind: KindSourceFailed, Source: s.Command, Detail: detail, Err: err}
		}
		return nil, &FetchError{Kind: KindSourceFailed, Source: s.Command, Detail: fmt.Sprintf("start: %v", err), Err: err}
	}
	return stdout.Bytes(), nil
}

// mergeEnv overlays extra onto base, both in KEY=VALUE form. The result is
// sorted so the child sees a deterministic environment.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	env := make(map[string]string, len(base)+len(extra))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	maps.Copy(env, extra)
	out := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		out = append(out, k+"="+env[k])
	}
	return out
}
