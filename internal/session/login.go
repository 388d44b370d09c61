// Package session prepares the OpenFaaS gateway before a benchmark run.
package session

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"github.com/daryltucker/crowdcount-bench/internal/output"
)

// Login runs a gateway login script (typically faas-cli login) with bash,
// optionally under sudo. Script output is kept out of the benchmark log and
// only surfaces in the returned error.
func Login(ctx context.Context, script string, sudo bool) error {
	if script == "" {
		return ErrNoScript
	}
	if _, err := os.Stat(script); err != nil {
		return errors.Wrapf(err, "login script %s", script)
	}

	args := []string{"/bin/bash", script}
	if sudo {
		args = append([]string{"sudo"}, args...)
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(out.String())
		if detail != "" {
			err = errors.Wrap(err, detail)
		}
		return errors.Wrapf(ErrLoginFailed, "%s: %v", script, err)
	}

	output.Logger.Info("OpenFaaS connection established", "script", script, "sudo", sudo)
	return nil
}
