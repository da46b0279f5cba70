// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
)

// Hook script filenames under a package's metadata directory.
const (
	installScriptName = "INSTALL"
	removeScriptName  = "REMOVE"
)

// runScript executes a package hook script as a subprocess from the
// install root, with the fixed argument order
// (action, pkgname, version, update, conffile) and the engine variables
// injected into the inherited environment. A missing script is not an
// error. The returned exit code is 0 on success or for a missing script,
// the script's own code when it exits non-zero, and -1 for any other
// failure.
func (h *Handle) runScript(ctx context.Context, script, action, pkgname, version string, update bool) (int, error) {
	if _, err := os.Stat(script); err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return -1, errors.Wrapf(err, "stat %s", script)
	}

	updateArg := "no"
	if update {
		updateArg = "yes"
	}
	conffile := filepath.Join(h.Conf.RootDir, DefaultConfigPath)

	cmd := exec.CommandContext(ctx, script, action, pkgname, version, updateArg, conffile)
	cmd.Dir = h.Conf.RootDir
	cmd.Env = append(os.Environ(),
		"ROOTDIR="+h.Conf.RootDir,
		"PKGNAME="+pkgname,
		"VERSION="+version,
		"ACTION="+action,
		"UPDATE="+updateArg,
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	code := -1
	if ee, ok := err.(*exec.ExitError); ok {
		code = ee.ExitCode()
	}
	return code, errors.Wrapf(err, "%s %s: %s", filepath.Base(script), action, truncateOutput(out.Bytes()))
}

// truncateOutput bounds script output included in error messages.
func truncateOutput(b []byte) string {
	const max = 512
	if len(b) > max {
		return fmt.Sprintf("%s... (%d bytes)", b[:max], len(b))
	}
	return string(bytes.TrimSpace(b))
}
