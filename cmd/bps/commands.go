// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	bps "github.com/gobps/gobps"
)

type installCommand struct {
	reinstall bool
}

func (cmd *installCommand) Name() string      { return "install" }
func (cmd *installCommand) Args() string      { return "<pkg...>" }
func (cmd *installCommand) ShortHelp() string { return "Install packages and their dependencies" }
func (cmd *installCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.reinstall, "f", false, "force reinstallation of an installed package")
}

func (cmd *installCommand) Run(h *bps.Handle, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("install: at least one package required")
	}
	for _, pkg := range args {
		if err := h.InstallPackage(pkg, cmd.reinstall); err != nil {
			return err
		}
	}
	return runTransaction(h, os.Stdout)
}

type removeCommand struct {
	recursive bool
	force     bool
}

func (cmd *removeCommand) Name() string      { return "remove" }
func (cmd *removeCommand) Args() string      { return "<pkg...>" }
func (cmd *removeCommand) ShortHelp() string { return "Remove installed packages" }
func (cmd *removeCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.recursive, "R", false, "also remove packages that become orphans")
	fs.BoolVar(&cmd.force, "f", false, "remove files even when their hash changed")
}

func (cmd *removeCommand) Run(h *bps.Handle, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("remove: at least one package required")
	}
	if cmd.force {
		h.Flags |= bps.FlagForceRemoveFiles
	}
	for _, pkg := range args {
		if err := h.RemovePackage(pkg, cmd.recursive); err != nil {
			return err
		}
	}
	if td := h.Transaction(); td != nil {
		for _, dep := range td.Dependants {
			fmt.Fprintf(os.Stderr, "WARNING: %s depends on a package being removed\n", dep)
		}
	}
	return runTransaction(h, os.Stdout)
}

type updateCommand struct{}

func (cmd *updateCommand) Name() string      { return "update" }
func (cmd *updateCommand) Args() string      { return "[pkg...]" }
func (cmd *updateCommand) ShortHelp() string { return "Update packages (all when none named)" }
func (cmd *updateCommand) Register(fs *flag.FlagSet) {}

func (cmd *updateCommand) Run(h *bps.Handle, args []string) error {
	if len(args) == 0 {
		if err := h.UpdateAllPackages(); err != nil {
			return err
		}
	} else {
		for _, pkg := range args {
			if err := h.UpdatePackage(pkg); err != nil {
				return err
			}
		}
	}
	return runTransaction(h, os.Stdout)
}

type autoremoveCommand struct{}

func (cmd *autoremoveCommand) Name() string              { return "autoremove" }
func (cmd *autoremoveCommand) Args() string              { return "" }
func (cmd *autoremoveCommand) ShortHelp() string         { return "Remove orphaned packages" }
func (cmd *autoremoveCommand) Register(fs *flag.FlagSet) {}

func (cmd *autoremoveCommand) Run(h *bps.Handle, args []string) error {
	if err := h.Autoremove(); err != nil {
		return err
	}
	return runTransaction(h, os.Stdout)
}

type syncCommand struct{}

func (cmd *syncCommand) Name() string              { return "sync" }
func (cmd *syncCommand) Args() string              { return "" }
func (cmd *syncCommand) ShortHelp() string         { return "Synchronize repository indexes" }
func (cmd *syncCommand) Register(fs *flag.FlagSet) {}

func (cmd *syncCommand) Run(h *bps.Handle, args []string) error {
	return h.SyncRepositories(context.Background())
}

type configureCommand struct {
	force bool
}

func (cmd *configureCommand) Name() string      { return "configure" }
func (cmd *configureCommand) Args() string      { return "[pkg...]" }
func (cmd *configureCommand) ShortHelp() string { return "Configure unpacked packages" }
func (cmd *configureCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.force, "f", false, "reconfigure even when already installed")
}

func (cmd *configureCommand) Run(h *bps.Handle, args []string) error {
	if cmd.force {
		h.Flags |= bps.FlagForceConfigure
	}
	if len(args) == 0 {
		return h.ConfigureAllPackages(context.Background())
	}
	for _, pkg := range args {
		if err := h.ConfigurePackage(context.Background(), pkg, false, true); err != nil {
			return err
		}
	}
	return nil
}

type cleanCommand struct{}

func (cmd *cleanCommand) Name() string              { return "clean" }
func (cmd *cleanCommand) Args() string              { return "" }
func (cmd *cleanCommand) ShortHelp() string         { return "Remove obsolete archives from the cache" }
func (cmd *cleanCommand) Register(fs *flag.FlagSet) {}

func (cmd *cleanCommand) Run(h *bps.Handle, args []string) error {
	n, err := h.CleanCache()
	if err != nil {
		return err
	}
	fmt.Printf("removed %d file(s)\n", n)
	return nil
}
