// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command bps is a thin front-end over the package manager engine: it
// parses arguments, wires progress output, and maps engine errors to the
// POSIX exit-code contract.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"syscall"
	"text/tabwriter"

	"github.com/pkg/errors"

	bps "github.com/gobps/gobps"
)

type command interface {
	Name() string           // "install"
	Args() string           // "<pkg...>"
	ShortHelp() string      // "Install packages"
	Register(*flag.FlagSet) // command-specific flags
	Run(*bps.Handle, []string) error
}

func main() {
	c := &Config{
		Args:   os.Args,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	os.Exit(c.Run())
}

// A Config specifies a full configuration for one bps execution.
type Config struct {
	Args           []string
	Stdout, Stderr io.Writer
}

// Run executes a configuration and returns an exit code.
func (c *Config) Run() int {
	commands := []command{
		&installCommand{},
		&removeCommand{},
		&updateCommand{},
		&autoremoveCommand{},
		&syncCommand{},
		&configureCommand{},
		&cleanCommand{},
	}

	outLogger := log.New(c.Stdout, "", 0)
	errLogger := log.New(c.Stderr, "", 0)

	usage := func() {
		errLogger.Println("bps is a binary package manager")
		errLogger.Println()
		errLogger.Println("Usage: bps [-C config] [-r rootdir] [-d] <command>")
		errLogger.Println()
		errLogger.Println("Commands:")
		w := tabwriter.NewWriter(c.Stderr, 0, 4, 2, ' ', 0)
		for _, cmd := range commands {
			fmt.Fprintf(w, "\t%s %s\t%s\n", cmd.Name(), cmd.Args(), cmd.ShortHelp())
		}
		w.Flush()
	}

	fs := flag.NewFlagSet("bps", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	confPath := fs.String("C", "/"+bps.DefaultConfigPath, "configuration file")
	rootDir := fs.String("r", "", "install root directory")
	debug := fs.Bool("d", false, "debug output")
	if err := fs.Parse(c.Args[1:]); err != nil || fs.NArg() == 0 {
		usage()
		return 1
	}

	cfg, err := bps.LoadConfig(*confPath)
	if err != nil {
		errLogger.Println(err)
		return 1
	}
	if *rootDir != "" {
		cfg.RootDir = *rootDir
	}
	h, err := bps.New(cfg)
	if err != nil {
		errLogger.Println(err)
		return 1
	}
	h.Out = outLogger
	if *debug {
		h.Dbg = log.New(c.Stderr, "[debug] ", 0)
	}
	h.OnState = func(ev bps.StateEvent) error {
		if ev.Err != nil {
			errLogger.Printf("%s: %v", ev.Tag, ev.Err)
		} else if ev.Desc != "" {
			outLogger.Println(ev.Desc)
		}
		return nil
	}
	h.OnFetch = fetchProgress(c.Stdout)

	name := fs.Arg(0)
	for _, cmd := range commands {
		if cmd.Name() != name {
			continue
		}
		cfs := flag.NewFlagSet(name, flag.ContinueOnError)
		cfs.SetOutput(c.Stderr)
		cmd.Register(cfs)
		if err := cfs.Parse(fs.Args()[1:]); err != nil {
			return 1
		}
		if err := cmd.Run(h, cfs.Args()); err != nil {
			errLogger.Println(err)
			return exitCode(err)
		}
		return 0
	}

	errLogger.Printf("bps: %s: no such command", name)
	usage()
	return 1
}

// exitCode maps engine errors onto the POSIX errno contract.
func exitCode(err error) int {
	switch errors.Cause(err) {
	case bps.ErrAlreadyInstalled, bps.ErrUpToDate:
		return int(syscall.EEXIST)
	case bps.ErrNotFound, bps.ErrNotInstalled:
		return int(syscall.ENOENT)
	case bps.ErrNoRepositories:
		return int(syscall.ENOTSUP)
	case bps.ErrMissingDeps:
		return int(syscall.ENODEV)
	case bps.ErrHasConflicts, bps.ErrDatabaseLocked:
		return int(syscall.EAGAIN)
	case bps.ErrCancelled:
		return int(syscall.EINTR)
	}
	if en, ok := errors.Cause(err).(syscall.Errno); ok {
		return int(en)
	}
	return 1
}

func runTransaction(h *bps.Handle, out io.Writer) error {
	td, err := h.Prepare()
	if err != nil {
		if td != nil {
			for _, m := range td.Missing {
				fmt.Fprintf(out, "missing dependency: %s (required by %s)\n", m.Atom, m.RequiredBy)
			}
			for _, cf := range td.Conflicts {
				fmt.Fprintf(out, "conflict: %s conflicts with %s (%s)\n", cf.Pkgver, cf.Against, cf.Atom)
			}
		}
		return err
	}
	fmt.Fprintf(out, "%d operation(s): %s to download, %s net installed change\n",
		len(td.Steps), humanize(int64(td.DownloadSize)), humanize(td.InstalledSizeDelta))
	return h.Commit(context.Background())
}

// humanize renders a byte count for people.
func humanize(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	const unit = 1024
	var s string
	switch {
	case n < unit:
		s = fmt.Sprintf("%dB", n)
	case n < unit*unit:
		s = fmt.Sprintf("%.1fKB", float64(n)/unit)
	case n < unit*unit*unit:
		s = fmt.Sprintf("%.1fMB", float64(n)/(unit*unit))
	default:
		s = fmt.Sprintf("%.1fGB", float64(n)/(unit*unit*unit))
	}
	if neg {
		return "-" + s
	}
	return s
}

// fetchProgress renders transfer progress on one rewriting line.
func fetchProgress(out io.Writer) bps.FetchFunc {
	return func(p bps.FetchProgress) error {
		switch p.Phase {
		case bps.FetchStart:
			fmt.Fprintf(out, "%s: fetching", p.Name)
		case bps.FetchUpdate:
			if p.Total > 0 {
				fmt.Fprintf(out, "\r%s: %s of %s", p.Name,
					humanize(p.Offset+p.Received), humanize(p.Total))
			} else {
				fmt.Fprintf(out, "\r%s: %s", p.Name, humanize(p.Offset+p.Received))
			}
		case bps.FetchEnd:
			fmt.Fprintf(out, "\r%s: done (%s)\n", p.Name, humanize(p.Offset+p.Received))
		}
		return nil
	}
}
