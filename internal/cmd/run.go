// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"text/tabwriter"

	"github.com/aibor/vcore/internal/vmm"
)

const (
	localConfigFile = ".vcore-args"

	exitCodePanic = 2
)

// IO provides input and output details for the command.
type IO struct {
	Stdout io.Writer
	Stderr io.Writer
}

func parseArgs(args []string, cfg IO) (*flags, error) {
	args, err := MergedArgs(args, os.DirFS("."), localConfigFile)
	if err != nil {
		return nil, err
	}

	flags := newFlags(cfg.Stderr)

	err = flags.ParseArgs(args)
	if err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}

	return flags, nil
}

func run(ctx context.Context, flags *flags, cfg IO) error {
	machine, err := vmm.NewMachine(flags.machineConfig(cfg.Stdout))
	if err != nil {
		return fmt.Errorf("create machine: %w", err)
	}

	err = machine.Start(ctx)
	if err == nil {
		err = cycle(ctx, machine, flags.pauseCycles)
	}

	if err == nil {
		err = machine.Wait(ctx)
	}

	// Shut down even if the context is done already, so the vCPU threads
	// and the dispatcher are released.
	shutdownErr := machine.Shutdown(context.WithoutCancel(ctx))

	printStats(cfg.Stdout, machine.Stats())

	// The shutdown error carries the vCPU errors, which have more details.
	if shutdownErr != nil {
		return shutdownErr
	}

	return err
}

func cycle(ctx context.Context, machine *vmm.Machine, cycles uint64) error {
	for idx := range cycles {
		if err := ctx.Err(); err != nil {
			return context.Cause(ctx)
		}

		if err := machine.Pause(); err != nil {
			return err
		}

		slog.Debug("Paused machine", slog.Uint64("cycle", idx+1))

		if err := machine.Resume(); err != nil {
			return err
		}
	}

	return nil
}

func printStats(w io.Writer, stats vmm.Stats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "VCPU\tCOMPLETED\tPAUSES\tINTERRUPTS")

	for _, cpu := range stats.VCPUs {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\n",
			cpu.ID, cpu.Completed, cpu.Pauses, cpu.Interrupts)
	}

	_ = tw.Flush()

	fmt.Fprintf(w, "block: processed=%d rejected=%d evicted=%d interrupts=%d\n",
		stats.Block.Processed,
		stats.Block.Rejected,
		stats.Block.Evicted,
		stats.Interrupts,
	)
}

func handleParseArgsError(err error) int {
	// [ErrHelp] is returned when help is requested. So exit without error
	// in this case.
	if errors.Is(err, ErrHelp) {
		return 0
	}

	// ParseArgs already prints errors, so we just exit without an error.
	if !errors.Is(err, &ParseArgsError{}) {
		slog.Error(err.Error())
	}

	return -1
}

func handleRunError(err error) int {
	slog.Error(err.Error())

	if errors.Is(err, vmm.ErrVCPUPanic) {
		return exitCodePanic
	}

	return -1
}

// Run is the main entry point for the CLI command.
func Run(ctx context.Context, args []string, cfg IO) int {
	setupLogging(cfg.Stderr, false)

	flags, err := parseArgs(args, cfg)
	if err != nil {
		return handleParseArgsError(err)
	}

	setupLogging(cfg.Stderr, flags.debug)

	if flags.version {
		buildInfo, err := getBuildInfo()
		if err != nil {
			slog.Error(err.Error())
			return -1
		}

		fmt.Fprintf(cfg.Stdout, "Version: %s\n", buildInfo.Main.Version)

		return 0
	}

	err = run(ctx, flags, cfg)
	if err != nil {
		return handleRunError(err)
	}

	return 0
}

func getBuildInfo() (*debug.BuildInfo, error) {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return nil, ErrReadBuildInfo
	}

	return buildInfo, nil
}
