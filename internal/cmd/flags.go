// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"flag"
	"fmt"
	"io"

	"github.com/aibor/vcore/internal/vmm"
)

const (
	name = "vcore"

	vcpusDefault = 2
	vcpusMin     = 1
	vcpusMax     = 64

	queueCapacityDefault = 64
	queueCapacityMin     = 1
	queueCapacityMax     = 4096

	requestsDefault = 128
	requestsMax     = 1 << 20

	pauseCyclesDefault = 1
	pauseCyclesMax     = 1000

	usageMessage = `Usage of 'vcore':
    vcore [flags...]

Runs an in-process virtual machine: every vCPU writes and reads back block
device sectors while the machine is paused and resumed, then the machine is
shut down and statistics are printed.

All vcore flags can also be provided via environment variable VCORE_ARGS:
	VCORE_ARGS="-vcpus=8 -debug" vcore

All vcore flags can also be provided via file ./.vcore-args, with one
argument per line.
`
)

type flags struct {
	vcpus         uint64
	queueCapacity uint64
	requests      uint64
	pauseCycles   uint64

	version bool
	debug   bool

	flagSet *flag.FlagSet
}

func newFlags(output io.Writer) *flags {
	flags := &flags{
		vcpus:         vcpusDefault,
		queueCapacity: queueCapacityDefault,
		requests:      requestsDefault,
		pauseCycles:   pauseCyclesDefault,
	}

	flags.initFlagset(output)

	return flags
}

func (f *flags) initFlagset(output io.Writer) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usageMessage)
		fmt.Fprintln(fs.Output(), "\nFlags:")
		fs.PrintDefaults()
	}

	fs.Var(
		&LimitedUintValue{Value: &f.vcpus, Lower: vcpusMin, Upper: vcpusMax},
		"vcpus",
		"number of vCPUs",
	)

	fs.Var(
		&LimitedUintValue{
			Value: &f.queueCapacity,
			Lower: queueCapacityMin,
			Upper: queueCapacityMax,
		},
		"queue-capacity",
		"capacity of the block device request queue",
	)

	fs.Var(
		&LimitedUintValue{Value: &f.requests, Upper: requestsMax},
		"requests",
		"number of block requests per vCPU",
	)

	fs.Var(
		&LimitedUintValue{Value: &f.pauseCycles, Upper: pauseCyclesMax},
		"pause-cycles",
		"number of pause and resume cycles while running",
	)

	fs.BoolVar(
		&f.debug,
		"debug",
		f.debug,
		"enable debug output",
	)

	fs.BoolVar(
		&f.version,
		"version",
		f.version,
		"show version and exit",
	)

	f.flagSet = fs
}

// fail fails like flag does. It prints the error first and then usage.
func (f *flags) fail(msg string, err error) error {
	err = &ParseArgsError{msg: msg, err: err}
	fmt.Fprintln(f.flagSet.Output(), err.Error())

	f.flagSet.Usage()

	return err
}

func (f *flags) ParseArgs(args []string) error {
	err := f.flagSet.Parse(args)
	if err != nil {
		return &ParseArgsError{msg: "flag parse", err: err}
	}

	// Positional arguments are irrelevant if only the version is requested.
	if f.version {
		return nil
	}

	if f.flagSet.NArg() > 0 {
		return f.fail("positional arguments", ErrUnexpectedArgs)
	}

	return nil
}

func (f *flags) machineConfig(console io.Writer) vmm.Config {
	return vmm.Config{
		VCPUs:         int(f.vcpus),
		QueueCapacity: int(f.queueCapacity),
		Requests:      int(f.requests),
		Console:       console,
	}
}
