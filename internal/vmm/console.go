// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package vmm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/aibor/vcore/multiplex"
	"github.com/aibor/vcore/signal"
)

const consoleDrained signal.Mask = 1

// Console is a serial console backed by a pipe. Guests write to
// [Console.Writer]. The read end is served by the dispatcher, which writes
// complete lines to the output with carriage returns removed.
type Console struct {
	out    io.Writer
	readFD int
	writer *os.File
	sig    signal.Signal

	// Only touched on the dispatcher goroutine.
	pending []byte
	err     error

	closeOnce sync.Once
}

var _ multiplex.Handler = (*Console)(nil)

// NewConsole creates a new [Console] writing to out. A nil out discards
// everything.
func NewConsole(out io.Writer) (*Console, error) {
	var fds [2]int

	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("console pipe: %w", err)
	}

	if err := unix.SetNonblock(fds[0], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])

		return nil, fmt.Errorf("console pipe: %w", err)
	}

	return &Console{
		out:    out,
		readFD: fds[0],
		writer: os.NewFile(uintptr(fds[1]), "console"),
	}, nil
}

// Attach registers the console with the dispatcher.
func (c *Console) Attach(d *multiplex.Dispatcher) (*multiplex.Registration, error) {
	reg, err := d.Register(c)
	if err != nil {
		return nil, err
	}

	if err := reg.RegisterFD(c.readFD, multiplex.EventRead); err != nil {
		_ = reg.Close()
		return nil, err
	}

	return reg, nil
}

// Writer returns the guest side of the console. Pipe writes of up to 4096
// bytes are not interleaved with other writes.
func (c *Console) Writer() io.Writer {
	return c.writer
}

// CloseWriter closes the guest side. Remaining output is flushed by the
// dispatcher, which asserts [Console.Drained] once done.
func (c *Console) CloseWriter() error {
	err := c.writer.Close()
	if errors.Is(err, os.ErrClosed) {
		return nil
	}

	return err
}

// Drained is asserted once the output has been flushed completely after
// [Console.CloseWriter].
func (c *Console) Drained() signal.Bound {
	return signal.NewBound(&c.sig, consoleDrained)
}

// Err returns the first error writing the output, if any. It is only valid
// after [Console.Drained] has been asserted.
func (c *Console) Err() error {
	return c.err
}

// Signals implements [multiplex.Handler]. The console is driven by its
// file descriptor only.
func (c *Console) Signals() []signal.Bound {
	return nil
}

// Process implements [multiplex.Handler].
func (c *Console) Process(ctx *multiplex.Context) {
	if len(ctx.Ready()) == 0 {
		return
	}

	var buf [4096]byte

	for {
		n, err := unix.Read(c.readFD, buf[:])

		switch {
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
			return
		case err != nil:
			ctx.Logger().Warn("console read failed", slog.Any("error", err))
			c.finish(ctx)

			return
		case n == 0:
			c.finish(ctx)
			return
		}

		c.consume(buf[:n])
	}
}

func (c *Console) consume(data []byte) {
	c.pending = append(c.pending, data...)

	for {
		idx := bytes.IndexByte(c.pending, '\n')
		if idx < 0 {
			return
		}

		c.writeLn(c.pending[:idx])
		c.pending = c.pending[idx+1:]
	}
}

func (c *Console) finish(ctx *multiplex.Context) {
	if len(c.pending) > 0 {
		c.writeLn(c.pending)
		c.pending = nil
	}

	if err := ctx.UnregisterFD(c.readFD); err != nil {
		ctx.Logger().Debug("console unregister", slog.Any("error", err))
	}

	c.closeReader()
	c.sig.Assert(consoleDrained)
}

func (c *Console) writeLn(line []byte) {
	// Once writing failed, drop the rest.
	if c.out == nil || c.err != nil {
		return
	}

	line = bytes.TrimSuffix(line, []byte("\r"))

	if _, err := c.out.Write(line); err != nil {
		c.err = fmt.Errorf("write: %w", err)
		return
	}

	if _, err := c.out.Write([]byte("\n")); err != nil {
		c.err = fmt.Errorf("write: %w", err)
	}
}

func (c *Console) closeReader() {
	c.closeOnce.Do(func() {
		_ = unix.Close(c.readFD)
	})
}

// Close releases both ends of the pipe. It must only be called once the
// console is not registered with a running dispatcher anymore.
func (c *Console) Close() error {
	err := c.CloseWriter()
	c.closeReader()

	return err
}
