// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package vmm

import (
	"fmt"
	"log/slog"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/aibor/vcore/multiplex"
	"github.com/aibor/vcore/queue"
	"github.com/aibor/vcore/signal"
)

// SectorSize is the size of a sector of a [BlockDevice].
const SectorSize = 512

// Op is the operation of a [Request].
type Op int

const (
	OpRead Op = iota
	OpWrite
)

// Request is a block request.
type Request struct {
	CPU    int
	Seq    int
	Op     Op
	Sector uint64
	// Data is written for [OpWrite]. It is at most [SectorSize] bytes.
	Data []byte
	// Used receives the [Completion].
	Used *queue.Queue[Completion]
}

// Completion is the result of a [Request].
type Completion struct {
	Seq  int
	Data []byte
	Err  error
}

const deviceReqQueue signal.Mask = 1

// BlockDevice is an in-memory disk served by the dispatcher. vCPUs submit
// requests to its request queue. Completions are pushed to the used queue
// of the request, which raises the interrupt line of the submitting vCPU.
type BlockDevice struct {
	sig      signal.Signal
	requests *queue.Queue[Request]
	sectors  uint64
	warner   *warner

	// Only touched on the dispatcher goroutine.
	disk map[uint64][]byte

	// vCPUs rejected because the request queue was full.
	starved atomic.Uint64

	mu    sync.Mutex
	kicks [signal.MaxBits]signal.Bound

	processed atomic.Uint64
	rejected  atomic.Uint64
	evicted   atomic.Uint64
}

var _ multiplex.Handler = (*BlockDevice)(nil)

// NewBlockDevice creates a [BlockDevice] with the given request queue
// capacity and number of sectors. Warnings are logged rate limited to
// logger.
func NewBlockDevice(capacity int, sectors uint64, logger *slog.Logger) (*BlockDevice, error) {
	if capacity < 1 || sectors < 1 {
		return nil, fmt.Errorf("block device: %w", ErrInvalidSize)
	}

	dev := &BlockDevice{
		sectors: sectors,
		warner:  newWarner(logger),
		disk:    make(map[uint64][]byte),
	}
	dev.requests = queue.New[Request](capacity, signal.NewBound(&dev.sig, deviceReqQueue))

	return dev, nil
}

// AttachKick sets the bound signal asserted for cpu once the request
// queue has room again after a submission of cpu was rejected.
func (b *BlockDevice) AttachKick(cpu int, kick signal.Bound) error {
	if cpu < 0 || cpu >= signal.MaxBits {
		return ErrNoSuchVCPU
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.kicks[cpu] = kick

	return nil
}

// Submit queues a request. If the queue is full, cpu is registered for a
// kick and the submission is retried once, so a drain racing the rejection
// is not missed. A [queue.FullError] is returned if it is still full.
func (b *BlockDevice) Submit(req Request) error {
	err := b.requests.Send(req)
	if err == nil {
		return nil
	}

	b.starved.Or(1 << uint(req.CPU))

	err = b.requests.Send(req)
	if err != nil {
		b.rejected.Add(1)
		b.warner.warn("block-queue-full", "block request queue full",
			slog.Int("cpu", req.CPU),
			slog.Int("capacity", b.requests.Cap()),
		)
	}

	return err
}

// Signals implements [multiplex.Handler].
func (b *BlockDevice) Signals() []signal.Bound {
	return []signal.Bound{b.requests.Notify()}
}

// Process implements [multiplex.Handler].
func (b *BlockDevice) Process(*multiplex.Context) {
	n := b.requests.RecvAll(b.handle)
	b.processed.Add(uint64(n))

	b.kickStarved()
}

func (b *BlockDevice) kickStarved() {
	starved := b.starved.Swap(0)
	if starved == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for starved != 0 {
		cpu := bits.TrailingZeros64(starved)
		starved &^= 1 << cpu

		if kick := b.kicks[cpu]; !kick.IsZero() {
			kick.Assert()
		}
	}
}

func (b *BlockDevice) handle(req Request) {
	completion := Completion{Seq: req.Seq}

	switch {
	case req.Sector >= b.sectors:
		completion.Err = ErrSectorRange
	case req.Op == OpWrite:
		data := make([]byte, SectorSize)
		copy(data, req.Data)
		b.disk[req.Sector] = data
	default:
		data, exists := b.disk[req.Sector]
		if !exists {
			data = make([]byte, SectorSize)
		}

		completion.Data = append([]byte(nil), data...)
	}

	if req.Used == nil {
		return
	}

	// The used queue has room for every request in flight of its vCPU, so
	// evictions are a bug of the submitter.
	if old, evicted := req.Used.ForceSend(completion); evicted {
		b.evicted.Add(1)
		b.warner.warn("block-used-evicted", "completion evicted",
			slog.Int("cpu", req.CPU),
			slog.Int("seq", old.Seq),
		)
	}
}

// BlockStats are counters of a [BlockDevice].
type BlockStats struct {
	Processed uint64
	Rejected  uint64
	Evicted   uint64
}

// Stats returns the counters.
func (b *BlockDevice) Stats() BlockStats {
	return BlockStats{
		Processed: b.processed.Load(),
		Rejected:  b.rejected.Load(),
		Evicted:   b.evicted.Load(),
	}
}
