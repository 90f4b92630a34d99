// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package vmm

// VCPUMask are the bits of a vCPU signal.
type VCPUMask uint64

const (
	// VCPUStop makes the vCPU loop return.
	VCPUStop VCPUMask = 1 << iota
	// VCPUPanic makes the vCPU loop fail with [ErrVCPUPanic].
	VCPUPanic
	// VCPUPause requests the vCPU to honor a pause cycle.
	VCPUPause
	// VCPUIrq signals pending interrupt lines.
	VCPUIrq
	// VCPUKick wakes the vCPU to retry a rejected request.
	VCPUKick

	vcpuExits = VCPUStop | VCPUPanic
	vcpuAll   = vcpuExits | VCPUPause | VCPUIrq | VCPUKick
)

// MachineMask are the bits of the machine signal.
type MachineMask uint64

const (
	// MachineIdle is asserted once all vCPUs finished their workload.
	MachineIdle MachineMask = 1 << iota
	// MachinePanic is asserted if any vCPU panicked.
	MachinePanic
	// MachineFault is asserted if any vCPU failed.
	MachineFault
	// MachineCancel is asserted if the context of [Machine.Wait] is done.
	MachineCancel
)

// Phase is a shutdown phase of a [Machine].
type Phase int

const (
	PhaseStopDevices Phase = iota
	PhaseStopGic
	PhaseDestroyVcpu
)

// String implements the [fmt.Stringer] interface.
func (p Phase) String() string {
	switch p {
	case PhaseStopDevices:
		return "stop-devices"
	case PhaseStopGic:
		return "stop-gic"
	case PhaseDestroyVcpu:
		return "destroy-vcpu"
	default:
		return "unknown"
	}
}
