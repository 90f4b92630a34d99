// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package vmm is an in-process virtual machine model built on the
// synchronization core.
//
// vCPU loops run on locked OS threads and submit block requests. The block
// device, the console and the interrupt controller are driven by a
// [multiplex.Dispatcher]. Completions flow back as interrupts routed to the
// vCPUs. Pausing uses the [startup] pause protocol and tearing down the
// machine runs the [shutdown] phases in order.
package vmm
