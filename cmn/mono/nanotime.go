//go:build !mono

// Package mono provides low-level monotonic time.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

var start = time.Now()

// NanoTime returns a monotonic clock reading in nanoseconds. The "mono"
// build tag switches to a direct runtime.nanotime linkname (see
// fast_nanotime.go) to shave the time.Now() allocation in hot send/receive
// loops; this portable default is used otherwise.
func NanoTime() int64 { return int64(time.Since(start)) }
