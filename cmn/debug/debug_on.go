//go:build debug

// Package debug provides assertions compiled in only under the "debug" build tag.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package debug

import (
	"fmt"
	"net/http"
	"sync"
)

func ON() bool { return true }

func Infof(format string, a ...any) { fmt.Printf("[debug] "+format+"\n", a...) }

func Func(f func()) { f() }

func Assert(cond bool, a ...any) {
	if !cond {
		panic(fmt.Sprint(a...))
	}
}

func AssertFunc(f func() bool, a ...any) { Assert(f(), a...) }

func AssertNoErr(err error) {
	if err != nil {
		panic(err)
	}
}

func Assertf(cond bool, format string, a ...any) {
	if !cond {
		panic(fmt.Sprintf(format, a...))
	}
}

func AssertNotPstr(v any) { Assert(v != nil, "unexpected nil pointer") }
func FailTypeCast(v any)  { panic(fmt.Sprintf("unexpected type %T", v)) }

func AssertMutexLocked(m *sync.Mutex) {
	// best-effort: Lock/Unlock toggling would deadlock if already locked by us;
	// this is a documentation-only stub, matching the teacher's debug-only intent.
	_ = m
}
func AssertRWMutexLocked(m *sync.RWMutex)  { _ = m }
func AssertRWMutexRLocked(m *sync.RWMutex) { _ = m }

func Handlers() map[string]http.HandlerFunc { return nil }
