// Package nlog is the fabric's logger: buffered, severity-leveled, safe for
// concurrent use from every control-plane goroutine and the data-plane hot
// path alike. Adapted from the teacher's own cmn/nlog (aistore), trimmed
// down to a single in-process writer — no rotation, no per-daemon-role file
// naming, since the fabric's processes are short-lived CLI daemons rather
// than a long-running storage cluster node.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevChar = [...]byte{sevInfo: 'I', sevWarn: 'W', sevErr: 'E'}

var (
	mu           sync.Mutex
	out          = bufio.NewWriter(os.Stderr)
	toStderr     = true // no file sink configured by default
	alsoToStderr bool
	minSev       = sevInfo
	title        string
)

// InitFlags registers the logging-related CLI flags, mirroring the
// teacher's nlog.InitFlags signature so cmd/* can wire it identically to
// how the teacher wires it into its own flag.FlagSet.
func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error in addition to the configured sink")
}

// SetOutput redirects the log sink, e.g. to a file opened by cmd/*; tests
// redirect it to a bytes.Buffer.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = bufio.NewWriter(w)
}

// SetVerbose toggles whether Info-level lines are emitted at all.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	if v {
		minSev = sevInfo
	} else {
		minSev = sevWarn
	}
}

func SetTitle(s string) { title = s }

func InfoDepth(depth int, args ...any)    { log(sevInfo, depth+1, "", args...) }
func Infoln(args ...any)                  { log(sevInfo, 1, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, 1, format, args...) }
func Warningln(args ...any)               { log(sevWarn, 1, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, 1, format, args...) }
func ErrorDepth(depth int, args ...any)   { log(sevErr, depth+1, "", args...) }
func Errorln(args ...any)                 { log(sevErr, 1, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, 1, format, args...) }

func log(sev severity, depth int, format string, args ...any) {
	if sev < minSev && sev != sevErr {
		return
	}
	line := format1(sev, depth+1, format, args...)
	mu.Lock()
	defer mu.Unlock()
	out.WriteString(line)
	if toStderr || alsoToStderr || sev == sevErr {
		if out != nil {
			out.Flush()
		}
	}
}

func format1(sev severity, depth int, format string, args ...any) string {
	var b strings.Builder
	b.WriteByte(sevChar[sev])
	b.WriteByte(' ')
	b.WriteString(time.Now().Format("15:04:05.000000"))
	b.WriteByte(' ')
	if _, fn, ln, ok := runtime.Caller(depth + 1); ok {
		if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
			fn = fn[idx+1:]
		}
		b.WriteString(fn)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(ln))
		b.WriteByte(' ')
	}
	if format == "" {
		fmt.Fprintln(&b, args...)
	} else {
		fmt.Fprintf(&b, format, args...)
		if !strings.HasSuffix(format, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Flush pushes buffered lines to the sink. The optional exit argument is
// accepted for call-site compatibility and does not change what Flush does.
func Flush(exit ...bool) {
	mu.Lock()
	defer mu.Unlock()
	out.Flush()
}
