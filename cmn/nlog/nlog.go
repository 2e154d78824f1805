// Package nlog - squall logger, provides buffering, timestamping, writing, and flushing
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package nlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

const maxLineSize = 4 * 1024

var sevText = [...]string{"I", "W", "E"}

type nlog struct {
	mw   sync.Mutex
	buf  []byte
	out  io.Writer
	file *os.File
}

var (
	toStderr bool
	logDir   string
	title    string
	level    int // 0 info, 1 warn, 2 err

	nlogs [2]*nlog // info+warn share one sink, err gets its own
	once  sync.Once
)

func initOnce() {
	once.Do(func() {
		nlogs[0] = &nlog{out: os.Stderr}
		nlogs[1] = &nlog{out: os.Stderr}
		if logDir == "" || toStderr {
			return
		}
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			fmt.Fprintln(os.Stderr, "nlog: cannot create log dir:", err)
			return
		}
		for i, suffix := range []string{".INFO", ".ERROR"} {
			fqn := filepath.Join(logDir, sname()+suffix)
			file, err := os.OpenFile(fqn, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				fmt.Fprintln(os.Stderr, "nlog: cannot open", fqn, "err:", err)
				continue
			}
			nlogs[i].file = file
			nlogs[i].out = file
		}
	})
}

func sname() string { return title + "." + strconv.Itoa(os.Getpid()) }

func sink(sev severity) *nlog {
	if sev == sevErr {
		return nlogs[1]
	}
	return nlogs[0]
}

func log(sev severity, depth int, format string, args ...any) {
	if int(sev) < level {
		return
	}
	initOnce()
	var (
		now        = time.Now()
		_, fn, ln, _ = runtime.Caller(2 + depth)
	)
	n := sink(sev)
	n.mw.Lock()
	n.buf = n.buf[:0]
	n.buf = append(n.buf, sevText[sev]...)
	n.buf = now.AppendFormat(n.buf, " 15:04:05.000000 ")
	n.buf = append(n.buf, filepath.Base(fn)...)
	n.buf = append(n.buf, ':')
	n.buf = strconv.AppendInt(n.buf, int64(ln), 10)
	n.buf = append(n.buf, ' ')
	if format == "" {
		n.buf = fmt.Appendln(n.buf, args...)
	} else {
		n.buf = fmt.Appendf(n.buf, format, args...)
		if n.buf[len(n.buf)-1] != '\n' {
			n.buf = append(n.buf, '\n')
		}
	}
	if len(n.buf) > maxLineSize {
		n.buf = append(n.buf[:maxLineSize], '\n')
	}
	n.out.Write(n.buf)
	n.mw.Unlock()
}
