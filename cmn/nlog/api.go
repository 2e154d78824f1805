// Package nlog - squall logger, provides buffering, timestamping, writing, and flushing
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package nlog

func SetLogDirTitle(dir, t string) { logDir, title = dir, t }
func SetLogToStderr(b bool)        { toStderr = b }

// SetLevel takes one of: "info", "warn", "error"
func SetLevel(l string) {
	switch l {
	case "", "info":
		level = 0
	case "warn", "warning":
		level = 1
	case "error":
		level = 2
	}
}

func InfoDepth(depth int, args ...any)    { log(sevInfo, depth, "", args...) }
func Infoln(args ...any)                  { log(sevInfo, 0, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, 0, format, args...) }
func Warningln(args ...any)               { log(sevWarn, 0, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, 0, format, args...) }
func ErrorDepth(depth int, args ...any)   { log(sevErr, depth, "", args...) }
func Errorln(args ...any)                 { log(sevErr, 0, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, 0, format, args...) }

func Flush(exit ...bool) {
	for _, n := range nlogs {
		if n == nil || n.file == nil {
			continue
		}
		n.mw.Lock()
		n.file.Sync()
		n.mw.Unlock()
	}
	_ = exit
}
