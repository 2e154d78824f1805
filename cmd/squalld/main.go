// Package main is the squall rpc server daemon.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/squall-rpc/squall/cmn"
	"github.com/squall-rpc/squall/cmn/cos"
	"github.com/squall-rpc/squall/cmn/nlog"
	"github.com/squall-rpc/squall/rpc"
	"github.com/squall-rpc/squall/stats"
	"github.com/squall-rpc/squall/wal"
)

var (
	build     string
	buildtime string
)

var (
	rpcPort    int
	httpPort   int
	bindIP     string
	logLevel   string
	logDir     string
	directory  string
	configPath string
)

func init() {
	flag.IntVar(&rpcPort, "rpc-port", 20776, "rpc listen port")
	flag.IntVar(&httpPort, "http-port", 20777, "admin/metrics http port (0 disables)")
	flag.StringVar(&bindIP, "ip", "", "bind address (empty means wildcard)")
	flag.StringVar(&logLevel, "log-level", "info", "log level: info | warn | error")
	flag.StringVar(&logDir, "log-dir", "", "log directory (empty means stderr)")
	flag.StringVar(&directory, "directory", "", "wal directory (empty disables the wal)")
	flag.StringVar(&configPath, "config", "", "optional json configuration")
}

// echoService is the demo routing target: Echo returns the request payload.
type echoService struct{}

func (echoService) Name() string { return "echo" }
func (echoService) Methods() []rpc.Method {
	return []rpc.Method{
		{Name: "Echo", Handler: func(ctx *rpc.RecvContext) (*rpc.Envelope, error) {
			return rpc.Reply(ctx.Payload), nil
		}},
	}
}

func main() {
	if len(os.Args) == 2 && os.Args[1] == "version" {
		fmt.Printf("squalld %s (%s)\n", build, buildtime)
		os.Exit(0)
	}
	flag.Parse()

	config := &cmn.Config{}
	if configPath != "" {
		if err := cmn.LoadConfig(configPath, config); err != nil {
			cos.ExitLogf("%v", err)
		}
	}
	if config.LogLevel == "" {
		config.LogLevel = logLevel
	}
	if config.LogDir == "" {
		config.LogDir = logDir
	}
	nlog.SetLogDirTitle(config.LogDir, "squalld")
	nlog.SetLevel(config.LogLevel)

	args := config.Server
	args.IP = bindIP
	args.RPCPort = cos.NonZero(rpcPort, args.RPCPort)
	args.HTTPPort = cos.NonZero(httpPort, args.HTTPPort)
	if err := args.Validate(); err != nil {
		cos.ExitLogf("%v", err)
	}

	server, err := rpc.NewServer(args)
	if err != nil {
		cos.ExitLogf("%v", err)
	}
	server.RegisterService(echoService{})

	reg := stats.NewRegistry()
	reg.MustRegister(stats.NewCollector(server.Stats()))
	server.EnableHistogram(stats.NewHistogram(reg, "dispatch_seconds", "Handler dispatch latency"))
	server.SetAdminHandler(stats.AdminMux(reg))

	var manager *wal.Manager
	if directory != "" {
		walArgs := config.WAL
		walArgs.Directory = directory
		if manager, err = wal.OpenManager(walArgs); err != nil {
			cos.ExitLogf("%v", err)
		}
	}

	if err := server.Start(); err != nil {
		cos.ExitLogf("failed to start rpc server: %v", err)
	}
	nlog.Infof("squalld up: rpc-port %d, http-port %d", args.RPCPort, args.HTTPPort)

	stopCh := make(chan os.Signal, 2)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stopCh
	nlog.Warningln("caught signal", sig.String(), "- shutting down")

	server.Stop()
	if manager != nil {
		if err := manager.Close(); err != nil {
			nlog.Errorf("wal shutdown: %v", err)
		}
	}
	nlog.Flush(true)
}
