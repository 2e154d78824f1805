// Package cmn provides common constants, types, and configuration for squall
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package cmn

import (
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/squall-rpc/squall/cmn/cos"
)

const (
	// payload ceiling - anything larger latches "oversize" and drops the connection
	DfltMaxPayloadSize = 2 * cos.GiB

	DfltBasicReqSize = 256
	DfltBloatMult    = 1.57
	DfltMemoryAvail  = 1 * cos.GiB
	DfltRecvTimeout  = 10 * time.Second
)

// ServerArgs flags
const (
	FlagDisableHTTPServer = 1 << iota
)

type (
	Duration time.Duration

	// ServerArgs configures an rpc.Server.
	ServerArgs struct {
		IP             string   `json:"ip"` // bind address; empty => wildcard
		RPCPort        int      `json:"rpc_port"`
		HTTPPort       int      `json:"http_port"`
		Flags          int      `json:"flags"`
		BasicReqSize   int64    `json:"basic_req_size"`
		BloatMult      float64  `json:"bloat_mult"`
		MemoryAvail    int64    `json:"memory_avail_per_core"`
		MaxPayloadSize int64    `json:"max_payload_size"`
		RecvTimeout    Duration `json:"recv_timeout"`
	}

	// ClientArgs mirrors ServerArgs for the connecting side.
	ClientArgs struct {
		ServerAddr     string   `json:"server_addr"`
		BasicReqSize   int64    `json:"basic_req_bloat_size"`
		BloatMult      float64  `json:"bloat_mult"`
		MemoryAvail    int64    `json:"memory_avail_for_client"`
		MaxPayloadSize int64    `json:"max_payload_size"`
		RecvTimeout    Duration `json:"recv_timeout"`
	}

	// WALArgs configures the write-ahead log.
	WALArgs struct {
		Directory     string `json:"directory"`
		CacheMaxPages int    `json:"cache_max_pages"`
		SegmentSize   int64  `json:"segment_size"`
		Alignment     int64  `json:"alignment"`
		NoDirectIO    bool   `json:"no_direct_io"`
	}

	Config struct {
		LogDir   string     `json:"log_dir"`
		LogLevel string     `json:"log_level"`
		Server   ServerArgs `json:"server"`
		WAL      WALArgs    `json:"wal"`
	}
)

func (d Duration) D() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) > 1 && b[0] == '"' {
		v, err := time.ParseDuration(string(b[1 : len(b)-1]))
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := jsoniter.Unmarshal(b, &n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return jsoniter.Marshal(d.D().String())
}

func (sa *ServerArgs) Validate() error {
	if sa.RPCPort <= 0 || sa.RPCPort > 65535 {
		return errors.Errorf("invalid rpc_port %d", sa.RPCPort)
	}
	sa.BasicReqSize = cos.NonZero(sa.BasicReqSize, int64(DfltBasicReqSize))
	if sa.BloatMult == 0 {
		sa.BloatMult = DfltBloatMult
	}
	sa.MemoryAvail = cos.NonZero(sa.MemoryAvail, int64(DfltMemoryAvail))
	sa.MaxPayloadSize = cos.NonZero(sa.MaxPayloadSize, int64(DfltMaxPayloadSize))
	if sa.RecvTimeout == 0 {
		sa.RecvTimeout = Duration(DfltRecvTimeout)
	}
	return nil
}

func (ca *ClientArgs) Validate() error {
	if ca.ServerAddr == "" {
		return errors.New("missing server_addr")
	}
	ca.BasicReqSize = cos.NonZero(ca.BasicReqSize, int64(DfltBasicReqSize))
	if ca.BloatMult == 0 {
		ca.BloatMult = DfltBloatMult
	}
	ca.MemoryAvail = cos.NonZero(ca.MemoryAvail, int64(DfltMemoryAvail))
	ca.MaxPayloadSize = cos.NonZero(ca.MaxPayloadSize, int64(DfltMaxPayloadSize))
	if ca.RecvTimeout == 0 {
		ca.RecvTimeout = Duration(DfltRecvTimeout)
	}
	return nil
}

func LoadConfig(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config %q", path)
	}
	if err := jsoniter.Unmarshal(b, c); err != nil {
		return errors.Wrapf(err, "failed to parse config %q", path)
	}
	return nil
}

func SaveConfig(path string, c *Config) error {
	b, err := jsoniter.MarshalIndent(c, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
