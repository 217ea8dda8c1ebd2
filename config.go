/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpd

import (
	"time"

	"github.com/spf13/viper"
)

// Config carries every Server-global tunable named in §3. The zero
// value is not directly usable; NewConfig fills in the defaults the
// spec calls out (queue length 1000, contention delay 5s, and so on).
// Config deliberately has no flag/CLI binding: configuration/CLI glue
// is a non-goal, so the only supported inputs are building one in code
// or loading one with LoadConfig.
type Config struct {
	// ServerName is emitted in the "Server:" response header and in
	// the synthesized error page title.
	ServerName string

	// PoweredBy, when non-empty, is emitted as "X-Powered-By: <value>".
	PoweredBy string

	// TCPPrefix, when non-empty, is required as the connection's first
	// line on read and is written back as the response's first line.
	TCPPrefix string

	// MaxContentLength caps a declared request Content-Length; 0 means
	// unlimited.
	MaxContentLength int64

	// HeaderRetrieveAbortDelay is the time budget for reading a
	// request's headers; 0 means unlimited. It is checked once the
	// headers have been read (a late request ends as timeout before its
	// body is read); the header read itself is not interrupted.
	HeaderRetrieveAbortDelay time.Duration

	// KeepAliveTimeout is the idle time a connection may wait for its
	// next request before the worker closes it. A value of 0 disables
	// keep-alive entirely (§4.1 step 2).
	KeepAliveTimeout time.Duration

	// RemoteIPHeader, if set, names a request header whose value
	// replaces the socket-derived remote IP (§6).
	RemoteIPHeader string

	// RemoteConnIDHeader, if set, names a request header carrying a
	// uint64 that replaces the server-assigned connection id (§6).
	RemoteConnIDHeader string

	// UnfilteredHeaders switches the parser from filtered mode (the
	// default) to unfiltered mode (§4.1 step 3).
	UnfilteredHeaders bool

	// PoolWorkers is the fixed worker-pool size, 1..256.
	PoolWorkers int

	// QueueLength is the bounded pool queue capacity (HTTPQueueLength).
	QueueLength int

	// ContentionAbortDelay is how long Push blocks when the queue is
	// full and no worker is idle before giving up.
	ContentionAbortDelay time.Duration

	// PromoteBodyThreshold is the declared-body-size threshold above
	// which a pool-processed connection is promoted to a dedicated
	// worker instead of being handled inline (§4.5).
	PromoteBodyThreshold int64

	// Addr is either a "host:port" TCP address or a "unix:/path"
	// address. An empty Addr on Linux means "inherit the listen socket
	// from the process environment" (§4.6).
	Addr string
}

// NewConfig returns a Config with every default named in the spec.
func NewConfig() *Config {
	return &Config{
		ServerName:           "httpcore",
		MaxContentLength:     0,
		KeepAliveTimeout:     15 * time.Second,
		PoolWorkers:          8,
		QueueLength:          1000,
		ContentionAbortDelay: 5 * time.Second,
		PromoteBodyThreshold: 16 << 20,
	}
}

// LoadConfig reads overrides from a config file (any format viper
// supports: JSON, TOML, YAML, .env) and/or the process environment,
// layering them over NewConfig's defaults. path may be empty, in which
// case only the environment is consulted. Environment variables are
// read with the HTTPCORE_ prefix, e.g. HTTPCORE_POOLWORKERS.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	v := viper.New()
	v.SetEnvPrefix("HTTPCORE")
	v.AutomaticEnv()

	v.SetDefault("servername", cfg.ServerName)
	v.SetDefault("poweredby", cfg.PoweredBy)
	v.SetDefault("tcpprefix", cfg.TCPPrefix)
	v.SetDefault("maxcontentlength", cfg.MaxContentLength)
	v.SetDefault("headerretrieveabortdelay", cfg.HeaderRetrieveAbortDelay)
	v.SetDefault("keepalivetimeout", cfg.KeepAliveTimeout)
	v.SetDefault("remoteipheader", cfg.RemoteIPHeader)
	v.SetDefault("remoteconnidheader", cfg.RemoteConnIDHeader)
	v.SetDefault("unfilteredheaders", cfg.UnfilteredHeaders)
	v.SetDefault("poolworkers", cfg.PoolWorkers)
	v.SetDefault("queuelength", cfg.QueueLength)
	v.SetDefault("contentionabortdelay", cfg.ContentionAbortDelay)
	v.SetDefault("promotebodythreshold", cfg.PromoteBodyThreshold)
	v.SetDefault("addr", cfg.Addr)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg.ServerName = v.GetString("servername")
	cfg.PoweredBy = v.GetString("poweredby")
	cfg.TCPPrefix = v.GetString("tcpprefix")
	cfg.MaxContentLength = v.GetInt64("maxcontentlength")
	cfg.HeaderRetrieveAbortDelay = v.GetDuration("headerretrieveabortdelay")
	cfg.KeepAliveTimeout = v.GetDuration("keepalivetimeout")
	cfg.RemoteIPHeader = v.GetString("remoteipheader")
	cfg.RemoteConnIDHeader = v.GetString("remoteconnidheader")
	cfg.UnfilteredHeaders = v.GetBool("unfilteredheaders")
	cfg.PoolWorkers = v.GetInt("poolworkers")
	cfg.QueueLength = v.GetInt("queuelength")
	cfg.ContentionAbortDelay = v.GetDuration("contentionabortdelay")
	cfg.PromoteBodyThreshold = v.GetInt64("promotebodythreshold")
	cfg.Addr = v.GetString("addr")

	return cfg, nil
}
