package config

import "time"

const (
	DBPingTimeout         = 5 * time.Second
	RedisPingTimeout      = 5 * time.Second
	ServerReadTimeout     = 10 * time.Second
	ServerIdleTimeout     = 60 * time.Second
	ServerShutdownTimeout = 30 * time.Second

	// ServerRequestTimeout must outlast a sync run so admitted triggers get
	// their answer.
	ServerRequestTimeout = 6 * time.Minute
)
