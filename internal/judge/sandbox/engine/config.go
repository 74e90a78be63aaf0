package engine

import "time"

const (
	defaultStdoutStderrMaxBytes int64 = 8 << 20
	defaultWaitDelay                  = time.Second
)

// Config controls process engine behavior.
type Config struct {
	// StdoutStderrMaxBytes caps how much of each stream is kept in memory.
	StdoutStderrMaxBytes int64
	// WaitDelay bounds how long Run waits for output pipes after the process is gone.
	WaitDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.StdoutStderrMaxBytes <= 0 {
		c.StdoutStderrMaxBytes = defaultStdoutStderrMaxBytes
	}
	if c.WaitDelay <= 0 {
		c.WaitDelay = defaultWaitDelay
	}
	return c
}
