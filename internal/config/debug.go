package config

import "sync/atomic"

// DebugSwitch is the process-wide debug flag toggled by /debug.
type DebugSwitch struct {
	on atomic.Bool
}

func NewDebugSwitch(initial bool) *DebugSwitch {
	d := &DebugSwitch{}
	d.on.Store(initial)
	return d
}

func (d *DebugSwitch) Enabled() bool {
	return d.on.Load()
}

func (d *DebugSwitch) Set(on bool) {
	d.on.Store(on)
}
