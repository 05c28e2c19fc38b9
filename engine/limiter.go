package engine

import (
	"errors"
	"time"

	"github.com/RussellLuo/slidingwindow"
)

// ErrVelocityExceeded is raised by the velocity limiter when the rolling
// window is exhausted. The autopilot catches it and abstains; the limiter
// itself fails closed.
var ErrVelocityExceeded = errors.New("autonomous execution velocity limit exceeded")

// How many autonomous executions the fast path may perform per rolling
// 60-second window, across all scopes, in this process.
const DefaultVelocityCap = 5

// VelocityLimiter caps autonomous executions over a rolling 60-second
// window. State is process-local: it does not survive restarts and does not
// coordinate across instances. Deployments running multiple instances get a
// per-instance cap, which is the weaker guarantee, documented here rather
// than silently promised away.
type VelocityLimiter struct {
	lim *slidingwindow.Limiter
}

func localWindow() (slidingwindow.Window, slidingwindow.StopFunc) {
	return slidingwindow.NewLocalWindow()
}

func NewVelocityLimiter(cap int64) *VelocityLimiter {
	return NewVelocityLimiterWithWindow(cap, localWindow)
}

// NewVelocityLimiterWithWindow takes an explicit window constructor so tests
// can control time.
func NewVelocityLimiterWithWindow(cap int64, win func() (slidingwindow.Window, slidingwindow.StopFunc)) *VelocityLimiter {
	lim, _ := slidingwindow.NewLimiter(time.Minute, cap, win)
	return &VelocityLimiter{lim: lim}
}

// Take consumes one execution slot or returns ErrVelocityExceeded.
func (v *VelocityLimiter) Take() error {
	if v == nil || v.lim == nil {
		return nil
	}
	if !v.lim.Allow() {
		return ErrVelocityExceeded
	}
	return nil
}
