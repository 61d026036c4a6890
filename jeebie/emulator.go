package jeebie

import (
	"github.com/valerio/go-jeebie/jeebie/debug"
	"github.com/valerio/go-jeebie/jeebie/input/action"
	"github.com/valerio/go-jeebie/jeebie/timing"
	"github.com/valerio/go-jeebie/jeebie/video"
)

// Runnable is the interface frontends drive: a frame-stepped source of
// video (and, for the real core, sound and input) that may or may not be
// backed by an actual running Game Boy - TestPatternEmulator satisfies it
// without simulating any hardware at all.
type Runnable interface {
	RunUntilFrame() error
	GetCurrentFrame() *video.FrameBuffer
	HandleAction(act action.Action, pressed bool)
	ExtractDebugData() *debug.CompleteDebugData
	SetFrameLimiter(limiter timing.Limiter)
	ResetFrameTiming()
}

var _ Runnable = (*Emulator)(nil)
var _ Runnable = (*TestPatternEmulator)(nil)
