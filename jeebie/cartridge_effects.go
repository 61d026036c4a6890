package jeebie

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/valerio/go-jeebie/jeebie/memory"
)

// FileCartridgeEffects is a memory.CartridgeEffects backed by plain files on
// disk: battery RAM as "<key>.sav", RTC state as "<key>.rtc" JSON, both
// under Dir. Failures are swallowed as "nothing saved" / silently dropped
// saves, matching the core's "persistence continues without it" contract
// for recoverable errors.
type FileCartridgeEffects struct {
	Dir string
}

var _ memory.CartridgeEffects = FileCartridgeEffects{}

// NewFileCartridgeEffects returns a FileCartridgeEffects rooted at dir,
// creating the directory if it doesn't already exist.
func NewFileCartridgeEffects(dir string) (FileCartridgeEffects, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return FileCartridgeEffects{}, err
	}
	return FileCartridgeEffects{Dir: dir}, nil
}

// SaveKey derives the persistence key for a cartridge title: lowercased,
// with anything but letters and digits stripped.
func SaveKey(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "untitled"
	}
	return b.String()
}

func (e FileCartridgeEffects) CurrentTimeMillis() float64 {
	return float64(time.Now().UnixMilli())
}

func (e FileCartridgeEffects) ramPath(key string) string {
	return filepath.Join(e.Dir, key+".sav")
}

func (e FileCartridgeEffects) rtcPath(key string) string {
	return filepath.Join(e.Dir, key+".rtc")
}

func (e FileCartridgeEffects) LoadRAM(key string) ([]byte, bool) {
	data, err := os.ReadFile(e.ramPath(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (e FileCartridgeEffects) SaveRAM(key string, data []byte) {
	_ = os.WriteFile(e.ramPath(key), data, 0o644)
}

func (e FileCartridgeEffects) LoadRTCState(key string) (memory.RTCState, bool) {
	data, err := os.ReadFile(e.rtcPath(key))
	if err != nil {
		return memory.RTCState{}, false
	}
	var state memory.RTCState
	if err := json.Unmarshal(data, &state); err != nil {
		return memory.RTCState{}, false
	}
	return state, true
}

func (e FileCartridgeEffects) SaveRTCState(key string, state memory.RTCState) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(e.rtcPath(key), data, 0o644)
}
