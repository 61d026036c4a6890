package jeebie

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/valerio/go-jeebie/jeebie/memory"
)

func TestSaveKey(t *testing.T) {
	require.Equal(t, "pokemonblue", SaveKey("POKEMON BLUE"))
	require.Equal(t, "untitled", SaveKey(""))
	require.Equal(t, "untitled", SaveKey("   "))
}

func TestFileCartridgeEffects_RAMRoundTrip(t *testing.T) {
	effects, err := NewFileCartridgeEffects(t.TempDir())
	require.NoError(t, err)

	key := SaveKey("TESTROM")

	_, ok := effects.LoadRAM(key)
	require.False(t, ok)

	data := []byte{1, 2, 3, 4}
	effects.SaveRAM(key, data)

	loaded, ok := effects.LoadRAM(key)
	require.True(t, ok)
	require.Equal(t, data, loaded)
}

func TestFileCartridgeEffects_RTCRoundTrip(t *testing.T) {
	effects, err := NewFileCartridgeEffects(t.TempDir())
	require.NoError(t, err)

	key := SaveKey("TESTROM")

	_, ok := effects.LoadRTCState(key)
	require.False(t, ok)

	state := memory.RTCState{Seconds: 30, Minutes: 15, Hours: 2, BaseEpochMillis: 123456}
	effects.SaveRTCState(key, state)

	loaded, ok := effects.LoadRTCState(key)
	require.True(t, ok)
	require.Equal(t, state, loaded)
}

func TestNewFileCartridgeEffects_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "saves")
	_, err := NewFileCartridgeEffects(dir)
	require.NoError(t, err)
}
