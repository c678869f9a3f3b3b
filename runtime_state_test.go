package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/bootstrap/config"
)

func TestLevelTransitions(t *testing.T) {
	tests := []struct {
		from, to RuntimeLevel
		allowed  bool
	}{
		{LevelUnknown, LevelBooting, true},
		{LevelUnknown, LevelRun, false},
		{LevelBooting, LevelInstall, true},
		{LevelBooting, LevelUpgrade, true},
		{LevelBooting, LevelRun, true},
		{LevelBooting, LevelBooting, true},
		{LevelRun, LevelUpgrade, false},
		{LevelInstall, LevelRun, false},
		{LevelUpgrade, LevelBooting, false},
		{LevelRun, LevelBootFailed, true},
		{LevelUnknown, LevelBootFailed, true},
		{LevelBootFailed, LevelRun, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allowed, canTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestRuntimeStateLifecycle(t *testing.T) {
	state := NewRuntimeState(config.NewSnapshot(testSettings(t)), &testLogger{})
	assert.Equal(t, LevelBooting, state.Level())
	assert.Equal(t, ReasonUnknown, state.Reason())
	assert.False(t, state.Level().Terminal())

	require.NoError(t, state.setLevel(LevelRun, ReasonRunUpToDate))
	assert.True(t, state.Level().Terminal())
	assert.ErrorIs(t, state.setLevel(LevelUpgrade, ReasonUpgradeVersionMismatch), ErrInvalidLevelTransition)

	first := errors.New("first")
	state.fail(ReasonBootFailedOnException, first)
	state.fail(ReasonBootFailedOnDetermination, errors.New("second"))
	assert.Equal(t, LevelBootFailed, state.Level())
	assert.Equal(t, ReasonBootFailedOnException, state.Reason())
	assert.ErrorIs(t, state.BootFailure(), first)
	assert.Equal(t, "boot failed: BootFailedOnException: first", state.BootFailure().Error())
}

func TestDetermineLevelInvalidCodeVersion(t *testing.T) {
	settings := testSettings(t)
	settings.Runtime.Version = "not-a-version"
	state := NewRuntimeState(config.NewSnapshot(settings), &testLogger{})
	db := &fakeDatabase{version: "1.0.0"}

	err := state.DetermineLevel(context.Background(), db)
	assert.ErrorIs(t, err, ErrInvalidVersion)
	assert.Equal(t, LevelBootFailed, state.Level())
	assert.Equal(t, ReasonBootFailedOnDetermination, state.Reason())
	assert.Zero(t, db.UpgradeCalls())
}

func TestDetermineLevelUpgradeRecordsInstalledVersion(t *testing.T) {
	state := NewRuntimeState(config.NewSnapshot(testSettings(t)), &testLogger{})
	db := &fakeDatabase{version: "0.9.0"}

	require.NoError(t, state.DetermineLevel(context.Background(), db))
	assert.Equal(t, LevelUpgrade, state.Level())
	assert.Equal(t, "0.9.0", state.InstalledVersion())
	assert.Equal(t, "1.0.0", state.CodeVersion())
	assert.Equal(t, 1, db.UpgradeCalls())
}

func TestLevelAndReasonNames(t *testing.T) {
	assert.Equal(t, "BootFailed", LevelBootFailed.String())
	assert.Equal(t, "Unknown", RuntimeLevel(99).String())
	assert.Equal(t, "InstallNoSchema", ReasonInstallNoSchema.String())
	assert.Equal(t, "Unknown", RuntimeLevelReason(99).String())
}
