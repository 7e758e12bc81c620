package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSettingsDefaultsOnFirstLookup(t *testing.T) {
	env := newTestEnv(t)

	c, err := env.settings.Get(testChatID)
	require.NoError(t, err)
	require.Equal(t, "Asia/Singapore", c.Timezone)
	require.False(t, c.AwaitingTimezone)

	require.Equal(t, "Asia/Singapore", env.settings.Timezone(testChatID))
}

func TestSettingsTimezoneChangeFlow(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.settings.BeginTimezoneChange(testChatID))

	awaiting, err := env.settings.AwaitingTimezone(testChatID)
	require.NoError(t, err)
	require.True(t, awaiting)

	require.ErrorIs(t, env.settings.SetTimezone(testChatID, "Mars/Olympus"), ErrUnknownTimezone)
	require.ErrorIs(t, env.settings.SetTimezone(testChatID, ""), ErrUnknownTimezone)

	// Still awaiting after a bad name.
	awaiting, err = env.settings.AwaitingTimezone(testChatID)
	require.NoError(t, err)
	require.True(t, awaiting)

	require.NoError(t, env.settings.SetTimezone(testChatID, "Europe/Berlin"))
	require.Equal(t, "Europe/Berlin", env.settings.Timezone(testChatID))

	awaiting, err = env.settings.AwaitingTimezone(testChatID)
	require.NoError(t, err)
	require.False(t, awaiting)
}

func TestSettingsCancelTimezoneChange(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.settings.BeginTimezoneChange(testChatID))
	require.NoError(t, env.settings.CancelTimezoneChange(testChatID))

	awaiting, err := env.settings.AwaitingTimezone(testChatID)
	require.NoError(t, err)
	require.False(t, awaiting)
	require.Equal(t, "Asia/Singapore", env.settings.Timezone(testChatID))
}
