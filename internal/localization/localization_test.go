package localization_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liveroom/backend/internal/localization"
)

func TestFormat_English(t *testing.T) {
	l, err := localization.NewLocalizer("en")
	require.NoError(t, err)

	assert.Equal(t, "host joined", l.Format(localization.KeyParticipantJoined, "host"))
	assert.Equal(t, "The session has ended", l.Format(localization.KeySessionEnded))
}

func TestFormat_UnknownLanguageFallsBack(t *testing.T) {
	l, err := localization.NewLocalizer("xx")
	require.NoError(t, err)

	assert.Equal(t, localization.DefaultLanguage, l.Language())
	assert.Equal(t, "Recording started", l.Format(localization.KeyRecordingStarted))
}

func TestGetString_MissingKeyReturnsKey(t *testing.T) {
	l, err := localization.NewLocalizer("uk")
	require.NoError(t, err)

	assert.Equal(t, "no.such.key", l.GetString("uk", "no.such.key"))
	assert.Equal(t, "Заняття завершено", l.GetString("uk", localization.KeySessionEnded))
}
