package lifecycle

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpError(t *testing.T) {
	err := &OpError{Op: OpRegister, Path: "/etc/systemd/system/custom-https-server.service", Err: ErrUnsupportedPlatform}

	require.Contains(t, err.Error(), "register")
	require.Contains(t, err.Error(), "custom-https-server.service")
	require.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestCleanupSummaryRecord(t *testing.T) {
	var s CleanupSummary

	s.Record("descriptor", "/etc/a", nil)
	s.Record("config file", "/etc/b", fs.ErrNotExist)
	s.Record("logs directory", "/home/x/logs", errors.New("permission denied"))

	require.Len(t, s.Steps, 3)
	require.Equal(t, CleanupRemoved, s.Steps[0].Outcome)
	require.Equal(t, CleanupNotFound, s.Steps[1].Outcome)
	require.Equal(t, CleanupFailed, s.Steps[2].Outcome)

	failed := s.Failed()
	require.Len(t, failed, 1)
	require.Equal(t, "logs directory", failed[0].Name)

	err := s.Err()
	require.Error(t, err)
	require.Contains(t, err.Error(), "logs directory")
}

func TestCleanupSummaryErrNilWhenNothingFailed(t *testing.T) {
	var s CleanupSummary

	s.Record("descriptor", "/etc/a", fs.ErrNotExist)
	s.Record("config file", "/etc/b", nil)

	require.NoError(t, s.Err())
	require.Empty(t, s.Failed())
}

func TestCleanupSummaryMultipleFailures(t *testing.T) {
	var s CleanupSummary

	s.Record("descriptor", "/etc/a", errors.New("busy"))
	s.Record("install directory", "/opt/x", errors.New("busy"))

	err := s.Err()
	require.Error(t, err)
	require.Contains(t, err.Error(), "2 cleanup steps failed")
}
