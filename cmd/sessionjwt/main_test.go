package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRevokeAllCommand(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, _ := strings.Cut(mr.Addr(), ":")

	t.Setenv("JWT_ACCESS_SECRET", "cli-access-secret-0123456789")
	t.Setenv("JWT_REFRESH_SECRET", "cli-refresh-secret-0123456789")
	t.Setenv("REDIS_HOST", host)
	t.Setenv("REDIS_PORT", port)

	require.NoError(t, mr.Set("refreshToken:u1:abc", "1"))
	require.NoError(t, mr.Set("refreshToken:u1:def", "1"))
	require.NoError(t, mr.Set("refreshToken:u2:ghi", "1"))

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"--env-file", "", "list-credentials", "u1"})
	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "abc")
	require.Contains(t, out.String(), "def")

	out.Reset()
	cmd = newRootCmd(&out)
	cmd.SetArgs([]string{"--env-file", "", "revoke-all", "u1"})
	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "revoked 2")

	require.False(t, mr.Exists("refreshToken:u1:abc"))
	require.True(t, mr.Exists("refreshToken:u2:ghi"))
}

func TestRevokeAllRequiresPrincipal(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{})
	cmd.SetArgs([]string{"revoke-all"})
	require.Error(t, cmd.Execute())
}

func TestMissingSecretFailsFast(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "")
	t.Setenv("JWT_REFRESH_SECRET", "")

	cmd := newRootCmd(&bytes.Buffer{})
	cmd.SetArgs([]string{"--env-file", "", "revoke-all", "u1"})
	err := cmd.Execute()
	require.ErrorContains(t, err, "JWT_ACCESS_SECRET")
}

func TestReportCommandPrintsYAML(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "cli-access-secret-0123456789")
	t.Setenv("JWT_REFRESH_SECRET", "cli-refresh-secret-0123456789")

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"--env-file", "", "report"})
	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "signing_algorithm: HS256")
	require.Contains(t, out.String(), "distinct_secrets: true")
}
