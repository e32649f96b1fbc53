package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CheckConfig(t *testing.T) {
	t.Setenv("OFFER_TIMEZONE", "Europe/Istanbul")
	t.Setenv("OFFER_CACHE_TTL_SECONDS", "120")

	var out bytes.Buffer
	err := run(context.Background(), []string{"-check-config"}, &out)

	require.NoError(t, err)
	assert.Equal(t, "config ok: port=8010 timezone=Europe/Istanbul cache=true cache_ttl=2m0s\n", out.String())
}

func TestRun_CheckConfigRejectsBadEnvironment(t *testing.T) {
	t.Setenv("OFFER_CACHE_TTL_SECONDS", "7200")

	var out bytes.Buffer
	err := run(context.Background(), []string{"-check-config"}, &out)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
	assert.Empty(t, out.String())
}

func TestRun_UnknownFlag(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"-listen", ":80"}, &out)

	require.Error(t, err)
	assert.Contains(t, out.String(), "-check-config")
}
