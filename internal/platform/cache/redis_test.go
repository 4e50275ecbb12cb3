package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPingsServer(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	client, err := New(context.Background(), addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Set(context.Background(), "ledger:ping", "1", 0).Err())
	assert.True(t, srv.Exists("ledger:ping"))

	srv.Close()
	_, err = New(context.Background(), addr)
	assert.ErrorContains(t, err, "platform/cache: ping")
}
