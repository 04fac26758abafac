package cache

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnectRedisFailsWithoutServer(t *testing.T) {
	// porta livre: reserva e solta para garantir que ninguém escuta
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = ConnectRedis(context.Background(), addr, Options{DialTimeout: 200 * time.Millisecond})
	require.ErrorContains(t, err, "redis ping "+addr)
}
