package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/aretw0/agrobot/internal/cli"
	"github.com/aretw0/agrobot/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunServer_StopsWhenContextCancelled(t *testing.T) {
	ctx := cli.NewSignalContext(context.Background())
	defer ctx.Cancel()

	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv, time.Second, logging.NewNop()) }()

	ctx.Cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
	assert.Nil(t, ctx.Signal())
}

func TestRunServer_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx := cli.NewSignalContext(context.Background())
	defer ctx.Cancel()

	srv := &http.Server{Addr: ln.Addr().String(), Handler: http.NotFoundHandler()}
	err = runServer(ctx, srv, time.Second, logging.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server error")
}
