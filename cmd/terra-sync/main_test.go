package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/emperorhan/terra-sync/internal/circuitbreaker"
	"github.com/emperorhan/terra-sync/internal/config"
	"github.com/emperorhan/terra-sync/internal/domain/model"
	"github.com/emperorhan/terra-sync/internal/metrics"
	"github.com/emperorhan/terra-sync/internal/store/memory"
	"github.com/emperorhan/terra-sync/internal/store/postgres"
	redispkg "github.com/emperorhan/terra-sync/internal/store/redis"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestOpenStores_Memory(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Backend: config.StoreBackendMemory}}

	st, err := openStores(context.Background(), cfg, slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &memory.TerraRepo{}, st.terras)
	assert.IsType(t, &memory.PendingTxRepo{}, st.pending)
	assert.Nil(t, st.health)
	assert.Nil(t, st.db)
	assert.NoError(t, st.close())
}

func TestOpenStores_PostgresConnectError(t *testing.T) {
	orig := openPostgres
	t.Cleanup(func() { openPostgres = orig })

	var got postgres.Config
	openPostgres = func(cfg postgres.Config) (*postgres.DB, error) {
		got = cfg
		return nil, errors.New("connection refused")
	}

	cfg := &config.Config{
		Store: config.StoreConfig{Backend: config.StoreBackendPostgres},
		DB: config.DBConfig{
			URL:                "postgres://x@localhost/terra",
			MaxOpenConns:       7,
			StatementTimeoutMS: 1500,
		},
	}
	_, err := openStores(context.Background(), cfg, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect database")
	assert.Equal(t, "postgres://x@localhost/terra", got.URL)
	assert.Equal(t, 7, got.MaxOpenConns)
	assert.Equal(t, 1500, got.StatementTimeoutMS)
}

func TestOpenStores_UnknownBackend(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Backend: "sqlite"}}
	_, err := openStores(context.Background(), cfg, slog.Default())
	assert.Error(t, err)
}

func TestOpenNotifier_DefaultsToMemory(t *testing.T) {
	cfg := &config.Config{Notify: config.NotifyConfig{Backend: config.NotifyBackendMemory}}

	n, closeFn, err := openNotifier(cfg, slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &memory.Notifier{}, n)
	assert.NoError(t, closeFn())
}

func TestOpenNotifier_RedisFailure(t *testing.T) {
	orig := newRedisNotifier
	t.Cleanup(func() { newRedisNotifier = orig })

	var gotURL, gotChannel string
	newRedisNotifier = func(url, channel string, _ *slog.Logger) (*redispkg.Notifier, error) {
		gotURL, gotChannel = url, channel
		return nil, errors.New("dial tcp: refused")
	}

	cfg := &config.Config{
		Notify: config.NotifyConfig{Backend: config.NotifyBackendRedis, Channel: "terra:changes"},
		Redis:  config.RedisConfig{URL: "redis://cache:6379"},
	}
	_, _, err := openNotifier(cfg, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize redis notifier")
	assert.Equal(t, "redis://cache:6379", gotURL)
	assert.Equal(t, "terra:changes", gotChannel)
}

func TestNewRPCClient_BreakerTransitionsAreCounted(t *testing.T) {
	// nothing listens on this port, so every call is a transport failure
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	client := newRPCClient(config.ChainConfig{
		Network:            model.NetworkFoundry,
		RPCURL:             "http://" + addr,
		RateLimitRPS:       1000,
		RateLimitBurst:     1000,
		BreakerFailures:    1,
		BreakerOpenTimeout: time.Minute,
	}, slog.Default())

	counter := metrics.RPCCircuitTransitions.WithLabelValues(string(model.NetworkFoundry), circuitbreaker.StateOpen.String())
	before := testutil.ToFloat64(counter)

	_, err = client.BlockNumber(context.Background())
	require.Error(t, err)
	_, err = client.BlockNumber(context.Background())
	require.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestServeHTTP_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	go func() { done <- serveHTTP(ctx, port, handler, time.Second, slog.Default()) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
