package neoimport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported scheme", func(t *testing.T) {
		db, err := Connect(ctx, "bogus://localhost", "neo4j", "password")
		assert.Nil(t, db)
		var connErr *ConnectionError
		require.ErrorAs(t, err, &connErr)
		assert.Equal(t, "bogus://localhost", connErr.URI)
	})

	t.Run("unreachable", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		opts := DriverOptions{
			ConnectionAcquisitionTimeout: time.Second,
			SocketConnectTimeout:         time.Second,
		}
		db, err := Connect(ctx, "bolt://127.0.0.1:1", "neo4j", "password", opts.Configure())
		assert.Nil(t, db)
		var connErr *ConnectionError
		require.ErrorAs(t, err, &connErr)
		assert.Contains(t, err.Error(), "bolt://127.0.0.1:1")
	})
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	assert.NoError(t, Verify(ctx, m, "bolt://db:7687"))

	refused := errors.New("connection refused")
	m.FailConnectivity(refused)
	err := Verify(ctx, m, "bolt://db:7687")
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "bolt://db:7687", connErr.URI)
	assert.ErrorIs(t, err, refused)
}

func TestDriverOptions(t *testing.T) {
	t.Run("overrides", func(t *testing.T) {
		var c config.Config
		DriverOptions{
			MaxConnectionPoolSize:        20,
			ConnectionAcquisitionTimeout: 2 * time.Second,
			SocketConnectTimeout:         3 * time.Second,
		}.Configure()(&c)
		assert.Equal(t, UserAgent, c.UserAgent)
		assert.Equal(t, 20, c.MaxConnectionPoolSize)
		assert.Equal(t, 2*time.Second, c.ConnectionAcquisitionTimeout)
		assert.Equal(t, 3*time.Second, c.SocketConnectTimeout)
	})

	t.Run("zero keeps defaults", func(t *testing.T) {
		c := config.Config{MaxConnectionPoolSize: 100, SocketConnectTimeout: 5 * time.Second}
		DriverOptions{}.Configure()(&c)
		assert.Equal(t, 100, c.MaxConnectionPoolSize)
		assert.Equal(t, 5*time.Second, c.SocketConnectTimeout)
		assert.Equal(t, UserAgent, c.UserAgent)
	})
}
