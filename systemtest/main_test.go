package systemtest

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/AlexRider935/catalyst-server/internal/agents"
	internalhttp "github.com/AlexRider935/catalyst-server/internal/api/http"
	"github.com/AlexRider935/catalyst-server/internal/db"
	"github.com/AlexRider935/catalyst-server/internal/ingestion"
	"github.com/AlexRider935/catalyst-server/internal/monitor"
	"github.com/AlexRider935/catalyst-server/systemtest/postgres"
	"github.com/AlexRider935/catalyst-server/systemtest/tests"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestSystemIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping system test in short mode")
	}

	ctx := context.Background()

	container, dsn, err := postgres.Start(ctx, "catalyst", "catalyst", "catalyst")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := postgres.Terminate(context.Background(), container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	require.NoError(t, db.RunMigrations(dsn, "public"))

	pool, err := db.InitDB(ctx, dsn, "public")
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := agents.NewStore(pool)
	services := &internalhttp.Services{
		Agents:   agents.NewService(store),
		Ingestor: ingestion.NewService(store, ingestion.Config{EventsPerSecond: 1000, Burst: 1000}),
		Monitor: monitor.New(store, monitor.Config{
			Interval:         time.Hour,
			StaleThreshold:   3 * time.Minute,
			InstantThreshold: 5 * time.Second,
		}, slog.Default()),
	}

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	internalhttp.SetupRoute(engine, services)

	t.Run("HealthCheck", func(t *testing.T) { tests.TestHealthCheck(t, engine) })
	t.Run("AgentLifecycle", func(t *testing.T) { tests.TestAgentLifecycle(t, engine, pool) })
	t.Run("ConcurrentRegistration", func(t *testing.T) { tests.TestConcurrentRegistration(t, engine) })
	t.Run("DeviceConflict", func(t *testing.T) { tests.TestDeviceConflict(t, engine) })
	t.Run("Ingestion", func(t *testing.T) { tests.TestIngestion(t, engine, pool) })
	t.Run("SweepIdempotence", func(t *testing.T) { tests.TestSweepIdempotence(t, engine, pool) })
}
