//go:build integration

package integration

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	pgURL    string
	mongoURL string
	redisURL string

	containers []testcontainers.Container

	testCtx    context.Context
	cancelFunc context.CancelFunc
)

// TestMain starts PostgreSQL, MongoDB and Redis once for every suite in the package.
func TestMain(m *testing.M) {
	testCtx, cancelFunc = context.WithTimeout(context.Background(), 10*time.Minute)

	setups := []func(context.Context) (testcontainers.Container, error){setupPostgreSQL, setupMongoDB, setupRedis}
	type started struct {
		container testcontainers.Container
		err       error
	}
	results := make(chan started, len(setups))
	for _, setup := range setups {
		go func() {
			c, err := setup(testCtx)
			results <- started{c, err}
		}()
	}

	var setupErr error
	for range setups {
		r := <-results
		if r.container != nil {
			containers = append(containers, r.container)
		}
		if r.err != nil && setupErr == nil {
			setupErr = r.err
		}
	}
	if setupErr != nil {
		log.Printf("Container setup failed: %v", setupErr)
		cleanup()
		os.Exit(1)
	}

	code := m.Run()
	cleanup()
	os.Exit(code)
}

func setupPostgreSQL(ctx context.Context) (testcontainers.Container, error) {
	c, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("clarifyai_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}
	pgURL, err = c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return c, fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
	}
	return c, nil
}

func setupMongoDB(ctx context.Context) (testcontainers.Container, error) {
	c, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		return nil, fmt.Errorf("failed to start MongoDB container: %w", err)
	}
	mongoURL, err = c.ConnectionString(ctx)
	if err != nil {
		return c, fmt.Errorf("failed to get MongoDB connection string: %w", err)
	}
	return c, nil
}

// setupRedis starts a plain Redis container; no module is needed for it.
func setupRedis(ctx context.Context) (testcontainers.Container, error) {
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Redis container: %w", err)
	}
	endpoint, err := c.PortEndpoint(ctx, "6379/tcp", "")
	if err != nil {
		return c, fmt.Errorf("failed to get Redis endpoint: %w", err)
	}
	redisURL = "redis://" + endpoint + "/0"
	return c, nil
}

func cleanup() {
	for _, c := range containers {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := c.Terminate(ctx); err != nil {
			log.Printf("Failed to terminate container: %v", err)
		}
		cancel()
	}
	cancelFunc()
}

// GetPostgreSQLURL returns the PostgreSQL connection URL.
func GetPostgreSQLURL() string { return pgURL }

// GetMongoURL returns the MongoDB connection URL.
func GetMongoURL() string { return mongoURL }

// GetRedisURL returns the Redis connection URL.
func GetRedisURL() string { return redisURL }

// GetTestContext returns the shared test context.
func GetTestContext() context.Context { return testCtx }
