package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/chemflo/internal/adapter/storage"
	"github.com/rl1809/chemflo/internal/core/domain"
)

type testEnv struct {
	redis *redis.Client
	mysql *sql.DB
	svc   *InventoryService
}

// setupTestEnv wires the service to real MySQL and Redis, skipping when
// either is unreachable.
func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/chemflo_inventory?parseTime=true&clientFoundRows=true&loc=UTC"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	require.NoError(t, storage.Migrate(context.Background(), db))

	svc := NewInventoryService(
		storage.NewMySQLAdapter(db),
		storage.NewRedisAdapter(rdb, time.Minute),
		nil,
		5*time.Second,
	)
	return &testEnv{redis: rdb, mysql: db, svc: svc}
}

func (e *testEnv) createProduct(t *testing.T, name string) (*domain.Product, string) {
	t.Helper()
	ctx := context.Background()

	product, err := e.svc.CreateProduct(ctx, name, "it-"+uuid.NewString()[:12], "L")
	require.NoError(t, err)
	t.Cleanup(func() { e.svc.DeleteProduct(context.Background(), product.ID) })

	var inventoryID string
	require.NoError(t, e.mysql.QueryRowContext(ctx,
		`SELECT id FROM inventory WHERE product_id = ?`, product.ID).Scan(&inventoryID))
	return product, inventoryID
}

func TestIntegration_ConcurrentOutMovements(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	_, inventoryID := env.createProduct(t, "Integration Reagent")
	_, err := env.svc.UpdateStock(ctx, inventoryID, domain.MovementIn, "10")
	require.NoError(t, err)

	var (
		successCount      atomic.Int32
		insufficientCount atomic.Int32
		wg                sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.ApplyMovementOnce(ctx, uuid.NewString(), inventoryID, domain.MovementOut, "1")
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficientCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), successCount.Load())
	assert.Equal(t, int32(10), insufficientCount.Load())

	var stock string
	require.NoError(t, env.mysql.QueryRowContext(ctx,
		`SELECT current_stock FROM inventory WHERE id = ?`, inventoryID).Scan(&stock))
	assert.Equal(t, "0.000", stock)
}

func TestIntegration_IdempotencyPreventsDoubleMovement(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	_, inventoryID := env.createProduct(t, "Idempotent Reagent")
	key := uuid.NewString()
	t.Cleanup(func() { env.redis.Del(context.Background(), "idempotency:stock:"+inventoryID+":"+key) })

	_, err := env.svc.ApplyMovementOnce(ctx, key, inventoryID, domain.MovementIn, "2.5")
	require.NoError(t, err)

	_, err = env.svc.ApplyMovementOnce(ctx, key, inventoryID, domain.MovementIn, "2.5")
	assert.True(t, errors.Is(err, domain.ErrDuplicate))

	rec, err := env.svc.GetInventory(ctx, inventoryID)
	require.NoError(t, err)
	assert.Equal(t, "2.500", rec.CurrentStock.StringFixed(3))
}

func TestIntegration_DuplicateCASRejected(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	product, _ := env.createProduct(t, "Original")

	_, err := env.svc.CreateProduct(ctx, "Copy", product.CASNumber, "kg")
	assert.True(t, errors.Is(err, domain.ErrConflict))

	got, err := env.svc.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", got.ProductName)
}
