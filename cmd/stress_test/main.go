package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/rl1809/chemflo/internal/adapter/storage"
	"github.com/rl1809/chemflo/internal/core/domain"
	"github.com/rl1809/chemflo/internal/core/service"
	"github.com/rl1809/chemflo/internal/port"
)

const (
	initialStock  = 20
	totalRequests = 50
	movement      = "1"
	storeTimeout  = 5 * time.Second
)

// Fires concurrent OUT movements at one inventory record and checks that
// exactly initialStock of them succeed. Set MYSQL_DSN to run against MySQL
// instead of the in-memory store.
func main() {
	ctx := context.Background()

	var store port.Store = storage.NewMemoryAdapter()
	if dsn := os.Getenv("MYSQL_DSN"); dsn != "" {
		db, err := openMySQL(dsn)
		if err != nil {
			log.Fatalf("failed to open mysql: %v", err)
		}
		defer db.Close()

		if err := storage.Migrate(ctx, db); err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}
		store = storage.NewMySQLAdapter(db)
	}

	svc := service.NewInventoryService(store, nil, nil, storeTimeout)

	product, err := svc.CreateProduct(ctx, "Stress Test Reagent", "stress-"+uuid.NewString()[:8], string(domain.UnitLiter))
	if err != nil {
		log.Fatalf("failed to create product: %v", err)
	}
	defer svc.DeleteProduct(ctx, product.ID)

	records, err := svc.ListInventory(ctx)
	if err != nil {
		log.Fatalf("failed to list inventory: %v", err)
	}
	var inventoryID string
	for _, rec := range records {
		if rec.ProductID == product.ID {
			inventoryID = rec.ID
		}
	}

	if _, err := svc.UpdateStock(ctx, inventoryID, domain.MovementIn, fmt.Sprint(initialStock)); err != nil {
		log.Fatalf("failed to set stock: %v", err)
	}

	var (
		successCount    atomic.Int32
		rejectedCount   atomic.Int32
		unexpectedCount atomic.Int32
		wg              sync.WaitGroup
	)
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := svc.UpdateStock(ctx, inventoryID, domain.MovementOut, movement)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				rejectedCount.Add(1)
			default:
				unexpectedCount.Add(1)
				log.Printf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	rejected := rejectedCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Rejected:         %d\n", rejected)
	fmt.Printf("Errors:           %d\n", unexpectedCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && rejected == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d movements succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d rejected, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, rejected)
	}

	rec, err := svc.GetInventory(ctx, inventoryID)
	if err != nil {
		log.Fatalf("failed to read final stock: %v", err)
	}
	fmt.Printf("Final Stock: %s\n", rec.CurrentStock.StringFixed(3))

	if rec.CurrentStock.IsZero() {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %s\n", rec.CurrentStock)
	}
}

// openMySQL applies the driver settings the adapter relies on, whatever the
// caller put in the DSN.
func openMySQL(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	return db, nil
}
