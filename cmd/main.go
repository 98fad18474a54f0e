package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"mythkv/pkg/store"
	"mythkv/pkg/wal"
)

func main() {
	fmt.Println("MythKV Demo - Log-Structured Key-Value Store")
	fmt.Println("============================================")

	dataDir := "./demo-data"
	if err := os.RemoveAll(dataDir); err != nil {
		log.Fatalf("Failed to clean %s: %v", dataDir, err)
	}

	// Create configuration
	config := store.DefaultConfig()
	config.DataDir = dataDir
	config.SyncMode = wal.SyncBatch
	config.ExpectedKeys = 10_000

	db, err := store.Open(config)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	ctx := context.Background()

	// Demo 1: Basic operations
	fmt.Println("\n1. Basic Operations:")
	fmt.Println("-------------------")

	keys := []string{"user:1", "user:2", "user:3", "product:1", "product:2"}
	values := []string{"John Doe", "Jane Smith", "Bob Johnson", "Laptop", "Mouse"}

	for i, key := range keys {
		start := time.Now()
		_, err := db.Put(ctx, []byte(key), []byte(values[i]))
		duration := time.Since(start)

		if err != nil {
			fmt.Printf("❌ Failed to put %s: %v\n", key, err)
		} else {
			fmt.Printf("✅ Put %s = %s (took %v)\n", key, values[i], duration)
		}
	}

	fmt.Println("\nRetrieving data:")
	for _, key := range keys {
		start := time.Now()
		v, err := db.Get(ctx, []byte(key))
		duration := time.Since(start)

		if errors.Is(err, store.ErrKeyNotFound) {
			fmt.Printf("❌ Key %s not found\n", key)
		} else if err != nil {
			fmt.Printf("❌ Failed to get %s: %v\n", key, err)
		} else {
			fmt.Printf("✅ Get %s = %s (took %v)\n", key, string(v), duration)
		}
	}

	// Demo 2: Update operations
	fmt.Println("\n2. Update Operations:")
	fmt.Println("--------------------")

	start := time.Now()
	prev, err := db.Put(ctx, []byte("user:1"), []byte("John Updated"))
	duration := time.Since(start)

	if err != nil {
		fmt.Printf("❌ Failed to update user:1: %v\n", err)
	} else {
		fmt.Printf("✅ Updated user:1, was %s (took %v)\n", string(prev), duration)
	}

	// Demo 3: Delete operations
	fmt.Println("\n3. Delete Operations:")
	fmt.Println("--------------------")

	start = time.Now()
	_, err = db.Delete(ctx, []byte("product:2"))
	duration = time.Since(start)

	if err != nil {
		fmt.Printf("❌ Failed to delete product:2: %v\n", err)
	} else {
		fmt.Printf("✅ Deleted product:2 (took %v)\n", duration)
	}

	if _, err = db.Get(ctx, []byte("product:2")); errors.Is(err, store.ErrKeyNotFound) {
		fmt.Printf("✅ product:2 correctly deleted (not found)\n")
	} else {
		fmt.Printf("❌ product:2 should be deleted, got err=%v\n", err)
	}

	// Demo 4: Performance test
	fmt.Println("\n4. Performance Test:")
	fmt.Println("-------------------")

	numOperations := 1000
	fmt.Printf("Performing %d put operations...\n", numOperations)

	start = time.Now()
	for i := 0; i < numOperations; i++ {
		key := fmt.Sprintf("perf:key:%d", i)
		value := fmt.Sprintf("perf:value:%d", i)
		if _, err := db.Put(ctx, []byte(key), []byte(value)); err != nil {
			fmt.Printf("❌ Failed to put %s: %v\n", key, err)
			break
		}
	}
	duration = time.Since(start)

	fmt.Printf("✅ Completed %d puts in %v (avg: %v per operation)\n",
		numOperations, duration, duration/time.Duration(numOperations))

	fmt.Printf("Performing %d get operations...\n", numOperations/2)

	start = time.Now()
	for i := 0; i < numOperations/2; i++ {
		key := fmt.Sprintf("perf:key:%d", i)
		if _, err := db.Get(ctx, []byte(key)); err != nil {
			fmt.Printf("❌ Failed to get %s: %v\n", key, err)
			break
		}
	}
	duration = time.Since(start)

	fmt.Printf("✅ Completed %d gets in %v (avg: %v per operation)\n",
		numOperations/2, duration, duration/time.Duration(numOperations/2))

	// Demo 5: Recovery
	fmt.Println("\n5. Recovery From The Log:")
	fmt.Println("-------------------------")

	before := db.Stats()
	if err := db.Close(); err != nil {
		log.Fatalf("Failed to close store: %v", err)
	}
	fmt.Printf("Closed store: %d keys, version %d, %d bytes of log\n",
		before.Keys, before.Version, before.LogBytes)

	start = time.Now()
	db, err = store.Open(config)
	if err != nil {
		log.Fatalf("Failed to reopen store: %v", err)
	}
	defer db.Close()
	after := db.Stats()
	fmt.Printf("✅ Replayed %d records (%d puts, %d deletes) in %v\n",
		after.Recovery.Records, after.Recovery.Puts, after.Recovery.Deletes, time.Since(start))

	if v, err := db.Get(ctx, []byte("user:1")); err == nil {
		fmt.Printf("✅ user:1 after recovery = %s\n", string(v))
	} else {
		fmt.Printf("❌ user:1 lost in recovery: %v\n", err)
	}
	if _, err := db.Get(ctx, []byte("product:2")); errors.Is(err, store.ErrKeyNotFound) {
		fmt.Printf("✅ product:2 still deleted after recovery\n")
	} else {
		fmt.Printf("❌ product:2 came back after recovery\n")
	}

	fmt.Println("\n🎉 Demo completed successfully!")
	fmt.Println("\nTo explore more:")
	fmt.Println("- Run HTTP server: go run ./cmd/server -data ./demo-data")
	fmt.Println("- Use CLI tool: go run ./cmd/cli verify ./demo-data")
	fmt.Println("- Check data directory: ls -la ./demo-data")
}
