package constants_test

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/modelscout/modelscout/pkg/constants"
)

// Example demonstrates using constants for filesystem operations.
func Example() {
	dir, err := os.MkdirTemp("", "modelscout")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	sub := filepath.Join(dir, "artifacts")
	if err := os.MkdirAll(sub, constants.DirPermissions); err != nil {
		panic(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "result.json"), []byte("{}"), constants.FilePermissions); err != nil {
		panic(err)
	}

	fmt.Printf("Created dir with %o permissions\n", constants.DirPermissions)
	fmt.Printf("Created file with %o permissions\n", constants.FilePermissions)
	// Output:
	// Created dir with 755 permissions
	// Created file with 644 permissions
}

// Example_timeouts demonstrates timeout constants.
func Example_timeouts() {
	client := &http.Client{
		Timeout: constants.DefaultHTTPTimeout,
	}
	fmt.Printf("HTTP timeout: %v\n", client.Timeout)
	fmt.Printf("Provider fetch timeout: %v\n", constants.ProviderFetchTimeout)
	fmt.Printf("Full hub scan budget: %v\n", constants.LongRunningTimeout)

	// Output:
	// HTTP timeout: 30s
	// Provider fetch timeout: 2m0s
	// Full hub scan budget: 30m0s
}

// Example_retryBackoff demonstrates the exponential backoff progression.
func Example_retryBackoff() {
	for attempt := 0; attempt < constants.MaxRetries; attempt++ {
		backoff := constants.RetryBackoff * time.Duration(1<<attempt)
		if backoff > constants.MaxRetryBackoff {
			backoff = constants.MaxRetryBackoff
		}
		fmt.Printf("Attempt %d backoff: %v\n", attempt+1, backoff)
	}

	// Output:
	// Attempt 1 backoff: 1s
	// Attempt 2 backoff: 2s
	// Attempt 3 backoff: 4s
}

// Example_thresholds shows the similarity threshold tiers used for
// duplicate detection.
func Example_thresholds() {
	fmt.Printf("Exact: %.2f\n", constants.ThresholdExact)
	fmt.Printf("High: %.2f\n", constants.ThresholdHigh)
	fmt.Printf("Medium (default): %.2f\n", constants.ThresholdMedium)
	fmt.Printf("Low: %.2f\n", constants.ThresholdLow)

	// Output:
	// Exact: 1.00
	// High: 0.95
	// Medium (default): 0.85
	// Low: 0.70
}

// Example_paths shows the default storage layout.
func Example_paths() {
	fmt.Printf("Storage dir: %s\n", constants.DefaultStorageDir)
	fmt.Printf("State file: %s\n", constants.DefaultStateFile)

	// Output:
	// Storage dir: ~/.modelscout
	// State file: state.db
}
