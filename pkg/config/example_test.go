package config_test

import (
	"fmt"

	"github.com/wonny/marketviews/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Server running on port: %s\n", cfg.Port)
	fmt.Printf("Store backend: %s\n", cfg.StoreBackend)
	fmt.Printf("Views file: %s\n", cfg.Sources.ViewsFile)
	fmt.Printf("Scale: %s\n", cfg.Scale.Name)
}
