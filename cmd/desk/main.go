// Package main - desk CLI
//
// Usage:
//
//	go run ./cmd/desk serve
//	go run ./cmd/desk watch --types market_data
//	go run ./cmd/desk invoke get_positions
package main

import (
	"os"

	"github.com/tharun-extinct/HedgeX-V5-sub000/cmd/desk/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
