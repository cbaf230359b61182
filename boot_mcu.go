//go:build rp2040 || rp2350

package main

import (
	"context"
	"time"
)

const bootDelay = 2 * time.Second

// Firmware runs until power-off.
func rootContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}
