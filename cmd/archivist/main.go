package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"archivist/internal/api"
)

// Exit codes: 1 for command failures, 2 when the daemon cannot be
// reached, 130 on interrupt.
func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		os.Exit(130)
	}
	fmt.Fprintln(os.Stderr, "archivist:", err)
	if errors.Is(err, api.ErrDaemonUnavailable) {
		os.Exit(2)
	}
	os.Exit(1)
}
