package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// InterruptHandler manages graceful shutdown with friendly messages.
type InterruptHandler struct {
	writer      io.Writer
	operation   string
	hint        string
	interrupted bool
	mu          sync.Mutex
}

// NewInterruptHandler creates a new interrupt handler.
func NewInterruptHandler(writer io.Writer) *InterruptHandler {
	if writer == nil {
		writer = os.Stdout
	}
	return &InterruptHandler{
		writer: writer,
	}
}

// HandleInterrupts returns a context that is canceled on SIGINT/SIGTERM or
// when ctx ends, printing a message naming operation and, if set, hint.
// Call stop once the operation has finished to release the handler
// without printing anything.
func (h *InterruptHandler) HandleInterrupts(ctx context.Context, operation, hint string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	h.operation = operation
	h.hint = hint

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
		case <-ctx.Done():
			select {
			case <-done:
				return
			default:
			}
		case <-done:
			return
		}
		h.mu.Lock()
		if !h.interrupted {
			h.interrupted = true
			h.showInterruptMessage()
		}
		h.mu.Unlock()
		cancel()
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			cancel()
		})
	}
	return ctx, stop
}

// showInterruptMessage displays a friendly interrupt message.
func (h *InterruptHandler) showInterruptMessage() {
	msg := "\n\n" + FormatWarning(h.operation+" interrupted!")

	if h.hint != "" {
		msg += "\n" + FormatInfo(h.hint)
	}

	if _, err := fmt.Fprintln(h.writer, msg); err != nil {
		// Best effort - we're shutting down anyway
		fmt.Fprintf(os.Stderr, "Failed to write interrupt message: %v\n", err)
	}
}

// WasInterrupted returns true if the process was interrupted.
func (h *InterruptHandler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}
