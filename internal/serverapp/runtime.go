package serverapp

import (
	"fmt"
	"log/slog"
	"os"
)

// Stop reasons returned by WaitForStop.
const (
	StopSignal      = "signal"
	StopServerError = "server_error"
)

// Start launches the HTTP server goroutine. It requires Init to have completed.
func (a *App) Start() (<-chan error, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if !a.initialized {
		return nil, fmt.Errorf("app is not initialized")
	}
	if a.started {
		return a.serverErrors, nil
	}

	a.serverErrors = startServer(a.cfg, a.logger, a.srv, a.serverAddr)
	a.started = true
	return a.serverErrors, nil
}

// WaitForStop blocks until a signal arrives on stop or the server fails.
// A nil serverErrors falls back to the channel returned by Start; a nil
// channel never fires in a select, so either side may be absent.
func (a *App) WaitForStop(stop <-chan os.Signal, serverErrors <-chan error) (reason string, err error) {
	if serverErrors == nil {
		a.stateMu.Lock()
		if a.serverErrors != nil {
			serverErrors = a.serverErrors
		}
		a.stateMu.Unlock()
	}
	if stop == nil && serverErrors == nil {
		return "", fmt.Errorf("both stop and serverErrors channels are nil")
	}

	select {
	case err := <-serverErrors:
		if err == nil {
			return StopServerError, fmt.Errorf("server stopped unexpectedly")
		}
		return StopServerError, fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		if a.logger != nil {
			a.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		}
		return StopSignal, nil
	}
}
