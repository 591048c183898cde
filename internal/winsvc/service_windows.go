//go:build windows

// Package winsvc runs sysinfo serve under the Windows Service Control
// Manager.
package winsvc

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/eventlog"
	"golang.org/x/sys/windows/svc/mgr"

	"github.com/go-tangra/go-tangra-sysinfo/internal/logger"
)

// stopTimeout bounds how long a stop request waits for the servers to drain.
const stopTimeout = 30 * time.Second

type eventLogWriter struct {
	elog *eventlog.Log
}

func (w *eventLogWriter) Write(p []byte) (int, error) {
	if err := w.elog.Info(1, string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// EventLogWriter opens the named event log source as a log destination.
func EventLogWriter(name string) (io.Writer, error) {
	elog, err := eventlog.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", name, err)
	}
	return &eventLogWriter{elog: elog}, nil
}

// IsWindowsService reports whether the process was started by the SCM.
func IsWindowsService() bool {
	ok, err := svc.IsWindowsService()
	return err == nil && ok
}

type serviceHandler struct {
	name string
	run  func(ctx context.Context) error
}

func (h *serviceHandler) Execute(_ []string, req <-chan svc.ChangeRequest, status chan<- svc.Status) (bool, uint32) {
	const accepted = svc.AcceptStop | svc.AcceptShutdown
	status <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- h.run(ctx) }()

	status <- svc.Status{State: svc.Running, Accepts: accepted}

	for {
		select {
		case err := <-errCh:
			status <- svc.Status{State: svc.StopPending}
			if err != nil {
				logger.Server.Error().Err(err).Str("service", h.name).Msg("service stopped with error")
				return false, 1
			}
			return false, 0

		case cr := <-req:
			switch cr.Cmd {
			case svc.Interrogate:
				status <- cr.CurrentStatus
			case svc.Stop, svc.Shutdown:
				status <- svc.Status{State: svc.StopPending}
				cancel()
				select {
				case <-errCh:
				case <-time.After(stopTimeout):
					logger.Server.Warn().Str("service", h.name).Msg("timed out waiting for graceful shutdown")
				}
				return false, 0
			}
		}
	}
}

// RunService blocks until the SCM stops the service. run receives a context
// cancelled on stop or shutdown.
func RunService(name string, run func(ctx context.Context) error) error {
	return svc.Run(name, &serviceHandler{name: name, run: run})
}

// Install registers the service with automatic start and restart-on-failure
// recovery, and creates its event log source.
func Install(name, displayName, description string, args []string) error {
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connect to SCM: %w", err)
	}
	defer m.Disconnect()

	if s, err := m.OpenService(name); err == nil {
		s.Close()
		return fmt.Errorf("service %s already exists", name)
	}

	s, err := m.CreateService(name, exePath, mgr.Config{
		DisplayName: displayName,
		Description: description,
		StartType:   mgr.StartAutomatic,
	}, args...)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	defer s.Close()

	_ = s.SetRecoveryActions([]mgr.RecoveryAction{
		{Type: mgr.ServiceRestart, Delay: 10 * time.Second},
		{Type: mgr.ServiceRestart, Delay: 30 * time.Second},
		{Type: mgr.NoAction},
	}, 86400)

	if err := eventlog.InstallAsEventCreate(name, eventlog.Error|eventlog.Warning|eventlog.Info); err != nil {
		logger.Server.Warn().Err(err).Msg("could not install event log source")
	}
	return nil
}

// Uninstall stops and removes the service and its event log source.
func Uninstall(name string) error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connect to SCM: %w", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(name)
	if err != nil {
		return fmt.Errorf("open service %s: %w", name, err)
	}
	defer s.Close()

	if st, err := s.Query(); err == nil && st.State != svc.Stopped {
		_, _ = s.Control(svc.Stop)
		for range 10 {
			time.Sleep(500 * time.Millisecond)
			st, err = s.Query()
			if err != nil || st.State == svc.Stopped {
				break
			}
		}
	}

	if err := s.Delete(); err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	_ = eventlog.Remove(name)
	return nil
}
