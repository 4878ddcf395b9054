package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestSupervisor_StartFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := false
	s := NewSupervisor(
		NewServiceFunc("broken", func(context.Context) error { return errors.New("port in use") }),
		Background("never", func(context.Context) error {
			started = true
			return nil
		}),
	)

	err := s.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("Expected startup failure naming the service, got %v", err)
	}
	if started {
		t.Error("Expected later services not to start")
	}
}

func TestSupervisor_LateFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewSupervisor(NewServiceFunc("flaky", func(context.Context) error {
		time.Sleep(2 * startupGrace)
		return errors.New("connection lost")
	}))

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case err := <-s.Errors():
		if !strings.Contains(err.Error(), "connection lost") {
			t.Errorf("Expected late failure, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected late failure to be reported")
	}
}

func TestSupervisor_Health(t *testing.T) {
	s := NewSupervisor(
		Background("ok", func(context.Context) error { return nil }),
		Background("sick", func(context.Context) error { return nil }).
			WithHealth(func() error { return errors.New("lagging") }),
	)

	err := s.Health()
	if err == nil || !strings.Contains(err.Error(), "sick") {
		t.Errorf("Expected unhealthy service named, got %v", err)
	}
}

func TestRun_ProgrammaticShutdown(t *testing.T) {
	mgr := NewManager()
	rec := &recorder{}

	server := &http.Server{Addr: "127.0.0.1:0"}
	httpService := NewHTTPService("http", server)
	mgr.RegisterListenerShutdown("http", func(ctx context.Context) error {
		rec.hook("http")(ctx)
		return httpService.Shutdown(ctx)
	})

	stopped := make(chan struct{})
	worker := Background("worker", func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			close(stopped)
		}()
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- Run(context.Background(), mgr, worker, httpService) }()

	time.Sleep(3 * startupGrace)
	mgr.Shutdown()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	if got := rec.names(); len(got) != 1 || got[0] != "http" {
		t.Errorf("Expected listener hook to run, got %v", got)
	}

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Error("Expected service context to be cancelled")
	}
}

func TestRun_ServiceFailureTriggersShutdown(t *testing.T) {
	mgr := NewManager()
	rec := &recorder{}
	mgr.RegisterDatabaseShutdown("mongodb", rec.hook("mongodb"))

	failing := NewServiceFunc("janitor", func(context.Context) error {
		time.Sleep(2 * startupGrace)
		return errors.New("store gone")
	})

	err := Run(context.Background(), mgr, failing)
	if err == nil || !strings.Contains(err.Error(), "store gone") {
		t.Fatalf("Expected service failure, got %v", err)
	}
	if got := rec.names(); len(got) != 1 {
		t.Errorf("Expected shutdown hooks to run, got %v", got)
	}
}
