package eventloop

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRunPendingFIFO(t *testing.T) {
	l := New(nil)
	var got []int
	for i := range 3 {
		l.Post(func() {
			got = append(got, i)
			if i == 0 {
				l.Post(func() { got = append(got, 99) })
			}
		})
	}

	if n := l.RunPending(); n != 4 {
		t.Errorf("RunPending ran %d events, want 4", n)
	}
	if diff := cmp.Diff([]int{0, 1, 2, 99}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestCallReturnsResult(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	sentinel := errors.New("from loop")
	if err := l.Call(ctx, func() error { return sentinel }); !errors.Is(err, sentinel) {
		t.Fatalf("Call = %v, want %v", err, sentinel)
	}
}

func TestEventsNeverOverlap(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var (
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Call(ctx, func() error {
				active++
				if active > maxSeen {
					maxSeen = active
				}
				time.Sleep(time.Microsecond)
				active--
				return nil
			})
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("observed %d concurrent events", maxSeen)
	}
}

func TestPanicDoesNotStopLoop(t *testing.T) {
	l := New(nil)
	ran := false
	l.Post(func() { panic("boom") })
	l.Post(func() { ran = true })
	l.RunPending()
	if !ran {
		t.Error("event after panic did not run")
	}
}

func TestCallAfterStop(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()
	cancel()
	<-l.Done()
	if err := <-errc; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	err := l.Call(context.Background(), func() error { return nil })
	if !errors.Is(err, ErrStopped) {
		t.Errorf("Call after stop = %v, want ErrStopped", err)
	}
}

func TestCallHonoursContext(t *testing.T) {
	l := New(nil) // never run
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Call(ctx, func() error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Call = %v, want deadline exceeded", err)
	}
}

func TestCallCancelledBeforeStartNeverRuns(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	release := make(chan struct{})
	l.Post(func() { <-release })

	callCtx, callCancel := context.WithCancel(ctx)
	errc := make(chan error, 1)
	var ran atomic.Bool
	go func() {
		errc <- l.Call(callCtx, func() error {
			ran.Store(true)
			return nil
		})
	}()

	callCancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Call = %v, want context.Canceled", err)
	}
	close(release)

	// A later call runs after the abandoned one would have.
	if err := l.Call(ctx, func() error { return nil }); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if ran.Load() {
		t.Error("cancelled call still ran its event")
	}
}

func TestCallReportsPanic(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	err := l.Call(ctx, func() error { panic("boom") })
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Call = %v, want panic error", err)
	}
	if err := l.Call(ctx, func() error { return nil }); err != nil {
		t.Errorf("Call after panic = %v", err)
	}
}
