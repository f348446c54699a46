package browser

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// stubLaunch replaces the real Chrome launch so pool mechanics are
// testable without a browser binary. The nil browser is fine: these tests
// exercise slot accounting and never open a page.
func stubLaunch(launches *atomic.Int32) func() (*rod.Browser, *launcher.Launcher, error) {
	return func() (*rod.Browser, *launcher.Launcher, error) {
		launches.Add(1)
		return nil, nil, nil
	}
}

func TestAcquireRelease(t *testing.T) {
	// WHAT: Slots can be acquired up to PoolSize and reused after release.
	// WHY: The pool bounds concurrent navigations.
	var launches atomic.Int32
	p := NewPool(Config{PoolSize: 2})
	p.launchFn = stubLaunch(&launches)
	defer p.Close()

	ctx := context.Background()
	s1, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	s2, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire 2: %v", err)
	}

	s1.Release()
	s3, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	s2.Release()
	s3.Release()

	if got := launches.Load(); got != 1 {
		t.Errorf("launches = %d, want 1", got)
	}
}

func TestAcquireBusyTimesOut(t *testing.T) {
	// WHAT: Acquiring with all slots held yields ErrPoolBusy when the
	// context expires.
	// WHY: A stuck render must not wedge every subsequent element check.
	var launches atomic.Int32
	p := NewPool(Config{PoolSize: 1})
	p.launchFn = stubLaunch(&launches)
	defer p.Close()

	s, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer s.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	if !errors.Is(err, ErrPoolBusy) {
		t.Errorf("err = %v, want ErrPoolBusy", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	// WHAT: Double Release returns the slot only once.
	// WHY: Release sits on every exit path of a fetch; paths overlap.
	var launches atomic.Int32
	p := NewPool(Config{PoolSize: 1})
	p.launchFn = stubLaunch(&launches)
	defer p.Close()

	s, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	s.Release()
	s.Release()

	if got := len(p.slots); got != 1 {
		t.Errorf("free slots = %d, want 1", got)
	}
}

func TestAcquireAfterClose(t *testing.T) {
	// WHAT: A closed pool rejects further acquires.
	// WHY: Shutdown must not hand out sessions on a dead browser.
	var launches atomic.Int32
	p := NewPool(Config{PoolSize: 1})
	p.launchFn = stubLaunch(&launches)

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := p.Acquire(context.Background())
	if !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestLazyLaunch(t *testing.T) {
	// WHAT: The browser is not launched until the first Acquire.
	// WHY: Deployments with no element-mode trackers never pay for Chrome.
	var launches atomic.Int32
	p := NewPool(Config{PoolSize: 1})
	p.launchFn = stubLaunch(&launches)
	defer p.Close()

	if got := launches.Load(); got != 0 {
		t.Fatalf("launches before acquire = %d, want 0", got)
	}
	s, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	s.Release()
	if got := launches.Load(); got != 1 {
		t.Errorf("launches = %d, want 1", got)
	}
}

func TestLaunchFailure(t *testing.T) {
	// WHAT: A failed launch surfaces from Acquire and the next Acquire
	// retries the launch.
	// WHY: Chrome can be missing or crash at startup; the pool must not
	// latch into a broken state.
	var launches atomic.Int32
	fail := true
	p := NewPool(Config{PoolSize: 1})
	p.launchFn = func() (*rod.Browser, *launcher.Launcher, error) {
		launches.Add(1)
		if fail {
			return nil, nil, errors.New("no chrome")
		}
		return nil, nil, nil
	}
	defer p.Close()

	if _, err := p.Acquire(context.Background()); err == nil {
		t.Fatal("expected launch error")
	}

	fail = false
	s, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after recovery: %v", err)
	}
	s.Release()

	if got := launches.Load(); got != 2 {
		t.Errorf("launches = %d, want 2", got)
	}
}
