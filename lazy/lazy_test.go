package lazy

import (
	"context"
	"errors"
	"testing"

	"github.com/nalgeon/be"
)

func TestGetBuildsOnce(t *testing.T) {
	calls := 0
	v := New(func(context.Context) (int, error) {
		calls++
		return 42, nil
	})
	be.True(t, !v.Ready())

	got, err := v.Get(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, got, 42)

	got, err = v.Get(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, got, 42)
	be.Equal(t, calls, 1)
	be.True(t, v.Ready())
}

func TestFailedInitIsNotCached(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	v := New(func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", boom
		}
		return "ok", nil
	})

	_, err := v.Get(context.Background())
	be.Err(t, err, boom)
	be.True(t, !v.Ready())

	got, err := v.Get(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, got, "ok")
}

func TestInvalidate(t *testing.T) {
	calls := 0
	v := New(func(context.Context) (int, error) {
		calls++
		return calls, nil
	})
	first, _ := v.Get(context.Background())
	v.Invalidate()
	be.True(t, !v.Ready())
	second, _ := v.Get(context.Background())
	be.Equal(t, first, 1)
	be.Equal(t, second, 2)
}

func TestPeekDoesNotBuild(t *testing.T) {
	calls := 0
	v := New(func(context.Context) (int, error) {
		calls++
		return 7, nil
	})
	_, ok := v.Peek()
	be.True(t, !ok)
	be.Equal(t, calls, 0)

	_, _ = v.Get(context.Background())
	got, ok := v.Peek()
	be.True(t, ok)
	be.Equal(t, got, 7)

	dropped, had := v.Invalidate()
	be.True(t, had)
	be.Equal(t, dropped, 7)
	_, had = v.Invalidate()
	be.True(t, !had)
	be.Equal(t, calls, 1)
}
