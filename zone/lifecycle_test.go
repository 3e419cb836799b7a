package zone

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeLifecycleOwner struct {
	RefLifecycle
	handled chan error
}

func newFakeLifecycleOwner(t *testing.T) *fakeLifecycleOwner {
	o := &fakeLifecycleOwner{handled: make(chan error, 1)}
	o.InitRefLifecycle(newTestLogger(t), o)
	return o
}

func (o *fakeLifecycleOwner) HandleOnceTeardown(completionErr error) error {
	o.handled <- completionErr
	return completionErr
}

func TestRefLifecycleStartTeardownRunsHandlerOnce(t *testing.T) {
	o := newFakeLifecycleOwner(t)
	o.StartTeardown(nil)
	o.StartTeardown(NewError(Cancelled, "should be ignored"))

	select {
	case err := <-o.handled:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("HandleOnceTeardown was never called")
	}

	require.NoError(t, o.Wait())
	require.True(t, o.IsDone())
}

func TestRefLifecyclePauseDefersTeardown(t *testing.T) {
	o := newFakeLifecycleOwner(t)
	require.NoError(t, o.PauseTeardown())
	o.StartTeardown(nil)

	select {
	case <-o.handled:
		t.Fatal("teardown ran while paused")
	case <-time.After(50 * time.Millisecond):
	}

	o.ResumeTeardown()
	select {
	case <-o.handled:
	case <-time.After(time.Second):
		t.Fatal("teardown never ran after resume")
	}
}

func TestRefLifecyclePauseAfterStartedFails(t *testing.T) {
	o := newFakeLifecycleOwner(t)
	o.StartTeardown(nil)
	require.NoError(t, o.Wait())
	require.Error(t, o.PauseTeardown())
}

func TestRefLifecycleTeardownOnContext(t *testing.T) {
	o := newFakeLifecycleOwner(t)
	ctx, cancel := context.WithCancel(context.Background())
	o.TeardownOnContext(ctx)
	cancel()

	select {
	case err := <-o.handled:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("teardown was not triggered by context cancellation")
	}
}

func TestRefLifecycleAddChildTearsDownAfterParentHandler(t *testing.T) {
	parent := newFakeLifecycleOwner(t)
	child := newFakeLifecycleOwner(t)
	parent.AddChild(child)

	parent.StartTeardown(nil)
	require.NoError(t, parent.Wait())

	select {
	case <-child.DoneChan():
	case <-time.After(time.Second):
		t.Fatal("child was never torn down")
	}
}
