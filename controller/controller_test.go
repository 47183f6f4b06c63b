package controller_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"i4.energy/across/cncline/controller"
	"i4.energy/across/cncline/smoothie"
)

func TestControllerNew(t *testing.T) {
	t.Run("Initialization Success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := controller.NewMockTransport(ctrl)
		mockDialer := controller.NewMockDialer(ctrl)
		mockDialer.EXPECT().Dial(gomock.Any()).Return(mockTransport, nil)

		config, err := controller.NewConfigBuilder().
			WithDialer(mockDialer).
			Build()
		if err != nil {
			t.Errorf("unexpected error from Build(): %v", err)
		}

		c, err := controller.New(context.Background(), config)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if c == nil {
			t.Fatal("New() should return valid controller on success")
		}

		mockTransport.EXPECT().Close().Return(nil)
		if err := c.Close(); err != nil {
			t.Errorf("unexpected error from Close(): %v", err)
		}
	})

	t.Run("Dialer error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		dialErr := errors.New("connection failed")
		mockDialer := controller.NewMockDialer(ctrl)
		mockDialer.EXPECT().Dial(gomock.Any()).Return(nil, dialErr)

		config, err := controller.NewConfigBuilder().
			WithDialer(mockDialer).
			Build()
		if err != nil {
			t.Errorf("unexpected error from Build(): %v", err)
		}

		c, err := controller.New(context.Background(), config)
		if !errors.Is(err, dialErr) {
			t.Errorf("expected wrapped dialer error, got: %v", err)
		}
		if c != nil {
			t.Error("New() should return nil controller when dialer fails")
		}
	})

	t.Run("ErrNoDialer when no dialer provided", func(t *testing.T) {
		c, err := controller.New(context.Background(), controller.Config{})
		if !errors.Is(err, controller.ErrNoDialer) {
			t.Errorf("expected ErrNoDialer from New(), got: %v", err)
		}
		if c != nil {
			t.Error("New() should return nil controller when no dialer provided")
		}
	})

	t.Run("ErrNotInitialized on nil transport", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDialer := controller.NewMockDialer(ctrl)
		mockDialer.EXPECT().Dial(gomock.Any()).Return(nil, nil)

		config, err := controller.NewConfigBuilder().
			WithDialer(mockDialer).
			Build()
		if err != nil {
			t.Errorf("unexpected error from Build(): %v", err)
		}

		_, err = controller.New(context.Background(), config)
		if !errors.Is(err, controller.ErrNotInitialized) {
			t.Errorf("expected ErrNotInitialized from New(), got: %v", err)
		}
	})
}

func TestControllerClose(t *testing.T) {
	t.Run("Returns transport error on close failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := controller.NewMockTransport(ctrl)
		mockDialer := controller.NewMockDialer(ctrl)

		closeError := errors.New("transport close failed")
		gomock.InOrder(
			mockDialer.EXPECT().Dial(gomock.Any()).Return(mockTransport, nil),
			mockTransport.EXPECT().Close().Return(closeError),
		)

		c := newController(t, controller.NewConfigBuilder().WithDialer(mockDialer))

		if err := c.Close(); err != closeError {
			t.Errorf("expected transport error, got: %v", err)
		}
	})

	t.Run("ErrAlreadyClosed on double close", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := controller.NewMockTransport(ctrl)
		mockDialer := controller.NewMockDialer(ctrl)

		gomock.InOrder(
			mockDialer.EXPECT().Dial(gomock.Any()).Return(mockTransport, nil),
			mockTransport.EXPECT().Close().Return(nil),
		)

		c := newController(t, controller.NewConfigBuilder().WithDialer(mockDialer))

		if err := c.Close(); err != nil {
			t.Errorf("first close should succeed, got error: %v", err)
		}
		if err := c.Close(); err != controller.ErrAlreadyClosed {
			t.Errorf("expected ErrAlreadyClosed on second close, got: %v", err)
		}
	})

	t.Run("Loop after Close", func(t *testing.T) {
		tt := controller.NewTestTransport()
		c := newController(t, controller.NewConfigBuilder().WithDialer(controller.TestDialer{Transport: tt}))

		require.NoError(t, c.Close())
		assert.ErrorIs(t, c.Loop(context.Background()), controller.ErrAlreadyClosed)
	})

	t.Run("Subscribe after Close returns a closed channel", func(t *testing.T) {
		tt := controller.NewTestTransport()
		c := newController(t, controller.NewConfigBuilder().WithDialer(controller.TestDialer{Transport: tt}))

		require.NoError(t, c.Close())

		events, cancel := c.Subscribe()
		defer cancel()
		_, ok := <-events
		assert.False(t, ok)
	})

	t.Run("Close without a loop closes subscriptions", func(t *testing.T) {
		tt := controller.NewTestTransport()
		c := newController(t, controller.NewConfigBuilder().WithDialer(controller.TestDialer{Transport: tt}))

		events, cancel := c.Subscribe(smoothie.KindOk)
		defer cancel()

		require.NoError(t, c.Close())
		_, ok := <-events
		assert.False(t, ok)
	})
}

func TestControllerLoop(t *testing.T) {
	t.Run("Delivers events in wire order and stops on EOF", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := controller.NewMockTransport(ctrl)
		mockDialer := controller.NewMockDialer(ctrl)
		mockDialer.EXPECT().Dial(gomock.Any()).Return(mockTransport, nil)

		gomock.InOrder(
			mockTransport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
				return copy(p, "ok\r\n<Idle,MPos:0.000,0.000,0.000>\r\n\r\nerror:Unsupported command\n"), nil
			}),
			mockTransport.EXPECT().Read(gomock.Any()).Return(0, io.EOF),
		)
		mockTransport.EXPECT().Close().Return(nil)

		c := newController(t, controller.NewConfigBuilder().WithDialer(mockDialer))
		defer c.Close()

		events, cancel := c.Subscribe()
		defer cancel()

		err := c.Loop(context.Background())
		assert.ErrorIs(t, err, io.EOF)

		var kinds []smoothie.Kind
		for ev := range events {
			kinds = append(kinds, ev.Kind())
		}
		assert.Equal(t, []smoothie.Kind{smoothie.KindOk, smoothie.KindStatus, smoothie.KindError}, kinds)
	})

	t.Run("Filters subscriptions by kind", func(t *testing.T) {
		tt := controller.NewTestTransport()
		c := newController(t, controller.NewConfigBuilder().WithDialer(controller.TestDialer{Transport: tt}))
		defer c.Close()

		status, cancelStatus := c.Subscribe(smoothie.KindStatus)
		defer cancelStatus()
		problems, cancelProblems := c.Subscribe(smoothie.KindAlarm, smoothie.KindError)
		defer cancelProblems()

		loopDone := startLoop(context.Background(), c)

		tt.SendData("ok\n<Idle>\nerror:Unsupported command\n<Run>\nALARM: Hard limit\n")

		st := receive(t, status).(smoothie.Status)
		assert.Equal(t, "Idle", st.ActiveState)
		st = receive(t, status).(smoothie.Status)
		assert.Equal(t, "Run", st.ActiveState)

		assert.Equal(t, smoothie.KindError, receive(t, problems).Kind())
		alarm := receive(t, problems).(smoothie.Alarm)
		assert.Equal(t, "Hard limit", alarm.Message)

		require.NoError(t, tt.Close())
		assert.ErrorIs(t, waitLoop(t, loopDone), io.EOF)
	})

	t.Run("ErrLoopRunning on second loop", func(t *testing.T) {
		tt := controller.NewTestTransport()
		c := newController(t, controller.NewConfigBuilder().WithDialer(controller.TestDialer{Transport: tt}))
		defer c.Close()

		events, cancel := c.Subscribe(smoothie.KindOk)
		defer cancel()

		ctx, stop := context.WithCancel(context.Background())
		defer stop()
		loopDone := startLoop(ctx, c)

		// An event proves the first loop is reading
		tt.SendData("ok\n")
		receive(t, events)

		assert.ErrorIs(t, c.Loop(ctx), controller.ErrLoopRunning)

		stop()
		assert.ErrorIs(t, waitLoop(t, loopDone), context.Canceled)
	})

	t.Run("Context cancellation stops the loop and closes subscriptions", func(t *testing.T) {
		tt := controller.NewTestTransport()
		c := newController(t, controller.NewConfigBuilder().WithDialer(controller.TestDialer{Transport: tt}))
		defer c.Close()

		events, cancel := c.Subscribe()
		defer cancel()

		ctx, stop := context.WithCancel(context.Background())
		loopDone := startLoop(ctx, c)
		stop()

		assert.ErrorIs(t, waitLoop(t, loopDone), context.Canceled)
		_, ok := <-events
		assert.False(t, ok)
	})

	t.Run("Close stops a running loop", func(t *testing.T) {
		tt := controller.NewTestTransport()
		c := newController(t, controller.NewConfigBuilder().WithDialer(controller.TestDialer{Transport: tt}))

		events, cancel := c.Subscribe()
		defer cancel()

		loopDone := startLoop(context.Background(), c)
		tt.SendData("ok\n")
		receive(t, events)

		require.NoError(t, c.Close())
		assert.ErrorIs(t, waitLoop(t, loopDone), context.Canceled)
	})

	t.Run("Polls status at the configured interval", func(t *testing.T) {
		tt := controller.NewTestTransport()
		c := newController(t, controller.NewConfigBuilder().
			WithDialer(controller.TestDialer{Transport: tt}).
			WithStatusInterval(10*time.Millisecond))
		defer c.Close()

		ctx, stop := context.WithCancel(context.Background())
		defer stop()
		loopDone := startLoop(ctx, c)

		select {
		case p := <-tt.Written():
			assert.Equal(t, []byte{smoothie.StatusQuery}, p)
		case <-time.After(time.Second):
			t.Fatal("expected a status query within timeout")
		}

		stop()
		assert.ErrorIs(t, waitLoop(t, loopDone), context.Canceled)
	})

	t.Run("ErrLineTooLong on oversized line", func(t *testing.T) {
		tt := controller.NewTestTransport()
		c := newController(t, controller.NewConfigBuilder().
			WithDialer(controller.TestDialer{Transport: tt}).
			WithMaxLineLength(16))
		defer c.Close()

		loopDone := startLoop(context.Background(), c)
		tt.SendData(strings.Repeat("X", 64) + "\n")

		assert.ErrorIs(t, waitLoop(t, loopDone), controller.ErrLineTooLong)
	})

	t.Run("Handlers run before subscribers", func(t *testing.T) {
		tt := controller.NewTestTransport()
		c := newController(t, controller.NewConfigBuilder().WithDialer(controller.TestDialer{Transport: tt}))
		defer c.Close()

		var handled atomic.Int32
		unsubscribe := c.Handle(smoothie.KindOk, func(ev smoothie.Event) {
			handled.Add(1)
		})
		defer unsubscribe()

		events, cancel := c.Subscribe(smoothie.KindOk)
		defer cancel()

		loopDone := startLoop(context.Background(), c)
		tt.SendData("ok\n")

		receive(t, events)
		assert.Equal(t, int32(1), handled.Load())

		require.NoError(t, tt.Close())
		assert.ErrorIs(t, waitLoop(t, loopDone), io.EOF)
	})

	t.Run("Cancelled subscriber does not block the loop", func(t *testing.T) {
		tt := controller.NewTestTransport()
		c := newController(t, controller.NewConfigBuilder().
			WithDialer(controller.TestDialer{Transport: tt}).
			WithSubscriberBuffer(1))
		defer c.Close()

		_, cancelIdle := c.Subscribe()
		events, cancel := c.Subscribe()
		defer cancel()

		loopDone := startLoop(context.Background(), c)
		tt.SendData("ok\nok\nok\n")

		// The idle subscriber fills after the first event and holds the loop
		receive(t, events)
		cancelIdle()
		receive(t, events)
		receive(t, events)

		require.NoError(t, tt.Close())
		assert.ErrorIs(t, waitLoop(t, loopDone), io.EOF)
	})
}

func newController(t *testing.T, b *controller.ConfigBuilder) *controller.Controller {
	t.Helper()

	config, err := b.Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}
	c, err := controller.New(context.Background(), config)
	if err != nil {
		t.Fatalf("failed to create controller: %v", err)
	}
	return c
}

func startLoop(ctx context.Context, c *controller.Controller) <-chan error {
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- c.Loop(ctx)
	}()
	return loopDone
}

func waitLoop(t *testing.T, loopDone <-chan error) error {
	t.Helper()

	select {
	case err := <-loopDone:
		return err
	case <-time.After(time.Second):
		t.Fatal("expected Loop to return within timeout")
		return nil
	}
}

func receive(t *testing.T, events <-chan smoothie.Event) smoothie.Event {
	t.Helper()

	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("expected an event within timeout")
		return nil
	}
}
