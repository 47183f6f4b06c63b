package controller

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"i4.energy/across/cncline/smoothie"
)

// Controller is a connection to a Smoothieware CNC controller. A single
// event loop reads the transport, decodes every line in the order it was
// received and delivers the resulting events to subscribers.
type Controller struct {
	// transport provides the physical connection (serial, TCP, etc.)
	transport Transport
	// config contains the controller settings
	config Config
	// dispatcher decodes lines and runs synchronous handlers
	dispatcher *smoothie.Dispatcher
	logger     *slog.Logger

	mu          sync.Mutex
	closed      bool
	loopRunning bool
	// loopCancel cancels the running loop, if any
	loopCancel context.CancelFunc
	subs       []*subscriber
}

// subscriber is a channel subscription for a set of event kinds.
type subscriber struct {
	// kinds is nil for a subscription to every kind
	kinds map[smoothie.Kind]bool
	ch    chan smoothie.Event
	// done is closed when the subscriber cancels
	done chan struct{}
	once sync.Once
}

func (s *subscriber) wants(k smoothie.Kind) bool {
	return s.kinds == nil || s.kinds[k]
}

// New creates a Controller with the given configuration and dials the
// transport. The event loop is not started; call Loop.
func New(ctx context.Context, config Config) (*Controller, error) {
	if config.dialer == nil {
		return nil, ErrNoDialer
	}
	config.setDefaults()

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial controller: %w", err)
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	parser := smoothie.NewParser(smoothie.WithLogger(config.logger))
	return &Controller{
		transport:  transport,
		config:     config,
		dispatcher: smoothie.NewDispatcher(parser),
		logger:     config.logger,
	}, nil
}

// Subscribe returns a channel receiving the events of the given kinds, or
// of every kind when none are given. Events arrive in wire order. The
// channel is closed when the running Loop returns, or by Close when no
// loop is running.
//
// The loop waits for a subscriber with a full channel, so every
// subscriber must keep reading or call cancel.
func (c *Controller) Subscribe(kinds ...smoothie.Kind) (events <-chan smoothie.Event, cancel func()) {
	s := &subscriber{
		ch:   make(chan smoothie.Event, c.config.subscriberBuffer),
		done: make(chan struct{}),
	}
	if len(kinds) > 0 {
		s.kinds = make(map[smoothie.Kind]bool, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = true
		}
	}

	c.mu.Lock()
	closed := c.closed
	if !closed {
		c.subs = append(c.subs, s)
	}
	c.mu.Unlock()

	if closed {
		close(s.ch)
	}

	return s.ch, func() {
		s.once.Do(func() { close(s.done) })
		c.mu.Lock()
		c.subs = slices.DeleteFunc(c.subs, func(o *subscriber) bool { return o == s })
		c.mu.Unlock()
	}
}

// Handle registers h to run on the loop goroutine for every event of the
// given kind, before channel subscribers see it. h must not block.
func (c *Controller) Handle(kind smoothie.Kind, h smoothie.Handler) (unsubscribe func()) {
	return c.dispatcher.Subscribe(kind, h)
}

// Loop is the event loop that handles all transport I/O. It must be
// called once after New and runs until the context is cancelled, the
// transport ends, or Close is called:
//
//  1. Reads and splits the byte stream into lines
//  2. Decodes each line into exactly one event
//  3. Runs handlers and feeds subscriber channels, in wire order
//  4. Sends a status query every status interval, if configured
//
// Loop is the only reader of the transport. It returns io.EOF when the
// transport reaches end of file and the context error on cancellation.
//
// Usage:
//
//	c, err := controller.New(ctx, config)
//	if err != nil { return err }
//
//	events, cancel := c.Subscribe(smoothie.KindStatus)
//	defer cancel()
//	go c.Loop(ctx)
func (c *Controller) Loop(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	if c.loopRunning {
		c.mu.Unlock()
		return ErrLoopRunning
	}
	c.loopRunning = true
	ctx, cancel := context.WithCancel(ctx)
	c.loopCancel = cancel
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.loopRunning = false
		c.loopCancel = nil
		subs := c.subs
		c.subs = nil
		c.mu.Unlock()
		for _, s := range subs {
			close(s.ch)
		}
	}()

	scanner := bufio.NewScanner(c.transport)
	scanner.Buffer(make([]byte, 0, min(c.config.maxLineLength, 4096)), c.config.maxLineLength)
	scanner.Split(smoothie.Splitter)

	// Channels for lines and errors from the scanner goroutine
	lines := make(chan string, 10)
	scanErrs := make(chan error, 1)

	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				err = ErrLineTooLong
			}
			scanErrs <- err
		}
	}()

	var poll <-chan time.Time
	if c.config.statusInterval > 0 {
		ticker := time.NewTicker(c.config.statusInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-poll:
			if _, err := c.transport.Write([]byte{smoothie.StatusQuery}); err != nil {
				return fmt.Errorf("write status query: %w", err)
			}

		case line, ok := <-lines:
			if !ok {
				// Scanner stopped - cancellation wins over the read error
				// a closed transport produces
				if ctx.Err() != nil {
					return ctx.Err()
				}
				select {
				case err := <-scanErrs:
					return fmt.Errorf("read error: %w", err)
				default:
				}
				return io.EOF
			}

			ev := c.dispatcher.Dispatch(line)
			switch ev.Kind() {
			case smoothie.KindAlarm, smoothie.KindError:
				c.logger.Warn("Controller reported a problem", "kind", ev.Kind(), "raw", ev.RawLine())
			case smoothie.KindOthers:
				c.logger.Debug("Unrecognized line", "raw", ev.RawLine())
			}

			if err := c.deliver(ctx, ev); err != nil {
				return err
			}
		}
	}
}

// deliver hands ev to every interested subscriber, waiting for room in
// each channel.
func (c *Controller) deliver(ctx context.Context, ev smoothie.Event) error {
	c.mu.Lock()
	subs := slices.Clone(c.subs)
	c.mu.Unlock()

	for _, s := range subs {
		if !s.wants(ev.Kind()) {
			continue
		}
		select {
		case s.ch <- ev:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close shuts down the controller connection. It stops the event loop and
// closes the transport. After Close the Controller cannot be reused.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.closed = true
	cancel := c.loopCancel
	var subs []*subscriber
	if !c.loopRunning {
		subs = c.subs
		c.subs = nil
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, s := range subs {
		close(s.ch)
	}

	return c.transport.Close()
}

// String identifies the controller in logs.
func (c *Controller) String() string {
	return fmt.Sprintf("controller(%T)", c.transport)
}
