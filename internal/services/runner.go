package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"smartcage-backend/internal/models"
)

// RunnerConfig holds configuration for the processing loop
type RunnerConfig struct {
	DrainTimeout  time.Duration // bound on each drain of inbound messages
	LoopIdle      time.Duration // pause between iterations
	CommandBuffer int
}

// DefaultRunnerConfig returns default configuration
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		DrainTimeout:  100 * time.Millisecond,
		LoopIdle:      100 * time.Millisecond,
		CommandBuffer: 16,
	}
}

type command struct {
	ctx  context.Context // caller's context
	fn   func(ctx context.Context, s *State) error
	done chan error
}

// Runner owns the State and runs the cooperative processing loop:
// drain messages and commands, sync shared state, idle.
type Runner struct {
	state    *State
	pipeline *Pipeline
	messages <-chan models.Message
	commands chan command
	config   RunnerConfig
}

// NewRunner creates a new processing loop
func NewRunner(state *State, pipeline *Pipeline, messages <-chan models.Message, config RunnerConfig) *Runner {
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = 100 * time.Millisecond
	}
	if config.CommandBuffer <= 0 {
		config.CommandBuffer = 16
	}
	return &Runner{
		state:    state,
		pipeline: pipeline,
		messages: messages,
		commands: make(chan command, config.CommandBuffer),
		config:   config,
	}
}

// Snapshot returns the latest published state for observers
func (r *Runner) Snapshot() Snapshot {
	return r.state.Snapshot()
}

// Start runs the loop until the context is cancelled
func (r *Runner) Start(ctx context.Context) {
	log.Println("Runner: Starting...")
	log.Printf("Runner: drain=%v idle=%v", r.config.DrainTimeout, r.config.LoopIdle)

	r.state.Bootstrap(ctx)

	for {
		if !r.RunOnce(ctx) {
			log.Println("Runner: Shutdown complete")
			return
		}

		if r.config.LoopIdle > 0 {
			select {
			case <-ctx.Done():
				log.Println("Runner: Shutdown complete")
				return
			case <-time.After(r.config.LoopIdle):
			}
		}
	}
}

// RunOnce performs one drain and sync. It returns false once the context is done.
func (r *Runner) RunOnce(ctx context.Context) bool {
	if !r.drain(ctx) {
		return false
	}
	r.state.Sync(ctx)
	return ctx.Err() == nil
}

// drain handles inbound messages and queued commands for at most DrainTimeout
func (r *Runner) drain(ctx context.Context) bool {
	deadline := time.NewTimer(r.config.DrainTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return true
		case msg, ok := <-r.messages:
			if !ok {
				log.Println("Runner: Inbound channel closed")
				r.messages = nil
				continue
			}
			r.pipeline.Handle(ctx, msg)
		case cmd := <-r.commands:
			cmd.done <- r.exec(ctx, cmd)
		}
	}
}

func (r *Runner) exec(ctx context.Context, cmd command) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("command panicked: %v", p)
			log.Printf("Runner: %v", err)
		}
	}()
	// the caller already gave up waiting
	if err := cmd.ctx.Err(); err != nil {
		return err
	}
	return cmd.fn(ctx, r.state)
}

// Do runs fn on the loop goroutine and waits for its result
func (r *Runner) Do(ctx context.Context, fn func(ctx context.Context, s *State) error) error {
	cmd := command{ctx: ctx, fn: fn, done: make(chan error, 1)}

	select {
	case r.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
