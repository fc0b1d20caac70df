/*
Package event provides a type-safe pub/sub event system for the CodeForge
execution engine.

The event system decouples the engine from its frontends: the permission
checker publishes approval requests without knowing who renders them, and the
process manager publishes lifecycle events without knowing who observes them.

# Architecture

The package is built on top of watermill's gochannel for infrastructure while
maintaining direct-call subscriber dispatch to preserve type information on
event data. It provides both synchronous and asynchronous publishing.

# Event Types

Permission events:
  - permission.required: an ASK verdict is waiting for a reply
  - permission.resolved: a pending request was answered

Process events:
  - process.started: a managed process was spawned
  - process.exited: a managed process reached a terminal state
  - process.killed: the kill path ran after a timeout or abort

Batch events:
  - batch.completed: a batch dispatch finished

# Basic Usage

Publishing events:

	event.Publish(event.Event{
		Type: event.ProcessStarted,
		Data: event.ProcessStartedData{ID: id, PID: pid, Command: cmd},
	})

Subscribing:

	unsubscribe := event.Subscribe(event.PermissionRequired, func(e event.Event) {
		data := e.Data.(event.PermissionRequiredData)
		fmt.Printf("approval needed: %s\n", data.Title)
	})
	defer unsubscribe()

# Subscriber Safety Guidelines

When using PublishSync, subscribers are called synchronously in the
publisher's goroutine. Subscribers must complete quickly, use non-blocking
channel sends, and never publish re-entrantly.

# Custom Event Bus

For testing or isolation, create instances with NewBus and reset global state
with Reset.

# Thread Safety

The event bus is safe for concurrent use. Asynchronous Publish creates a
goroutine per subscriber per event; PublishSync calls subscribers in the
current goroutine.
*/
package event
