// Package dispatch routes queued messages to their handlers.
//
// Each message kind registers a processing function and a failure
// function. A handler returning nil (including early returns on
// disqualifying conditions) acknowledges the message; a handler error or
// panic routes to the failure function and the message is still
// considered handled. Nothing a handler does can stop the worker pool
// from consuming subsequent messages, and no retry policy lives here;
// requeueing, if any, belongs to the queue transport.
//
// Queues come in two drivers: an in-memory channel queue for tests and
// embedded runs, and a Redis list for distributed workers.
package dispatch
