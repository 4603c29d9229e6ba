// Package sdapi talks to the local AUTOMATIC1111-compatible image generation API.
//
// A single Client is built at startup and shared by every job. Its transport
// retries connection failures and the configured transient statuses
// (502/503/504 by default) with exponential backoff, so callers issue one
// request and get back either the response or a *RetryError.
//
// Prober is separate: it uses a plain client and keeps polling until the
// service answers at all.
package sdapi
