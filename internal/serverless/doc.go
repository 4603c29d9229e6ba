// Package serverless runs the job handler the way the serverless platform's
// SDK does: a one-off local test job, a local HTTP test API, or the
// production loop that pulls jobs from the platform's webhooks and posts the
// results back.
package serverless
