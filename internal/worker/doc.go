// Package worker holds the job-facing side of sdworker: the Forwarder that
// merges a job input with txt2img defaults and sends it to the local API, the
// Handler the serverless runtime calls for every job, and the best-effort
// startup settings push.
//
// Nothing in this package returns an error to the runtime. Failures become a
// single-key {"error": "..."} object.
package worker
