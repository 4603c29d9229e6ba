// Package types holds the JSON payloads exchanged with the serverless runtime
// and the local image generation API.
package types
