package main

// General API documentation for swaggo. Regenerate with `swag init -g cmd/sdworker/docs.go -o internal/httpapi/docs`.
//
// @title           sdworker local API
// @version         1.0
// @description     Local test API for the txt2img serverless worker.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
