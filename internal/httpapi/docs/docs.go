// Package docs holds the OpenAPI document for the local test API.
// Regenerate with `swag init -g cmd/sdworker/docs.go -o internal/httpapi/docs`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["health"],
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "ok", "schema": {"type": "string"}}
                }
            }
        },
        "/runsync": {
            "post": {
                "description": "Merges the input with txt2img defaults, forwards it to the local image API and returns its response.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Run a job synchronously",
                "parameters": [
                    {
                        "description": "Job with a txt2img input",
                        "name": "job",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.Job"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.RunResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 400},
                "error": {"type": "string", "example": "invalid JSON body"}
            }
        },
        "types.Job": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "example": "2f1e7f4c-sync-u1"},
                "input": {"type": "object"}
            }
        },
        "types.RunResponse": {
            "type": "object",
            "properties": {
                "executionTime": {"type": "integer", "example": 5321},
                "id": {"type": "string", "example": "test-7c1b6f5e-0d0f-4b6e-9f1a-1d2f3b4c5d6e"},
                "output": {"type": "object"},
                "status": {"type": "string", "example": "COMPLETED"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "sdworker local API",
	Description:      "Local test API for the txt2img serverless worker.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
