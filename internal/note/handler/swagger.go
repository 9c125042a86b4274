package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger serves the OpenAPI document of the notes API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(r gin.IRouter) {
	r.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})
	r.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>gonotes API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "gonotes", "version": "v0.1.0" },
  "components": {
    "schemas": {
      "Edit": {"type":"object","properties":{"expectedVersion":{"type":"integer"},"title":{"type":"string"},"content":{"type":"string"},"markdown":{"type":"string"},"tags":{"type":"array","items":{"type":"string"}},"editor":{"type":"string"}}}
    }
  },
  "paths": {
    "/api/notes": {
      "get": { "summary": "List notes", "responses": { "200": { "description": "notes" } } },
      "post": { "summary": "Create a note at version 1", "responses": { "201": { "description": "created note" }, "400": { "description": "missing editor" } } }
    },
    "/api/notes/{id}": {
      "get": { "summary": "Get a note", "responses": { "200": { "description": "note" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete a note", "responses": { "204": { "description": "deleted" }, "404": { "description": "not found" } } },
      "put": {
        "summary": "Update a note if expectedVersion is still current",
        "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Edit"}}}},
        "responses": { "200": { "description": "updated note" }, "404": { "description": "not found" }, "409": { "description": "version conflict with report and optional draftKey" }, "408": { "description": "cancelled" }, "503": { "description": "storage unavailable, retryable" } }
      }
    },
    "/api/notes/{id}/conflicts": {
      "post": { "summary": "Compare an edit with the stored note without writing", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Edit"}}}}, "responses": { "200": { "description": "conflict report" }, "404": { "description": "not found" } } }
    },
    "/api/notes/{id}/force": {
      "put": { "summary": "Overwrite a note regardless of version", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Edit"}}}}, "responses": { "200": { "description": "updated note" }, "404": { "description": "not found" } } }
    },
    "/api/notes/{id}/drafts/{draft}": {
      "get": { "summary": "Fetch an archived rejected edit and a presigned URL", "responses": { "200": { "description": "draft" }, "404": { "description": "not found or archive not configured" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
