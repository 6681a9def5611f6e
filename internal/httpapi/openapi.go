package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// handleOpenAPI serves the API description. The document is built in
// place, the route surface is small enough that a generator would not
// pay for itself.
func (s *Server) handleOpenAPI(c echo.Context) error {
	nsgParam := map[string]any{
		"name":        "nsg",
		"in":          "path",
		"required":    true,
		"description": "Name of the security group, e.g. 'default'",
		"schema":      map[string]any{"type": "string"},
	}
	tagsParam := map[string]any{
		"name":        "tags",
		"in":          "query",
		"description": "Tag expression, e.g. 'blacklist' or 'blacklist,-temp'",
		"schema":      map[string]any{"type": "string"},
	}
	indexParam := map[string]any{
		"name":        "index",
		"in":          "query",
		"description": "Combined rule index",
		"schema":      map[string]any{"type": "integer"},
	}
	textResponse := func(desc string) map[string]any {
		return map[string]any{
			"200": map[string]any{
				"description": desc,
				"content":     map[string]any{"text/plain": map[string]any{"schema": map[string]any{"type": "string"}}},
			},
		}
	}

	doc := map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "Traefik Guard API",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/guard/{nsg}": map[string]any{
				"get": map[string]any{
					"summary":    "Validate the visitor geography, the verdict is the response status",
					"parameters": []any{nsgParam},
					"responses":  textResponse("reaction of the security group, annotated in headers"),
				},
			},
			"/nsg/{nsg}/rules": map[string]any{
				"get": map[string]any{
					"summary":    "List rules of the security group, one per line",
					"parameters": []any{nsgParam, tagsParam},
					"responses":  textResponse("rules in plain text"),
				},
				"post": map[string]any{
					"summary":    "Add rules from a plain text body, one per line",
					"parameters": []any{nsgParam},
					"requestBody": map[string]any{
						"content": map[string]any{"text/plain": map[string]any{"schema": map[string]any{"type": "string"}}},
					},
					"responses": textResponse("combined index of the last rule added"),
				},
				"put": map[string]any{
					"summary":    "Replace the addressed rules with the rule from the body",
					"parameters": []any{nsgParam, tagsParam, indexParam},
					"requestBody": map[string]any{
						"content": map[string]any{"text/plain": map[string]any{"schema": map[string]any{"type": "string"}}},
					},
					"responses": textResponse("OK"),
				},
				"delete": map[string]any{
					"summary":    "Delete the addressed rules",
					"parameters": []any{nsgParam, tagsParam, indexParam},
					"responses":  textResponse("OK"),
				},
			},
		},
		"components": map[string]any{
			"schemas": map[string]any{
				"HttpErrMessage": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"error":   map[string]any{"type": "string"},
						"message": map[string]any{"type": "string"},
					},
				},
			},
		},
	}
	return c.JSON(http.StatusOK, doc)
}
