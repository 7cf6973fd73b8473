package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getOpenAPISpec returns the complete OpenAPI 3.1.0 specification for the API
func (s *Server) getOpenAPISpec(c *gin.Context) {
	spec := map[string]interface{}{
		"openapi": "3.1.0",
		"info": map[string]interface{}{
			"title":       "structdoc REST API",
			"description": "A REST API for parsing documents into typed structural elements.",
			"version":     "1.0.0",
		},
		"servers": []map[string]interface{}{
			{
				"url":         "http://localhost:8080",
				"description": "Development server",
			},
		},
		"paths":      s.getOpenAPIPaths(),
		"components": s.getOpenAPIComponents(),
	}

	c.JSON(http.StatusOK, spec)
}

// getOpenAPIPaths returns all API paths for the OpenAPI spec
func (s *Server) getOpenAPIPaths() map[string]interface{} {
	return map[string]interface{}{
		"/health": map[string]interface{}{
			"get": map[string]interface{}{
				"summary":     "Health Check",
				"description": "Check the health status of the API server",
				"tags":        []string{"Health"},
				"responses": map[string]interface{}{
					"200": s.jsonResponse("Server is healthy", "HealthResponse"),
				},
			},
		},
		"/auth/token": map[string]interface{}{
			"post": map[string]interface{}{
				"summary":     "Issue Token",
				"description": "Issue a bearer token for the protected endpoints",
				"tags":        []string{"Auth"},
				"requestBody": s.jsonRequestBody("TokenRequest"),
				"responses": map[string]interface{}{
					"200": s.jsonResponse("Token issued successfully", "TokenResponse"),
					"400": s.errorResponse("Invalid request format"),
				},
			},
		},
		"/v1/parse": map[string]interface{}{
			"post": map[string]interface{}{
				"summary":     "Parse Document Upload",
				"description": "Parse a multipart-uploaded document into typed elements",
				"tags":        []string{"Parse"},
				"security":    []map[string]interface{}{{"BearerAuth": []string{}}},
				"requestBody": map[string]interface{}{
					"required": true,
					"content": map[string]interface{}{
						"multipart/form-data": map[string]interface{}{
							"schema": map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"file":     map[string]interface{}{"type": "string", "format": "binary"},
									"strategy": map[string]interface{}{"type": "string"},
								},
								"required": []string{"file"},
							},
						},
					},
				},
				"responses": map[string]interface{}{
					"200": s.jsonResponse("Parse result", "ParseResult"),
					"400": s.errorResponse("Missing file upload"),
					"413": s.errorResponse("Upload too large"),
					"422": s.errorResponse("Unable to parse document"),
				},
			},
		},
		"/v1/parse/path": map[string]interface{}{
			"post": map[string]interface{}{
				"summary":     "Parse Document by Path",
				"description": "Parse a document the server can reach on its filesystem",
				"tags":        []string{"Parse"},
				"security":    []map[string]interface{}{{"BearerAuth": []string{}}},
				"requestBody": s.jsonRequestBody("ParsePathRequest"),
				"responses": map[string]interface{}{
					"200": s.jsonResponse("Parse result", "ParseResult"),
					"400": s.errorResponse("Invalid request format"),
					"422": s.errorResponse("Unable to parse document"),
				},
			},
		},
		"/v1/convert": map[string]interface{}{
			"post": map[string]interface{}{
				"summary":     "Convert Document",
				"description": "Parse a document and flatten it into the extracted-content shape",
				"tags":        []string{"Parse"},
				"security":    []map[string]interface{}{{"BearerAuth": []string{}}},
				"requestBody": s.jsonRequestBody("ConvertRequest"),
				"responses": map[string]interface{}{
					"200": s.jsonResponse("Extracted content", "ExtractedContent"),
					"400": s.errorResponse("Invalid request format"),
					"422": s.errorResponse("Unable to parse document"),
				},
			},
		},
		"/v1/strategies": map[string]interface{}{
			"get": map[string]interface{}{
				"summary":     "List Strategies",
				"description": "List the parsing strategies registered with the factory",
				"tags":        []string{"Discovery"},
				"security":    []map[string]interface{}{{"BearerAuth": []string{}}},
				"responses": map[string]interface{}{
					"200": s.jsonResponse("Registered strategies", "StrategiesResponse"),
				},
			},
		},
		"/v1/extensions": map[string]interface{}{
			"get": map[string]interface{}{
				"summary":     "List Extensions",
				"description": "List supported file extensions with their strategy candidates",
				"tags":        []string{"Discovery"},
				"security":    []map[string]interface{}{{"BearerAuth": []string{}}},
				"responses": map[string]interface{}{
					"200": s.jsonResponse("Supported extensions", "ExtensionsResponse"),
				},
			},
		},
		"/v1/stats": map[string]interface{}{
			"get": map[string]interface{}{
				"summary":     "Parsing Statistics",
				"description": "Totals and per-strategy usage since startup",
				"tags":        []string{"Discovery"},
				"security":    []map[string]interface{}{{"BearerAuth": []string{}}},
				"responses": map[string]interface{}{
					"200": s.jsonResponse("Service statistics", "ServiceStats"),
				},
			},
		},
	}
}

// getOpenAPIComponents returns the schema components for the OpenAPI spec
func (s *Server) getOpenAPIComponents() map[string]interface{} {
	return map[string]interface{}{
		"securitySchemes": map[string]interface{}{
			"BearerAuth": map[string]interface{}{
				"type":         "http",
				"scheme":       "bearer",
				"bearerFormat": "JWT",
			},
		},
		"schemas": map[string]interface{}{
			"HealthResponse": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"status":     map[string]interface{}{"type": "string"},
					"timestamp":  map[string]interface{}{"type": "string"},
					"version":    map[string]interface{}{"type": "string"},
					"uptime":     map[string]interface{}{"type": "string"},
					"strategies": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				},
			},
			"TokenRequest": map[string]interface{}{
				"type":     "object",
				"required": []string{"client_id"},
				"properties": map[string]interface{}{
					"client_id": map[string]interface{}{"type": "string"},
					"role":      map[string]interface{}{"type": "string"},
				},
			},
			"TokenResponse": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"token":      map[string]interface{}{"type": "string"},
					"client_id":  map[string]interface{}{"type": "string"},
					"expires_at": map[string]interface{}{"type": "string"},
				},
			},
			"ParsePathRequest": map[string]interface{}{
				"type":     "object",
				"required": []string{"file_path"},
				"properties": map[string]interface{}{
					"file_path": map[string]interface{}{"type": "string"},
					"strategy":  map[string]interface{}{"type": "string", "enum": []string{"auto", "pdf_text", "universal", "ocr", "remote"}},
					"overrides": map[string]interface{}{"type": "object"},
				},
			},
			"ConvertRequest": map[string]interface{}{
				"type":     "object",
				"required": []string{"file_path"},
				"properties": map[string]interface{}{
					"file_path": map[string]interface{}{"type": "string"},
					"strategy":  map[string]interface{}{"type": "string"},
					"overrides": map[string]interface{}{"type": "object"},
					"metadata":  map[string]interface{}{"type": "object"},
				},
			},
			"ParseResult": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"success":         map[string]interface{}{"type": "boolean"},
					"document":        map[string]interface{}{"type": "object"},
					"elements":        map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "object"}},
					"metadata":        map[string]interface{}{"type": "object"},
					"quality":         map[string]interface{}{"type": "object"},
					"errors":          map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"warnings":        map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"strategy_used":   map[string]interface{}{"type": "string"},
					"processing_time": map[string]interface{}{"type": "number"},
				},
			},
			"ExtractedContent": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text_elements":   map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "object"}},
					"tables":          map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "object"}},
					"images":          map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "object"}},
					"metadata":        map[string]interface{}{"type": "object"},
					"extraction_time": map[string]interface{}{"type": "number"},
					"quality_score":   map[string]interface{}{"type": "number"},
				},
			},
			"StrategiesResponse": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"code":    map[string]interface{}{"type": "integer"},
					"message": map[string]interface{}{"type": "string"},
					"data":    map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				},
			},
			"ExtensionsResponse": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"code":    map[string]interface{}{"type": "integer"},
					"message": map[string]interface{}{"type": "string"},
					"data":    map[string]interface{}{"type": "array", "items": map[string]interface{}{"$ref": "#/components/schemas/ExtensionMapping"}},
				},
			},
			"ExtensionMapping": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"extension":  map[string]interface{}{"type": "string"},
					"strategies": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				},
			},
			"ServiceStats": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"total_documents_parsed":  map[string]interface{}{"type": "integer"},
					"total_elements_produced": map[string]interface{}{"type": "integer"},
					"total_parse_time":        map[string]interface{}{"type": "integer"},
					"average_parse_time":      map[string]interface{}{"type": "integer"},
					"error_count":             map[string]interface{}{"type": "integer"},
					"strategy_usage":          map[string]interface{}{"type": "object"},
				},
			},
			"ErrorResponse": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"code":    map[string]interface{}{"type": "integer"},
					"message": map[string]interface{}{"type": "string"},
					"error":   map[string]interface{}{"type": "string"},
					"details": map[string]interface{}{"type": "string"},
				},
			},
		},
	}
}

// jsonRequestBody builds a required JSON request body referencing a schema
func (s *Server) jsonRequestBody(schema string) map[string]interface{} {
	return map[string]interface{}{
		"required": true,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]interface{}{
					"$ref": "#/components/schemas/" + schema,
				},
			},
		},
	}
}

// jsonResponse builds a JSON response entry referencing a schema
func (s *Server) jsonResponse(description, schema string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]interface{}{
					"$ref": "#/components/schemas/" + schema,
				},
			},
		},
	}
}

// errorResponse builds an error response entry
func (s *Server) errorResponse(description string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]interface{}{
					"$ref": "#/components/schemas/ErrorResponse",
				},
			},
		},
	}
}
