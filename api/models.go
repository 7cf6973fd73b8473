package api

import "github.com/structdoc/structdoc/pkg/parsers"

// BaseResponse represents the base structure for all API responses
type BaseResponse[T any] struct {
	Code    int    `json:"code" example:"200"`
	Message string `json:"message" example:"Operation successful"`
	Data    *T     `json:"data,omitempty"`
}

// ParsePathRequest asks the server to parse a file it can reach by path
type ParsePathRequest struct {
	FilePath  string                          `json:"file_path" binding:"required" example:"/data/reports/q3.pdf"`
	Strategy  *string                         `json:"strategy,omitempty" example:"pdf_text"`
	Overrides *parsers.ConfigurationOverrides `json:"overrides,omitempty"`
}

// ConvertRequest asks for a parse flattened into the extracted-content shape
type ConvertRequest struct {
	FilePath  string                          `json:"file_path" binding:"required" example:"/data/reports/q3.pdf"`
	Strategy  *string                         `json:"strategy,omitempty" example:"auto"`
	Overrides *parsers.ConfigurationOverrides `json:"overrides,omitempty"`
	Metadata  map[string]interface{}          `json:"metadata,omitempty"`
}

// TokenRequest represents a token issuance request
type TokenRequest struct {
	ClientID string `json:"client_id" binding:"required" example:"ingest-worker"`
	Role     string `json:"role,omitempty" example:"client"`
}

// TokenResponse represents a token issuance response
type TokenResponse struct {
	Token     string `json:"token"`
	ClientID  string `json:"client_id"`
	ExpiresAt string `json:"expires_at"`
}

// ExtensionMapping describes one extension and its strategy candidates in order
type ExtensionMapping struct {
	Extension  string   `json:"extension" example:".pdf"`
	Strategies []string `json:"strategies" example:"pdf_text,universal,ocr"`
}

// Response types
type ParseResponse = BaseResponse[map[string]interface{}]
type ConvertResponse = BaseResponse[parsers.ExtractedContent]
type TokenIssueResponse = BaseResponse[TokenResponse]
type StrategiesResponse = BaseResponse[[]string]
type ExtensionsResponse = BaseResponse[[]ExtensionMapping]
type StatsResponse = BaseResponse[parsers.ServiceStats]

// HealthResponse represents health check response
type HealthResponse struct {
	Status     string   `json:"status"`
	Timestamp  string   `json:"timestamp"`
	Version    string   `json:"version"`
	Uptime     string   `json:"uptime"`
	Strategies []string `json:"strategies"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}
