package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/structdoc/structdoc/pkg/parsers"
)

// healthCheck provides a health check endpoint
// @Summary Health Check
// @Description Check the health status of the structdoc API server
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (s *Server) healthCheck(c *gin.Context) {
	strategies := make([]string, 0)
	for _, strategy := range s.factory.GetRegisteredParsers() {
		strategies = append(strategies, string(strategy))
	}

	health := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Version:    "1.0.0",
		Uptime:     time.Since(s.started).String(),
		Strategies: strategies,
	}

	c.JSON(http.StatusOK, health)
}

// redirectToSpec redirects root to the API specification
func (s *Server) redirectToSpec(c *gin.Context) {
	c.Redirect(http.StatusTemporaryRedirect, "/openapi.json")
}

// parseUpload handles parsing an uploaded document
// @Summary Parse Document Upload
// @Description Parse a multipart-uploaded document into typed elements
// @Tags parse
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Document to parse"
// @Param strategy formData string false "Parsing strategy"
// @Success 200 {object} ParseResponse
// @Failure 400 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Router /v1/parse [post]
func (s *Server) parseUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Missing file upload",
			Error:   err.Error(),
		})
		return
	}

	if limit := int64(s.config.API.MaxUploadMB) * 1024 * 1024; limit > 0 && header.Size > limit {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Code:    http.StatusRequestEntityTooLarge,
			Message: "Upload too large",
			Error:   fmt.Sprintf("file size %d exceeds limit %d", header.Size, limit),
		})
		return
	}

	var strategy *string
	if form := c.PostForm("strategy"); form != "" {
		strategy = &form
	}
	cfg, err := s.requestConfig(strategy, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid parse parameters",
			Error:   err.Error(),
		})
		return
	}

	// The upload keeps its original name in a scratch directory so
	// extension-based strategy resolution still applies.
	tempDir, err := os.MkdirTemp("", "structdoc-upload-")
	if err != nil {
		s.handleError(c, "Failed to stage upload", err)
		return
	}
	defer os.RemoveAll(tempDir)

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "upload"
	}
	dst := filepath.Join(tempDir, name)
	if err := c.SaveUploadedFile(header, dst); err != nil {
		s.handleError(c, "Failed to store upload", err)
		return
	}

	result := s.integration.ParseWithConfig(c.Request.Context(), dst, cfg)
	if result == nil {
		s.respondUnparsable(c, name)
		return
	}

	s.respondParseResult(c, result)
}

// parsePath handles parsing a document reachable by server-side path
// @Summary Parse Document by Path
// @Description Parse a document the server can reach on its filesystem
// @Tags parse
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ParsePathRequest true "Parse parameters"
// @Success 200 {object} ParseResponse
// @Failure 400 {object} ErrorResponse
// @Router /v1/parse/path [post]
func (s *Server) parsePath(c *gin.Context) {
	var req ParsePathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid request format",
			Error:   err.Error(),
		})
		return
	}

	cfg, err := s.requestConfig(req.Strategy, req.Overrides)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid parse parameters",
			Error:   err.Error(),
		})
		return
	}

	result := s.integration.ParseWithConfig(c.Request.Context(), req.FilePath, cfg)
	if result == nil {
		s.respondUnparsable(c, req.FilePath)
		return
	}

	s.respondParseResult(c, result)
}

// convertDocument parses a document and returns the extracted-content shape
func (s *Server) convertDocument(c *gin.Context) {
	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid request format",
			Error:   err.Error(),
		})
		return
	}

	cfg, err := s.requestConfig(req.Strategy, req.Overrides)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid parse parameters",
			Error:   err.Error(),
		})
		return
	}

	result := s.integration.ParseWithConfig(c.Request.Context(), req.FilePath, cfg)
	if result == nil {
		s.respondUnparsable(c, req.FilePath)
		return
	}

	for k, v := range req.Metadata {
		result.Metadata[k] = v
	}

	content := s.integration.ConvertToExtractedContent(result)
	if content == nil {
		s.respondUnparsable(c, req.FilePath)
		return
	}

	c.JSON(http.StatusOK, ConvertResponse{
		Code:    http.StatusOK,
		Message: "Document converted successfully",
		Data:    content,
	})
}

// listStrategies returns the registered parsing strategies
func (s *Server) listStrategies(c *gin.Context) {
	strategies := make([]string, 0)
	for _, strategy := range s.factory.GetRegisteredParsers() {
		strategies = append(strategies, string(strategy))
	}

	c.JSON(http.StatusOK, StrategiesResponse{
		Code:    http.StatusOK,
		Message: "Strategies retrieved successfully",
		Data:    &strategies,
	})
}

// listExtensions returns the supported extensions and their strategy order
func (s *Server) listExtensions(c *gin.Context) {
	extensions := s.factory.GetSupportedExtensions()
	mappings := make([]ExtensionMapping, 0, len(extensions))
	for _, ext := range extensions {
		strategies := make([]string, 0)
		for _, strategy := range s.factory.GetStrategiesForExtension(ext) {
			strategies = append(strategies, string(strategy))
		}
		mappings = append(mappings, ExtensionMapping{
			Extension:  ext,
			Strategies: strategies,
		})
	}

	c.JSON(http.StatusOK, ExtensionsResponse{
		Code:    http.StatusOK,
		Message: "Extensions retrieved successfully",
		Data:    &mappings,
	})
}

// getStats returns integration-level parsing statistics
func (s *Server) getStats(c *gin.Context) {
	stats := s.integration.GetStats()

	c.JSON(http.StatusOK, StatsResponse{
		Code:    http.StatusOK,
		Message: "Stats retrieved successfully",
		Data:    stats,
	})
}

// Helper functions

// requestConfig builds the per-request parser configuration from the
// configured defaults, the sparse overrides and an optional strategy name.
func (s *Server) requestConfig(strategy *string, overrides *parsers.ConfigurationOverrides) (*parsers.ParserConfiguration, error) {
	base := parsers.NewParserConfiguration()
	if s.config.Parser != nil {
		base = s.config.Parser.ParserConfiguration()
	}
	s.config.OCR.ApplyTo(base)

	cfg := overrides.Apply(base)
	if strategy != nil && *strategy != "" {
		requested := parsers.ParsingStrategy(*strategy)
		if !parsers.IsValidStrategy(requested) {
			return nil, fmt.Errorf("unknown strategy: %s", *strategy)
		}
		cfg.Strategy = requested
	}
	return cfg, nil
}

// respondParseResult renders a parse result. Parse-level failures are
// reported inside the result body, not as transport errors.
func (s *Server) respondParseResult(c *gin.Context, result *parsers.ParseResult) {
	message := "Document parsed successfully"
	if !result.Success {
		message = "Document parsed with errors"
	}

	data := result.ToMap()
	c.JSON(http.StatusOK, ParseResponse{
		Code:    http.StatusOK,
		Message: message,
		Data:    &data,
	})
}

// respondUnparsable reports that no parser produced a result for the file
func (s *Server) respondUnparsable(c *gin.Context, filePath string) {
	c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Code:    http.StatusUnprocessableEntity,
		Message: "Unable to parse document",
		Error:   fmt.Sprintf("no parser produced a result for %s", filepath.Base(filePath)),
		Details: fmt.Sprintf("Request ID: %s", c.GetString("request_id")),
	})
}

// handleError provides consistent error handling
func (s *Server) handleError(c *gin.Context, message string, err error) {
	requestID := c.GetString("request_id")

	s.logger.Error(message, err, map[string]interface{}{
		"request_id": requestID,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
	})

	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Code:    http.StatusInternalServerError,
		Message: message,
		Error:   err.Error(),
		Details: fmt.Sprintf("Request ID: %s", requestID),
	})
}
