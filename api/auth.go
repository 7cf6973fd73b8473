package api

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthManager issues and validates the bearer tokens protecting /v1 routes.
// Tokens are stateless HS256 JWTs; nothing is stored server-side.
type AuthManager struct {
	jwtSecret []byte
	expiry    time.Duration
}

// Claims represents JWT claims
type Claims struct {
	ClientID string `json:"client_id"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// NewAuthManager creates an authentication manager. With an empty secret a
// random one is generated, so tokens stay valid only for the process
// lifetime; configure api.jwt_secret to survive restarts.
func NewAuthManager(secret string, expiry time.Duration) *AuthManager {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		rand.Read(key)
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &AuthManager{
		jwtSecret: key,
		expiry:    expiry,
	}
}

// GenerateToken generates a signed JWT for a client
func (am *AuthManager) GenerateToken(clientID, role string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(am.expiry)
	claims := &Claims{
		ClientID: clientID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "structdoc-api",
			Subject:   clientID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(am.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign JWT: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateToken validates a JWT and returns the claims
func (am *AuthManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return am.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// issueToken handles token issuance for API clients
func (s *Server) issueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid request format",
			Error:   err.Error(),
		})
		return
	}

	role := req.Role
	if role == "" {
		role = "client"
	}

	token, expiresAt, err := s.auth.GenerateToken(req.ClientID, role)
	if err != nil {
		s.handleError(c, "Failed to generate token", err)
		return
	}

	response := TokenResponse{
		Token:     token,
		ClientID:  req.ClientID,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, TokenIssueResponse{
		Code:    http.StatusOK,
		Message: "Token issued successfully",
		Data:    &response,
	})
}

// jwtAuthMiddleware enforces bearer tokens on protected routes
func (s *Server) jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.isPublicEndpoint(c.Request.URL.Path) {
			c.Next()
			return
		}

		tokenString := extractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Code:    http.StatusUnauthorized,
				Message: "Authorization required",
				Error:   "missing bearer token",
			})
			return
		}

		claims, err := s.auth.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Code:    http.StatusUnauthorized,
				Message: "Invalid token",
				Error:   err.Error(),
			})
			return
		}

		c.Set("client_id", claims.ClientID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// Helper functions

func extractTokenFromHeader(authHeader string) string {
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}

func (s *Server) isPublicEndpoint(path string) bool {
	publicPaths := []string{
		"/health",
		"/",
		"/openapi.json",
		"/auth/token",
	}

	for _, publicPath := range publicPaths {
		if path == publicPath {
			return true
		}
	}

	return false
}
