//go:build !ocr

package parsers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structdoc/structdoc/pkg/logger"
)

func TestOCRStubParse(t *testing.T) {
	parser := NewOCRParser(nil, logger.NewRecorder())
	assert.Equal(t, StrategyOCR, parser.Strategy())
	assert.True(t, parser.SupportsFormat("scan.png"))
	assert.True(t, parser.SupportsFormat("scan.PDF"))
	assert.False(t, parser.SupportsFormat("notes.txt"))

	result, err := parser.Parse(context.Background(), writeTempFile(t, "scan.png", "pixels"))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], ErrOCRNotEnabled.Error())
	assert.Empty(t, result.Elements)
}

func TestOCRStubFactoryRegistration(t *testing.T) {
	assert.False(t, ocrAvailable)

	f := NewDefaultFactory(logger.NewRecorder())
	assert.False(t, f.IsRegistered(StrategyOCR))

	// An explicit registration still works, so callers asking for OCR get
	// the clear not-enabled error instead of an unknown-strategy miss.
	require.NoError(t, f.Register(func(config *ParserConfiguration, log logger.Logger) DocumentParser {
		return NewOCRParser(config, log)
	}))
	assert.True(t, f.IsRegistered(StrategyOCR))

	cfg := NewParserConfiguration()
	cfg.Strategy = StrategyOCR
	parser := f.CreateParser("scan.png", cfg)
	require.NotNil(t, parser)
	result, err := parser.Parse(context.Background(), writeTempFile(t, "scan.png", "pixels"))
	require.NoError(t, err)
	assert.False(t, result.Success)
}
