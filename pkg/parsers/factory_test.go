package parsers

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structdoc/structdoc/pkg/logger"
)

type fakeParser struct {
	BaseDocumentParser
}

func (p *fakeParser) Parse(ctx context.Context, filePath string) (*ParseResult, error) {
	return NewParseResult(p.Strategy()), nil
}

func fakeConstructor(strategy ParsingStrategy, extensions ...string) ParserConstructor {
	return func(config *ParserConfiguration, log logger.Logger) DocumentParser {
		return &fakeParser{
			BaseDocumentParser: NewBaseDocumentParser(strategy, extensions, config, log),
		}
	}
}

func TestFactoryRegister(t *testing.T) {
	t.Run("NilConstructor", func(t *testing.T) {
		f := NewFactory(logger.NewRecorder())
		err := f.Register(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "constructor cannot be nil")
	})

	t.Run("ConstructorReturningNil", func(t *testing.T) {
		f := NewFactory(logger.NewRecorder())
		err := f.Register(func(config *ParserConfiguration, log logger.Logger) DocumentParser {
			return nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "returned nil")
	})

	t.Run("InvalidStrategyRejected", func(t *testing.T) {
		f := NewFactory(logger.NewRecorder())
		err := f.Register(fakeConstructor(ParsingStrategy("bogus"), ".txt"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid strategy")
		assert.Empty(t, f.GetRegisteredParsers())
	})

	t.Run("KeyDerivedFromParserStrategy", func(t *testing.T) {
		f := NewFactory(logger.NewRecorder())
		require.NoError(t, f.Register(fakeConstructor(StrategyRemote, ".png")))
		assert.True(t, f.IsRegistered(StrategyRemote))
		assert.Equal(t, []ParsingStrategy{StrategyRemote}, f.GetRegisteredParsers())
	})

	t.Run("LastRegistrationWins", func(t *testing.T) {
		f := NewFactory(logger.NewRecorder())
		require.NoError(t, f.Register(fakeConstructor(StrategyUniversal, ".first")))
		require.NoError(t, f.Register(fakeConstructor(StrategyUniversal, ".second")))

		cfg := NewParserConfiguration()
		cfg.Strategy = StrategyUniversal
		parser := f.CreateParser("anything.first", cfg)
		require.NotNil(t, parser)
		assert.Equal(t, []string{".second"}, parser.SupportedExtensions())
	})
}

func TestNewDefaultFactory(t *testing.T) {
	f := NewDefaultFactory(logger.NewRecorder())

	assert.True(t, f.IsRegistered(StrategyUniversal))
	assert.True(t, f.IsRegistered(StrategyPDFText))
	assert.Equal(t, ocrAvailable, f.IsRegistered(StrategyOCR))

	parser := f.CreateParser("notes.txt", nil)
	require.NotNil(t, parser)
	assert.Equal(t, StrategyUniversal, parser.Strategy())
}

func TestCreateParserExplicitStrategy(t *testing.T) {
	t.Run("ExtensionIgnored", func(t *testing.T) {
		f := NewDefaultFactory(logger.NewRecorder())
		cfg := NewParserConfiguration()
		cfg.Strategy = StrategyPDFText

		parser := f.CreateParser("notes.txt", cfg)
		require.NotNil(t, parser)
		assert.Equal(t, StrategyPDFText, parser.Strategy())
	})

	t.Run("UnregisteredStrategyIsNil", func(t *testing.T) {
		rec := logger.NewRecorder()
		f := NewFactory(rec)
		cfg := NewParserConfiguration()
		cfg.Strategy = StrategyRemote

		assert.Nil(t, f.CreateParser("scan.png", cfg))
		assert.True(t, rec.HasMessage(logger.LevelWarn, "no parser registered for strategy"))
	})
}

func TestCreateParserAutoResolution(t *testing.T) {
	t.Run("FirstRegisteredCandidateWins", func(t *testing.T) {
		f := NewFactory(logger.NewRecorder())
		require.NoError(t, f.Register(fakeConstructor(StrategyUniversal, ".txt")))
		require.NoError(t, f.Register(fakeConstructor(StrategyPDFText, ".pdf")))

		parser := f.CreateParser("report.pdf", nil)
		require.NotNil(t, parser)
		assert.Equal(t, StrategyPDFText, parser.Strategy())
	})

	t.Run("UnknownExtensionDefaultsToUniversal", func(t *testing.T) {
		rec := logger.NewRecorder()
		f := NewFactory(rec)
		require.NoError(t, f.Register(fakeConstructor(StrategyUniversal, ".txt")))

		parser := f.CreateParser("data.zzz", nil)
		require.NotNil(t, parser)
		assert.Equal(t, StrategyUniversal, parser.Strategy())
		assert.True(t, rec.HasMessage(logger.LevelWarn, "unknown file extension"))
	})

	t.Run("NoCandidateFallsBackToRegistered", func(t *testing.T) {
		rec := logger.NewRecorder()
		f := NewFactory(rec)
		require.NoError(t, f.Register(fakeConstructor(StrategyPDFText, ".pdf")))

		parser := f.CreateParser("data.zzz", nil)
		require.NotNil(t, parser)
		assert.Equal(t, StrategyPDFText, parser.Strategy())
		assert.True(t, rec.HasMessage(logger.LevelWarn, "no candidate strategy registered"))
	})

	t.Run("EmptyRegistryIsNil", func(t *testing.T) {
		rec := logger.NewRecorder()
		f := NewFactory(rec)

		assert.Nil(t, f.CreateParser("report.pdf", nil))
		assert.True(t, rec.HasMessage(logger.LevelWarn, "no parsers registered"))
	})
}

func TestCreateParserOCRPreference(t *testing.T) {
	newRegistry := func(t *testing.T) *Factory {
		f := NewFactory(logger.NewRecorder())
		require.NoError(t, f.Register(fakeConstructor(StrategyUniversal, ".txt")))
		require.NoError(t, f.Register(fakeConstructor(StrategyPDFText, ".pdf")))
		require.NoError(t, f.Register(fakeConstructor(StrategyOCR, ".png", ".pdf")))
		return f
	}

	t.Run("EnableOCRPrefersOCR", func(t *testing.T) {
		cfg := NewParserConfiguration()
		cfg.EnableOCR = true

		parser := newRegistry(t).CreateParser("scan.pdf", cfg)
		require.NotNil(t, parser)
		assert.Equal(t, StrategyOCR, parser.Strategy())
	})

	t.Run("DisabledOCRKeepsTableOrder", func(t *testing.T) {
		parser := newRegistry(t).CreateParser("scan.pdf", NewParserConfiguration())
		require.NotNil(t, parser)
		assert.Equal(t, StrategyPDFText, parser.Strategy())
	})

	t.Run("PreferenceOnlyAmongRegistered", func(t *testing.T) {
		f := NewFactory(logger.NewRecorder())
		require.NoError(t, f.Register(fakeConstructor(StrategyUniversal, ".txt")))
		require.NoError(t, f.Register(fakeConstructor(StrategyPDFText, ".pdf")))

		cfg := NewParserConfiguration()
		cfg.EnableOCR = true
		parser := f.CreateParser("scan.pdf", cfg)
		require.NotNil(t, parser)
		assert.Equal(t, StrategyPDFText, parser.Strategy())
	})
}

func TestCreateParserDeterministic(t *testing.T) {
	f := NewDefaultFactory(logger.NewRecorder())

	for i := 0; i < 20; i++ {
		parser := f.CreateParser("report.pdf", nil)
		require.NotNil(t, parser)
		assert.Equal(t, StrategyPDFText, parser.Strategy(), "run %d", i)
	}
}

func TestCreateParserConstructorPanic(t *testing.T) {
	rec := logger.NewRecorder()
	f := NewFactory(rec)
	err := f.Register(func(config *ParserConfiguration, log logger.Logger) DocumentParser {
		if config.ChunkSize == 4242 {
			panic(fmt.Sprintf("chunk size %d", config.ChunkSize))
		}
		return &fakeParser{
			BaseDocumentParser: NewBaseDocumentParser(StrategyUniversal, nil, config, log),
		}
	})
	require.NoError(t, err)

	cfg := NewParserConfiguration()
	cfg.ChunkSize = 4242

	assert.Nil(t, f.CreateParser("notes.txt", cfg))
	assert.True(t, rec.HasMessage(logger.LevelError, "parser constructor panicked"))
	assert.True(t, rec.HasMessage(logger.LevelWarn, "parser construction failed"))
}

func TestFactoryExtensionQueries(t *testing.T) {
	f := NewDefaultFactory(logger.NewRecorder())

	t.Run("StrategiesInTableOrder", func(t *testing.T) {
		strategies := f.GetStrategiesForExtension("PDF")
		assert.Equal(t, []ParsingStrategy{StrategyPDFText, StrategyUniversal, StrategyOCR}, strategies)

		strategies[0] = StrategyRemote
		assert.Equal(t, StrategyPDFText, f.GetStrategiesForExtension(".pdf")[0])
	})

	t.Run("UnknownExtensionIsNil", func(t *testing.T) {
		assert.Nil(t, f.GetStrategiesForExtension(".exe"))
	})

	t.Run("SupportedExtensionsSorted", func(t *testing.T) {
		exts := f.GetSupportedExtensions()
		assert.True(t, sort.StringsAreSorted(exts))
		assert.Contains(t, exts, ".pdf")
		assert.Contains(t, exts, ".docx")
	})

	t.Run("IsExtensionSupported", func(t *testing.T) {
		assert.True(t, f.IsExtensionSupported(".json"))
		assert.True(t, f.IsExtensionSupported("JSON"))
		assert.False(t, f.IsExtensionSupported(".exe"))
	})
}

func TestWithExtensionTable(t *testing.T) {
	t.Run("ReplacesBuiltinTable", func(t *testing.T) {
		f := NewFactory(logger.NewRecorder(), WithExtensionTable(map[string][]ParsingStrategy{
			"LOG": {StrategyUniversal},
		}))
		require.NoError(t, f.Register(fakeConstructor(StrategyUniversal, ".log")))

		assert.True(t, f.IsExtensionSupported(".log"))
		assert.False(t, f.IsExtensionSupported(".pdf"))

		parser := f.CreateParser("app.log", nil)
		require.NotNil(t, parser)
		assert.Equal(t, StrategyUniversal, parser.Strategy())
	})

	t.Run("EmptyTableIgnored", func(t *testing.T) {
		f := NewFactory(logger.NewRecorder(), WithExtensionTable(nil))
		assert.True(t, f.IsExtensionSupported(".pdf"))
	})
}

func TestClearRegistry(t *testing.T) {
	rec := logger.NewRecorder()
	f := NewDefaultFactory(rec)
	require.NotEmpty(t, f.GetRegisteredParsers())

	f.ClearRegistry()

	assert.Empty(t, f.GetRegisteredParsers())
	assert.Nil(t, f.CreateParser("report.pdf", nil))
}
