package parsers

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/structdoc/structdoc/pkg/logger"
)

// ParserConstructor builds a parser instance for one strategy. The factory
// invokes it once per CreateParser call with the effective configuration.
type ParserConstructor func(config *ParserConfiguration, log logger.Logger) DocumentParser

// Factory resolves a parsing intent plus a file path to a concrete parser.
// Registrations are instance-scoped, so independent factories do not share
// state.
type Factory struct {
	mu             sync.RWMutex
	constructors   map[ParsingStrategy]ParserConstructor
	extensionTable map[string][]ParsingStrategy
	logger         logger.Logger
}

// FactoryOption customizes factory construction.
type FactoryOption func(*Factory)

// WithExtensionTable replaces the built-in extension to strategy mapping.
// Empty tables are ignored.
func WithExtensionTable(table map[string][]ParsingStrategy) FactoryOption {
	return func(f *Factory) {
		if len(table) == 0 {
			return
		}
		normalized := make(map[string][]ParsingStrategy, len(table))
		for ext, strategies := range table {
			normalized[normalizeExtension(ext)] = append([]ParsingStrategy(nil), strategies...)
		}
		f.extensionTable = normalized
	}
}

// NewFactory creates an empty factory. Callers register parsers before use;
// NewDefaultFactory registers the built-in set.
func NewFactory(log logger.Logger, opts ...FactoryOption) *Factory {
	if log == nil {
		log = logger.New()
	}
	f := &Factory{
		constructors:   make(map[ParsingStrategy]ParserConstructor),
		extensionTable: DefaultExtensionTable(),
		logger:         log,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewDefaultFactory creates a factory with the built-in parsers registered.
// The OCR parser is included only when the binary was built with OCR
// support.
func NewDefaultFactory(log logger.Logger, opts ...FactoryOption) *Factory {
	f := NewFactory(log, opts...)
	if err := f.Register(func(config *ParserConfiguration, log logger.Logger) DocumentParser {
		return NewUniversalParser(config, log)
	}); err != nil {
		f.logger.Error("failed to register universal parser", err)
	}
	if err := f.Register(func(config *ParserConfiguration, log logger.Logger) DocumentParser {
		return NewPDFTextParser(config, log)
	}); err != nil {
		f.logger.Error("failed to register pdf_text parser", err)
	}
	if ocrAvailable {
		if err := f.Register(func(config *ParserConfiguration, log logger.Logger) DocumentParser {
			return NewOCRParser(config, log)
		}); err != nil {
			f.logger.Error("failed to register ocr parser", err)
		}
	}
	return f
}

// DefaultExtensionTable returns the built-in mapping from file extension to
// ordered candidate strategies. Callers may override it per factory with
// WithExtensionTable.
func DefaultExtensionTable() map[string][]ParsingStrategy {
	return map[string][]ParsingStrategy{
		".pdf":      {StrategyPDFText, StrategyUniversal, StrategyOCR},
		".docx":     {StrategyUniversal, StrategyPDFText},
		".txt":      {StrategyUniversal},
		".md":       {StrategyUniversal},
		".markdown": {StrategyUniversal},
		".html":     {StrategyUniversal},
		".htm":      {StrategyUniversal},
		".xml":      {StrategyUniversal},
		".json":     {StrategyUniversal},
		".csv":      {StrategyUniversal},
		".tsv":      {StrategyUniversal},
		".xlsx":     {StrategyUniversal},
		".xls":      {StrategyUniversal},
		".png":      {StrategyOCR, StrategyRemote},
		".jpg":      {StrategyOCR, StrategyRemote},
		".jpeg":     {StrategyOCR, StrategyRemote},
		".tiff":     {StrategyOCR, StrategyRemote},
		".tif":      {StrategyOCR, StrategyRemote},
		".bmp":      {StrategyOCR, StrategyRemote},
	}
}

// Register adds a parser constructor to the factory. The registration key
// is derived from the constructed parser's Strategy so the two cannot
// drift. The last registration for a strategy wins.
func (f *Factory) Register(ctor ParserConstructor) error {
	if ctor == nil {
		return fmt.Errorf("parser constructor cannot be nil")
	}
	probe := f.construct(ctor, NewParserConfiguration())
	if probe == nil {
		return fmt.Errorf("parser constructor returned nil")
	}
	strategy := probe.Strategy()
	if !IsValidStrategy(strategy) {
		return fmt.Errorf("parser reports invalid strategy: %q", strategy)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[strategy] = ctor
	return nil
}

// CreateParser resolves the effective strategy for the file and builds the
// parser. It returns nil with a logged reason when no parser can be
// resolved or construction fails; it never panics.
func (f *Factory) CreateParser(filePath string, config *ParserConfiguration) DocumentParser {
	if config == nil {
		config = NewParserConfiguration()
	}

	strategy, ok := f.resolveStrategy(filePath, config)
	if !ok {
		return nil
	}

	f.mu.RLock()
	ctor := f.constructors[strategy]
	f.mu.RUnlock()
	if ctor == nil {
		f.logger.Warn("no parser registered for strategy", map[string]interface{}{
			"strategy":  string(strategy),
			"file_path": filePath,
		})
		return nil
	}

	parser := f.construct(ctor, config)
	if parser == nil {
		f.logger.Warn("parser construction failed", map[string]interface{}{
			"strategy":  string(strategy),
			"file_path": filePath,
		})
		return nil
	}
	return parser
}

// construct invokes a constructor, converting panics into a nil parser.
func (f *Factory) construct(ctor ParserConstructor, config *ParserConfiguration) (parser DocumentParser) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("parser constructor panicked", fmt.Errorf("%v", r))
			parser = nil
		}
	}()
	return ctor(config, f.logger)
}

// resolveStrategy picks the effective strategy for a file. Explicit
// strategies are used as-is; AUTO consults the extension table, keeps only
// registered candidates and applies the OCR preference.
func (f *Factory) resolveStrategy(filePath string, config *ParserConfiguration) (ParsingStrategy, bool) {
	if config.Strategy != StrategyAuto {
		return config.Strategy, true
	}

	ext := normalizeExtension(filepath.Ext(filePath))
	candidates, known := f.extensionTable[ext]
	if !known {
		f.logger.Warn("unknown file extension, defaulting to universal strategy", map[string]interface{}{
			"extension": ext,
			"file_path": filePath,
		})
		candidates = []ParsingStrategy{StrategyUniversal}
	}

	f.mu.RLock()
	available := make([]ParsingStrategy, 0, len(candidates))
	for _, c := range candidates {
		if _, registered := f.constructors[c]; registered {
			available = append(available, c)
		}
	}
	registered := f.registeredLocked()
	f.mu.RUnlock()

	if len(available) == 0 {
		if len(registered) == 0 {
			f.logger.Warn("no parsers registered", map[string]interface{}{
				"file_path": filePath,
			})
			return "", false
		}
		fallback := registered[0]
		f.logger.Warn("no candidate strategy registered, falling back", map[string]interface{}{
			"extension": ext,
			"fallback":  string(fallback),
			"file_path": filePath,
		})
		return fallback, true
	}

	if config.EnableOCR {
		for _, c := range available {
			if c == StrategyOCR {
				return StrategyOCR, true
			}
		}
	}
	return available[0], true
}

// registeredLocked returns registered strategies in sorted order. Callers
// hold at least a read lock.
func (f *Factory) registeredLocked() []ParsingStrategy {
	strategies := make([]ParsingStrategy, 0, len(f.constructors))
	for s := range f.constructors {
		strategies = append(strategies, s)
	}
	sort.Slice(strategies, func(i, j int) bool { return strategies[i] < strategies[j] })
	return strategies
}

// GetStrategiesForExtension returns the candidate strategies for a file
// extension in table order, or nil for unknown extensions.
func (f *Factory) GetStrategiesForExtension(ext string) []ParsingStrategy {
	strategies, ok := f.extensionTable[normalizeExtension(ext)]
	if !ok {
		return nil
	}
	return append([]ParsingStrategy(nil), strategies...)
}

// GetSupportedExtensions returns every extension in the table, sorted.
func (f *Factory) GetSupportedExtensions() []string {
	exts := make([]string, 0, len(f.extensionTable))
	for ext := range f.extensionTable {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IsExtensionSupported reports whether the extension appears in the table.
func (f *Factory) IsExtensionSupported(ext string) bool {
	_, ok := f.extensionTable[normalizeExtension(ext)]
	return ok
}

// GetRegisteredParsers returns the registered strategies in sorted order.
func (f *Factory) GetRegisteredParsers() []ParsingStrategy {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.registeredLocked()
}

// IsRegistered reports whether a parser is registered for the strategy.
func (f *Factory) IsRegistered(strategy ParsingStrategy) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.constructors[strategy]
	return ok
}

// ClearRegistry removes every registration. Intended for tests.
func (f *Factory) ClearRegistry() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors = make(map[ParsingStrategy]ParserConstructor)
}
