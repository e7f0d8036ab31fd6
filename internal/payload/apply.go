package payload

// ExtractionConfig selects the data-extraction pass applied by Apply.
type ExtractionConfig struct {
	Enabled    bool
	Path       string
	WrapInData bool
}

// Apply runs the configured data-extraction pass. The payload is returned unchanged when
// extraction is disabled or the path is absent; the boolean reports whether the path hit.
func Apply(p Document, cfg ExtractionConfig) (Document, bool) {
	if !cfg.Enabled {
		return p, false
	}
	extracted, ok := Lookup(p, cfg.Path)
	if !ok {
		return p, false
	}
	if cfg.WrapInData {
		return Document{"data": extracted}, true
	}
	if m, ok := extracted.(map[string]any); ok && m != nil {
		return m, true
	}
	// Non-object values cannot be saved as a document on their own.
	return Document{"data": extracted}, true
}
