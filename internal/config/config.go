// Package config loads rfcdep settings from a CUE file.
//
// The embedded schema declares every field with its default, so a settings
// file only needs the fields it changes, and a missing file yields the
// defaults.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaCUE string

// Settings controls resolution, lookups, and where state lives.
type Settings struct {
	MaxDepth    int           `json:"max_depth"`
	Query       QuerySettings `json:"query"`
	Parallelism int           `json:"parallelism"`
	Database    string        `json:"database"`
	Registry    string        `json:"registry"`
}

// QuerySettings controls title lookups.
type QuerySettings struct {
	Limit         int  `json:"limit"`
	IncludeDrafts bool `json:"include_drafts"`
}

// Default returns the settings used when no file is given.
func Default() Settings {
	return Settings{
		MaxDepth:    0,
		Query:       QuerySettings{Limit: 100, IncludeDrafts: true},
		Parallelism: 8,
		Database:    "rfcdep.db",
		Registry:    "registry",
	}
}

// Validate checks settings changed after loading, such as flag overrides.
func (s Settings) Validate() error {
	switch {
	case s.MaxDepth < 0:
		return &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("max_depth must be >= 0, got %d", s.MaxDepth)}
	case s.Query.Limit < 0:
		return &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("query.limit must be >= 0, got %d", s.Query.Limit)}
	case s.Parallelism < 0:
		return &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("parallelism must be >= 0, got %d", s.Parallelism)}
	case s.Database == "":
		return &LoadError{Code: ErrCodeInvalid, Message: "database must not be empty"}
	case s.Registry == "":
		return &LoadError{Code: ErrCodeInvalid, Message: "registry must not be empty"}
	}
	return nil
}

// LoadError represents an error that occurred while loading settings.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for LoadError.
const (
	ErrCodeRead    = "CONFIG_READ"    // File exists but cannot be read
	ErrCodeSyntax  = "CONFIG_SYNTAX"  // Not valid CUE
	ErrCodeInvalid = "CONFIG_INVALID" // Valid CUE that violates the schema
)

// Load reads settings from path. An empty path or a missing file yields
// the defaults.
func Load(path string) (Settings, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, &LoadError{Code: ErrCodeRead, Message: err.Error()}
		}
	}
	return Parse(path, data)
}

// Parse decodes settings from CUE source. filename is only used in error
// positions.
func Parse(filename string, data []byte) (Settings, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue")).
		LookupPath(cue.ParsePath("#Settings"))
	if err := schema.Err(); err != nil {
		return Settings{}, fmt.Errorf("compile settings schema: %w", err)
	}

	value := schema
	if len(data) > 0 {
		file := ctx.CompileBytes(data, cue.Filename(filename))
		if err := file.Err(); err != nil {
			return Settings{}, newLoadError(ErrCodeSyntax, err)
		}
		value = schema.Unify(file)
	}
	if err := value.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return Settings{}, newLoadError(ErrCodeInvalid, err)
	}

	var s Settings
	if err := value.Decode(&s); err != nil {
		return Settings{}, newLoadError(ErrCodeInvalid, err)
	}
	return s, nil
}

func newLoadError(code string, err error) *LoadError {
	le := &LoadError{Code: code, Message: err.Error()}
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		le.Message = errs[0].Error()
		le.Pos = errs[0].Position()
	}
	return le
}

// IsInvalid returns true if err is a schema violation.
func IsInvalid(err error) bool {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code == ErrCodeInvalid
	}
	return false
}
