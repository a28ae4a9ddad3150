package routing

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// Load error codes.
const (
	ErrCodeNotFound     = "E101"
	ErrCodeUnsupported  = "E102"
	ErrCodeParse        = "E103"
	ErrCodeInvalidTable = "E104"
)

// LoadError describes a routing file that could not be loaded.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
	Err     error
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// File is the on-disk shape of a routing file, shared by CUE and YAML.
//
//	common: {start: 6, end: 25}
//	switches: [25, 31]
//	destinations: [
//		{name: "AI", start: 32, end: 39, analytics_column: 4},
//	]
//	fields: {identity: [1, 4], name: [2, 3], contact: 1}
//	sentinel: "No"
//
// fields and sentinel are optional and default to the values of Default.
type File struct {
	Common       Span    `json:"common" yaml:"common"`
	Destinations []Span  `json:"destinations" yaml:"destinations"`
	Switches     []int   `json:"switches" yaml:"switches"`
	Fields       *Fields `json:"fields,omitempty" yaml:"fields,omitempty"`
	Sentinel     string  `json:"sentinel,omitempty" yaml:"sentinel,omitempty"`
}

// Layout builds and validates the layout described by f.
func (f File) Layout() (Layout, error) {
	table, err := NewTable(f.Common, f.Destinations, f.Switches)
	if err != nil {
		return Layout{}, err
	}
	fields := Default().Fields
	if f.Fields != nil {
		fields = *f.Fields
	}
	return NewLayout(table, fields, f.Sentinel)
}

// LoadFile reads a routing layout from a .cue, .yaml or .yml file.
func LoadFile(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("read routing file: %v", err), Err: err}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return LoadCUE(path, data)
	case ".yaml", ".yml":
		return LoadYAML(data)
	default:
		return Layout{}, &LoadError{Code: ErrCodeUnsupported, Message: fmt.Sprintf("unsupported routing file %q: want .cue, .yaml or .yml", path)}
	}
}

// LoadCUE compiles a CUE routing document. filename is used for positions
// in error messages only.
func LoadCUE(filename string, data []byte) (Layout, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return Layout{}, cueLoadError("compiling CUE routing file", err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return Layout{}, cueLoadError("routing file is not concrete", err)
	}

	var f File
	if err := value.Decode(&f); err != nil {
		return Layout{}, cueLoadError("decoding routing file", err)
	}
	return layoutOf(f)
}

// LoadYAML parses a YAML routing document.
func LoadYAML(data []byte) (Layout, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Layout{}, &LoadError{Code: ErrCodeParse, Message: fmt.Sprintf("parsing YAML routing file: %v", err), Err: err}
	}
	return layoutOf(f)
}

func layoutOf(f File) (Layout, error) {
	layout, err := f.Layout()
	if err != nil {
		return Layout{}, &LoadError{Code: ErrCodeInvalidTable, Message: err.Error(), Err: err}
	}
	return layout, nil
}

func cueLoadError(msg string, err error) *LoadError {
	le := &LoadError{Code: ErrCodeParse, Message: fmt.Sprintf("%s: %v", msg, err), Err: err}
	if positions := cueerrors.Positions(err); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}

// FileOf converts a layout back to its on-disk shape.
func FileOf(l Layout) File {
	fields := l.Fields
	return File{
		Common:       l.Table.Common(),
		Destinations: l.Table.Destinations(),
		Switches:     l.Table.SwitchIndices(),
		Fields:       &fields,
		Sentinel:     l.Sentinel,
	}
}
