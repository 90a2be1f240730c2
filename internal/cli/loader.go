package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/varsel/internal/catalog"
	"github.com/roach88/varsel/internal/compiler"
)

// LoadMode controls how errors are handled during product loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first broken product.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll compiles every product and collects all errors.
	LoadModeCollectAll
)

// LoadResult contains the products compiled from a path.
type LoadResult struct {
	Products  []*catalog.Index
	FileCount int // Number of CUE files that went into the value
}

// LoadError is a loading failure with a CLI error code.
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

// LoadProducts loads the product definitions at path (a .cue file or a
// directory of them) and compiles them.
//
// A nil result means nothing could be compiled at all (missing path, CUE
// syntax errors); the single error explains why. Otherwise the result
// holds every product that compiled and errs one entry per broken product.
func LoadProducts(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("products path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing products path: %v", err)}}
	}

	if info.IsDir() {
		files, err := compiler.FindCUEFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
		if len(files) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}
		}
	}

	value, count, err := compiler.LoadValue(path)
	if err != nil {
		le := &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			le.Message = ce.Message
			le.Pos = ce.Pos
		}
		return nil, []error{le}
	}

	products, errs := compiler.CompileProducts(value, mode == LoadModeFailFast)
	for i, e := range errs {
		errs[i] = convertCompileError(e)
	}
	return &LoadResult{Products: products, FileCount: count}, errs
}

// LoadProduct loads path and picks one product by id (or the only one).
func LoadProduct(path, id string) (*catalog.Index, error) {
	result, errs := LoadProducts(path, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	idx, err := compiler.FindProduct(result.Products, id)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error()}
	}
	return idx, nil
}

// convertCompileError converts a compiler error to a LoadError with
// position info. The product label prefix added by the compiler is kept.
func convertCompileError(err error) *LoadError {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return &LoadError{
			Code:    MapFieldToErrorCode(ce.Field),
			Message: strings.TrimSuffix(err.Error(), ce.Error()) + ce.Message,
			Pos:     ce.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path or product not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeDatabase    = "E008" // Catalog database error

	// Product definition errors
	ErrCodeSchema     = "E101" // Schema violation
	ErrCodeProductID  = "E102" // Missing product id
	ErrCodeAttributes = "E103" // Broken attribute catalog
	ErrCodeUnits      = "E104" // Broken unit catalog
	ErrCodeVariations = "E105" // Broken variation
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case compiler.FieldSchema, compiler.FieldCUE:
		return ErrCodeSchema
	case compiler.FieldID:
		return ErrCodeProductID
	case compiler.FieldAttributes:
		return ErrCodeAttributes
	case compiler.FieldUnits:
		return ErrCodeUnits
	case compiler.FieldVariations:
		return ErrCodeVariations
	case compiler.ProductsPath:
		return ErrCodeBuildFailed
	default:
		return ErrCodeGeneric
	}
}
