package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/hollis-b/affectlens/internal/compiler"
	"github.com/hollis-b/affectlens/internal/registry"
)

// Loader error codes. Compiler validation has its own E2xx range.
const (
	ErrCodeGeneric     = "E001" // generic/unknown error
	ErrCodeScanError   = "E002" // directory scan error
	ErrCodeNoFiles     = "E003" // no CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeRegistry    = "E007" // registry read error
)

// LoadError is a definition-loading failure with source position when the
// CUE evaluator provides one.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadResult is the outcome of loading a definition source.
type LoadResult struct {
	Definitions *compiler.Definitions
	// FileCount is the number of CUE files loaded; zero for registry sources.
	FileCount int
	// FromRegistry reports whether the source was a SQLite registry file.
	FromRegistry bool
}

// LoadDefinitions loads prototype and expression definitions from source,
// which is either a directory of CUE files or a SQLite registry file
// produced by `validate --save`.
func LoadDefinitions(ctx context.Context, source string) (*LoadResult, error) {
	info, err := os.Stat(source)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("definitions not found: %s", source)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("accessing definitions: %v", err)}
	}
	if info.IsDir() {
		return loadCUEDir(source)
	}
	return loadRegistryFile(ctx, source)
}

func loadCUEDir(dir string) (*LoadResult, error) {
	cueFiles, err := findCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("scanning %s: %v", dir, err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	defs, err := compiler.Compile(value)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return &LoadResult{Definitions: defs, FileCount: len(cueFiles)}, nil
}

func loadRegistryFile(ctx context.Context, path string) (*LoadResult, error) {
	reg, err := registry.Open(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRegistry, Message: fmt.Sprintf("opening registry %s: %v", path, err)}
	}
	defer reg.Close()

	prototypes, err := reg.Prototypes(ctx)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRegistry, Message: fmt.Sprintf("reading prototypes: %v", err)}
	}
	expressions, err := reg.Expressions(ctx)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRegistry, Message: fmt.Sprintf("reading expressions: %v", err)}
	}

	return &LoadResult{
		Definitions: &compiler.Definitions{
			Prototypes:  prototypes,
			Expressions: expressions,
		},
		FromRegistry: true,
	}, nil
}

func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeBuildFailed,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}
