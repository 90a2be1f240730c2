package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/varsel/internal/catalog"
)

// ProductsPath is where product definitions live in a CUE value.
const ProductsPath = "product"

// LoadValue builds the CUE value of a .cue file or of every .cue file in a
// directory. It returns the number of files that went into the value.
func LoadValue(path string) (cue.Value, int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return cue.Value{}, 0, fmt.Errorf("product definitions: %w", err)
	}

	var (
		args  []string
		dir   string
		files []string
	)
	if info.IsDir() {
		dir = path
		args = []string{"."}
		files, err = FindCUEFiles(path)
		if err != nil {
			return cue.Value{}, 0, fmt.Errorf("scanning %s: %w", path, err)
		}
		if len(files) == 0 {
			return cue.Value{}, 0, fmt.Errorf("no CUE files found in %s", path)
		}
	} else {
		dir = filepath.Dir(path)
		args = []string{filepath.Base(path)}
		files = []string{path}
	}

	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, 0, fmt.Errorf("no CUE instances loaded from %s", path)
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, 0, formatCUEError(inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, 0, formatCUEError(err)
	}
	return value, len(files), nil
}

// CompileProducts compiles every field under "product" in declaration
// order. With failFast it stops at the first error; otherwise it collects
// one error per broken product and compiles the rest.
func CompileProducts(v cue.Value, failFast bool) ([]*catalog.Index, []error) {
	products := v.LookupPath(cue.ParsePath(ProductsPath))
	if !products.Exists() {
		return nil, []error{&CompileError{Field: ProductsPath, Message: "no products defined", Pos: v.Pos()}}
	}

	iter, err := products.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var (
		out  []*catalog.Index
		errs []error
	)
	for iter.Next() {
		idx, err := CompileProduct(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("product %s: %w", iter.Selector(), err))
			if failFast {
				return out, errs
			}
			continue
		}
		out = append(out, idx)
	}

	if len(out) == 0 && len(errs) == 0 {
		errs = append(errs, &CompileError{Field: ProductsPath, Message: "no products defined", Pos: products.Pos()})
	}
	return out, errs
}

// LoadProducts loads and compiles all products at path, failing fast.
func LoadProducts(path string) ([]*catalog.Index, error) {
	v, _, err := LoadValue(path)
	if err != nil {
		return nil, err
	}
	products, errs := CompileProducts(v, true)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return products, nil
}

// LoadProduct loads path and returns the product with the given id.
// An empty id selects the only product defined; more than one is an error.
func LoadProduct(path, id string) (*catalog.Index, error) {
	products, err := LoadProducts(path)
	if err != nil {
		return nil, err
	}
	return FindProduct(products, id)
}

// FindProduct picks a product by id, or the only one when id is empty.
func FindProduct(products []*catalog.Index, id string) (*catalog.Index, error) {
	if id == "" {
		if len(products) == 1 {
			return products[0], nil
		}
		return nil, fmt.Errorf("%d products defined, select one by id", len(products))
	}
	for _, p := range products {
		if p.ProductID() == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("product %q not found", id)
}

// FindCUEFiles walks dir and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
