package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
)

// libraryFile is the on-disk YAML shape for site compound libraries.
type libraryFile struct {
	Compounds []Compound `yaml:"compounds"`
}

// Load parses a YAML compound list and merges it over the catalog; loaded
// entries replace built-ins with the same name. The merge is atomic: a
// validation failure on any entry leaves the catalog unchanged. Intended for
// process start, before the catalog is shared; not safe to call
// concurrently with readers.
func (c *Catalog) Load(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.WrapTransient(err, "catalog", "Load", "read compound library")
	}

	var file libraryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"catalog", "Load", "parse compound library")
	}
	if len(file.Compounds) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: compound library is empty", errors.ErrInvalidData),
			"catalog", "Load", "parse compound library")
	}

	staged := make([]Compound, 0, len(file.Compounds))
	for _, comp := range file.Compounds {
		if err := comp.Validate(); err != nil {
			return err
		}
		if comp.ResponseFactors == nil {
			comp.ResponseFactors = defaultResponseFactors(comp.MolecularWeight, comp.CarbonAtoms, comp.SulfurAtoms)
		}
		staged = append(staged, comp)
	}

	for _, comp := range staged {
		c.compounds[comp.Name] = comp
	}
	return nil
}

// LoadFile loads a YAML compound library from disk.
func (c *Catalog) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.WrapInvalid(err, "catalog", "LoadFile", "open compound library")
	}
	defer f.Close()
	return c.Load(f)
}
