package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/playpack/internal/export"
	"github.com/conneroisu/playpack/internal/hashtrack"
	"github.com/conneroisu/playpack/internal/logging"
)

// hashFileName stores the module fingerprints of the previous export
// inside the output root, enabling incremental previews across runs.
const hashFileName = ".playpack-hashes.json"

// printResult renders an export result in the requested format.
func printResult(w io.Writer, res *export.Result, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(res)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()

		return enc.Encode(res)
	default:
		title := cases.Title(language.English)
		fmt.Fprintf(w, "%s export written to %s\n", title.String(res.Target.String()), res.OutputRoot)
		fmt.Fprintf(w, "Entry point: %s\n", res.EntryPoint)
		fmt.Fprintf(w, "Modules: %d\n", len(res.Modules))
		for _, mod := range res.Modules {
			fmt.Fprintf(w, "  %-16s %s\n", mod.Role.String(), mod.Path)
		}

		return nil
	}
}

// loadHashes reads the persisted fingerprints from a previous export.
// A missing or unreadable file yields nil, forcing full regeneration.
func loadHashes(fs afero.Fs, outputRoot string) hashtrack.Hashes {
	data, err := afero.ReadFile(fs, filepath.Join(outputRoot, hashFileName))
	if err != nil {
		return nil
	}

	var hashes hashtrack.Hashes
	if err := json.Unmarshal(data, &hashes); err != nil {
		return nil
	}

	return hashes
}

// saveHashes persists fingerprints for the next incremental export.
func saveHashes(fs afero.Fs, outputRoot string, hashes hashtrack.Hashes) error {
	data, err := json.MarshalIndent(hashes, "", "  ")
	if err != nil {
		return err
	}

	return afero.WriteFile(fs, filepath.Join(outputRoot, hashFileName), data, 0644)
}

// logProgress reports materialization progress through the logger.
type logProgress struct {
	log logging.Logger
}

func (p logProgress) ModuleMaterialized(done, total int) {
	p.log.Debug(context.Background(), "module materialized", "done", done, "total", total)
}
