package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dagforge/internal/specfile"
	"github.com/ShayCichocki/dagforge/internal/validation"
)

var (
	validateSchemaOnly bool
	validateJSON       bool
	validateWatch      bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a DAG specification file",
	Long: `Validate a JSON or YAML DAG specification.

Schema and semantic checks run together and their findings are merged;
each entry is prefixed with the layer that produced it. If the semantic
layer is unreachable the result falls back to schema checks and says so.

Exits with status 1 when the specification has errors. With --watch the
file is re-validated every time it is saved, until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateSchemaOnly, "schema-only", false, "Skip semantic validation")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Print the result as JSON")
	validateCmd.Flags().BoolVarP(&validateWatch, "watch", "w", false, "Re-validate whenever the file changes")
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	v, _ := createValidator(cfg, nil, logger)
	out := cmd.OutOrStdout()

	valid, err := validateFile(cmd.Context(), out, v, path)
	if !validateWatch {
		if err != nil {
			return err
		}
		if !valid {
			return errInvalid
		}
		return nil
	}
	if err != nil {
		fmt.Fprintf(out, "%s %v\n", color.RedString("✗"), err)
	}
	return watchFile(cmd.Context(), path, func() {
		fmt.Fprintln(out)
		if _, err := validateFile(cmd.Context(), out, v, path); err != nil {
			fmt.Fprintf(out, "%s %v\n", color.RedString("✗"), err)
		}
	})
}

// validateFile loads and validates one file and prints the report.
func validateFile(ctx context.Context, w io.Writer, v *validation.Validator, path string) (bool, error) {
	spec, err := specfile.Load(path)
	if err != nil {
		return false, err
	}

	var result validation.Result
	if validateSchemaOnly {
		result = v.ValidateAggregate(spec, nil)
	} else {
		result = v.Validate(ctx, spec)
	}

	if validateJSON {
		if err := printJSON(w, result); err != nil {
			return false, err
		}
	} else {
		printResult(w, filepath.Base(path), result)
	}
	return result.Valid(), nil
}

// watchFile calls onChange after each write to path until ctx is done.
// The parent directory is watched so editors that save by renaming a
// temporary file are still seen.
func watchFile(ctx context.Context, path string, onChange func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Info("watching for changes", "file", abs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", "error", err)
		}
	}
}
