package endpoints

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/scribe-labs/scribe/internal/api"
	"github.com/scribe-labs/scribe/internal/bundle"
	"github.com/scribe-labs/scribe/internal/latex"
	"github.com/scribe-labs/scribe/internal/svcctx"
	"github.com/scribe-labs/scribe/internal/thesis"
)

// ExportEndpoint handles GET /api/theses/{key}/export/{format}.
// Formats: json (backup), tex, bib, bundle (zip with images).
type ExportEndpoint struct{}

func (e *ExportEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/theses/{key}/export/{format}", e.handler
}

func (e *ExportEndpoint) RequiresInit() bool { return true }

func (e *ExportEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(w, r)
	if !ok {
		return
	}
	doc := s.Document()

	switch format := r.PathValue("format"); format {
	case "json":
		data, err := thesis.ExportBackup(doc)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="`+bundle.BackupPath+`"`)
		w.Write(data)

	case "tex":
		w.Header().Set("Content-Type", "application/x-tex")
		w.Header().Set("Content-Disposition", `attachment; filename="`+bundle.TexPath+`"`)
		io.WriteString(w, latex.Render(doc))

	case "bib":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+bundle.BibPath+`"`)
		io.WriteString(w, doc.Bib)

	case "bundle":
		images := svcctx.ImagesFrom(r.Context())
		if images == nil {
			writeError(w, http.StatusServiceUnavailable, "image store not initialized")
			return
		}
		logger := svcctx.LoggerFrom(r.Context())

		// Assemble into memory first so a failure can still produce a
		// clean JSON error instead of a truncated zip.
		var buf bytes.Buffer
		if err := bundle.Write(r.Context(), &buf, doc, images, logger); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="thesis_bundle.zip"`)
		w.Write(buf.Bytes())

	default:
		writeError(w, http.StatusBadRequest, "unknown export format: "+format)
	}
}

func (e *ExportEndpoint) Command(getServerURL func() string) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <key> <json|tex|bib|bundle>",
		Short: "Export a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			data, err := client.Download(cmd.Context(), "/api/theses/"+args[0]+"/export/"+args[1])
			if err != nil {
				return err
			}
			if output == "" {
				_, err := os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Printf("Wrote %s (%d bytes)\n", output, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output-file", "f", "", "write to file instead of stdout")
	return cmd
}

// ImportEndpoint handles POST /api/theses/{key}/import: restore a document
// from a JSON backup. A malformed backup leaves the current document as is.
type ImportEndpoint struct{}

func (e *ImportEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/theses/{key}/import", e.handler
}

func (e *ImportEndpoint) RequiresInit() bool { return true }

func (e *ImportEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(w, r)
	if !ok {
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 32<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body: "+err.Error())
		return
	}

	restored, err := thesis.ImportBackup(s.Document(), data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.Replace(restored)
	writeJSON(w, http.StatusOK, restored)
}

func (e *ImportEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <key> <backup-file>",
		Short: "Restore a document from a JSON backup",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[1], err)
			}
			var payload any
			if err := decodeJSON(data, &payload); err != nil {
				return fmt.Errorf("%s is not valid JSON: %w", args[1], err)
			}

			client := api.NewClient(getServerURL())
			var doc thesis.Document
			if err := client.Post(cmd.Context(), "/api/theses/"+args[0]+"/import", payload, &doc); err != nil {
				return err
			}
			return api.Output(doc)
		},
	}
}
