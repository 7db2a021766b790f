package endpoints

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/scribe-labs/scribe/internal/api"
	"github.com/scribe-labs/scribe/internal/session"
	"github.com/scribe-labs/scribe/internal/svcctx"
	"github.com/scribe-labs/scribe/internal/thesis"
)

// sessionFor resolves the document session for a request, writing the error
// response itself when it cannot.
func sessionFor(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "document key is required")
		return nil, false
	}

	sessions := svcctx.SessionsFrom(r.Context())
	if sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "sessions not initialized")
		return nil, false
	}

	s, err := sessions.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return s, true
}

// ListThesesEndpoint handles GET /api/theses.
type ListThesesEndpoint struct{}

func (e *ListThesesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/theses", e.handler
}

func (e *ListThesesEndpoint) RequiresInit() bool { return true }

func (e *ListThesesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	keys, err := st.Keys(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

func (e *ListThesesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored document keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp struct {
				Keys []string `json:"keys"`
			}
			if err := client.Get(cmd.Context(), "/api/theses", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetThesisEndpoint handles GET /api/theses/{key}.
// A key with no stored document returns a fresh default document.
type GetThesisEndpoint struct{}

func (e *GetThesisEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/theses/{key}", e.handler
}

func (e *GetThesisEndpoint) RequiresInit() bool { return true }

func (e *GetThesisEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Document())
}

func (e *GetThesisEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Fetch a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var doc thesis.Document
			if err := client.Get(cmd.Context(), "/api/theses/"+args[0], &doc); err != nil {
				return err
			}
			return api.Output(doc)
		},
	}
}

// PutThesisEndpoint handles PUT /api/theses/{key}: whole-document replace.
// Accepts both current and legacy chapter shapes.
type PutThesisEndpoint struct{}

func (e *PutThesisEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/theses/{key}", e.handler
}

func (e *PutThesisEndpoint) RequiresInit() bool { return true }

func (e *PutThesisEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 32<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body: "+err.Error())
		return
	}

	doc, err := thesis.DecodeStored(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.Replace(doc)
	writeJSON(w, http.StatusOK, s.Document())
}

func (e *PutThesisEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <file>",
		Short: "Replace a document from a JSON file",
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
			if err := client.Put(cmd.Context(), "/api/theses/"+args[0], payload, &doc); err != nil {
				return err
			}
			return api.Output(doc)
		},
	}
}

// DeleteThesisEndpoint handles DELETE /api/theses/{key}.
type DeleteThesisEndpoint struct{}

func (e *DeleteThesisEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/theses/{key}", e.handler
}

func (e *DeleteThesisEndpoint) RequiresInit() bool { return true }

func (e *DeleteThesisEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "document key is required")
		return
	}

	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	if sessions := svcctx.SessionsFrom(r.Context()); sessions != nil {
		sessions.Drop(key)
	}
	if err := st.Delete(r.Context(), key); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": key})
}

func (e *DeleteThesisEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/theses/"+args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}

// UpdateMetaEndpoint handles PATCH /api/theses/{key}/meta.
type UpdateMetaEndpoint struct{}

func (e *UpdateMetaEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/theses/{key}/meta", e.handler
}

func (e *UpdateMetaEndpoint) RequiresInit() bool { return true }

func (e *UpdateMetaEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(w, r)
	if !ok {
		return
	}

	var meta thesis.Meta
	if err := decodeBody(r, &meta); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc := s.Apply(func(d thesis.Document) (thesis.Document, []thesis.Effect) {
		return thesis.SetMeta(d, meta), nil
	})
	writeJSON(w, http.StatusOK, doc.Meta)
}

func (e *UpdateMetaEndpoint) Command(getServerURL func() string) *cobra.Command {
	var title, author, date string
	cmd := &cobra.Command{
		Use:   "meta <key>",
		Short: "Update document metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())

			var current thesis.Document
			if err := client.Get(cmd.Context(), "/api/theses/"+args[0], &current); err != nil {
				return err
			}
			meta := current.Meta
			if cmd.Flags().Changed("title") {
				meta.Title = title
			}
			if cmd.Flags().Changed("author") {
				meta.Author = author
			}
			if cmd.Flags().Changed("date") {
				meta.Date = date
			}

			var resp thesis.Meta
			if err := client.Patch(cmd.Context(), "/api/theses/"+args[0]+"/meta", meta, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "document title")
	cmd.Flags().StringVar(&author, "author", "", "document author")
	cmd.Flags().StringVar(&date, "date", "", "document date")
	return cmd
}

// UpdateSectionsEndpoint handles PATCH /api/theses/{key}/sections.
// Only the fields present in the body are updated.
type UpdateSectionsEndpoint struct{}

func (e *UpdateSectionsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/theses/{key}/sections", e.handler
}

func (e *UpdateSectionsEndpoint) RequiresInit() bool { return true }

func (e *UpdateSectionsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(w, r)
	if !ok {
		return
	}

	var patch thesis.SectionsPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc := s.Apply(func(d thesis.Document) (thesis.Document, []thesis.Effect) {
		return thesis.PatchSections(d, patch), nil
	})
	writeJSON(w, http.StatusOK, map[string]string{
		"intro":       doc.Intro,
		"conclusions": doc.Conclusions,
		"bib":         doc.Bib,
	})
}

func (e *UpdateSectionsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var intro, conclusions, bib string
	cmd := &cobra.Command{
		Use:   "sections <key>",
		Short: "Update introduction, conclusions or bibliography",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := map[string]any{}
			if cmd.Flags().Changed("intro") {
				patch["intro"] = intro
			}
			if cmd.Flags().Changed("conclusions") {
				patch["conclusions"] = conclusions
			}
			if cmd.Flags().Changed("bib") {
				patch["bib"] = bib
			}
			if len(patch) == 0 {
				return fmt.Errorf("nothing to update: pass --intro, --conclusions or --bib")
			}

			client := api.NewClient(getServerURL())
			var resp map[string]string
			if err := client.Patch(cmd.Context(), "/api/theses/"+args[0]+"/sections", patch, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&intro, "intro", "", "introduction text")
	cmd.Flags().StringVar(&conclusions, "conclusions", "", "conclusions text")
	cmd.Flags().StringVar(&bib, "bib", "", "bibliography text")
	return cmd
}
