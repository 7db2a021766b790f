package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/scribe-labs/scribe/internal/api"
	"github.com/scribe-labs/scribe/internal/bib"
	"github.com/scribe-labs/scribe/internal/thesis"
)

// AddReferenceEndpoint handles POST /api/theses/{key}/references: format a
// BibTeX entry and append it to the document's bibliography text.
type AddReferenceEndpoint struct{}

func (e *AddReferenceEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/theses/{key}/references", e.handler
}

func (e *AddReferenceEndpoint) RequiresInit() bool { return true }

func (e *AddReferenceEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(w, r)
	if !ok {
		return
	}

	var entry bib.Entry
	if err := decodeBody(r, &entry); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	formatted := entry.Format()
	doc := s.Apply(func(d thesis.Document) (thesis.Document, []thesis.Effect) {
		return thesis.AppendBib(d, formatted), nil
	})
	writeJSON(w, http.StatusCreated, map[string]string{
		"entry": formatted,
		"bib":   doc.Bib,
	})
}

func (e *AddReferenceEndpoint) Command(getServerURL func() string) *cobra.Command {
	var entryType, key, author, title, year, journal, publisher string
	cmd := &cobra.Command{
		Use:   "add <key>",
		Short: "Append a BibTeX reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := bib.Entry{
				Type:      bib.EntryType(entryType),
				Key:       key,
				Author:    author,
				Title:     title,
				Year:      year,
				Journal:   journal,
				Publisher: publisher,
			}

			client := api.NewClient(getServerURL())
			var resp map[string]string
			if err := client.Post(cmd.Context(), "/api/theses/"+args[0]+"/references", entry, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&entryType, "type", "misc", "entry type (article, book, inproceedings, misc)")
	cmd.Flags().StringVar(&key, "cite-key", "", "citation key (generated when empty)")
	cmd.Flags().StringVar(&author, "author", "", "author")
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&year, "year", "", "year")
	cmd.Flags().StringVar(&journal, "journal", "", "journal (articles only)")
	cmd.Flags().StringVar(&publisher, "publisher", "", "publisher (books and proceedings)")
	return cmd
}
