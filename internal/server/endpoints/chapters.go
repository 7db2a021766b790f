package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/scribe-labs/scribe/internal/api"
	"github.com/scribe-labs/scribe/internal/thesis"
)

// AddChapterEndpoint handles POST /api/theses/{key}/chapters.
type AddChapterEndpoint struct{}

func (e *AddChapterEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/theses/{key}/chapters", e.handler
}

func (e *AddChapterEndpoint) RequiresInit() bool { return true }

func (e *AddChapterEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(w, r)
	if !ok {
		return
	}

	doc := s.Apply(func(d thesis.Document) (thesis.Document, []thesis.Effect) {
		return thesis.AddChapter(d), nil
	})
	writeJSON(w, http.StatusCreated, doc.Chapters[len(doc.Chapters)-1])
}

func (e *AddChapterEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "add <key>",
		Short: "Append a new chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var ch thesis.Chapter
			if err := client.Post(cmd.Context(), "/api/theses/"+args[0]+"/chapters", nil, &ch); err != nil {
				return err
			}
			return api.Output(ch)
		},
	}
}

// RenameChapterEndpoint handles PATCH /api/theses/{key}/chapters/{chapterID}.
type RenameChapterEndpoint struct{}

func (e *RenameChapterEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/theses/{key}/chapters/{chapterID}", e.handler
}

func (e *RenameChapterEndpoint) RequiresInit() bool { return true }

func (e *RenameChapterEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(w, r)
	if !ok {
		return
	}
	chapterID := r.PathValue("chapterID")

	var req struct {
		Title string `json:"title"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc := s.Apply(func(d thesis.Document) (thesis.Document, []thesis.Effect) {
		return thesis.RenameChapter(d, chapterID, req.Title), nil
	})
	for _, ch := range doc.Chapters {
		if ch.ID == chapterID {
			writeJSON(w, http.StatusOK, ch)
			return
		}
	}
	writeError(w, http.StatusNotFound, "chapter not found: "+chapterID)
}

func (e *RenameChapterEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <key> <chapter-id> <title>",
		Short: "Rename a chapter",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var ch thesis.Chapter
			path := "/api/theses/" + args[0] + "/chapters/" + args[1]
			if err := client.Patch(cmd.Context(), path, map[string]string{"title": args[2]}, &ch); err != nil {
				return err
			}
			return api.Output(ch)
		},
	}
}

// RemoveChapterEndpoint handles DELETE /api/theses/{key}/chapters/{chapterID}.
// Images owned by the removed chapter are released in the background.
type RemoveChapterEndpoint struct{}

func (e *RemoveChapterEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/theses/{key}/chapters/{chapterID}", e.handler
}

func (e *RemoveChapterEndpoint) RequiresInit() bool { return true }

func (e *RemoveChapterEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(w, r)
	if !ok {
		return
	}
	chapterID := r.PathValue("chapterID")

	doc := s.Apply(func(d thesis.Document) (thesis.Document, []thesis.Effect) {
		return thesis.RemoveChapter(d, chapterID)
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"removed":  chapterID,
		"chapters": len(doc.Chapters),
	})
}

func (e *RemoveChapterEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <key> <chapter-id>",
		Short: "Remove a chapter and its blocks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/theses/"+args[0]+"/chapters/"+args[1]); err != nil {
				return err
			}
			fmt.Printf("Removed chapter %s\n", args[1])
			return nil
		},
	}
}
