package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/scribe-labs/scribe/internal/api"
	"github.com/scribe-labs/scribe/internal/thesis"
)

// blockRequest is the body for appending a block. Type selects which of the
// remaining fields apply.
type blockRequest struct {
	Type      thesis.BlockType  `json:"type"`
	Content   string            `json:"content,omitempty"`
	SourceRef string            `json:"source_ref,omitempty"`
	Filename  string            `json:"filename,omitempty"`
	Caption   string            `json:"caption,omitempty"`
	Rows      int               `json:"rows,omitempty"`
	Cols      int               `json:"cols,omitempty"`
	Cells     map[string]string `json:"cells,omitempty"`
}

func (b blockRequest) build() (thesis.Block, error) {
	switch b.Type {
	case thesis.BlockText:
		return thesis.NewTextBlock(b.Content), nil
	case thesis.BlockImage:
		return thesis.NewImageBlock(b.SourceRef, b.Filename, b.Caption), nil
	case thesis.BlockTable:
		return thesis.NewTableBlock(b.Rows, b.Cols, b.Cells, b.Caption), nil
	case thesis.BlockEquation:
		return thesis.NewEquationBlock(b.Content), nil
	default:
		return thesis.Block{}, fmt.Errorf("unknown block type: %q", b.Type)
	}
}

// AppendBlockEndpoint handles POST /api/theses/{key}/chapters/{chapterID}/blocks.
type AppendBlockEndpoint struct{}

func (e *AppendBlockEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/theses/{key}/chapters/{chapterID}/blocks", e.handler
}

func (e *AppendBlockEndpoint) RequiresInit() bool { return true }

func (e *AppendBlockEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(w, r)
	if !ok {
		return
	}
	chapterID := r.PathValue("chapterID")

	var req blockRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	block, err := req.build()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc := s.Apply(func(d thesis.Document) (thesis.Document, []thesis.Effect) {
		return thesis.AppendBlock(d, chapterID, block), nil
	})
	for _, ch := range doc.Chapters {
		if ch.ID == chapterID {
			writeJSON(w, http.StatusCreated, ch.Blocks[len(ch.Blocks)-1])
			return
		}
	}
	writeError(w, http.StatusNotFound, "chapter not found: "+chapterID)
}

func (e *AppendBlockEndpoint) Command(getServerURL func() string) *cobra.Command {
	var kind, content, sourceRef, filename, caption string
	cmd := &cobra.Command{
		Use:   "add <key> <chapter-id>",
		Short: "Append a block to a chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := blockRequest{
				Type:      thesis.BlockType(kind),
				Content:   content,
				SourceRef: sourceRef,
				Filename:  filename,
				Caption:   caption,
			}
			client := api.NewClient(getServerURL())
			var block thesis.Block
			path := "/api/theses/" + args[0] + "/chapters/" + args[1] + "/blocks"
			if err := client.Post(cmd.Context(), path, req, &block); err != nil {
				return err
			}
			return api.Output(block)
		},
	}
	cmd.Flags().StringVar(&kind, "type", "text", "block type (text, image, table, equation)")
	cmd.Flags().StringVar(&content, "content", "", "text or equation content")
	cmd.Flags().StringVar(&sourceRef, "source-ref", "", "image source reference")
	cmd.Flags().StringVar(&filename, "filename", "", "image filename")
	cmd.Flags().StringVar(&caption, "caption", "", "image or table caption")
	return cmd
}

// UpdateBlockEndpoint handles PATCH /api/theses/{key}/chapters/{chapterID}/blocks/{blockID}.
// Only fields present in the body change; the block's kind never does.
type UpdateBlockEndpoint struct{}

func (e *UpdateBlockEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/theses/{key}/chapters/{chapterID}/blocks/{blockID}", e.handler
}

func (e *UpdateBlockEndpoint) RequiresInit() bool { return true }

func (e *UpdateBlockEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(w, r)
	if !ok {
		return
	}
	chapterID := r.PathValue("chapterID")
	blockID := r.PathValue("blockID")

	var patch thesis.BlockPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc := s.Apply(func(d thesis.Document) (thesis.Document, []thesis.Effect) {
		return thesis.UpdateBlock(d, chapterID, blockID, patch), nil
	})
	for _, ch := range doc.Chapters {
		if ch.ID != chapterID {
			continue
		}
		for _, b := range ch.Blocks {
			if b.ID == blockID {
				writeJSON(w, http.StatusOK, b)
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, "block not found: "+blockID)
}

func (e *UpdateBlockEndpoint) Command(getServerURL func() string) *cobra.Command {
	var content, filename, caption string
	cmd := &cobra.Command{
		Use:   "update <key> <chapter-id> <block-id>",
		Short: "Update a block's content",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := thesis.BlockPatch{}
			if cmd.Flags().Changed("content") {
				patch.Content = &content
			}
			if cmd.Flags().Changed("filename") {
				patch.Filename = &filename
			}
			if cmd.Flags().Changed("caption") {
				patch.Caption = &caption
			}

			client := api.NewClient(getServerURL())
			var block thesis.Block
			path := "/api/theses/" + args[0] + "/chapters/" + args[1] + "/blocks/" + args[2]
			if err := client.Patch(cmd.Context(), path, patch, &block); err != nil {
				return err
			}
			return api.Output(block)
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "text or equation content")
	cmd.Flags().StringVar(&filename, "filename", "", "image filename")
	cmd.Flags().StringVar(&caption, "caption", "", "image or table caption")
	return cmd
}

// RemoveBlockEndpoint handles DELETE /api/theses/{key}/chapters/{chapterID}/blocks/{blockID}.
// Removing an image block releases its stored file in the background.
type RemoveBlockEndpoint struct{}

func (e *RemoveBlockEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/theses/{key}/chapters/{chapterID}/blocks/{blockID}", e.handler
}

func (e *RemoveBlockEndpoint) RequiresInit() bool { return true }

func (e *RemoveBlockEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(w, r)
	if !ok {
		return
	}
	chapterID := r.PathValue("chapterID")
	blockID := r.PathValue("blockID")

	s.Apply(func(d thesis.Document) (thesis.Document, []thesis.Effect) {
		return thesis.RemoveBlock(d, chapterID, blockID)
	})
	writeJSON(w, http.StatusOK, map[string]string{"removed": blockID})
}

func (e *RemoveBlockEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <key> <chapter-id> <block-id>",
		Short: "Remove a block",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/theses/" + args[0] + "/chapters/" + args[1] + "/blocks/" + args[2]
			if err := client.Delete(cmd.Context(), path); err != nil {
				return err
			}
			fmt.Printf("Removed block %s\n", args[2])
			return nil
		},
	}
}
