package endpoints

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scribe-labs/scribe/internal/api"
	"github.com/scribe-labs/scribe/internal/svcctx"
	"github.com/scribe-labs/scribe/internal/thesis"
)

const maxImageUpload = 20 << 20 // 20 MiB

// UploadImageEndpoint handles POST /api/theses/{key}/chapters/{chapterID}/images.
// The upload is stored first; only a successful store appends the image block,
// so a failed upload leaves the document untouched.
type UploadImageEndpoint struct{}

func (e *UploadImageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/theses/{key}/chapters/{chapterID}/images", e.handler
}

func (e *UploadImageEndpoint) RequiresInit() bool { return true }

func (e *UploadImageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	images := svcctx.ImagesFrom(r.Context())
	if images == nil {
		writeError(w, http.StatusServiceUnavailable, "image store not initialized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageUpload)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing image file: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload: "+err.Error())
		return
	}

	s, ok := sessionFor(w, r)
	if !ok {
		return
	}
	chapterID := r.PathValue("chapterID")

	ref, err := images.Upload(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, http.StatusBadGateway, "image upload failed: "+err.Error())
		return
	}

	caption := r.FormValue("caption")
	block := thesis.NewImageBlock(ref, header.Filename, caption)
	s.Apply(func(d thesis.Document) (thesis.Document, []thesis.Effect) {
		return thesis.AppendBlock(d, chapterID, block), nil
	})
	writeJSON(w, http.StatusCreated, block)
}

func (e *UploadImageEndpoint) Command(getServerURL func() string) *cobra.Command {
	var caption string
	cmd := &cobra.Command{
		Use:   "upload <key> <chapter-id> <file>",
		Short: "Upload an image and append it as a block",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[2])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[2], err)
			}

			client := api.NewClient(getServerURL())
			path := "/api/theses/" + args[0] + "/chapters/" + args[1] + "/images"
			var block thesis.Block
			if err := client.PostFile(cmd.Context(), path, "image", filepath.Base(args[2]),
				data, map[string]string{"caption": caption}, &block); err != nil {
				return err
			}
			return api.Output(block)
		},
	}
	cmd.Flags().StringVar(&caption, "caption", "", "image caption")
	return cmd
}
