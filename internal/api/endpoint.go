package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint ties one HTTP route to the CLI command that calls it, so the
// server surface and the scribe api subtree cannot drift apart.
type Endpoint interface {
	// Route returns the method, the mux pattern, and the handler.
	Route() (method, path string, handler http.HandlerFunc)

	// RequiresInit reports whether the route needs the document store and
	// session manager, which only exist once the server has started.
	RequiresInit() bool

	// Command builds the cobra command for this endpoint. getServerURL is
	// resolved at run time, after the --server flag has been parsed.
	Command(getServerURL func() string) *cobra.Command
}
