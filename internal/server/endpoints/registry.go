package endpoints

import (
	"github.com/scribe-labs/scribe/internal/api"
	"github.com/scribe-labs/scribe/internal/couch"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	Backend      string
	CouchManager *couch.DockerManager
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{Backend: cfg.Backend, CouchManager: cfg.CouchManager},

		// Document endpoints
		&ListThesesEndpoint{},
		&GetThesisEndpoint{},
		&PutThesisEndpoint{},
		&DeleteThesisEndpoint{},
		&UpdateMetaEndpoint{},
		&UpdateSectionsEndpoint{},

		// Chapter endpoints
		&AddChapterEndpoint{},
		&RenameChapterEndpoint{},
		&RemoveChapterEndpoint{},

		// Block endpoints
		&AppendBlockEndpoint{},
		&UpdateBlockEndpoint{},
		&RemoveBlockEndpoint{},

		// Image upload
		&UploadImageEndpoint{},

		// References
		&AddReferenceEndpoint{},

		// Export and import
		&ExportEndpoint{},
		&ImportEndpoint{},

		// Settings endpoints
		&ListSettingsEndpoint{},
		&GetSettingEndpoint{},
		&UpdateSettingEndpoint{},
		&ResetSettingEndpoint{},
	}
}

// ThesisCommands returns endpoints for document operations.
// This groups document-related commands under "theses" subcommand.
func ThesisCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListThesesEndpoint{},
		&GetThesisEndpoint{},
		&PutThesisEndpoint{},
		&DeleteThesisEndpoint{},
		&UpdateMetaEndpoint{},
		&UpdateSectionsEndpoint{},
		&ExportEndpoint{},
		&ImportEndpoint{},
	}
}

// ChapterCommands returns endpoints for chapter operations.
func ChapterCommands() []api.Endpoint {
	return []api.Endpoint{
		&AddChapterEndpoint{},
		&RenameChapterEndpoint{},
		&RemoveChapterEndpoint{},
	}
}

// BlockCommands returns endpoints for block operations, image upload included.
func BlockCommands() []api.Endpoint {
	return []api.Endpoint{
		&AppendBlockEndpoint{},
		&UpdateBlockEndpoint{},
		&RemoveBlockEndpoint{},
		&UploadImageEndpoint{},
	}
}

// ReferenceCommands returns endpoints for bibliography operations.
func ReferenceCommands() []api.Endpoint {
	return []api.Endpoint{
		&AddReferenceEndpoint{},
	}
}

// SettingsCommands returns endpoints for settings operations.
// This groups settings-related commands under "settings" subcommand.
func SettingsCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListSettingsEndpoint{},
		&GetSettingEndpoint{},
		&UpdateSettingEndpoint{},
		&ResetSettingEndpoint{},
	}
}
