package endpoints

import (
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	MetricsRegistry *prom.Registry // nil disables /metrics
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&MetricsEndpoint{Registry: cfg.MetricsRegistry},

		// Run endpoints
		&GetRunEndpoint{},
		&StageStatusEndpoint{},
		&RetryStageEndpoint{},
		&ResetRunEndpoint{},

		// Stage endpoints
		&IngestEndpoint{},
		&MappingEndpoint{},
		&StructureEndpoint{},
		&NextChapterEndpoint{},
		&AssembleEndpoint{},

		// Artifact endpoints
		&CompendioEndpoint{},
		&MappingArtifactEndpoint{},
		&GetSkeletonEndpoint{},
		&UpdateSkeletonEndpoint{},
		&ListChaptersEndpoint{},
		&GetChapterEndpoint{},
		&UpdateChapterEndpoint{},
		&EbookEndpoint{},
		&ExportEndpoint{},

		// Settings endpoints
		&ListOperationsEndpoint{},
		&GetSettingEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{},
		&SwaggerUIEndpoint{},
	}
}
