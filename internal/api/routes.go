package api

import (
	"net/http"

	"github.com/compliance-sentinel/sentinel/internal/compliance"
	"github.com/compliance-sentinel/sentinel/internal/config"
	"github.com/compliance-sentinel/sentinel/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) {
	handler := compliance.NewHandler(
		domain.Compliance,
		domain.Audit,
		runtime.Logger,
		cfg.API.MaxUploadSizeBytes(),
	)

	routes.Register(
		mux,
		handler.Routes(),
		handler.AuditRoutes(),
		domain.Tickets.Handler().Routes(),
		newStorageHandler(runtime.Storage, runtime.Logger).routes(),
	)
}
