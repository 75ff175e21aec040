package descopeauth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MetadataPath is the RFC 8414 discovery document path.
const MetadataPath = "/.well-known/oauth-authorization-server"

// Routes returns an http.Handler serving the OAuth front door endpoints:
// the authorization redirect, the discovery document, and (unless disabled)
// the dynamic client registration proxy.
//
// The router must be installed at the application root so the well-known
// path resolves correctly:
//
//	handler, _ := descopeauth.NewHandler(ctx, provider)
//	mux := chi.NewRouter()
//	mux.Mount("/", handler.Routes())
func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()

	router.HandleFunc("/authorize", h.ServeAuthorization)
	router.HandleFunc(MetadataPath, h.ServeMetadata)

	if !h.provider.options.DynamicClientRegistration.Disabled {
		router.HandleFunc("/register", h.ServeRegistration)
	}

	return router
}
