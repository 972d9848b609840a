package api

import (
	"github.com/gorilla/mux"

	"github.com/garnizeh/opphub/internal/auth"
	"github.com/garnizeh/opphub/internal/hub"
	"github.com/garnizeh/opphub/pkg/repository"
)

// Deps are the collaborators the HTTP layer is built from. Schemas, Reloader
// and Jobs may be nil.
type Deps struct {
	Hub      *hub.Hub
	Auth     *auth.Service
	Schemas  repository.SchemaRepo
	Reloader Reloader
	Jobs     DeadLetters
	Checks   map[string]Check
}

func SetupRoutes(d Deps, version, buildTime string) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	systemHandler := &SystemHandler{Checks: d.Checks}
	authHandler := NewAuthHandler(d.Auth, d.Hub)
	catalogHandler := NewCatalogHandler(d.Hub)
	userHandler := NewUserHandler(d.Hub)
	adminHandler := NewAdminHandler(d.Hub, d.Jobs)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")

	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(OptionalAuth(d.Auth))

	apiV1.HandleFunc("/auth/signup", authHandler.Signup).Methods("POST")
	apiV1.HandleFunc("/auth/signin", authHandler.Signin).Methods("POST")

	// Public catalog; a signed-in caller gets session filters
	apiV1.HandleFunc("/featured", catalogHandler.Featured).Methods("GET")
	apiV1.HandleFunc("/events", catalogHandler.Events).Methods("GET")
	apiV1.HandleFunc("/opportunities", catalogHandler.Browse).Methods("GET")
	apiV1.HandleFunc("/opportunities/filters", catalogHandler.ClearFilters).Methods("DELETE")
	apiV1.HandleFunc("/opportunities/{id}", catalogHandler.Opportunity).Methods("GET")
	apiV1.HandleFunc("/categories", catalogHandler.Categories).Methods("GET")
	apiV1.HandleFunc("/contact", catalogHandler.Contact).Methods("POST")

	// Protected routes
	private := apiV1.NewRoute().Subrouter()
	private.Use(RequireAuth)

	private.HandleFunc("/auth/signout", authHandler.Signout).Methods("POST")
	private.HandleFunc("/me", authHandler.Me).Methods("GET")
	private.HandleFunc("/me/dashboard", userHandler.Dashboard).Methods("GET")
	private.HandleFunc("/me/profile", userHandler.Profile).Methods("GET")
	private.HandleFunc("/me/profile", userHandler.UpdateProfile).Methods("PUT")
	private.HandleFunc("/me/saved", userHandler.Saved).Methods("GET")
	private.HandleFunc("/me/saved/{id}", userHandler.ToggleSave).Methods("POST")
	private.HandleFunc("/me/saved/{id}", userHandler.RemoveSaved).Methods("DELETE")
	private.HandleFunc("/me/applications", userHandler.Applications).Methods("GET")
	private.HandleFunc("/me/notifications", userHandler.Notifications).Methods("GET")
	private.HandleFunc("/me/notifications/{id}/read", userHandler.MarkNotificationRead).Methods("POST")
	private.HandleFunc("/opportunities/{id}/apply", userHandler.Apply).Methods("POST")
	private.HandleFunc("/events", userHandler.SubmitEvent).Methods("POST")

	admin := private.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/analytics", adminHandler.Analytics).Methods("GET")
	admin.HandleFunc("/opportunities", adminHandler.Opportunities).Methods("GET")
	admin.HandleFunc("/opportunities", adminHandler.CreateOpportunity).Methods("POST")
	admin.HandleFunc("/opportunities/{id}", adminHandler.UpdateOpportunity).Methods("PUT")
	admin.HandleFunc("/opportunities/{id}", adminHandler.DeleteOpportunity).Methods("DELETE")
	admin.HandleFunc("/events", adminHandler.Events).Methods("GET")
	admin.HandleFunc("/events/{id}/approve", adminHandler.ApproveEvent).Methods("POST")
	admin.HandleFunc("/users", adminHandler.Users).Methods("GET")
	admin.HandleFunc("/users/{id}/promote", adminHandler.PromoteUser).Methods("POST")
	admin.HandleFunc("/users/{id}/demote", adminHandler.DemoteUser).Methods("POST")
	admin.HandleFunc("/users/{id}", adminHandler.DeleteUser).Methods("DELETE")
	admin.HandleFunc("/categories", adminHandler.AddCategory).Methods("POST")
	admin.HandleFunc("/categories/{id}", adminHandler.UpdateCategory).Methods("PUT")
	admin.HandleFunc("/categories/{id}", adminHandler.DeleteCategory).Methods("DELETE")
	admin.HandleFunc("/logs", adminHandler.Logs).Methods("GET")
	admin.HandleFunc("/logs", adminHandler.ClearLogs).Methods("DELETE")
	admin.HandleFunc("/logs/export", adminHandler.ExportLogs).Methods("GET")
	admin.HandleFunc("/logs/{id}", adminHandler.DeleteLog).Methods("DELETE")
	admin.HandleFunc("/jobs/dead", adminHandler.DeadLetters).Methods("GET")

	if d.Schemas != nil {
		schemaHandler := NewSchemaHandler(d.Hub, d.Schemas, d.Reloader)
		admin.HandleFunc("/schemas", schemaHandler.ListSchemasHandler).Methods("GET")
		admin.HandleFunc("/schemas", schemaHandler.CreateOrUpdateSchemaHandler).Methods("POST")
		admin.HandleFunc("/schemas/reload", schemaHandler.ReloadHandler).Methods("POST")
		admin.HandleFunc("/schemas/{name}/{version}", schemaHandler.GetSchemaHandler).Methods("GET")
		admin.HandleFunc("/schemas/{name}/{version}", schemaHandler.DeleteSchemaHandler).Methods("DELETE")
	}

	return r
}
