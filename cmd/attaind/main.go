package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/campus-metrics/obe-attainment/internal/api/http"
	"github.com/campus-metrics/obe-attainment/internal/config"
	"github.com/campus-metrics/obe-attainment/internal/db"
	"github.com/campus-metrics/obe-attainment/internal/outcome"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := outcome.NewSQLStore(dbh, cfg.DBDriver)

	// --- Engine ---
	engine := outcome.NewEngine(store,
		outcome.WithFullCoverage(cfg.RequireFullCoverage),
		outcome.WithRecomputeOnWrite(cfg.RecomputeOnScoreWrite),
		outcome.WithAuditor(outcome.NewEventRepo(dbh, cfg.SiteID)),
	)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	// Weight records (validator runs inside each write's transaction)
	r.Put("/techniques/{id}", api.PutTechniqueHandler(store))
	r.Delete("/techniques/{id}", api.DeleteTechniqueHandler(store))
	r.Put("/sub-outcomes/{id}", api.PutSubOutcomeHandler(store))
	r.Put("/mappings/{id}", api.PutMappingHandler(store))
	r.Delete("/mappings/{id}", api.DeleteMappingHandler(store))
	r.Post("/weights/validate", api.ValidateWeightHandler(engine))

	// Leaf scores and recompute triggers
	r.Post("/scores", api.PutRawScoreHandler(engine))
	r.Post("/recompute", api.RecomputeHandler(engine))
	r.Post("/students/{studentID}/recompute", api.RecomputeStudentHandler(engine))
	r.Post("/courses/{courseID}/recompute", api.RecomputeCourseHandler(engine))

	// Read side
	r.Get("/attainment", api.GetAttainmentHandler(store))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("attaind listening on %s (driver=%s)", cfg.HTTPAddr, cfg.DBDriver)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal(err)
	}
}
