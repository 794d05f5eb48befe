package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/WKowalczykDev/EntranceControl/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	svc := s.services

	verifyHandler := handlers.NewVerifyHandler(svc.Engine, s.logger)
	personsHandler := handlers.NewPersonsHandler(svc.Persons, svc.Images, svc.ImageRecords, svc.Embeddings, svc.Attempts, s.logger)
	gatesHandler := handlers.NewGatesHandler(svc.Gates, svc.Attempts, s.logger)
	identifyHandler := handlers.NewIdentifyHandler(svc.Encoder, svc.Embeddings, svc.Persons, s.logger)
	embeddingsHandler := handlers.NewEmbeddingsHandler(svc.Embeddings)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// Gates
		r.Post("/verify", verifyHandler.Verify)
		r.Get("/gates/{id}/attempts", gatesHandler.ListAttempts)

		// Enrollment
		r.Post("/persons/{id}/images", personsHandler.UploadImage)
		r.Post("/persons/{id}/embedding/rebuild", personsHandler.RebuildEmbedding)
		r.Get("/persons/{id}/attempts", personsHandler.ListAttempts)

		// Operators
		r.Post("/identify", identifyHandler.Identify)
		r.Get("/embeddings", embeddingsHandler.Stats)
	})
}
