package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/parisxmas/OxiForms/internal/handler"
	"github.com/parisxmas/OxiForms/internal/metrics"
	mw "github.com/parisxmas/OxiForms/internal/middleware"
)

type Handlers struct {
	Form       *handler.FormHandler
	Submission *handler.SubmissionHandler
	Health     *handler.HealthHandler
}

func New(log *zap.SugaredLogger, corsOrigin string, h Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.Logger(log))
	r.Use(mw.Recovery)
	r.Use(mw.CORS(corsOrigin))
	r.Use(mw.Metrics)

	r.Get("/healthz", h.Health.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		// Forms
		r.Get("/forms", h.Form.List)
		r.Post("/forms", h.Form.Create)
		r.Get("/forms/{formId}", h.Form.Get)
		r.Put("/forms/{formId}", h.Form.Update)
		r.Get("/forms/{formId}/questions", h.Form.ListQuestions)

		// Questions
		r.Delete("/questions/{questionId}", h.Form.DeleteQuestion)
		r.Get("/question-types", h.Form.QuestionTypes)
		r.Get("/inactive-questions", h.Form.InactiveQuestions)

		// Submissions
		r.Get("/submissions", h.Submission.List)
		r.Post("/submissions", h.Submission.Submit)
		r.Get("/submissions/form/{formId}", h.Submission.ListByForm)
		r.Get("/submissions/{submissionId}", h.Submission.Get)
	})

	return r
}
