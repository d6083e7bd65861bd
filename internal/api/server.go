// Package api exposes the ops HTTP surface: health, pipeline stats, and
// the inbound mail webhooks. Outreach has no public API; this listener is
// for the mail provider's event delivery and internal dashboards.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/showscout/outreach/internal/counter"
	"github.com/showscout/outreach/internal/domain"
	"github.com/showscout/outreach/internal/lifecycle"
	"github.com/showscout/outreach/internal/pkg/logger"
	"github.com/showscout/outreach/internal/repository/postgres"
)

const maxWebhookBody = 1 << 20 // 1MB

// ProspectStatsStore is the read surface for the stats endpoint plus the
// prospect lookups the bounce webhook needs.
type ProspectStatsStore interface {
	Get(ctx context.Context, id string) (*domain.Prospect, error)
	CountByStatus(ctx context.Context) (map[domain.Status]int, error)
	UpdateLifecycle(ctx context.Context, id string, f postgres.LifecycleFields, expectedVersion int64) error
}

// TouchEventStore is the touch surface the webhooks write through.
type TouchEventStore interface {
	GetByMessageID(ctx context.Context, messageID string) (*domain.Touch, error)
	ListByProspect(ctx context.Context, prospectID string) ([]domain.Touch, error)
	MarkOpened(ctx context.Context, id string, at time.Time) error
	MarkBounced(ctx context.Context, id string, at time.Time, reason string) error
}

// InboundSink accepts raw inbound messages from the mail webhook.
type InboundSink interface {
	Create(ctx context.Context, m *postgres.InboundMessage) (string, error)
}

// Server is the ops HTTP server.
type Server struct {
	router    chi.Router
	db        *sql.DB
	prospects ProspectStatsStore
	touches   TouchEventStore
	inbound   InboundSink
	counter   counter.DailyCounter
	now       func() time.Time
}

// NewServer builds the ops server and its routes.
func NewServer(db *sql.DB, prospects ProspectStatsStore, touches TouchEventStore, inbound InboundSink, dailyCounter counter.DailyCounter) *Server {
	s := &Server{
		db:        db,
		prospects: prospects,
		touches:   touches,
		inbound:   inbound,
		counter:   dailyCounter,
		now:       time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/prospects/{id}", s.handleProspect)
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/inbound", s.handleInbound)
		r.Post("/bounce", s.handleBounce)
		r.Post("/open", s.handleOpen)
	})

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.prospects.CountByStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "stats query failed")
		return
	}
	sentToday, err := s.counter.Current(r.Context(), s.now())
	if err != nil {
		logger.Warn("daily counter read failed", "error", err.Error())
		sentToday = -1
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"prospects_by_status": counts,
		"sent_today":          sentToday,
	})
}

// handleProspect serves the dashboard projection of a single prospect.
func (s *Server) handleProspect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.prospects.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "prospect not found")
		return
	}
	touches, err := s.touches.ListByProspect(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "touch query failed")
		return
	}
	respondJSON(w, http.StatusOK, domain.BuildCampaignView(p, touches, s.now()))
}

// inboundPayload is the mail provider's inbound message event.
type inboundPayload struct {
	ThreadID   string    `json:"thread_id"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)

	var payload inboundPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if payload.From == "" {
		respondError(w, http.StatusBadRequest, "missing from address")
		return
	}
	receivedAt := payload.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}

	id, err := s.inbound.Create(r.Context(), &postgres.InboundMessage{
		ThreadID:    payload.ThreadID,
		FromAddress: payload.From,
		Subject:     payload.Subject,
		Body:        payload.Body,
		ReceivedAt:  receivedAt,
	})
	if err != nil {
		logger.Error("inbound webhook store failed", "error", err.Error())
		respondError(w, http.StatusInternalServerError, "store failed")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// bouncePayload is the mail provider's bounce event.
type bouncePayload struct {
	MessageID string `json:"message_id"`
	Reason    string `json:"reason"`
	Permanent bool   `json:"permanent"`
}

// handleBounce marks the touch bounced and, on a permanent bounce,
// suppresses the prospect outright.
func (s *Server) handleBounce(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)

	var payload bouncePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.MessageID == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	ctx := r.Context()
	now := s.now()
	touch, err := s.touches.GetByMessageID(ctx, payload.MessageID)
	if err != nil {
		// Unknown message: acknowledge so the provider stops retrying.
		logger.Warn("bounce for unknown message", "message_id", payload.MessageID)
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err := s.touches.MarkBounced(ctx, touch.ID, now, payload.Reason); err != nil {
		respondError(w, http.StatusInternalServerError, "bounce record failed")
		return
	}

	if payload.Permanent {
		if err := s.suppressBounced(ctx, touch.ProspectID, now); err != nil {
			logger.Error("bounce suppression failed", "prospect_id", touch.ProspectID, "error", err.Error())
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *Server) suppressBounced(ctx context.Context, prospectID string, now time.Time) error {
	p, err := s.prospects.Get(ctx, prospectID)
	if err != nil {
		return err
	}
	cmd := lifecycle.Skip{Rule: domain.StopBounce}
	if err := cmd.Apply(p, now); err != nil {
		return err
	}
	fields := postgres.LifecycleFields{
		Status:            &p.Status,
		NextAction:        &p.NextAction,
		SetNextActionDate: true,
		Outcome:           &p.Outcome,
		StopRule:          &p.StopRule,
		Suppressed:        &p.Suppressed,
		SuppressedAt:      p.SuppressedAt,
	}
	return s.prospects.UpdateLifecycle(ctx, p.ID, fields, p.Version)
}

// openPayload is the mail provider's open-tracking event.
type openPayload struct {
	MessageID string    `json:"message_id"`
	OpenedAt  time.Time `json:"opened_at"`
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)

	var payload openPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.MessageID == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	openedAt := payload.OpenedAt
	if openedAt.IsZero() {
		openedAt = s.now()
	}

	touch, err := s.touches.GetByMessageID(r.Context(), payload.MessageID)
	if err != nil {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err := s.touches.MarkOpened(r.Context(), touch.ID, openedAt); err != nil {
		respondError(w, http.StatusInternalServerError, "open record failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
