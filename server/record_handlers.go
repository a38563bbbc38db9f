package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/mindwell-app/mindwell-server/insights"
	"github.com/mindwell-app/mindwell-server/ratelimit"
	"github.com/mindwell-app/mindwell-server/realtime"
	"github.com/mindwell-app/mindwell-server/records"
)

const defaultListLimit = 100

// CreateMoodHandler stores a mood check-in. Mood submissions carry their own
// per-user ceiling on top of the coarse IP limit, because a buggy client
// auto-submitting check-ins was the original abuse case.
func (s *Server) CreateMoodHandler() http.HandlerFunc {
	type moodRequest struct {
		Score int    `json:"score"`
		Note  string `json:"note"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		userID := userIDFromContext(r.Context())

		key := ratelimit.PurposeKey("mood", userID)
		if !s.limiter.Allow(r.Context(), key, s.config.GetMoodRateCeiling(), s.config.GetMoodRateWindow()) {
			writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded, please try again later")
			return
		}

		var req moodRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Score < 1 || req.Score > 10 {
			writeJSONError(w, http.StatusBadRequest, "Score must be between 1 and 10")
			return
		}

		entry, err := s.createRecord(r, records.KindMood, map[string]any{
			"score": req.Score,
			"note":  req.Note,
		})
		if err != nil {
			log.Error().Err(err).Msg("mood create failed")
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		writeJSON(w, http.StatusCreated, entry)
	}
}

// CreateJournalHandler stores a journal entry.
func (s *Server) CreateJournalHandler() http.HandlerFunc {
	type journalRequest struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req journalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Content == "" {
			writeJSONError(w, http.StatusBadRequest, "Content is required")
			return
		}

		entry, err := s.createRecord(r, records.KindJournal, map[string]any{
			"title":   req.Title,
			"content": req.Content,
		})
		if err != nil {
			log.Error().Err(err).Msg("journal create failed")
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		writeJSON(w, http.StatusCreated, entry)
	}
}

// CreateChatHandler stores a chat message and screens it for crisis language.
// A positive screen additionally pushes a crisis alert with the recommended
// action list to the user's open streams.
func (s *Server) CreateChatHandler() http.HandlerFunc {
	type chatRequest struct {
		Message string `json:"message"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Message == "" {
			writeJSONError(w, http.StatusBadRequest, "Message is required")
			return
		}

		entry, err := s.createRecord(r, records.KindChat, map[string]any{
			"message": req.Message,
		})
		if err != nil {
			log.Error().Err(err).Msg("chat create failed")
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		crisisDetected := s.crisis.Detect(r.Context(), req.Message)
		if crisisDetected {
			s.hub.Publish(entry.UserID, realtime.Event{
				Type: realtime.EventCrisisAlert,
				Data: map[string]any{
					"recordId":           entry.ID,
					"recommendedActions": insights.RecommendedActions(),
				},
			})
		}

		writeJSON(w, http.StatusCreated, map[string]any{
			"record":             entry,
			"crisisDetected":     crisisDetected,
			"recommendedActions": crisisActions(crisisDetected),
		})
	}
}

func crisisActions(detected bool) []string {
	if !detected {
		return nil
	}
	return insights.RecommendedActions()
}

// createRecord persists an entry and pushes a record_created event.
func (s *Server) createRecord(r *http.Request, kind records.Kind, payload map[string]any) (*records.Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "[Server createRecord] marshal payload")
	}

	entry := &records.Entry{
		ID:        uuid.New().String(),
		UserID:    userIDFromContext(r.Context()),
		Kind:      kind,
		Payload:   raw,
		CreatedAt: time.Now(),
	}
	if err := s.records.Create(r.Context(), entry); err != nil {
		return nil, errors.Wrap(err, "[Server createRecord] Create")
	}

	s.hub.Publish(entry.UserID, realtime.Event{
		Type: realtime.EventRecordCreated,
		Data: map[string]any{"id": entry.ID, "kind": string(kind)},
	})
	return entry, nil
}

// ListRecordsHandler returns the user's entries of one kind, newest first.
func (s *Server) ListRecordsHandler(kind records.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultListLimit
		if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
			parsed, err := strconv.Atoi(rawLimit)
			if err != nil || parsed < 1 {
				writeJSONError(w, http.StatusBadRequest, "Invalid limit")
				return
			}
			limit = parsed
		}

		entries, err := s.records.ListByUser(r.Context(), userIDFromContext(r.Context()), kind, limit)
		if err != nil {
			log.Error().Err(err).Msg("record list failed")
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"records": entries})
	}
}

// DeleteRecordHandler removes one of the user's entries. The repo scopes the
// delete by user id and kind, so one user can never delete another's record
// and the URL's kind must match the stored entry.
func (s *Server) DeleteRecordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := records.Kind(r.PathValue("kind"))
		switch kind {
		case records.KindMood, records.KindJournal, records.KindChat:
		default:
			writeJSONError(w, http.StatusNotFound, "Not found")
			return
		}

		err := s.records.Delete(r.Context(), userIDFromContext(r.Context()), kind, r.PathValue("id"))
		if errors.Is(err, records.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "Not found")
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("record delete failed")
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// CrisisResourcesHandler returns the fixed crisis action list.
func (s *Server) CrisisResourcesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"recommendedActions": insights.RecommendedActions()})
	}
}
