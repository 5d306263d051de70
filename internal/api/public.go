package api

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/marshallshelly/roastery/internal/auth"
	"github.com/marshallshelly/roastery/internal/mail"
	"github.com/marshallshelly/roastery/internal/models"
)

const maxUserAgentLength = 512

// contactResult is the body of an accepted contact submission.
type contactResult struct {
	ID        int  `json:"id"`
	Delivered bool `json:"delivered"`
}

// handleContact stores the submission first so a failed delivery loses
// nothing.
func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var in contactInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := in.validate(); err != nil {
		s.fail(w, r, err)
		return
	}

	ctx := r.Context()
	msg, err := s.store.CreateContactMessage(ctx, &models.ContactMessage{
		Name:    in.Name,
		Email:   in.Email,
		Subject: in.Subject,
		Message: in.Message,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	email := mail.ContactMessage(s.cfg.SMTP.From, s.cfg.SMTP.Recipient, mail.Contact{
		Name:    in.Name,
		Email:   in.Email,
		Subject: in.Subject,
		Message: in.Message,
	})
	if err := s.mailer.Send(ctx, email); err != nil {
		s.logger.Warn("contact message stored but not delivered", zap.Int("contact_id", msg.ID))
		s.fail(w, r, err)
		return
	}

	delivered := s.cfg.SMTPEnabled()
	if delivered {
		if err := s.store.MarkContactDelivered(ctx, msg.ID); err != nil {
			s.logger.Error("failed to mark contact message delivered", zap.Int("contact_id", msg.ID), zap.Error(err))
		}
	}
	respondJSON(w, http.StatusCreated, contactResult{ID: msg.ID, Delivered: delivered})
}

func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	var in eventInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := in.validate(); err != nil {
		s.fail(w, r, err)
		return
	}

	e := &models.AnalyticsEvent{
		EventType: in.Type,
		RoasterID: in.RoasterID,
		Path:      in.Path,
		Referrer:  in.Referrer,
		UserAgent: truncate(r.UserAgent(), maxUserAgentLength),
	}
	if len(in.Metadata) > 0 && string(in.Metadata) != "null" {
		e.Metadata = in.Metadata
	}
	if p, ok := auth.FromContext(r.Context()); ok {
		e.UserID = &p.UserID
	}
	if err := s.store.RecordEvent(r.Context(), e); err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
