package server

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"pccmo/internal"
	"pccmo/internal/line"
	"pccmo/internal/pipeline"
	"pccmo/internal/util"
)

const maxWebhookBody = 1 << 20

// webhook verifies the LINE signature and ingests text events one by one in
// delivery order.
func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	events, err := line.ParseRequest(s.cfg.LineChannelSecret, r)
	if errors.Is(err, line.ErrInvalidSignature) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}
	log.Printf("webhook: received %d text event(s)", len(events))

	for _, ev := range events {
		msg := pipeline.Message{Text: ev.Text, Source: internal.SourceLine}
		if ev.UserID != "" {
			msg.UserID = util.StringPtr(ev.UserID)
		}
		if ev.GroupID != "" {
			msg.GroupID = util.StringPtr(ev.GroupID)
		}

		res, err := s.ingest.Ingest(r.Context(), msg)
		if err != nil {
			log.Printf("webhook: save failed: %v", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if res.Status != pipeline.StatusSaved || !s.cfg.EnableReplyMessage || s.replier == nil || ev.ReplyToken == "" {
			continue
		}

		replies := make([]string, 0, len(res.SavedIDs))
		for i, id := range res.SavedIDs {
			replies = append(replies, line.FormatConfirmMessage(res.Saved[i], id))
		}
		if err := s.replier.ReplyText(r.Context(), ev.ReplyToken, strings.Join(replies, "\n\n")); err != nil {
			log.Printf("webhook: reply failed: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
