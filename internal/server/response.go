package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/me/mdconsole/pkg/model"
)

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// header builds an envelope header; errorCount is the number of Error
// messages.
func header(msgs ...model.Message) model.Header {
	h := model.Header{Messages: msgs}
	if h.Messages == nil {
		h.Messages = []model.Message{}
	}
	for _, m := range msgs {
		if m.Level == model.LevelError {
			h.ErrorCount++
		}
	}
	return h
}

func msg(level model.MessageLevel, text string) model.Message {
	return model.Message{Level: level, Text: text}
}

// respondList writes a list envelope: header, the plural records field and
// totalRecord.
func respondList(w http.ResponseWriter, plural string, items any, total int) {
	respondJSON(w, http.StatusOK, map[string]any{
		"header":      header(),
		plural:        items,
		"totalRecord": total,
	})
}

// respondRecord writes a single-record envelope with a success message.
func respondRecord(w http.ResponseWriter, status int, name string, rec any, text string) {
	respondJSON(w, status, map[string]any{
		"header": header(msg(model.LevelSuccess, text)),
		name:     rec,
	})
}

// respondMessages writes an envelope carrying only a header.
func respondMessages(w http.ResponseWriter, status int, msgs ...model.Message) {
	respondJSON(w, status, map[string]any{"header": header(msgs...)})
}

// respondError writes a business-error envelope with one Error message.
func respondError(w http.ResponseWriter, status int, text string) {
	respondMessages(w, status, msg(model.LevelError, text))
}

// respondValidation writes one Error message per failed field.
func respondValidation(w http.ResponseWriter, ve *model.ValidationError) {
	msgs := make([]model.Message, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		msgs = append(msgs, msg(model.LevelError, fieldLabel(f.Field)+" "+f.Message+"."))
	}
	respondMessages(w, http.StatusUnprocessableEntity, msgs...)
}

func respondJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// fieldLabel turns a wire field name into words: "designationCode" becomes
// "Designation code".
func fieldLabel(field string) string {
	var b strings.Builder
	for i, r := range field {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		if i == 0 && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
