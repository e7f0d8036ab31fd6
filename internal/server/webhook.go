package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joseph-ayodele/ocr-relay/internal/common"
	"github.com/joseph-ayodele/ocr-relay/internal/payload"
	"github.com/joseph-ayodele/ocr-relay/internal/pending"
)

const (
	savedMessage         = "Webhook received and saved"
	internalErrorMessage = "Internal Server Error"
)

// PendingStore is the part of the pending store the webhook needs.
type PendingStore interface {
	Find(ctx context.Context, correlationID string) (pending.Location, error)
	Finalize(ctx context.Context, loc pending.Location, correlationID string, finalData payload.Document) (pending.Location, error)
	Standalone(ctx context.Context, p payload.Document, finalData payload.Document) (pending.Location, error)
}

type webhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	SavedAs string `json:"saved_as,omitempty"`
}

// WebhookHandler receives OCR results and turns the matching pending record into its
// finalized artifact, or writes a standalone artifact when nothing matches.
type WebhookHandler struct {
	store        PendingStore
	extraction   payload.ExtractionConfig
	maxBodyBytes int64
	logger       *slog.Logger
}

func NewWebhookHandler(store PendingStore, extraction payload.ExtractionConfig, maxBodyBytes int64, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		store:        store,
		extraction:   extraction,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("http_request_id", common.RequestIDFromContext(ctx))

	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	doc, err := payload.Decode(body)
	if err != nil {
		h.fail(w, logger, "webhook.decode_error", err)
		return
	}

	saved, err := h.handle(ctx, doc, logger)
	if err != nil {
		h.fail(w, logger, "webhook.save_error", err)
		return
	}
	WriteJSON(w, http.StatusOK, webhookResponse{Success: true, Message: savedMessage, SavedAs: saved.Filename})
}

func (h *WebhookHandler) handle(ctx context.Context, doc payload.Document, logger *slog.Logger) (pending.Location, error) {
	finalData, ok := payload.FinalData(doc)
	if !ok {
		if extracted, hit := payload.Apply(doc, h.extraction); hit {
			finalData = extracted
		} else {
			logger.Warn("webhook payload has no recognizable data envelope; saving whole payload")
		}
	}
	classification, _ := payload.Classification(finalData)

	id, hasID := payload.CorrelationID(doc)
	if !hasID {
		logger.Info("webhook without request_id", "document_type", classification)
		return h.store.Standalone(ctx, doc, finalData)
	}

	ctx = common.WithCorrelationID(ctx, id)
	logger = logger.With("request_id", id)

	loc, err := h.store.Find(ctx, id)
	switch {
	case err == nil:
		final, err := h.store.Finalize(ctx, loc, id, finalData)
		if err != nil {
			return pending.Location{}, err
		}
		logger.Info("webhook matched pending record", "file", final.Filename, "document_type", classification)
		return final, nil
	case errors.Is(err, pending.ErrNotFound):
		logger.Warn("no pending record for request_id; saving standalone")
		return h.store.Standalone(ctx, doc, finalData)
	default:
		return pending.Location{}, err
	}
}

func (h *WebhookHandler) fail(w http.ResponseWriter, logger *slog.Logger, event string, err error) {
	logger.Error(event, "error", err, "code", common.ErrorCode(err))
	WriteJSON(w, http.StatusInternalServerError, webhookResponse{Success: false, Message: internalErrorMessage})
}
