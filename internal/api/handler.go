package api

import (
	"context"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"dorm-assignment-backend/internal/assign"
	"dorm-assignment-backend/internal/store"
)

// Assigner runs one assignment pass.
type Assigner interface {
	RunPass(ctx context.Context) (assign.Result, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	assigner Assigner
	webpush  *webpush.Options
	log      *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, a Assigner, webpushOptions *webpush.Options, log *zap.Logger) *Handler {
	registerValidators()
	return &Handler{
		store:    s,
		assigner: a,
		webpush:  webpushOptions,
		log:      log,
	}
}
