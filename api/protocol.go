package api

import (
	"tracker-api/domain"
	"tracker-api/store"
)

const requestBodyMaxSize = 64 * 1024 // 64 KiB

const headerIdempotencyKey = "Idempotency-Key"

type updatesResponse struct {
	Updates []domain.Update `json:"updates"`
}

type relatedUpdatesResponse struct {
	Updates []store.RelatedUpdate `json:"updates"`
}

type errorResponse struct {
	Error string `json:"error"`
}
