package handlers

import (
	"github.com/cellarsync/cellarsync/internal/cellar"
)

type CreateBottleRequest struct {
	Name         string        `json:"name" binding:"required"`
	Vintage      int           `json:"vintage" binding:"required"`
	Type         string        `json:"type" binding:"required"`
	Country      string        `json:"country" binding:"required"`
	Region       string        `json:"region" binding:"required"`
	GrapeVariety []string      `json:"grapeVariety"`
	Location     string        `json:"location"`
	Quantity     int           `json:"quantity" binding:"min=0"`
	Price        *cellar.Price `json:"price"`
	Notes        string        `json:"notes"`
}

type BottleEventRequest struct {
	Action   string `json:"action" binding:"required,oneof=added consumed removed"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Notes    string `json:"notes"`
}

type BottleResponse struct {
	*cellar.Bottle
	Quantity int `json:"quantity"`
}

type BottleListResponse struct {
	Bottles []BottleResponse `json:"bottles"`
	Total   int              `json:"total"`
}

func newBottleResponse(b *cellar.Bottle) BottleResponse {
	return BottleResponse{Bottle: b, Quantity: b.Quantity()}
}
