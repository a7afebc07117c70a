package main

import (
	"encoding/json"
	"fmt"
	"os"

	"drone-dispatch/internal/domain"
)

type orderRequest struct {
	UserID   string  `json:"user_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	WeightKg float64 `json:"weight_kg"`
	Priority string  `json:"priority"`
}

// demoOrders mixes priorities, one overweight request and one target out of range.
var demoOrders = []orderRequest{
	{UserID: "ana", X: 5, Y: 5, WeightKg: 4, Priority: "HIGH"},
	{UserID: "ana", X: 12, Y: 3, WeightKg: 2.5, Priority: "MEDIUM"},
	{UserID: "bruno", X: 2, Y: 14, WeightKg: 6, Priority: "LOW"},
	{UserID: "bruno", X: 9, Y: 9, WeightKg: 3, Priority: "HIGH"},
	{UserID: "carla", X: 15, Y: 15, WeightKg: 7.5, Priority: "MEDIUM"},
	{UserID: "carla", X: 1, Y: 8, WeightKg: 1, Priority: "LOW"},
	{UserID: "davi", X: 18, Y: 2, WeightKg: 9, Priority: "HIGH"},
	{UserID: "davi", X: 4, Y: 17, WeightKg: 16, Priority: "HIGH"},
	{UserID: "eva", X: 90, Y: 90, WeightKg: 2, Priority: "MEDIUM"},
}

// loadOrders reads a JSON array of order requests. An empty path gives the demo set.
func loadOrders(path string) ([]orderRequest, error) {
	if path == "" {
		return demoOrders, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reqs []orderRequest
	if err := json.Unmarshal(data, &reqs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range reqs {
		if reqs[i].UserID == "" {
			reqs[i].UserID = "cli"
		}
	}
	return reqs, nil
}

func (r orderRequest) position() domain.Position {
	return domain.Position{X: r.X, Y: r.Y}
}
