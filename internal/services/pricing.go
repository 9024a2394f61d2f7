package services

import "github.com/offerhub/backend/internal/models"

// PricingFunc computes the credit cost of responding to a request. Pure;
// owned by the intake subsystem. DefaultPricing stands in for it here.
type PricingFunc func(req *models.Request) int

var categoryCost = map[string]int{
	"cleaning":    2,
	"plumbing":    4,
	"electrical":  4,
	"landscaping": 3,
	"moving":      5,
	"tutoring":    2,
}

// DefaultPricing prices by category, with a surcharge for urgent requests.
func DefaultPricing(req *models.Request) int {
	cost, ok := categoryCost[req.Category]
	if !ok {
		cost = 3
	}
	if req.Urgency == "urgent" {
		cost++
	}
	return cost
}
