package services

import (
	"testing"

	"github.com/offerhub/backend/internal/models"
)

func TestDefaultPricing(t *testing.T) {
	cases := []struct {
		category string
		urgency  string
		want     int
	}{
		{"cleaning", "", 2},
		{"plumbing", "", 4},
		{"moving", "", 5},
		{"moving", "urgent", 6},
		{"tutoring", "urgent", 3},
		{"something-new", "", 3},
		{"something-new", "urgent", 4},
		{"", "", 3},
	}
	for _, tc := range cases {
		got := DefaultPricing(&models.Request{Category: tc.category, Urgency: tc.urgency})
		if got != tc.want {
			t.Errorf("%s/%s: got %d, want %d", tc.category, tc.urgency, got, tc.want)
		}
	}
}
