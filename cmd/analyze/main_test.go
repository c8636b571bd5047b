package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"xray_backend/internal/feature/xray/domain/entity"
)

func TestByConfidence(t *testing.T) {
	in := []entity.Detection{
		{Label: "Effusion", Probability: 0.61},
		{Label: "Mass", Probability: 0.93},
		{Label: "Edema", Probability: 0.75},
	}

	out := byConfidence(in)

	assert.Equal(t, []string{"Mass", "Edema", "Effusion"}, []string{out[0].Label, out[1].Label, out[2].Label})
	assert.Equal(t, "Effusion", in[0].Label, "input order is preserved")
}

func TestOverlayName(t *testing.T) {
	assert.Equal(t, "Pneumothorax.png", overlayName("Pneumothorax"))
	assert.Equal(t, "a_b.png", overlayName("a/b"))
}
