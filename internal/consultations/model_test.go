package consultations

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBMI(t *testing.T) {
	c := Consultation{WeightKg: 70, HeightCm: 175}
	assert.Equal(t, 22.9, c.BMI())

	c = Consultation{WeightKg: 90, HeightCm: 160}
	assert.Equal(t, 35.2, c.BMI())
}

func TestBMIMissingVitals(t *testing.T) {
	assert.Equal(t, 0.0, (&Consultation{WeightKg: 70}).BMI())
	assert.Equal(t, 0.0, (&Consultation{HeightCm: 175}).BMI())
	assert.Equal(t, 0.0, (&Consultation{}).BMI())
}
