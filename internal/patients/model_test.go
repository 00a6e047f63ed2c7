package patients

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAge(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		birth time.Time
		want  int
	}{
		{"birthday already passed this year", time.Date(1990, 3, 10, 0, 0, 0, 0, time.UTC), 35},
		{"birthday later this year", time.Date(1990, 9, 10, 0, 0, 0, 0, time.UTC), 34},
		{"birthday today", time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC), 35},
		{"birthday tomorrow", time.Date(1990, 6, 16, 0, 0, 0, 0, time.UTC), 34},
		{"same month earlier day", time.Date(1990, 6, 1, 0, 0, 0, 0, time.UTC), 35},
		{"infant born this year", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), 0},
		{"infant born later this year", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), 0},
		{"leap day birth, non-leap year", time.Date(2000, 2, 29, 0, 0, 0, 0, time.UTC), 25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Patient{BirthDate: tc.birth}
			assert.Equal(t, tc.want, p.Age(now))
		})
	}
}

func TestFullName(t *testing.T) {
	p := Patient{FirstName: "Maria", LastName: "Lopez"}
	assert.Equal(t, "Maria Lopez", p.FullName())
}
