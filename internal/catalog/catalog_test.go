package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorsInFiltersByDepartment(t *testing.T) {
	c := Default()

	doctors := c.DoctorsIn("Physical Therapy")
	require.NotEmpty(t, doctors)
	for _, d := range doctors {
		assert.Equal(t, "Physical Therapy", d.Department)
	}
	names := make([]string, 0, len(doctors))
	for _, d := range doctors {
		names = append(names, d.Name)
	}
	assert.Contains(t, names, "Dr. Sarah Wilson")
	assert.NotContains(t, names, "Dr. Michael Chen")
}

func TestDoctorsInOrdersByRating(t *testing.T) {
	c := Default()
	doctors := c.DoctorsIn("physical therapy")
	require.Len(t, doctors, 2)
	assert.Equal(t, "Dr. Sarah Wilson", doctors[0].Name)
	assert.GreaterOrEqual(t, doctors[0].Rating, doctors[1].Rating)
}

func TestLookupNormalizesNames(t *testing.T) {
	c := Default()

	dept, ok := c.Department("  speech   THERAPY ")
	require.True(t, ok)
	assert.Equal(t, "Speech Therapy", dept.Name)

	doc, ok := c.Doctor("dr. sarah wilson")
	require.True(t, ok)
	assert.Equal(t, "Dr. Sarah Wilson", doc.Name)

	_, ok = c.Department("Dermatology")
	assert.False(t, ok)
	assert.Nil(t, c.DoctorsIn("Dermatology"))
}

func TestBelongsTo(t *testing.T) {
	c := Default()
	assert.True(t, c.BelongsTo("Dr. Sarah Wilson", "Physical Therapy"))
	assert.False(t, c.BelongsTo("Dr. Sarah Wilson", "Speech Therapy"))
	assert.False(t, c.BelongsTo("Dr. Nobody", "Physical Therapy"))
}

func TestNewDropsOrphansAndDuplicates(t *testing.T) {
	c := New(
		[]Department{{Name: "Physical Therapy"}, {Name: "physical therapy", Description: "dup"}, {Name: ""}},
		[]Doctor{
			{Name: "Dr. A", Department: "physical therapy"},
			{Name: "Dr. A", Department: "Physical Therapy", Rating: 5},
			{Name: "Dr. B", Department: "Unknown"},
		},
	)
	assert.Len(t, c.Departments(), 1)
	doctors := c.DoctorsIn("Physical Therapy")
	require.Len(t, doctors, 1)
	assert.Equal(t, "Physical Therapy", doctors[0].Department)
	_, ok := c.Doctor("Dr. B")
	assert.False(t, ok)
}

func TestDepartmentsReturnsCopy(t *testing.T) {
	c := Default()
	depts := c.Departments()
	depts[0].Name = "mutated"
	assert.Equal(t, "Physical Therapy", c.Departments()[0].Name)
}
