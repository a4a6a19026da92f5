// Package catalog holds the static department and doctor reference data the
// booking flow filters against. It is read-only once built.
package catalog

import (
	"sort"
	"strings"
)

// Department is a clinical department patients can book into.
type Department struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Doctor is a clinician belonging to exactly one department.
type Doctor struct {
	Name           string  `json:"name"`
	Department     string  `json:"department"`
	Specialization string  `json:"specialization"`
	Rating         float64 `json:"rating"`
}

// Catalog indexes departments and doctors by normalized name.
type Catalog struct {
	departments []Department
	doctors     []Doctor
	deptIndex   map[string]int
	doctorIndex map[string]int
}

// New builds a catalog. Later duplicates of a name are ignored, and doctors
// pointing at an unknown department are dropped.
func New(departments []Department, doctors []Doctor) *Catalog {
	c := &Catalog{
		deptIndex:   make(map[string]int, len(departments)),
		doctorIndex: make(map[string]int, len(doctors)),
	}
	for _, d := range departments {
		key := normalizeKey(d.Name)
		if key == "" {
			continue
		}
		if _, ok := c.deptIndex[key]; ok {
			continue
		}
		c.deptIndex[key] = len(c.departments)
		c.departments = append(c.departments, d)
	}
	for _, doc := range doctors {
		key := normalizeKey(doc.Name)
		if key == "" {
			continue
		}
		if _, ok := c.doctorIndex[key]; ok {
			continue
		}
		dept, ok := c.Department(doc.Department)
		if !ok {
			continue
		}
		doc.Department = dept.Name
		c.doctorIndex[key] = len(c.doctors)
		c.doctors = append(c.doctors, doc)
	}
	return c
}

func normalizeKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Departments returns all departments in catalog order.
func (c *Catalog) Departments() []Department {
	out := make([]Department, len(c.departments))
	copy(out, c.departments)
	return out
}

// Department looks a department up by name, ignoring case and extra spaces.
func (c *Catalog) Department(name string) (Department, bool) {
	idx, ok := c.deptIndex[normalizeKey(name)]
	if !ok {
		return Department{}, false
	}
	return c.departments[idx], true
}

// Doctor looks a doctor up by name, ignoring case and extra spaces.
func (c *Catalog) Doctor(name string) (Doctor, bool) {
	idx, ok := c.doctorIndex[normalizeKey(name)]
	if !ok {
		return Doctor{}, false
	}
	return c.doctors[idx], true
}

// DoctorsIn returns the doctors of a department, best rated first.
// An unknown department yields nil.
func (c *Catalog) DoctorsIn(department string) []Doctor {
	dept, ok := c.Department(department)
	if !ok {
		return nil
	}
	var out []Doctor
	for _, doc := range c.doctors {
		if doc.Department == dept.Name {
			out = append(out, doc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	return out
}

// BelongsTo reports whether doctor works in department.
func (c *Catalog) BelongsTo(doctor, department string) bool {
	doc, ok := c.Doctor(doctor)
	if !ok {
		return false
	}
	dept, ok := c.Department(department)
	return ok && doc.Department == dept.Name
}
