package fhir

import (
	"strconv"
	"strings"

	"github.com/telemed-health/telemed-api/models"
)

// FromPatient maps a stored patient (with its User loaded) to a resource.
func FromPatient(p *models.Patient) Patient {
	res := Patient{
		ResourceType: ResourceTypePatient,
		ID:           strconv.FormatUint(uint64(p.ID), 10),
		Name:         []HumanName{{Text: p.User.DisplayName()}},
		Telecom:      []ContactPoint{},
	}
	if p.ContactNumber != "" {
		res.Telecom = append(res.Telecom, ContactPoint{System: ContactSystemPhone, Value: p.ContactNumber})
	}
	if p.DateOfBirth != nil {
		d := p.DateOfBirth.String()
		res.BirthDate = &d
	}
	return res
}

// DisplayName is the first declared name: its text, or given and family
// names joined when text is absent.
func (p *Patient) DisplayName() string {
	if len(p.Name) == 0 {
		return ""
	}
	n := p.Name[0]
	if n.Text != "" {
		return n.Text
	}
	parts := append([]string{}, n.Given...)
	if n.Family != "" {
		parts = append(parts, n.Family)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Phone returns the value of the first telecom entry with system phone.
func (p *Patient) Phone() string {
	for _, t := range p.Telecom {
		if t.System == ContactSystemPhone {
			return t.Value
		}
	}
	return ""
}
