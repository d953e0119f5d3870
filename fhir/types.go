package fhir

const (
	ResourceTypePatient = "Patient"
	ResourceTypeBundle  = "Bundle"

	BundleTypeCollection = "collection"

	ContactSystemPhone = "phone"
)

// Bundle is a FHIR Bundle carrying whole resources.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Entry        []BundleEntry `json:"entry"`
}

type BundleEntry struct {
	FullURL  string `json:"fullUrl,omitempty"`
	Resource any    `json:"resource"`
}

type HumanName struct {
	Text   string   `json:"text,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

type ContactPoint struct {
	System string `json:"system"`
	Value  string `json:"value"`
}

// Patient is the simplified Patient resource this API reads and writes.
type Patient struct {
	ResourceType string         `json:"resourceType"`
	ID           string         `json:"id,omitempty"`
	Name         []HumanName    `json:"name"`
	Telecom      []ContactPoint `json:"telecom"`
	BirthDate    *string        `json:"birthDate"`
}

// Reference is the reply to a create.
type Reference struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
}

// NewCollection wraps resources in a collection Bundle.
func NewCollection(resources []Patient) *Bundle {
	entries := make([]BundleEntry, len(resources))
	for i, r := range resources {
		entries[i] = BundleEntry{Resource: r}
	}
	total := len(resources)
	return &Bundle{
		ResourceType: ResourceTypeBundle,
		Type:         BundleTypeCollection,
		Total:        &total,
		Entry:        entries,
	}
}
