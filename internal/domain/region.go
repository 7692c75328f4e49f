package domain

// RegionContext scopes catalog API requests to one store. It is produced once
// per run and shared read-only by every worker.
type RegionContext struct {
	SalesChannel int    `json:"sales_channel"`
	RegionID     string `json:"region_id"`
	Locale       string `json:"locale"`
}

type CategoryTask struct {
	Name  string `json:"name"`  // Display name, e.g. "Refrigerantes"
	Label string `json:"label"` // Facet value sent to the API, e.g. "refrigerantes"
}

type CategoryTaxonomy []CategoryTask

// Names returns the category names in taxonomy order.
func (t CategoryTaxonomy) Names() []string {
	names := make([]string, 0, len(t))
	for _, c := range t {
		names = append(names, c.Name)
	}
	return names
}
