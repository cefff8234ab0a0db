package models

// PublicItemType describes one entry of the closed set of item types that
// may be published to the community map. The label becomes the persisted
// title of a PUBLIC item; the caller-supplied title is ignored for those.
type PublicItemType struct {
	Category string
	Label    string
}

var publicItemTypes = map[string]PublicItemType{
	"documents":   {Category: "documents", Label: "Found documents"},
	"electronics": {Category: "electronics", Label: "Found electronics"},
	"jewelry":     {Category: "jewelry", Label: "Found jewelry"},
	"clothing":    {Category: "clothing", Label: "Found clothing"},
	"bag":         {Category: "bag", Label: "Found bag"},
	"keys":        {Category: "keys", Label: "Found keys"},
	"phone":       {Category: "phone", Label: "Found phone"},
	"pet":         {Category: "pet", Label: "Found pet"},
	"other":       {Category: "other", Label: "Found item"},
}

// LookupPublicItemType resolves a category value from the create form.
// The set is closed: anything not listed here is rejected at creation.
func LookupPublicItemType(category string) (PublicItemType, bool) {
	t, ok := publicItemTypes[category]
	return t, ok
}

// PublicCategories returns the accepted category values, for form rendering
// and validation messages.
func PublicCategories() []string {
	out := make([]string, 0, len(publicItemTypes))
	for c := range publicItemTypes {
		out = append(out, c)
	}
	return out
}
