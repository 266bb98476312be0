package models

// Category identifies the activity type of a time block.
type Category string

const (
	CategoryCLT      Category = "clt"
	CategoryPJ       Category = "pj"
	CategoryEstudo   Category = "estudo"
	CategoryPessoal  Category = "pessoal"
	CategorySocial   Category = "social"
	CategoryExternal Category = "external"
)

// DefaultCategoryColor is used for categories without a registry entry, such as external events.
const DefaultCategoryColor = "#9ca3af"

// CategoryInfo is the static display descriptor of a category.
type CategoryInfo struct {
	ID    Category `json:"id"`
	Label string   `json:"label"`
	Color string   `json:"color"`
}

var categoryRegistry = [...]CategoryInfo{
	{ID: CategoryCLT, Label: "CLT", Color: "#3b82f6"},
	{ID: CategoryPJ, Label: "PJ", Color: "#10b981"},
	{ID: CategoryEstudo, Label: "Estudo", Color: "#8b5cf6"},
	{ID: CategoryPessoal, Label: "Pessoal", Color: "#f97316"},
	{ID: CategorySocial, Label: "Social", Color: "#ec4899"},
}

// Categories returns the registry entries in display order.
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, len(categoryRegistry))
	copy(out, categoryRegistry[:])
	return out
}

// LookupCategory returns the registry entry for id.
func LookupCategory(id Category) (CategoryInfo, bool) {
	for _, info := range categoryRegistry {
		if info.ID == id {
			return info, true
		}
	}
	return CategoryInfo{}, false
}

// IsKnownCategory reports whether id has a registry entry.
func IsKnownCategory(id Category) bool {
	_, ok := LookupCategory(id)
	return ok
}

// CategoryColor returns the display color for id, falling back to DefaultCategoryColor.
func CategoryColor(id Category) string {
	if info, ok := LookupCategory(id); ok {
		return info.Color
	}
	return DefaultCategoryColor
}

// CategoryFilter maps every registry category to its visibility flag.
type CategoryFilter map[Category]bool

// DefaultCategoryFilter returns a filter with every registry category visible.
func DefaultCategoryFilter() CategoryFilter {
	filter := make(CategoryFilter, len(categoryRegistry))
	for _, info := range categoryRegistry {
		filter[info.ID] = true
	}
	return filter
}
