package session

import (
	"fmt"

	"github.com/noah-isme/timeblock-api/internal/models"
	appErrors "github.com/noah-isme/timeblock-api/pkg/errors"
)

// Filters holds one visibility flag per registry category.
type Filters struct {
	visible models.CategoryFilter
}

// NewFilters returns filters with every category visible.
func NewFilters() *Filters {
	return &Filters{visible: models.DefaultCategoryFilter()}
}

// RestoreFilters rebuilds filters from a persisted map. Unknown keys are dropped and
// missing categories default to visible.
func RestoreFilters(saved models.CategoryFilter) *Filters {
	f := NewFilters()
	for category, visible := range saved {
		if _, ok := f.visible[category]; ok {
			f.visible[category] = visible
		}
	}
	return f
}

// Toggle flips the flag for category and returns the new value.
func (f *Filters) Toggle(category models.Category) (bool, error) {
	current, ok := f.visible[category]
	if !ok {
		return false, unknownCategory(category)
	}
	f.visible[category] = !current
	return !current, nil
}

// Set assigns the flag for category.
func (f *Filters) Set(category models.Category, visible bool) error {
	if _, ok := f.visible[category]; !ok {
		return unknownCategory(category)
	}
	f.visible[category] = visible
	return nil
}

// Reset makes every category visible again.
func (f *Filters) Reset() {
	f.visible = models.DefaultCategoryFilter()
}

// Visible reports the flag for category. Categories outside the registry are never visible.
func (f *Filters) Visible(category models.Category) bool {
	return f.visible[category]
}

// Snapshot returns a copy of the flags.
func (f *Filters) Snapshot() models.CategoryFilter {
	out := make(models.CategoryFilter, len(f.visible))
	for k, v := range f.visible {
		out[k] = v
	}
	return out
}

func unknownCategory(category models.Category) error {
	return appErrors.Clone(appErrors.ErrUnknownCategory, fmt.Sprintf("unknown category %q", category))
}
