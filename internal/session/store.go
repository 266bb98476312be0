package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/timeblock-api/internal/models"
)

// Store is the ordered, in-memory collection of a user's time blocks.
// Callers validate blocks and generate ids before writing; the store never rejects a write.
type Store struct {
	blocks []models.TimeBlock
}

// NewStore builds a store holding a copy of blocks.
func NewStore(blocks []models.TimeBlock) *Store {
	s := &Store{blocks: make([]models.TimeBlock, 0, len(blocks))}
	s.blocks = append(s.blocks, blocks...)
	return s
}

// NewSeededStore builds a store populated with example blocks for today and tomorrow.
func NewSeededStore(now time.Time) *Store {
	return NewStore(seedBlocks(now))
}

// Add appends block. Duplicate ids are not detected.
func (s *Store) Add(block models.TimeBlock) {
	s.blocks = append(s.blocks, block)
}

// Update replaces the block sharing block.ID in place. It reports whether a block was replaced.
func (s *Store) Update(block models.TimeBlock) bool {
	for i := range s.blocks {
		if s.blocks[i].ID == block.ID {
			s.blocks[i] = block
			return true
		}
	}
	return false
}

// Delete removes the block with id. It reports whether a block was removed.
func (s *Store) Delete(id string) bool {
	kept := s.blocks[:0]
	removed := false
	for _, b := range s.blocks {
		if b.ID == id {
			removed = true
			continue
		}
		kept = append(kept, b)
	}
	s.blocks = kept
	return removed
}

// Get returns the block with id.
func (s *Store) Get(id string) (models.TimeBlock, bool) {
	for _, b := range s.blocks {
		if b.ID == id {
			return b, true
		}
	}
	return models.TimeBlock{}, false
}

// List returns the blocks in insertion order.
func (s *Store) List() []models.TimeBlock {
	out := make([]models.TimeBlock, len(s.blocks))
	copy(out, s.blocks)
	return out
}

// Len returns the number of blocks.
func (s *Store) Len() int {
	return len(s.blocks)
}

func seedBlocks(now time.Time) []models.TimeBlock {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	tomorrow := today.AddDate(0, 0, 1)
	at := func(day time.Time, hour, minute int) time.Time {
		return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
	}

	return []models.TimeBlock{
		{
			ID:          uuid.NewString(),
			Title:       "Frontend development",
			Start:       at(today, 9, 0),
			End:         at(today, 12, 0),
			Category:    models.CategoryCLT,
			Description: "Building React components",
		},
		{
			ID:          uuid.NewString(),
			Title:       "Freelance project",
			Start:       at(today, 14, 0),
			End:         at(today, 16, 0),
			Category:    models.CategoryPJ,
			Description: "Landing page development",
		},
		{
			ID:          uuid.NewString(),
			Title:       "TypeScript course",
			Start:       at(today, 16, 30),
			End:         at(today, 18, 0),
			Category:    models.CategoryEstudo,
			Description: "Generics and advanced types module",
		},
		{
			ID:          uuid.NewString(),
			Title:       "Gym",
			Start:       at(today, 18, 30),
			End:         at(today, 20, 0),
			Category:    models.CategoryPessoal,
			Description: "Strength training",
		},
		{
			ID:          uuid.NewString(),
			Title:       "Team meeting",
			Start:       at(tomorrow, 10, 0),
			End:         at(tomorrow, 11, 30),
			Category:    models.CategoryCLT,
			Description: "Weekly planning",
		},
		{
			ID:          uuid.NewString(),
			Title:       "Reading",
			Start:       at(tomorrow, 20, 0),
			End:         at(tomorrow, 21, 30),
			Category:    models.CategoryPessoal,
			Description: "Book: Clean Code",
		},
	}
}
