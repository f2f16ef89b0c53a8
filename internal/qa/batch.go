package qa

import "github.com/thywilljoshua/pdf-insights/internal/backend"

// Batch is the set of files staged for the next upload, keyed by filename.
// The zero value is an empty batch.
type Batch struct {
	parts []backend.Part
}

// Add stages parts whose names are not already present and reports how many
// were added. Duplicates within parts are also dropped.
func (b *Batch) Add(parts ...backend.Part) int {
	added := 0
	for _, p := range parts {
		if b.Has(p.Name) {
			continue
		}
		b.parts = append(b.parts, p)
		added++
	}
	return added
}

// Remove drops the file with the given name.
func (b *Batch) Remove(name string) bool {
	for i, p := range b.parts {
		if p.Name == name {
			b.parts = append(b.parts[:i:i], b.parts[i+1:]...)
			return true
		}
	}
	return false
}

func (b *Batch) Has(name string) bool {
	for _, p := range b.parts {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (b *Batch) Len() int { return len(b.parts) }

// Names lists staged filenames in staging order.
func (b *Batch) Names() []string {
	out := make([]string, len(b.parts))
	for i, p := range b.parts {
		out[i] = p.Name
	}
	return out
}

// Parts returns a copy of the staged parts.
func (b *Batch) Parts() []backend.Part {
	out := make([]backend.Part, len(b.parts))
	copy(out, b.parts)
	return out
}
