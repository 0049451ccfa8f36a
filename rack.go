package mixrack

import "fmt"

// Rack is the ordered collection of strips. The index of a strip in Strips is
// the strip index used in all messages concerning it.
type Rack struct {
	Strips []Strip `json:"strips"`
}

func (r *Rack) Len() int { return len(r.Strips) }

// Strip returns a pointer to the strip at index i.
func (r *Rack) Strip(i int) (*Strip, error) {
	if i < 0 || i >= len(r.Strips) {
		return nil, fmt.Errorf("strip %d of %d: %w", i, len(r.Strips), ErrOutOfRange)
	}
	return &r.Strips[i], nil
}

// IndexOf returns the index of the strip with the given ID, or -1.
func (r *Rack) IndexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range r.Strips {
		if r.Strips[i].ID == id {
			return i
		}
	}
	return -1
}

// Add appends a strip and returns its index.
func (r *Rack) Add(s Strip) int {
	r.Strips = append(r.Strips, s)
	return len(r.Strips) - 1
}

// Remove removes the strip at index i, shifting later strips down by one.
func (r *Rack) Remove(i int) (Strip, error) {
	if i < 0 || i >= len(r.Strips) {
		return Strip{}, fmt.Errorf("strip %d of %d: %w", i, len(r.Strips), ErrOutOfRange)
	}
	s := r.Strips[i]
	r.Strips = append(r.Strips[:i], r.Strips[i+1:]...)
	return s, nil
}

func (r *Rack) Clear() { r.Strips = nil }

// Copy makes a deep copy of the rack.
func (r *Rack) Copy() Rack {
	if r.Strips == nil {
		return Rack{}
	}
	strips := make([]Strip, len(r.Strips))
	for i := range r.Strips {
		strips[i] = r.Strips[i].Copy()
	}
	return Rack{Strips: strips}
}
