// Package staging keeps the ordered list of files picked for upload and
// applies the acceptance rules of the picker or drop zone.
package staging

// Filter configures which candidates a Staging accepts.
type Filter struct {
	// Accept is an accept expression, e.g. "image/*". Empty accepts all.
	Accept string
	// Multiple allows more than one staged file.
	Multiple bool
	// Replace makes every selection replace the staged set instead of
	// appending to it.
	Replace bool
}

// Staging is the ordered list of staged files. It is not safe for
// concurrent use.
type Staging struct {
	filter Filter
	files  []File
}

func New(filter Filter) *Staging {
	return &Staging{filter: filter}
}

// Stage appends the candidates of one selection event that pass the filter
// and returns the accepted files in call order.
//
// With Multiple unset only the first candidate is considered, and the event
// is ignored entirely while a file is already staged. A candidate failing the
// accept expression is dropped and never staged.
func (s *Staging) Stage(candidates []File) []File {
	if !s.filter.Multiple {
		if len(s.files) > 0 || len(candidates) == 0 {
			return nil
		}
		candidates = candidates[:1]
	}

	var accepted []File
	for _, f := range candidates {
		if !Accepts(s.filter.Accept, f.Name) {
			continue
		}
		f.AcceptClass = s.filter.Accept
		s.files = append(s.files, f)
		accepted = append(accepted, f)
	}

	return accepted
}

// Remove deletes the first staged file called name.
func (s *Staging) Remove(name string) bool {
	for i, f := range s.files {
		if f.Name == name {
			s.files = append(s.files[:i], s.files[i+1:]...)
			return true
		}
	}

	return false
}

// Contains reports whether a file called name is staged.
func (s *Staging) Contains(name string) bool {
	for _, f := range s.files {
		if f.Name == name {
			return true
		}
	}

	return false
}

func (s *Staging) Clear() {
	s.files = nil
}

func (s *Staging) Len() int {
	return len(s.files)
}

// Names returns the staged filenames in order, duplicates included.
func (s *Staging) Names() []string {
	names := make([]string, 0, len(s.files))
	for _, f := range s.files {
		names = append(names, f.Name)
	}

	return names
}

// Files returns a copy of the staged list.
func (s *Staging) Files() []File {
	out := make([]File, len(s.files))
	copy(out, s.files)

	return out
}
