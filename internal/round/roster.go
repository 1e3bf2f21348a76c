package round

// Roster is the set of players still in the round. It only shrinks.
type Roster struct {
	ids []EntityID
}

func NewRoster(ids []EntityID) *Roster {
	r := &Roster{ids: make([]EntityID, 0, len(ids))}
	for _, id := range ids {
		if !r.Contains(id) {
			r.ids = append(r.ids, id)
		}
	}
	return r
}

func (r *Roster) Len() int {
	return len(r.ids)
}

func (r *Roster) IDs() []EntityID {
	return append([]EntityID(nil), r.ids...)
}

func (r *Roster) Contains(id EntityID) bool {
	for _, e := range r.ids {
		if e == id {
			return true
		}
	}
	return false
}

func (r *Roster) Remove(id EntityID) bool {
	for i, e := range r.ids {
		if e == id {
			r.ids = append(r.ids[:i], r.ids[i+1:]...)
			return true
		}
	}
	return false
}

// Retain keeps the entries for which keep returns true and returns the
// removed ids.
func (r *Roster) Retain(keep func(EntityID) bool) []EntityID {
	var removed []EntityID
	kept := r.ids[:0]
	for _, id := range r.ids {
		if keep(id) {
			kept = append(kept, id)
		} else {
			removed = append(removed, id)
		}
	}
	r.ids = kept
	return removed
}
