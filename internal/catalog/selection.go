package catalog

import "slices"

// Selection maps every known attribute to the chosen value, or NoValue.
//
// A Selection is a value snapshot: callers that hand one to another
// component and keep mutating must Clone first.
type Selection map[AttributeID]ValueID

// Clone returns an independent copy.
func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Value returns the chosen value for an attribute (NoValue if unset).
func (s Selection) Value(id AttributeID) ValueID {
	return s[id]
}

// With returns a copy with one attribute changed. The receiver is untouched.
func (s Selection) With(id AttributeID, value ValueID) Selection {
	out := s.Clone()
	out[id] = value
	return out
}

// IsEmptyOption reports whether no attribute has a value chosen.
// A selection over zero attributes is vacuously empty.
func (s Selection) IsEmptyOption() bool {
	for _, v := range s {
		if v != NoValue {
			return false
		}
	}
	return true
}

// Equal reports structural equality.
func (s Selection) Equal(other Selection) bool {
	if len(s) != len(other) {
		return false
	}
	for k, v := range s {
		ov, ok := other[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// SortedIDs returns the attribute ids in ascending order.
func (s Selection) SortedIDs() []AttributeID {
	ids := make([]AttributeID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
