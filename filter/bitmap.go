// Package filter provides id-set filters applied during search. A filter
// restricts which vectors may appear in results; the graph is still traversed
// through excluded nodes so reachability is preserved.
package filter

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Bitmap is a set of vector identifiers backed by a 64-bit Roaring bitmap.
// Not safe for concurrent mutation; searches treat it as read-only.
type Bitmap struct {
	rb *roaring64.Bitmap
}

// NewBitmap creates a new empty bitmap.
func NewBitmap() *Bitmap {
	return &Bitmap{
		rb: roaring64.New(),
	}
}

// BitmapOf creates a bitmap holding the given ids.
func BitmapOf(ids ...uint64) *Bitmap {
	return &Bitmap{
		rb: roaring64.BitmapOf(ids...),
	}
}

// Add adds an id to the bitmap.
func (b *Bitmap) Add(id uint64) {
	b.rb.Add(id)
}

// Remove removes an id from the bitmap.
func (b *Bitmap) Remove(id uint64) {
	b.rb.Remove(id)
}

// Contains checks if an id is in the bitmap.
func (b *Bitmap) Contains(id uint64) bool {
	return b.rb.Contains(id)
}

// IsEmpty returns true if the bitmap is empty.
func (b *Bitmap) IsEmpty() bool {
	return b.rb.IsEmpty()
}

// Cardinality returns the number of ids in the bitmap.
func (b *Bitmap) Cardinality() uint64 {
	return b.rb.GetCardinality()
}

// Clone returns a deep copy of the bitmap.
func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{
		rb: b.rb.Clone(),
	}
}

// Iterator returns an iterator over the bitmap in ascending order.
func (b *Bitmap) Iterator() iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		it := b.rb.Iterator()
		for it.HasNext() {
			if !yield(it.Next()) {
				return
			}
		}
	}
}

// And computes the intersection with another bitmap in place.
func (b *Bitmap) And(other *Bitmap) {
	b.rb.And(other.rb)
}

// Or computes the union with another bitmap in place.
func (b *Bitmap) Or(other *Bitmap) {
	b.rb.Or(other.rb)
}

// AndNot removes all ids present in the other bitmap.
func (b *Bitmap) AndNot(other *Bitmap) {
	b.rb.AndNot(other.rb)
}

// Clear removes all ids from the bitmap.
func (b *Bitmap) Clear() {
	b.rb.Clear()
}

// GetSizeInBytes returns the serialized size of the bitmap in bytes.
func (b *Bitmap) GetSizeInBytes() uint64 {
	return b.rb.GetSizeInBytes()
}
