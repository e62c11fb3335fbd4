package materialize

import (
	"cmp"
	"fmt"
	"slices"

	"class-importer/internal/progdb"
	"class-importer/utils"
)

// UndefinedType is the primitive name given to filler and untyped fields.
const UndefinedType = "undefined"

// Placement is a field that wants to occupy a fixed byte range.
type Placement struct {
	Field progdb.Field
	// Keep marks a field preserved from a reused type. Kept fields yield to
	// every other placement they overlap.
	Keep bool
	// Union marks an alternative view of bytes another field may already
	// cover. A losing union alternative is noted on the winner instead of
	// being rejected.
	Union bool
}

// Layout places fields into a composite of size bytes and covers every gap
// with filler, so the returned fields are sorted, never overlap, and span
// exactly [0, size).
//
// Placements are taken in rank order: plain fields, then union
// alternatives, then kept fields, each group in declaration order. A
// placement that does not fit or collides with an earlier one is returned in
// rejected. Field names are made unique by appending the offset.
func Layout(size uint64, placements []Placement) (fields []progdb.Field, rejected []Placement) {
	ordered := slices.Clone(placements)
	slices.SortStableFunc(ordered, func(a, b Placement) int { return cmp.Compare(a.rank(), b.rank()) })

	var placed []progdb.Field

	for _, p := range ordered {
		f := p.Field

		if f.Size == 0 || !utils.Fits(f.Offset, f.Size, size) {
			if !p.Keep {
				rejected = append(rejected, p)
			}

			continue
		}

		hit := slices.IndexFunc(placed, func(o progdb.Field) bool {
			return utils.Overlaps(f.Offset, f.End(), o.Offset, o.End())
		})

		switch {
		case hit < 0:
			placed = append(placed, f)
		case p.Union:
			placed[hit].Comment = appendNote(placed[hit].Comment, unionNote(f))
		case !p.Keep:
			rejected = append(rejected, p)
		}
	}

	slices.SortStableFunc(placed, func(a, b progdb.Field) int { return cmp.Compare(a.Offset, b.Offset) })

	fields = make([]progdb.Field, 0, 2*len(placed)+1)
	seen := map[string]bool{}

	var at uint64

	for _, f := range placed {
		if f.Offset > at {
			fields = append(fields, filler(at, f.Offset-at))
		}

		if f.Name != "" {
			if seen[f.Name] {
				f.Name = fmt.Sprintf("%s_0x%x", f.Name, f.Offset)
			}

			seen[f.Name] = true
		}

		fields = append(fields, f)
		at = f.End()
	}

	if at < size {
		fields = append(fields, filler(at, size-at))
	}

	return fields, rejected
}

func (p Placement) rank() int {
	switch {
	case p.Keep:
		return 2
	case p.Union:
		return 1
	default:
		return 0
	}
}

func filler(offset, size uint64) progdb.Field {
	return progdb.Field{
		Offset:    offset,
		Size:      size,
		Kind:      progdb.FieldFiller,
		Primitive: UndefinedType,
	}
}

func unionNote(f progdb.Field) string {
	typ := f.Primitive
	if f.Type != nil {
		typ = f.Type.String()
	}

	return fmt.Sprintf("union alternative %s: %s at 0x%x, %d bytes", f.Name, typ, f.Offset, f.Size)
}

func appendNote(comment, note string) string {
	if comment == "" {
		return note
	}

	return comment + "\n" + note
}

// Coverage reports whether fields are sorted, do not overlap, and span
// exactly [0, size).
func Coverage(size uint64, fields []progdb.Field) bool {
	var at uint64

	for _, f := range fields {
		if f.Offset != at || f.Size == 0 {
			return false
		}

		at = f.End()
	}

	return at == size
}
