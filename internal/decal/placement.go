// Package decal projects an image onto mesh surfaces.
//
// A decal is built by transforming the target mesh into the space of an
// oriented box (the projector), clipping its triangles against the box and
// mapping the box's X/Y extent onto the image. The resulting patch is
// returned in world space and is drawn as a separate overlay mesh.
package decal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chewxy/math32"

	"github.com/Faultbox/decalview/pkg/math"
)

// ErrInvalidPlacement is returned for placements with a non-positive size.
var ErrInvalidPlacement = errors.New("invalid decal placement")

// Placement is the position, orientation and extent of the projector box.
type Placement struct {
	Position math.Vec3
	Rotation math.Euler
	Size     math.Vec3
}

// DefaultPlacement projects a 15x15 image, 20 units deep, along the X axis
// onto the side of a normalized model.
func DefaultPlacement() Placement {
	return Placement{
		Position: math.Vec3{X: 10, Y: 1, Z: 1},
		Rotation: math.Euler{X: 0, Y: math32.Pi / 2, Z: 0},
		Size:     math.Vec3{X: 15, Y: 15, Z: 20},
	}
}

// Matrix returns the projector's world transform.
func (p Placement) Matrix() math.Mat4 {
	return math.Compose(p.Position, p.Rotation.Quat(), math.Vec3{X: 1, Y: 1, Z: 1})
}

// Validate checks that every size component is positive.
func (p Placement) Validate() error {
	if p.Size.X <= 0 || p.Size.Y <= 0 || p.Size.Z <= 0 {
		return fmt.Errorf("%w: size %v", ErrInvalidPlacement, p.Size)
	}
	return nil
}

// Table maps model names to placements. Names are matched case-insensitively
// against the base name of the model source.
type Table struct {
	def     Placement
	entries map[string]Placement
}

// NewTable creates a table that falls back to def.
func NewTable(def Placement) *Table {
	return &Table{def: def, entries: make(map[string]Placement)}
}

// Set registers a placement for a model name.
func (t *Table) Set(model string, p Placement) {
	t.entries[strings.ToLower(model)] = p
}

// Default returns the fallback placement.
func (t *Table) Default() Placement {
	return t.def
}

// Lookup returns the placement for model, or the default.
func (t *Table) Lookup(model string) Placement {
	if t == nil {
		return DefaultPlacement()
	}
	if p, ok := t.entries[strings.ToLower(model)]; ok {
		return p
	}
	return t.def
}

// Len returns the number of explicit entries.
func (t *Table) Len() int {
	return len(t.entries)
}
