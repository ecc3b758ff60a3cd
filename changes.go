package strata

import (
	"image"
	"slices"
)

// LayerState is the authored state of a layer. The producer keeps one per
// Layer and the consumer mirrors it per node.
type LayerState struct {
	Position          Vec2
	AnchorPoint       Vec3
	Size              Vec2
	Transform         Matrix
	ChildrenTransform Matrix
	ContentsRect      Rect
	Opacity           float64
	SolidColor        Color
	Filters           FilterOperations

	DrawsContent    bool
	ContentsOpaque  bool
	ContentsVisible bool
	BackfaceVisible bool
	MasksToBounds   bool
	Preserves3D     bool
	Scrollable      bool

	Mask    LayerID
	Replica LayerID
	Image   ImageID
}

// DefaultLayerState is the state of a freshly created layer on both sides.
func DefaultLayerState() LayerState {
	return LayerState{
		AnchorPoint:       DefaultAnchorPoint,
		Transform:         Identity(),
		ChildrenTransform: Identity(),
		Opacity:           1,
		ContentsVisible:   true,
		BackfaceVisible:   true,
	}
}

// TileCreate announces a new tile. Its rect arrives with its first update.
type TileCreate struct {
	ID    TileID  `json:"id"`
	Scale float64 `json:"scale"`
}

// TileUpdate moves a tile and optionally refreshes part of its pixels. When
// Atlas is non-zero, UpdateRect (tile-local) is copied from the atlas
// starting at Offset.
type TileUpdate struct {
	ID         TileID          `json:"id"`
	TileRect   image.Rectangle `json:"tileRect"`
	UpdateRect image.Rectangle `json:"updateRect"`
	Atlas      AtlasID         `json:"atlas,omitempty"`
	Offset     image.Point     `json:"offset"`
}

// AtlasCreate maps an atlas id to its surface.
type AtlasCreate struct {
	ID      AtlasID   `json:"id"`
	Surface SurfaceID `json:"surface"`
	Alpha   bool      `json:"alpha"`
}

// ImageBacking maps an image id to the surface holding its pixels.
type ImageBacking struct {
	ID      ImageID   `json:"id"`
	Surface SurfaceID `json:"surface"`
}

// ChangeRecord carries the fields of one layer that changed since the last
// flush. A nil field means "unchanged"; the consumer must leave it alone.
// Every field is absolute except CommittedScrollOffset, which is a delta.
type ChangeRecord struct {
	Position          *Vec2             `json:"position,omitempty"`
	AnchorPoint       *Vec3             `json:"anchorPoint,omitempty"`
	Size              *Vec2             `json:"size,omitempty"`
	Transform         *Matrix           `json:"transform,omitempty"`
	ChildrenTransform *Matrix           `json:"childrenTransform,omitempty"`
	ContentsRect      *Rect             `json:"contentsRect,omitempty"`
	Opacity           *float64          `json:"opacity,omitempty"`
	SolidColor        *Color            `json:"solidColor,omitempty"`
	Filters           *FilterOperations `json:"filters,omitempty"`

	DrawsContent    *bool `json:"drawsContent,omitempty"`
	ContentsOpaque  *bool `json:"contentsOpaque,omitempty"`
	ContentsVisible *bool `json:"contentsVisible,omitempty"`
	BackfaceVisible *bool `json:"backfaceVisible,omitempty"`
	MasksToBounds   *bool `json:"masksToBounds,omitempty"`
	Preserves3D     *bool `json:"preserves3D,omitempty"`
	Scrollable      *bool `json:"scrollable,omitempty"`

	Mask    *LayerID `json:"mask,omitempty"`
	Replica *LayerID `json:"replica,omitempty"`
	Image   *ImageID `json:"image,omitempty"`

	Children *[]LayerID `json:"children,omitempty"`

	TilesToCreate []TileCreate `json:"tilesToCreate,omitempty"`
	TilesToUpdate []TileUpdate `json:"tilesToUpdate,omitempty"`
	TilesToRemove []TileID     `json:"tilesToRemove,omitempty"`

	Animations *[]Animation `json:"animations,omitempty"`

	CommittedScrollOffset *Vec2 `json:"committedScrollOffset,omitempty"`
}

// applyGeometry copies geometry and appearance fields into s.
func (r *ChangeRecord) applyGeometry(s *LayerState) {
	if r.Position != nil {
		s.Position = *r.Position
	}
	if r.AnchorPoint != nil {
		s.AnchorPoint = *r.AnchorPoint
	}
	if r.Size != nil {
		s.Size = *r.Size
	}
	if r.Transform != nil {
		s.Transform = *r.Transform
	}
	if r.ChildrenTransform != nil {
		s.ChildrenTransform = *r.ChildrenTransform
	}
	if r.ContentsRect != nil {
		s.ContentsRect = *r.ContentsRect
	}
	if r.Opacity != nil {
		s.Opacity = *r.Opacity
	}
	if r.SolidColor != nil {
		s.SolidColor = *r.SolidColor
	}
	if r.Filters != nil {
		s.Filters = slices.Clone(*r.Filters)
	}
}

// applyFlags copies boolean fields into s.
func (r *ChangeRecord) applyFlags(s *LayerState) {
	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&s.DrawsContent, r.DrawsContent)
	set(&s.ContentsOpaque, r.ContentsOpaque)
	set(&s.ContentsVisible, r.ContentsVisible)
	set(&s.BackfaceVisible, r.BackfaceVisible)
	set(&s.MasksToBounds, r.MasksToBounds)
	set(&s.Preserves3D, r.Preserves3D)
	set(&s.Scrollable, r.Scrollable)
}

// merge folds next, a later record for the same layer, into r.
func (r *ChangeRecord) merge(next *ChangeRecord) {
	pick := func(dst **bool, v *bool) {
		if v != nil {
			*dst = v
		}
	}
	if next.Position != nil {
		r.Position = next.Position
	}
	if next.AnchorPoint != nil {
		r.AnchorPoint = next.AnchorPoint
	}
	if next.Size != nil {
		r.Size = next.Size
	}
	if next.Transform != nil {
		r.Transform = next.Transform
	}
	if next.ChildrenTransform != nil {
		r.ChildrenTransform = next.ChildrenTransform
	}
	if next.ContentsRect != nil {
		r.ContentsRect = next.ContentsRect
	}
	if next.Opacity != nil {
		r.Opacity = next.Opacity
	}
	if next.SolidColor != nil {
		r.SolidColor = next.SolidColor
	}
	if next.Filters != nil {
		r.Filters = next.Filters
	}
	pick(&r.DrawsContent, next.DrawsContent)
	pick(&r.ContentsOpaque, next.ContentsOpaque)
	pick(&r.ContentsVisible, next.ContentsVisible)
	pick(&r.BackfaceVisible, next.BackfaceVisible)
	pick(&r.MasksToBounds, next.MasksToBounds)
	pick(&r.Preserves3D, next.Preserves3D)
	pick(&r.Scrollable, next.Scrollable)
	if next.Mask != nil {
		r.Mask = next.Mask
	}
	if next.Replica != nil {
		r.Replica = next.Replica
	}
	if next.Image != nil {
		r.Image = next.Image
	}
	if next.Children != nil {
		r.Children = next.Children
	}
	r.TilesToCreate = append(r.TilesToCreate, next.TilesToCreate...)
	r.TilesToUpdate = append(r.TilesToUpdate, next.TilesToUpdate...)
	r.TilesToRemove = append(r.TilesToRemove, next.TilesToRemove...)
	if next.Animations != nil {
		r.Animations = next.Animations
	}
	if next.CommittedScrollOffset != nil {
		sum := *next.CommittedScrollOffset
		if r.CommittedScrollOffset != nil {
			sum = sum.Add(*r.CommittedScrollOffset)
		}
		r.CommittedScrollOffset = &sum
	}
}

// FrameState is everything the consumer needs to bring its mirror up to
// date with one producer flush.
type FrameState struct {
	Frame   uint64                    `json:"frame"`
	Root    LayerID                   `json:"root"`
	Created []LayerID                 `json:"created,omitempty"`
	Removed []LayerID                 `json:"removed,omitempty"`
	Updates map[LayerID]*ChangeRecord `json:"updates,omitempty"`

	AtlasesCreated []AtlasCreate `json:"atlasesCreated,omitempty"`
	AtlasesRemoved []AtlasID     `json:"atlasesRemoved,omitempty"`

	ImagesCreated []ImageBacking `json:"imagesCreated,omitempty"`
	ImagesUpdated []ImageBacking `json:"imagesUpdated,omitempty"`
	ImagesRemoved []ImageID      `json:"imagesRemoved,omitempty"`
}

// update returns the record for id, creating it.
func (f *FrameState) update(id LayerID) *ChangeRecord {
	if f.Updates == nil {
		f.Updates = make(map[LayerID]*ChangeRecord)
	}
	r := f.Updates[id]
	if r == nil {
		r = &ChangeRecord{}
		f.Updates[id] = r
	}
	return r
}

// Merge folds next, a later frame, into f so that applying the result once
// is equivalent to applying f and then next. Layers created in f and removed
// in next disappear from both lists.
func (f *FrameState) Merge(next *FrameState) {
	f.Frame = next.Frame
	f.Root = next.Root
	f.Created = append(f.Created, next.Created...)
	for _, id := range next.Removed {
		delete(f.Updates, id)
		if i := slices.Index(f.Created, id); i >= 0 {
			f.Created = slices.Delete(f.Created, i, i+1)
			continue
		}
		f.Removed = append(f.Removed, id)
	}
	for id, rec := range next.Updates {
		f.update(id).merge(rec)
	}
	f.AtlasesCreated = append(f.AtlasesCreated, next.AtlasesCreated...)
	f.AtlasesRemoved = append(f.AtlasesRemoved, next.AtlasesRemoved...)
	f.ImagesCreated = append(f.ImagesCreated, next.ImagesCreated...)
	f.ImagesUpdated = append(f.ImagesUpdated, next.ImagesUpdated...)
	f.ImagesRemoved = append(f.ImagesRemoved, next.ImagesRemoved...)
}
