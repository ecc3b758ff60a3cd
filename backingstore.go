package strata

import "image"

// Tile is one grid cell of a layer's backing store. Rect is in layer-local
// pixels; a parked tile has an empty Rect and covers nothing until it is
// recycled.
type Tile struct {
	ID      TileID
	Rect    image.Rectangle
	Scale   float64
	painted bool
}

// Parked reports whether the tile is retained only for recycling.
func (t *Tile) Parked() bool { return t.Rect.Empty() }

// TileChanges is the outcome of a BackingStore resize.
type TileChanges struct {
	Created  []*Tile
	Recycled []*Tile
	Parked   []*Tile
	Removed  []TileID
	// Repaint covers painted tiles that were removed; the area behind them
	// lost coverage.
	Repaint Region
}

// Empty reports whether the resize changed nothing.
func (c TileChanges) Empty() bool {
	return len(c.Created) == 0 && len(c.Recycled) == 0 && len(c.Parked) == 0 && len(c.Removed) == 0
}

// BackingStore splits a layer's paintable area into a grid of tiles and
// keeps the tile set in step with the layer size, recycling tiles in place
// rather than destroying and recreating them.
type BackingStore struct {
	tiles          []*Tile
	nextID         TileID
	totalSize      image.Point
	tileSize       image.Point
	alpha          bool
	eraseThreshold int
}

// NewBackingStore creates an empty store that retains up to eraseThreshold
// tiles for recycling.
func NewBackingStore(eraseThreshold int) *BackingStore {
	return &BackingStore{eraseThreshold: eraseThreshold}
}

// TotalSize returns the covered size.
func (b *BackingStore) TotalSize() image.Point { return b.totalSize }

// SupportsAlpha reports the alpha mode tiles were last sized for.
func (b *BackingStore) SupportsAlpha() bool { return b.alpha }

// Tiles returns the tiles currently covering the store, in grid order of
// their creation. Parked tiles are excluded.
func (b *BackingStore) Tiles() []*Tile {
	out := make([]*Tile, 0, len(b.tiles))
	for _, t := range b.tiles {
		if !t.Parked() {
			out = append(out, t)
		}
	}
	return out
}

// TileCount returns the number of tiles, parked ones included.
func (b *BackingStore) TileCount() int { return len(b.tiles) }

func gridRects(total, tileSize image.Point) []image.Rectangle {
	if total.X <= 0 || total.Y <= 0 || tileSize.X <= 0 || tileSize.Y <= 0 {
		return nil
	}
	bounds := image.Rectangle{Max: total}
	var rects []image.Rectangle
	for y := 0; y < total.Y; y += tileSize.Y {
		for x := 0; x < total.X; x += tileSize.X {
			rects = append(rects, image.Rect(x, y, x+tileSize.X, y+tileSize.Y).Intersect(bounds))
		}
	}
	return rects
}

// Resize brings the tile set to a grid of tileSize cells over total. Tiles
// whose rect is still needed are kept untouched, the rest are recycled
// into missing rects, and tiles beyond the erase threshold are removed.
// Changing the alpha mode recycles every tile.
func (b *BackingStore) Resize(total, tileSize image.Point, alpha bool) TileChanges {
	var ch TileChanges
	if total == b.totalSize && tileSize == b.tileSize && alpha == b.alpha {
		return ch
	}
	alphaChanged := alpha != b.alpha
	b.totalSize, b.tileSize, b.alpha = total, tileSize, alpha

	needed := gridRects(total, tileSize)
	satisfied := make(map[image.Rectangle]bool, len(needed))
	for _, r := range needed {
		satisfied[r] = false
	}

	kept := make([]*Tile, 0, len(b.tiles))
	var unused []*Tile
	for _, t := range b.tiles {
		done, want := satisfied[t.Rect]
		if want && !done && !alphaChanged {
			satisfied[t.Rect] = true
			kept = append(kept, t)
			continue
		}
		unused = append(unused, t)
	}

	for _, r := range needed {
		if satisfied[r] {
			continue
		}
		if len(unused) > 0 {
			t := unused[0]
			unused = unused[1:]
			t.Rect = r
			t.painted = false
			kept = append(kept, t)
			ch.Recycled = append(ch.Recycled, t)
			continue
		}
		b.nextID++
		t := &Tile{ID: b.nextID, Rect: r, Scale: 1}
		kept = append(kept, t)
		ch.Created = append(ch.Created, t)
	}

	count := len(kept) + len(unused)
	for _, t := range unused {
		if count > b.eraseThreshold {
			if t.painted {
				ch.Repaint.Add(t.Rect)
			}
			ch.Removed = append(ch.Removed, t.ID)
			count--
			continue
		}
		if !t.Parked() {
			t.Rect = image.Rectangle{}
			t.painted = false
			ch.Parked = append(ch.Parked, t)
		}
		kept = append(kept, t)
	}
	b.tiles = kept
	return ch
}

// UpdateContents calls paint for every tile intersecting dirty. target is
// the intersection in tile-local pixels and sourceOffset is where that
// intersection starts relative to dirty. paint reports whether the tile
// now holds valid content.
func (b *BackingStore) UpdateContents(dirty image.Rectangle, paint func(t *Tile, target image.Rectangle, sourceOffset image.Point) bool) {
	if dirty.Empty() {
		return
	}
	for _, t := range b.tiles {
		if t.Parked() {
			continue
		}
		clip := t.Rect.Intersect(dirty)
		if clip.Empty() {
			continue
		}
		target := clip.Sub(t.Rect.Min)
		if paint(t, target, clip.Min.Sub(dirty.Min)) {
			t.painted = true
		}
	}
}

// Purge drops every tile and returns their ids. The next Resize starts from
// scratch.
func (b *BackingStore) Purge() []TileID {
	ids := make([]TileID, 0, len(b.tiles))
	for _, t := range b.tiles {
		ids = append(ids, t.ID)
	}
	b.tiles = nil
	b.totalSize = image.Point{}
	b.tileSize = image.Point{}
	return ids
}
