package strata

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func ptr[T any](v T) *T { return &v }

func TestChangeRecordMergeLaterWins(t *testing.T) {
	r := &ChangeRecord{
		Position:     ptr(Vec2{1, 2}),
		Opacity:      ptr(0.5),
		DrawsContent: ptr(true),
		Children:     &[]LayerID{2, 3},
	}
	r.merge(&ChangeRecord{
		Position: ptr(Vec2{5, 6}),
		Children: &[]LayerID{3},
		Mask:     ptr(LayerID(4)),
	})
	want := &ChangeRecord{
		Position:     ptr(Vec2{5, 6}),
		Opacity:      ptr(0.5),
		DrawsContent: ptr(true),
		Children:     &[]LayerID{3},
		Mask:         ptr(LayerID(4)),
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("merged record mismatch (-want +got):\n%s", diff)
	}
}

func TestChangeRecordMergeAppendsTilesAndSumsScroll(t *testing.T) {
	r := &ChangeRecord{
		TilesToCreate:         []TileCreate{{ID: 1, Scale: 1}},
		TilesToRemove:         []TileID{7},
		CommittedScrollOffset: ptr(Vec2{0, 10}),
	}
	r.merge(&ChangeRecord{
		TilesToCreate:         []TileCreate{{ID: 2, Scale: 1}},
		TilesToUpdate:         []TileUpdate{{ID: 2}},
		CommittedScrollOffset: ptr(Vec2{3, 5}),
	})
	want := &ChangeRecord{
		TilesToCreate:         []TileCreate{{ID: 1, Scale: 1}, {ID: 2, Scale: 1}},
		TilesToUpdate:         []TileUpdate{{ID: 2}},
		TilesToRemove:         []TileID{7},
		CommittedScrollOffset: ptr(Vec2{3, 15}),
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("merged record mismatch (-want +got):\n%s", diff)
	}
}

func TestFrameStateMergeCancelsCreateAndRemove(t *testing.T) {
	f := &FrameState{Frame: 1, Root: 1, Created: []LayerID{1, 2}}
	f.update(2).Position = ptr(Vec2{1, 1})
	f.Merge(&FrameState{Frame: 2, Root: 1, Removed: []LayerID{2, 9}})

	want := &FrameState{
		Frame:   2,
		Root:    1,
		Created: []LayerID{1},
		Removed: []LayerID{9},
		Updates: map[LayerID]*ChangeRecord{},
	}
	if diff := cmp.Diff(want, f); diff != "" {
		t.Errorf("merged frame mismatch (-want +got):\n%s", diff)
	}
}

func TestFrameStateMergeResources(t *testing.T) {
	f := &FrameState{
		Frame:          1,
		AtlasesCreated: []AtlasCreate{{ID: 1, Surface: 10, Alpha: true}},
		ImagesCreated:  []ImageBacking{{ID: 1, Surface: 11}},
	}
	f.Merge(&FrameState{
		Frame:          2,
		AtlasesRemoved: []AtlasID{1},
		ImagesUpdated:  []ImageBacking{{ID: 1, Surface: 12}},
		Updates:        map[LayerID]*ChangeRecord{3: {Opacity: ptr(0.25)}},
	})
	if len(f.AtlasesCreated) != 1 || len(f.AtlasesRemoved) != 1 {
		t.Errorf("atlas lists = %v / %v", f.AtlasesCreated, f.AtlasesRemoved)
	}
	if len(f.ImagesCreated) != 1 || len(f.ImagesUpdated) != 1 {
		t.Errorf("image lists = %v / %v", f.ImagesCreated, f.ImagesUpdated)
	}
	if rec := f.Updates[3]; rec == nil || *rec.Opacity != 0.25 {
		t.Errorf("Updates[3] = %+v", rec)
	}
}

func TestChangeRecordJSONOmitsUnchanged(t *testing.T) {
	data, err := json.Marshal(&ChangeRecord{Opacity: ptr(0.0)})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), `{"opacity":0}`; got != want {
		t.Errorf("json = %s, want %s", got, want)
	}
}
