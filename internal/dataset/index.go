package dataset

import (
	"errors"
	"io"
	"sort"

	"streetclip/internal/geometry"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// minExtent keeps R-tree rectangles valid for axis aligned lines and points.
const minExtent = 1e-9

// Index keeps a whole layer in memory behind an R-tree so repeated queries
// only touch candidate features. Used by the long running API server.
type Index struct {
	epsg  int
	tree  *rtreego.Rtree
	count int
}

type indexedFeature struct {
	seq     int
	feature *geojson.Feature
	bound   orb.Bound
}

// Bounds implements rtreego.Spatial.
func (f *indexedFeature) Bounds() rtreego.Rect {
	return rect(f.bound)
}

func rect(b orb.Bound) rtreego.Rect {
	point := rtreego.Point{b.Min[0], b.Min[1]}
	lengths := []float64{
		max(b.Max[0]-b.Min[0], minExtent),
		max(b.Max[1]-b.Min[1], minExtent),
	}
	r, _ := rtreego.NewRect(point, lengths)
	return r
}

// BuildIndex drains r into a new Index. Invalid features are skipped.
func BuildIndex(r Reader) (*Index, error) {
	idx := &Index{
		epsg: r.EPSG(),
		tree: rtreego.NewTree(2, 25, 50),
	}
	for {
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if f == nil || !geometry.Valid(f.Geometry) {
			continue
		}
		idx.tree.Insert(&indexedFeature{seq: idx.count, feature: f, bound: f.Geometry.Bound()})
		idx.count++
	}
	return idx, nil
}

// EPSG is the CRS of the indexed features.
func (idx *Index) EPSG() int { return idx.epsg }

// Len is the number of indexed features.
func (idx *Index) Len() int { return idx.count }

// Query returns a Reader over the features whose bound intersects b, in
// load order. b is in the index CRS.
func (idx *Index) Query(b orb.Bound) Reader {
	hits := idx.tree.SearchIntersect(rect(b))
	sort.Slice(hits, func(i, j int) bool {
		return hits[i].(*indexedFeature).seq < hits[j].(*indexedFeature).seq
	})

	fs := make([]*geojson.Feature, len(hits))
	for i, h := range hits {
		fs[i] = h.(*indexedFeature).feature
	}
	return NewSliceReader(idx.epsg, fs)
}
