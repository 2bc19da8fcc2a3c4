package repository

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/footfall/internal/domain/embedding"
)

func randomUnit(r *rand.Rand, dim int) []float64 {
	v := make([]float64, dim)
	for i := range v {
		v[i] = r.NormFloat64()
	}
	n, _ := embedding.Normalize(v)
	return n
}

func TestLinearIndex(t *testing.T) {
	Convey("Given a linear index", t, func() {
		idx := NewLinearIndex()

		Convey("When it is empty", func() {
			_, sim, ok := idx.Best([]float64{1, 0}, 0)

			Convey("Then nothing is found", func() {
				So(ok, ShouldBeFalse)
				So(sim, ShouldEqual, 0)
			})
		})

		Convey("When two entries tie", func() {
			idx.Add(1, []float64{1, 0})
			idx.Add(2, []float64{1, 0})
			id, sim, ok := idx.Best([]float64{1, 0}, 0)

			Convey("Then the earliest wins", func() {
				So(ok, ShouldBeTrue)
				So(id, ShouldEqual, 1)
				So(sim, ShouldAlmostEqual, 1.0, 1e-6)
				So(idx.Len(), ShouldEqual, 2)
			})
		})
	})
}

func TestHNSWIndex(t *testing.T) {
	Convey("Given an hnsw index and a linear index with the same data", t, func() {
		r := rand.New(rand.NewSource(7))
		hnswIdx := NewHNSWIndex(8)
		linear := NewLinearIndex()

		vectors := make([][]float64, 200)
		for i := range vectors {
			vectors[i] = randomUnit(r, 32)
			hnswIdx.Add(int64(i+1), vectors[i])
			linear.Add(int64(i+1), vectors[i])
		}

		Convey("When querying with stored vectors", func() {
			Convey("Then every vector finds itself with similarity 1", func() {
				for i := 0; i < 20; i++ {
					id, sim, ok := hnswIdx.Best(vectors[i*10], 0.99)
					So(ok, ShouldBeTrue)
					So(id, ShouldEqual, int64(i*10+1))
					So(math.Abs(sim-1), ShouldBeLessThan, 1e-6)
				}
			})
		})

		Convey("When querying near a stored vector", func() {
			q := make([]float64, 32)
			copy(q, vectors[42])
			q[0] += 0.05
			wantID, wantSim, _ := linear.Best(q, 0.9)
			gotID, gotSim, ok := hnswIdx.Best(q, 0.9)

			Convey("Then it agrees with the exact scan", func() {
				So(ok, ShouldBeTrue)
				So(gotID, ShouldEqual, wantID)
				So(gotSim, ShouldAlmostEqual, wantSim, 1e-9)
			})
		})

		So(hnswIdx.Len(), ShouldEqual, 200)
	})

	Convey("Given an empty hnsw index", t, func() {
		_, _, ok := NewHNSWIndex(0).Best([]float64{1, 0}, 0)
		So(ok, ShouldBeFalse)
	})
}

func TestNewIndex(t *testing.T) {
	Convey("Given index names", t, func() {
		lin, err := NewIndex(IndexLinear, 0)
		So(err, ShouldBeNil)
		So(lin, ShouldHaveSameTypeAs, &LinearIndex{})

		h, err := NewIndex(IndexHNSW, 4)
		So(err, ShouldBeNil)
		So(h, ShouldHaveSameTypeAs, &HNSWIndex{})

		_, err = NewIndex("annoy", 0)
		So(errors.Is(err, ErrUnknownIndex), ShouldBeTrue)
	})
}

func TestStoreWithHNSWIndex(t *testing.T) {
	Convey("Given a memory store backed by hnsw", t, func() {
		store := NewMemoryStore(WithIndex(NewHNSWIndex(4)))
		r := rand.New(rand.NewSource(11))
		var target []float64
		for i := 0; i < 50; i++ {
			v := randomUnit(r, 16)
			if i == 25 {
				target = v
			}
			_, err := store.Register(ctxBG, v, "", nowUTC)
			So(err, ShouldBeNil)
		}

		m, err := store.FindBestMatch(ctxBG, target, 0.99)

		So(err, ShouldBeNil)
		So(m.Found, ShouldBeTrue)
		So(m.IdentityID, ShouldEqual, 26)
	})
}

func TestHNSWIndexNeverMissesAStoredFace(t *testing.T) {
	Convey("Given 300 identities in a memory store backed by hnsw", t, func() {
		store := NewMemoryStore(WithIndex(NewHNSWIndex(8)))
		r := rand.New(rand.NewSource(3))
		vectors := make([][]float64, 300)
		for i := range vectors {
			vectors[i] = randomUnit(r, 16)
			_, err := store.Register(ctxBG, vectors[i], "", nowUTC)
			So(err, ShouldBeNil)
		}

		Convey("When every stored face is resolved again", func() {
			created := 0
			for _, v := range vectors {
				res, err := store.MatchOrRegister(ctxBG, v, 0.6, "", nowUTC)
				So(err, ShouldBeNil)
				So(res.Similarity, ShouldBeGreaterThanOrEqualTo, 0.6)
				if res.Created {
					created++
				}
			}

			Convey("Then nothing is registered twice", func() {
				So(created, ShouldEqual, 0)
				n, err := store.Count(ctxBG)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 300)
			})
		})
	})

	Convey("Given a small hnsw index", t, func() {
		idx := NewHNSWIndex(1)
		idx.Add(1, []float64{1, 0})
		idx.Add(2, []float64{0, 1})

		Convey("Then it answers exactly, ties going to the smallest id", func() {
			id, sim, ok := idx.Best([]float64{1, 1}, 0.99)
			So(ok, ShouldBeTrue)
			So(id, ShouldEqual, 1)
			So(sim, ShouldAlmostEqual, math.Sqrt2/2, 1e-6)
		})
	})
}
