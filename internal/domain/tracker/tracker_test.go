package tracker_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/footfall/internal/domain/geometry"
	"github.com/okian/footfall/internal/domain/tracker"
	. "github.com/smartystreets/goconvey/convey"
)

// box returns a 20x20 box centred on (x, y).
func box(x, y float64) geometry.Box {
	return geometry.Box{X1: x - 10, Y1: y - 10, X2: x + 10, Y2: y + 10}
}

func TestTrackerRegistration(t *testing.T) {
	Convey("Given a tracker with no tracks", t, func() {
		tr := tracker.New()

		Convey("When K detections arrive", func() {
			res := tr.Update([]geometry.Box{box(100, 100), box(300, 100), box(500, 100)})

			Convey("Then K tracks are created with increasing ids in detection order", func() {
				So(res.Evicted, ShouldBeEmpty)
				So(res.Active, ShouldHaveLength, 3)
				So(res.Active[0].ID, ShouldBeLessThan, res.Active[1].ID)
				So(res.Active[1].ID, ShouldBeLessThan, res.Active[2].ID)
				So(res.Active[1].Box, ShouldResemble, box(300, 100))
				So(res.Active[1].Centroid, ShouldResemble, geometry.Point{X: 300, Y: 100})
				So(tr.Len(), ShouldEqual, 3)
			})
		})
	})
}

func TestTrackerEviction(t *testing.T) {
	Convey("Given a tracker with a grace period of three frames", t, func() {
		tr := tracker.New(tracker.WithMaxDisappeared(3))
		first := tr.Update([]geometry.Box{box(100, 100)})
		id := first.Active[0].ID

		Convey("When three empty frames follow", func() {
			var res tracker.Result
			for i := 0; i < 3; i++ {
				res = tr.Update(nil)
			}

			Convey("Then the track is still alive with three misses", func() {
				So(res.Evicted, ShouldBeEmpty)
				So(res.Active, ShouldHaveLength, 1)
				So(res.Active[0].Missed, ShouldEqual, 3)
				So(res.Active[0].Box, ShouldResemble, box(100, 100))
			})

			Convey("And when a fourth empty frame follows", func() {
				res = tr.Update(nil)

				Convey("Then the track is evicted with its last box", func() {
					So(res.Active, ShouldBeEmpty)
					So(res.EvictedIDs(), ShouldResemble, []int{id})
					So(res.Evicted[0].Box, ShouldResemble, box(100, 100))
					So(tr.Len(), ShouldEqual, 0)
				})
			})
		})

		Convey("When the track is seen again before the grace period ends", func() {
			tr.Update(nil)
			tr.Update(nil)
			res := tr.Update([]geometry.Box{box(105, 100)})

			Convey("Then its miss counter resets", func() {
				So(res.Active, ShouldHaveLength, 1)
				So(res.Active[0].ID, ShouldEqual, id)
				So(res.Active[0].Missed, ShouldEqual, 0)
			})
		})

		Convey("When other detections keep arriving far away", func() {
			var res tracker.Result
			for i := 0; i < 4; i++ {
				res = tr.Update([]geometry.Box{box(600, 400)})
			}

			Convey("Then the unmatched track is evicted on the fourth frame", func() {
				So(res.EvictedIDs(), ShouldResemble, []int{id})
				So(res.Active, ShouldHaveLength, 1)
				So(res.Active[0].ID, ShouldNotEqual, id)
			})
		})
	})
}

func TestTrackerMatching(t *testing.T) {
	Convey("Given one existing track", t, func() {
		tr := tracker.New(tracker.WithMaxDistance(80))
		first := tr.Update([]geometry.Box{box(100, 100)})
		id := first.Active[0].ID

		Convey("When one detection is near and one is far", func() {
			res := tr.Update([]geometry.Box{box(400, 100), box(120, 110)})

			Convey("Then the near detection is bound and the far one spawns a track", func() {
				want := tracker.Result{
					Active: []tracker.Track{
						{ID: id, Box: box(120, 110), Centroid: geometry.Point{X: 120, Y: 110}},
						{ID: id + 1, Box: box(400, 100), Centroid: geometry.Point{X: 400, Y: 100}},
					},
				}
				So(cmp.Diff(want, res), ShouldBeEmpty)
			})
		})
	})

	Convey("Given two tracks competing for the same detection", t, func() {
		dets := []geometry.Box{box(109, 100), box(91, 100)}

		Convey("When the greedy matcher is used", func() {
			tr := tracker.New(tracker.WithMaxDistance(15))
			tr.Update([]geometry.Box{box(100, 100), box(110, 100)})
			res := tr.Update(dets)

			Convey("Then the first track takes the earliest of the tied detections", func() {
				boxes := res.Boxes()
				So(boxes[1], ShouldResemble, box(109, 100))
				So(res.Active[1].ID, ShouldEqual, 2)
				So(res.Active[1].Missed, ShouldEqual, 1)
				So(res.Active, ShouldHaveLength, 3)
				So(res.Active[2].Box, ShouldResemble, box(91, 100))
			})
		})

		Convey("When the Hungarian matcher is used", func() {
			tr := tracker.New(tracker.WithMaxDistance(15), tracker.WithMatcher(tracker.HungarianMatcher{}))
			tr.Update([]geometry.Box{box(100, 100), box(110, 100)})
			res := tr.Update(dets)

			Convey("Then both tracks are matched and nothing is spawned", func() {
				boxes := res.Boxes()
				So(res.Active, ShouldHaveLength, 2)
				So(boxes[1], ShouldResemble, box(91, 100))
				So(boxes[2], ShouldResemble, box(109, 100))
			})
		})
	})
}

func TestTrackerIDs(t *testing.T) {
	Convey("Given a tracker whose tracks were all evicted", t, func() {
		tr := tracker.New(tracker.WithMaxDisappeared(0))
		tr.Update([]geometry.Box{box(100, 100), box(300, 300)})
		res := tr.Update(nil)
		So(res.EvictedIDs(), ShouldResemble, []int{1, 2})

		Convey("When new detections arrive", func() {
			res = tr.Update([]geometry.Box{box(100, 100)})

			Convey("Then ids continue from the counter and are never reused", func() {
				So(res.Active[0].ID, ShouldEqual, 3)
			})
		})
	})

	Convey("Given a tracker with live tracks", t, func() {
		tr := tracker.New()
		tr.Update([]geometry.Box{box(100, 100), box(300, 300)})

		Convey("When drained", func() {
			res := tr.Drain()

			Convey("Then every track is reported evicted", func() {
				So(res.EvictedIDs(), ShouldResemble, []int{1, 2})
				So(res.Active, ShouldBeEmpty)
				So(tr.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestTrackerDegenerateBoxes(t *testing.T) {
	Convey("Given a degenerate detection", t, func() {
		tr := tracker.New()
		res := tr.Update([]geometry.Box{{X1: 50, Y1: 50, X2: 50, Y2: 50}})

		Convey("Then the tracker accepts it as-is", func() {
			So(res.Active, ShouldHaveLength, 1)
			So(res.Active[0].Centroid, ShouldResemble, geometry.Point{X: 50, Y: 50})
		})
	})
}

func TestNewMatcher(t *testing.T) {
	Convey("Given matcher names", t, func() {
		Convey("Then known names resolve", func() {
			g, err := tracker.NewMatcher("")
			So(err, ShouldBeNil)
			So(g, ShouldHaveSameTypeAs, tracker.GreedyMatcher{})

			h, err := tracker.NewMatcher("Hungarian")
			So(err, ShouldBeNil)
			So(h, ShouldHaveSameTypeAs, tracker.HungarianMatcher{})
		})

		Convey("Then unknown names fail", func() {
			_, err := tracker.NewMatcher("kalman")
			So(err, ShouldWrap, tracker.ErrUnknownMatcher)
		})
	})
}
