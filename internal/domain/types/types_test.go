package types_test

import (
	"encoding/json"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/footfall/internal/domain/model"
	types "github.com/okian/footfall/internal/domain/types"
)

func TestVisitorFrom(t *testing.T) {
	Convey("Given a stored identity", t, func() {
		seen := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		v := types.VisitorFrom(model.Identity{
			ID:        7,
			Embedding: []float64{0.6, 0.8},
			FirstSeen: seen,
			ImagePath: "registered_faces/face_7.jpg",
		})

		Convey("Then the embedding is reduced to its length", func() {
			So(v.ID, ShouldEqual, 7)
			So(v.Dimensions, ShouldEqual, 2)
			So(v.FirstSeen, ShouldEqual, seen)
		})

		Convey("Then it encodes with snake case keys", func() {
			raw, err := json.Marshal(v)
			So(err, ShouldBeNil)
			So(string(raw), ShouldContainSubstring, `"first_seen":"2026-01-02T03:04:05Z"`)
			So(string(raw), ShouldNotContainSubstring, "embedding")
		})
	})
}

func TestEventsFrom(t *testing.T) {
	Convey("Given no events", t, func() {
		Convey("Then an empty list encodes as []", func() {
			raw, err := json.Marshal(types.EventsFrom(nil))
			So(err, ShouldBeNil)
			So(string(raw), ShouldEqual, "[]")
		})
	})

	Convey("Given an exit event", t, func() {
		ev := types.EventFrom(model.Event{ID: 3, IdentityID: 1, Kind: model.EventExit, Stream: "lobby", TrackID: 4})

		Convey("Then the kind is named like the stored column", func() {
			raw, err := json.Marshal(ev)
			So(err, ShouldBeNil)
			So(string(raw), ShouldContainSubstring, `"event_type":"exit"`)
			So(string(raw), ShouldContainSubstring, `"visitor_id":1`)
		})
	})
}
