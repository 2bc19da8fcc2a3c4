package replay

import (
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/footfall/internal/domain/geometry"
	"github.com/okian/footfall/internal/domain/model"
	"github.com/okian/footfall/pkg/logger"
)

const twoFrames = `{"stream":"cam-1","index":1,"ts":"2026-01-02T10:00:00Z","width":640,"height":480,"image":"f1.png","detections":[{"bbox":[10,10,60,70],"confidence":0.9,"embedding":[3,4]},{"bbox":[300,300,340,350],"confidence":0.2}]}
{"index":2,"ts":"2026-01-02T10:00:00.2Z","width":640,"height":480,"detections":[{"bbox":[1,2,3],"confidence":0.9}]}
`

func TestSource(t *testing.T) {
	_ = logger.Init()

	Convey("Given a replay with two frames", t, func() {
		ctx := context.Background()
		src := NewSource(strings.NewReader(twoFrames), WithStreamName("fallback"))

		f1, err1 := src.Next(ctx)
		f2, err2 := src.Next(ctx)
		_, err3 := src.Next(ctx)

		Convey("Then frames are decoded in order", func() {
			So(err1, ShouldBeNil)
			So(f1.Stream, ShouldEqual, "cam-1")
			So(f1.Index, ShouldEqual, 1)
			So(f1.Timestamp, ShouldEqual, time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC))
			So(f1.ImageRef, ShouldEqual, "f1.png")
			So(f1.Detections, ShouldHaveLength, 2)
			So(f1.Detections[0].Box, ShouldResemble, geometry.Box{X1: 10, Y1: 10, X2: 60, Y2: 70})
			So(f1.Detections[0].Embedding, ShouldResemble, []float64{3, 4})
		})

		Convey("Then missing stream names fall back and bad boxes are dropped", func() {
			So(err2, ShouldBeNil)
			So(f2.Stream, ShouldEqual, "fallback")
			So(f2.Detections, ShouldBeEmpty)
		})

		Convey("Then the end is io.EOF", func() {
			So(err3, ShouldEqual, io.EOF)
		})
	})

	Convey("Given a malformed line", t, func() {
		src := NewSource(strings.NewReader("{not json}\n"))
		_, err := src.Next(context.Background())

		So(errors.Is(err, ErrMalformed), ShouldBeTrue)
	})

	Convey("Given a canceled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewSource(strings.NewReader(twoFrames)).Next(ctx)

		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}

func TestSourceFile(t *testing.T) {
	_ = logger.Init()

	Convey("Given a replay file next to its frame images", t, func() {
		dir := t.TempDir()
		So(os.WriteFile(filepath.Join(dir, "lobby.jsonl"), []byte(twoFrames), 0o600), ShouldBeNil)

		imgFile, err := os.Create(filepath.Join(dir, "f1.png"))
		So(err, ShouldBeNil)
		So(png.Encode(imgFile, image.NewRGBA(image.Rect(0, 0, 64, 48))), ShouldBeNil)
		So(imgFile.Close(), ShouldBeNil)

		src, err := Open(filepath.Join(dir, "lobby.jsonl"))
		So(err, ShouldBeNil)
		defer src.Close()

		ctx := context.Background()
		f1, _ := src.Next(ctx)
		f2, _ := src.Next(ctx)

		Convey("Then relative images load on demand", func() {
			So(f1.Image, ShouldBeNil)
			So(src.Load(ctx, f1), ShouldBeNil)
			So(f1.Image.Bounds().Dx(), ShouldEqual, 64)
		})

		Convey("Then the file name names the stream", func() {
			So(src.Name(), ShouldEqual, "lobby")
			So(f2.Stream, ShouldEqual, "lobby")
		})

		Convey("Then frames without images load nothing", func() {
			So(src.Load(ctx, f2), ShouldBeNil)
			So(f2.Image, ShouldBeNil)
		})

		Convey("Then a missing image is reported", func() {
			f := &model.Frame{ImageRef: "missing.jpg"}
			So(errors.Is(src.Load(ctx, f), ErrImage), ShouldBeTrue)
		})
	})
}

func TestDetectorAndEmbedder(t *testing.T) {
	Convey("Given a frame with two detections", t, func() {
		ctx := context.Background()
		f := &model.Frame{Detections: []model.Detection{
			{Box: geometry.Box{X1: 10, Y1: 10, X2: 60, Y2: 70}, Confidence: 0.9, Embedding: []float64{3, 4}},
			{Box: geometry.Box{X1: 300, Y1: 300, X2: 340, Y2: 350}, Confidence: 0.2},
		}}

		Convey("When detecting at 0.45", func() {
			dets, err := NewDetector(0.45).Detect(ctx, f)

			Convey("Then only confident detections survive", func() {
				So(err, ShouldBeNil)
				So(dets, ShouldHaveLength, 1)
				So(dets[0].Confidence, ShouldEqual, 0.9)
			})
		})

		Convey("When embedding an overlapping track box", func() {
			vec, ok := NewEmbedder(DefaultMinIoU, 0.45).Embed(ctx, f, geometry.Box{X1: 12, Y1: 10, X2: 62, Y2: 70})

			Convey("Then the detection's embedding comes back normalized", func() {
				So(ok, ShouldBeTrue)
				So(vec[0], ShouldAlmostEqual, 0.6, 1e-9)
				So(vec[1], ShouldAlmostEqual, 0.8, 1e-9)
			})
		})

		Convey("When embedding a box with no overlap or no embedding", func() {
			_, ok1 := NewEmbedder(DefaultMinIoU, 0.45).Embed(ctx, f, geometry.Box{X1: 500, Y1: 10, X2: 550, Y2: 70})
			_, ok2 := NewEmbedder(DefaultMinIoU, 0.45).Embed(ctx, f, geometry.Box{X1: 300, Y1: 300, X2: 340, Y2: 350})

			Convey("Then nothing is returned", func() {
				So(ok1, ShouldBeFalse)
				So(ok2, ShouldBeFalse)
			})
		})

		Convey("When the only overlapping detection is below the confidence threshold", func() {
			weak := &model.Frame{Detections: []model.Detection{
				{Box: geometry.Box{X1: 10, Y1: 10, X2: 60, Y2: 70}, Confidence: 0.3, Embedding: []float64{1, 0}},
			}}
			_, strict := NewEmbedder(DefaultMinIoU, 0.45).Embed(ctx, weak, geometry.Box{X1: 12, Y1: 10, X2: 62, Y2: 70})
			_, lenient := NewEmbedder(DefaultMinIoU, 0.25).Embed(ctx, weak, geometry.Box{X1: 12, Y1: 10, X2: 62, Y2: 70})

			Convey("Then it lends no embedding", func() {
				So(strict, ShouldBeFalse)
				So(lenient, ShouldBeTrue)
			})
		})
	})
}
