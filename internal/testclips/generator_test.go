package testclips_test

import (
	"bytes"
	"image/gif"
	"testing"

	"github.com/okian/servecoach/internal/testclips"
	"github.com/smartystreets/goconvey/convey"
)

func TestGIF(t *testing.T) {
	convey.Convey("Given the default serve spec", t, func() {
		spec := testclips.DefaultSpec()

		convey.Convey("When it is encoded", func() {
			data, err := testclips.GIF(spec)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then it decodes to the requested frames and delays", func() {
				anim, err := gif.DecodeAll(bytes.NewReader(data))
				convey.So(err, convey.ShouldBeNil)
				convey.So(anim.Image, convey.ShouldHaveLength, spec.Frames)
				convey.So(anim.Delay[0], convey.ShouldEqual, spec.Delay)
				convey.So(anim.Image[0].Bounds().Dx(), convey.ShouldEqual, spec.Width)
				convey.So(anim.Image[0].Bounds().Dy(), convey.ShouldEqual, spec.Height)
			})

			convey.Convey("Then encoding is deterministic", func() {
				again, err := testclips.GIF(spec)
				convey.So(err, convey.ShouldBeNil)
				convey.So(bytes.Equal(data, again), convey.ShouldBeTrue)
			})
		})

		convey.Convey("Then the blob rises to the toss peak and drops after it", func() {
			peak := int(spec.Peak * float64(spec.Frames-1))
			_, y0 := spec.Center(0)
			_, yPeak := spec.Center(peak)
			xEnd, yEnd := spec.Center(spec.Frames - 1)
			convey.So(yPeak, convey.ShouldBeLessThan, y0)
			convey.So(yEnd, convey.ShouldBeGreaterThan, yPeak)
			convey.So(xEnd, convey.ShouldAlmostEqual, spec.EndX, 1e-9)
		})
	})

	convey.Convey("Given a static spec", t, func() {
		frames := testclips.Render(testclips.StaticSpec())

		convey.Convey("Then every frame is identical", func() {
			for _, f := range frames[1:] {
				convey.So(bytes.Equal(f.Pix, frames[0].Pix), convey.ShouldBeTrue)
			}
		})
	})

	convey.Convey("Given invalid geometry", t, func() {
		spec := testclips.DefaultSpec()
		spec.Frames = 0
		_, err := testclips.GIF(spec)
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestVerifyJob(t *testing.T) {
	convey.Convey("Given a finished job", t, func() {
		job := testclips.JobResult{
			Status: "done",
			Result: &testclips.Report{
				Features:     testclips.Landmarks{PeakTossIndex: 3, ContactIndex: 5, FollowThroughIndex: 8},
				Similarities: []testclips.Similarity{{Player: "Federer", Score: 90}, {Player: "Alcaraz", Score: 80}},
			},
		}

		convey.Convey("When it is consistent", func() {
			convey.So(testclips.VerifyJob(job), convey.ShouldBeNil)
		})

		convey.Convey("When landmarks are out of order", func() {
			job.Result.Features.ContactIndex = 2
			convey.So(testclips.VerifyJob(job), convey.ShouldNotBeNil)
		})

		convey.Convey("When similarities are unsorted", func() {
			job.Result.Similarities[1].Score = 95
			convey.So(testclips.VerifyJob(job), convey.ShouldNotBeNil)
		})

		convey.Convey("When a score is out of range", func() {
			job.Result.Similarities[0].Score = 101
			convey.So(testclips.VerifyJob(job), convey.ShouldNotBeNil)
		})
	})
}
