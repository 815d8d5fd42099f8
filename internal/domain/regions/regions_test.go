package regions_test

import (
	"errors"
	"testing"

	"github.com/okian/servecoach/internal/domain/regions"
	"github.com/okian/servecoach/internal/domain/serve"
	"github.com/smartystreets/goconvey/convey"
)

func TestSplit(t *testing.T) {
	convey.Convey("Given two frames in opposite corners", t, func() {
		energy := []float64{1, 1}
		centroids := []serve.Point{{X: 0.2, Y: 0.8}, {X: 0.8, Y: 0.2}}

		convey.Convey("When splitting into halves", func() {
			h, err := regions.Split(energy, centroids)

			convey.Convey("Then every mean is over all frames", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(h, convey.ShouldResemble, regions.Halves{Lower: 0.5, Upper: 0.5, Left: 0.5, Right: 0.5})
			})
		})

		convey.Convey("When deriving proxies", func() {
			p, err := regions.Compute(energy, centroids)

			convey.Convey("Then gains apply and values clamp to [0,1]", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.LowerBodyEngagement, convey.ShouldEqual, 1)
				convey.So(p.ShoulderRotationProxy, convey.ShouldEqual, 0)
				convey.So(p.RacquetDropProxy, convey.ShouldAlmostEqual, 0.6, 1e-12)
			})
		})
	})

	convey.Convey("Given centroids exactly on the split lines", t, func() {
		h, err := regions.Split([]float64{1}, []serve.Point{{X: 0.5, Y: 0.6}})

		convey.Convey("Then x=0.5 counts as right and y=0.6 as upper", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(h.Right, convey.ShouldEqual, 1)
			convey.So(h.Left, convey.ShouldEqual, 0)
			convey.So(h.Upper, convey.ShouldEqual, 1)
			convey.So(h.Lower, convey.ShouldEqual, 0)
		})
	})

	convey.Convey("Given motion only on one side", t, func() {
		energy := []float64{0.2, 0.2, 0.2, 0.2}
		centroids := []serve.Point{{X: 0.9, Y: 0.3}, {X: 0.9, Y: 0.3}, {X: 0.9, Y: 0.3}, {X: 0.9, Y: 0.3}}
		p, err := regions.Compute(energy, centroids)

		convey.Convey("Then rotation reflects the imbalance", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(p.ShoulderRotationProxy, convey.ShouldAlmostEqual, 0.8, 1e-12)
			convey.So(p.LowerBodyEngagement, convey.ShouldEqual, 0)
		})
	})

	convey.Convey("Given malformed input", t, func() {
		_, err := regions.Split(nil, nil)
		convey.So(err, convey.ShouldEqual, serve.ErrEmptySignal)

		_, err = regions.Split([]float64{1, 2}, []serve.Point{{}})
		convey.So(errors.Is(err, regions.ErrLengthMismatch), convey.ShouldBeTrue)
	})
}
