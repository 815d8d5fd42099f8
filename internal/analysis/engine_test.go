package analysis_test

import (
	"context"
	"errors"
	"image"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/servecoach/internal/adapters/video"
	"github.com/okian/servecoach/internal/analysis"
	"github.com/okian/servecoach/internal/domain/serve"
	"github.com/okian/servecoach/internal/testclips"
	logging "github.com/okian/servecoach/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logging.Init()
}

func blackFrames(n int) []*image.RGBA {
	frames := make([]*image.RGBA, n)
	for i := range frames {
		frames[i] = image.NewRGBA(image.Rect(0, 0, 160, 90))
	}
	return frames
}

func TestEngine_Analyze(t *testing.T) {
	convey.Convey("Given the local engine and a synthetic serve clip", t, func() {
		engine := analysis.NewEngine()
		clip := testclips.MustGIF(testclips.DefaultSpec())
		req := analysis.Request{ID: "clip", ContentType: "image/gif", Data: clip}
		ctx := context.Background()

		convey.So(engine.Name(), convey.ShouldEqual, analysis.EngineName)

		convey.Convey("When analyzing it", func() {
			res, err := engine.Analyze(ctx, req)

			convey.Convey("Then every profile is scored in descending order", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Similarities, convey.ShouldHaveLength, 4)
				for i, s := range res.Similarities {
					convey.So(s.Score, convey.ShouldBeBetweenOrEqual, 0, 100)
					if i > 0 {
						convey.So(res.Similarities[i-1].Score, convey.ShouldBeGreaterThanOrEqualTo, s.Score)
					}
				}
				convey.So(res.Advice, convey.ShouldNotBeEmpty)
			})

			convey.Convey("Then the features are well formed", func() {
				f := res.Features
				convey.So(len(f.MotionEnergy), convey.ShouldBeGreaterThanOrEqualTo, video.DefaultMinSamples)
				convey.So(f.CentroidPath, convey.ShouldHaveLength, len(f.MotionEnergy))
				peak := 0.0
				for _, e := range f.MotionEnergy {
					convey.So(e, convey.ShouldBeBetweenOrEqual, 0, 1)
					peak = math.Max(peak, e)
				}
				convey.So(peak, convey.ShouldEqual, 1.0)
				convey.So(f.PeakTossIndex, convey.ShouldBeLessThanOrEqualTo, f.ContactIndex)
				convey.So(f.ContactIndex, convey.ShouldBeLessThanOrEqualTo, f.FollowThroughIndex)
				convey.So(f.FollowThroughIndex, convey.ShouldBeLessThan, len(f.MotionEnergy))
				convey.So(f.DurationMs, convey.ShouldEqual, 2400.0)
				for _, p := range serve.Proxies {
					v, _ := f.Proxy(p)
					convey.So(v, convey.ShouldBeBetweenOrEqual, 0, 1)
				}
			})
		})

		convey.Convey("When analyzing it twice", func() {
			first, err1 := engine.Analyze(ctx, req)
			second, err2 := engine.Analyze(ctx, req)

			convey.Convey("Then the results are identical", func() {
				convey.So(err1, convey.ShouldBeNil)
				convey.So(err2, convey.ShouldBeNil)
				convey.So(cmp.Diff(first, second), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When analyzing concurrently", func() {
			want, err := engine.Analyze(ctx, req)
			convey.So(err, convey.ShouldBeNil)

			var wg sync.WaitGroup
			diffs := make([]string, 4)
			for i := range diffs {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					got, err := engine.Analyze(ctx, req)
					if err != nil {
						diffs[i] = err.Error()
						return
					}
					diffs[i] = cmp.Diff(want, got)
				}(i)
			}
			wg.Wait()

			convey.Convey("Then every run agrees", func() {
				for _, d := range diffs {
					convey.So(d, convey.ShouldBeEmpty)
				}
			})
		})

		convey.Convey("When the upload is not a clip", func() {
			_, err := engine.Analyze(ctx, analysis.Request{ContentType: "text/plain", Data: []byte("hello")})

			convey.Convey("Then the format is rejected", func() {
				convey.So(errors.Is(err, video.ErrUnsupportedFormat), convey.ShouldBeTrue)
			})
		})
	})
}

func TestEngine_AnalyzeFrames(t *testing.T) {
	convey.Convey("Given a completely static black clip", t, func() {
		zero, err := serve.NewProfileTable([]serve.Profile{
			{Name: "Statue", Refs: map[serve.Proxy]float64{
				serve.LowerBodyEngagement: 0, serve.ShoulderRotationProxy: 0, serve.RacquetDropProxy: 0,
			}},
			{Name: "Federer", Refs: serve.DefaultProfiles()[1].Refs},
		}, nil)
		convey.So(err, convey.ShouldBeNil)
		engine := analysis.NewEngine(analysis.WithProfileTable(zero))

		res, err := engine.AnalyzeFrames(blackFrames(12), time.Second)

		convey.Convey("Then energy is all zero without NaN", func() {
			convey.So(err, convey.ShouldBeNil)
			for _, e := range res.Features.MotionEnergy {
				convey.So(e, convey.ShouldEqual, 0.0)
				convey.So(math.IsNaN(e), convey.ShouldBeFalse)
			}
			convey.So(res.Features.DurationMs, convey.ShouldEqual, 1000.0)
		})

		convey.Convey("Then a profile equal to the proxies scores 100 and earns encouragement", func() {
			convey.So(res.Similarities[0].Player, convey.ShouldEqual, "Statue")
			convey.So(res.Similarities[0].Score, convey.ShouldEqual, 100)
			convey.So(res.Advice, convey.ShouldHaveLength, 1)
			convey.So(res.Advice[0], convey.ShouldContainSubstring, "Statue")
		})
	})

	convey.Convey("Given no frames", t, func() {
		_, err := analysis.NewEngine().AnalyzeFrames(nil, time.Second)
		convey.So(err, convey.ShouldEqual, serve.ErrEmptySignal)
	})

	convey.Convey("Given an empty profile table", t, func() {
		empty, err := serve.NewProfileTable(nil, nil)
		convey.So(err, convey.ShouldBeNil)
		_, err = analysis.NewEngine(analysis.WithProfileTable(empty)).AnalyzeFrames(blackFrames(8), time.Second)
		convey.So(err, convey.ShouldEqual, serve.ErrNoSimilarities)
	})
}
