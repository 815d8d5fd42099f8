package analysis_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/servecoach/internal/adapters/remote"
	"github.com/okian/servecoach/internal/adapters/video"
	"github.com/okian/servecoach/internal/analysis"
	"github.com/okian/servecoach/internal/domain/serve"
	"github.com/okian/servecoach/internal/testclips"
	"github.com/smartystreets/goconvey/convey"
)

type fakeProvider struct {
	name  string
	err   error
	calls int
	hook  func()
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Analyze(_ context.Context, _ analysis.Request) (serve.AnalysisResult, error) {
	p.calls++
	if p.hook != nil {
		p.hook()
	}
	if p.err != nil {
		return serve.AnalysisResult{}, p.err
	}
	return serve.AnalysisResult{Similarities: []serve.SimilarityResult{{Player: p.name, Score: 80}}}, nil
}

func TestFallback(t *testing.T) {
	convey.Convey("Given a remote provider in front of a local one", t, func() {
		remote := &fakeProvider{name: "remote"}
		local := &fakeProvider{name: "local"}
		chain := analysis.NewFallback(remote, local)
		ctx := context.Background()

		convey.So(chain.Name(), convey.ShouldEqual, "remote>local")

		convey.Convey("When the remote answers", func() {
			out, err := chain.Run(ctx, analysis.Request{ID: "r1"})

			convey.Convey("Then the local engine is never asked", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out.Provider, convey.ShouldEqual, "remote")
				convey.So(local.calls, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the remote fails", func() {
			remote.err = errors.New("connection refused")
			out, err := chain.Run(ctx, analysis.Request{ID: "r2"})

			convey.Convey("Then the local result is attributed to local", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out.Provider, convey.ShouldEqual, "local")
				convey.So(out.Result.Similarities[0].Player, convey.ShouldEqual, "local")
			})

			convey.Convey("Then Analyze returns the same result", func() {
				res, err := chain.Analyze(ctx, analysis.Request{ID: "r3"})
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Similarities[0].Player, convey.ShouldEqual, "local")
			})
		})

		convey.Convey("When every provider fails", func() {
			remote.err = errors.New("connection refused")
			local.err = serve.ErrEmptySignal
			_, err := chain.Run(ctx, analysis.Request{ID: "r4"})

			convey.Convey("Then all causes are reported", func() {
				convey.So(errors.Is(err, serve.ErrEmptySignal), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "remote: connection refused")
			})
		})

		convey.Convey("When the caller gives up during the first attempt", func() {
			cctx, cancel := context.WithCancel(ctx)
			remote.err = context.Canceled
			remote.hook = cancel
			_, err := chain.Run(cctx, analysis.Request{ID: "r5"})

			convey.Convey("Then no fallback is attempted", func() {
				convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
				convey.So(local.calls, convey.ShouldEqual, 0)
			})
		})
	})

	convey.Convey("Given an empty chain", t, func() {
		_, err := analysis.NewFallback().Run(context.Background(), analysis.Request{})
		convey.So(err, convey.ShouldEqual, analysis.ErrNoProviders)
	})

	convey.Convey("Given a plain provider", t, func() {
		out, err := analysis.Run(context.Background(), &fakeProvider{name: "solo"}, analysis.Request{})
		convey.So(err, convey.ShouldBeNil)
		convey.So(out.Provider, convey.ShouldEqual, "solo")

		_, err = analysis.Run(context.Background(), &fakeProvider{name: "solo", err: serve.ErrSourceNotReady}, analysis.Request{})
		convey.So(err, convey.ShouldEqual, serve.ErrSourceNotReady)
	})
}

func TestFallback_MalformedRemoteAnswer(t *testing.T) {
	convey.Convey("Given a pipeline that succeeds with an unusable answer", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success": true, "analysis": {"recommendations": []},
				"similarity": {"probabilities": {"Federer": 1.7}}}`))
		}))
		defer srv.Close()

		client, err := remote.NewClient(srv.URL)
		convey.So(err, convey.ShouldBeNil)
		chain := analysis.NewFallback(client, analysis.NewEngine())

		convey.Convey("When a clip is analyzed", func() {
			out, err := chain.Run(context.Background(), analysis.Request{
				ID:          "clip-1",
				ContentType: video.MediaTypeGIF,
				Data:        testclips.MustGIF(testclips.DefaultSpec()),
			})

			convey.Convey("Then the local engine answers with a well-formed result", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out.Provider, convey.ShouldEqual, analysis.EngineName)
				convey.So(out.Result.Advice, convey.ShouldNotBeEmpty)
				convey.So(out.Result.Features.CentroidPath, convey.ShouldHaveLength, len(out.Result.Features.MotionEnergy))
				for _, s := range out.Result.Similarities {
					convey.So(s.Score, convey.ShouldBeBetweenOrEqual, 0, 100)
				}
			})
		})
	})
}
