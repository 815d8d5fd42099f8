package serve_test

import (
	"errors"
	"testing"

	"github.com/okian/servecoach/internal/domain/serve"
	"github.com/smartystreets/goconvey/convey"
)

func TestProfileTable(t *testing.T) {
	convey.Convey("Given the default profile table", t, func() {
		table := serve.DefaultProfileTable()

		convey.Convey("Then it holds four players in declaration order", func() {
			convey.So(table.Len(), convey.ShouldEqual, 4)
			names := []string{}
			for _, p := range table.Profiles() {
				names = append(names, p.Name)
			}
			convey.So(names, convey.ShouldResemble, []string{"Nishikori", "Federer", "Djokovic", "Alcaraz"})
		})

		convey.Convey("Then lookups find known players only", func() {
			p, err := table.Lookup("Djokovic")
			convey.So(err, convey.ShouldBeNil)
			ref, ok := p.Ref(serve.LowerBodyEngagement)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(ref, convey.ShouldEqual, 0.85)

			_, err = table.Lookup("Nadal")
			convey.So(errors.Is(err, serve.ErrUnknownProfile), convey.ShouldBeTrue)
		})

		convey.Convey("Then returned copies cannot change the table", func() {
			profiles := table.Profiles()
			profiles[0].Refs[serve.LowerBodyEngagement] = 0
			weights := table.Weights()
			weights[serve.RacquetDropProxy] = 9

			p, _ := table.Lookup("Nishikori")
			convey.So(p.Refs[serve.LowerBodyEngagement], convey.ShouldEqual, 0.65)
			convey.So(table.Weight(serve.RacquetDropProxy), convey.ShouldEqual, 1.0)
		})
	})

	convey.Convey("Given custom profiles", t, func() {
		convey.Convey("When weights omit a proxy", func() {
			table, err := serve.NewProfileTable([]serve.Profile{{Name: "A"}}, serve.Weights{serve.LowerBodyEngagement: 2})

			convey.Convey("Then the missing weight defaults to 1", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(table.Weight(serve.LowerBodyEngagement), convey.ShouldEqual, 2)
				convey.So(table.Weight(serve.ShoulderRotationProxy), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When names are missing or duplicated", func() {
			_, err := serve.NewProfileTable([]serve.Profile{{}}, nil)
			convey.So(err, convey.ShouldNotBeNil)

			_, err = serve.NewProfileTable([]serve.Profile{{Name: "A"}, {Name: "A"}}, nil)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestAnalysisResult_Top(t *testing.T) {
	convey.Convey("Given analysis results", t, func() {
		convey.Convey("When similarities exist", func() {
			res := serve.AnalysisResult{Similarities: []serve.SimilarityResult{{Player: "A", Score: 90}, {Player: "B", Score: 10}}}
			top, err := res.Top()
			convey.So(err, convey.ShouldBeNil)
			convey.So(top.Player, convey.ShouldEqual, "A")
		})

		convey.Convey("When none exist", func() {
			_, err := (&serve.AnalysisResult{}).Top()
			convey.So(err, convey.ShouldEqual, serve.ErrNoSimilarities)
		})
	})
}

func TestFeatures_Proxy(t *testing.T) {
	convey.Convey("Given features", t, func() {
		f := serve.Features{LowerBodyEngagement: 0.1, ShoulderRotationProxy: 0.2, RacquetDropProxy: 0.3}

		convey.Convey("Then each known proxy resolves", func() {
			for i, p := range serve.Proxies {
				v, ok := f.Proxy(p)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(v, convey.ShouldAlmostEqual, 0.1*float64(i+1), 1e-12)
			}
		})

		convey.Convey("Then unknown proxies do not", func() {
			_, ok := f.Proxy("elbowAngle")
			convey.So(ok, convey.ShouldBeFalse)
		})
	})
}
