package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/servecoach/internal/adapters/http/api"
	"github.com/okian/servecoach/internal/adapters/mq/queue"
	"github.com/okian/servecoach/internal/adapters/repository"
	"github.com/okian/servecoach/internal/adapters/video"
	"github.com/okian/servecoach/internal/analysis"
	service "github.com/okian/servecoach/internal/app"
	"github.com/okian/servecoach/internal/domain/model"
	"github.com/okian/servecoach/internal/domain/serve"
	"github.com/okian/servecoach/internal/domain/types"
	logging "github.com/okian/servecoach/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logging.Init()
}

type mockDependencies struct {
	submission  types.Submission
	submitErr   error
	outcome     analysis.Outcome
	analyzeErr  error
	jobs        map[string]types.JobView
	jobErr      error
	gotType     string
	gotData     []byte
	submitCalls int
}

func (m *mockDependencies) Submit(_ context.Context, contentType string, data []byte) (types.Submission, error) {
	m.submitCalls++
	m.gotType, m.gotData = contentType, data
	return m.submission, m.submitErr
}

func (m *mockDependencies) Analyze(_ context.Context, contentType string, data []byte) (analysis.Outcome, error) {
	m.gotType, m.gotData = contentType, data
	return m.outcome, m.analyzeErr
}

func (m *mockDependencies) Job(_ context.Context, id string) (types.JobView, error) {
	if m.jobErr != nil {
		return types.JobView{}, m.jobErr
	}
	job, ok := m.jobs[id]
	if !ok {
		return types.JobView{}, fmt.Errorf("lookup %s: %w", id, repository.ErrNotFound)
	}
	return job, nil
}

func (m *mockDependencies) Profiles() types.ProfilesView {
	table := serve.DefaultProfileTable()
	return types.ProfilesView{Profiles: table.Profiles(), Weights: table.Weights()}
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps *mockDependencies, maxUpload int64) *http.ServeMux {
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}, maxUpload)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(&mockDependencies{}, 0)

		Convey("When probing /healthz as a browser", func() {
			w := do(mux, http.MethodGet, "/healthz", nil, "")

			Convey("Then it answers with a JSON status", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
			})
		})

		Convey("When a scraper asks /healthz for text", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.Header.Set("Accept", "text/plain")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the metrics registry is exposed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "text/plain")
			})
		})

		Convey("When scraping /metrics", func() {
			w := do(mux, http.MethodGet, "/metrics", nil, "")

			Convey("Then it succeeds", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When reading /stats", func() {
			w := do(mux, http.MethodGet, "/stats", nil, "")

			Convey("Then the provider's stats are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"started":true`)
				So(w.Body.String(), ShouldContainSubstring, `"uptimeSeconds":`)
			})
		})

		Convey("When reading a single stat", func() {
			w := do(mux, http.MethodGet, "/stats?key=started", nil, "")
			missing := do(mux, http.MethodGet, "/stats?key=bogus", nil, "")

			Convey("Then only that key is returned and unknown keys are 404", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, `{"started":true}`)
				So(missing.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When reading /profiles", func() {
			w := do(mux, http.MethodGet, "/profiles", nil, "")

			Convey("Then the four reference players are listed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var view types.ProfilesView
				So(json.Unmarshal(w.Body.Bytes(), &view), ShouldBeNil)
				So(view.Profiles, ShouldHaveLength, 4)
			})
		})

		Convey("When an unknown path is requested", func() {
			w := do(mux, http.MethodGet, "/unknown", nil, "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestPostAnalysis(t *testing.T) {
	Convey("Given the analyses endpoint", t, func() {
		deps := &mockDependencies{submission: types.Submission{ID: "job-1", Status: model.StatusQueued}}
		mux := newMux(deps, 64)
		clip := []byte("GIF89a-fake-clip")

		Convey("When a new clip is posted", func() {
			w := do(mux, http.MethodPost, "/analyses", clip, "image/gif")

			Convey("Then it is accepted with the job id", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, `"id":"job-1"`)
				So(w.Body.String(), ShouldContainSubstring, `"status":"queued"`)
				So(deps.gotType, ShouldEqual, "image/gif")
				So(deps.gotData, ShouldResemble, clip)
			})
		})

		Convey("When the clip was seen before", func() {
			deps.submission = types.Submission{ID: "job-0", Status: model.StatusDone, Duplicate: true}
			w := do(mux, http.MethodPost, "/analyses", clip, "image/gif")

			Convey("Then the existing job is returned with 200", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"duplicate":true`)
			})
		})

		Convey("When the queue is full", func() {
			deps.submitErr = queue.ErrFull
			w := do(mux, http.MethodPost, "/analyses", clip, "image/gif")

			Convey("Then backpressure is signalled", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decodeError(w)["code"], ShouldEqual, "backpressure")
			})
		})

		Convey("When the body is empty", func() {
			deps.submitErr = service.ErrEmptyUpload
			w := do(mux, http.MethodPost, "/analyses", nil, "image/gif")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When the media type is not a clip", func() {
			deps.submitErr = fmt.Errorf("sniff: %w", video.ErrUnsupportedFormat)
			w := do(mux, http.MethodPost, "/analyses", []byte("hello"), "text/plain")

			Convey("Then it is unsupported", func() {
				So(w.Code, ShouldEqual, http.StatusUnsupportedMediaType)
				So(decodeError(w)["code"], ShouldEqual, "unsupported_media")
			})
		})

		Convey("When the body exceeds the upload limit", func() {
			w := do(mux, http.MethodPost, "/analyses", bytes.Repeat([]byte{1}, 65), "image/gif")

			Convey("Then it is rejected before submission", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
				So(decodeError(w)["code"], ShouldEqual, "too_large")
				So(deps.submitCalls, ShouldEqual, 0)
			})
		})

		Convey("When the service is not running", func() {
			deps.submitErr = service.ErrNotStarted
			w := do(mux, http.MethodPost, "/analyses", clip, "image/gif")

			Convey("Then it is unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When submission fails unexpectedly", func() {
			deps.submitErr = errors.New("disk on fire")
			w := do(mux, http.MethodPost, "/analyses", clip, "image/gif")

			Convey("Then it is an internal error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(decodeError(w)["code"], ShouldEqual, "internal_error")
			})
		})

		Convey("When the endpoint is read with GET", func() {
			w := do(mux, http.MethodGet, "/analyses", nil, "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestPostAnalysisSync(t *testing.T) {
	Convey("Given the analyses endpoint in sync mode", t, func() {
		deps := &mockDependencies{
			outcome: analysis.Outcome{
				Provider: "local",
				Result: serve.AnalysisResult{
					Similarities: []serve.SimilarityResult{{Player: "Federer", Score: 100}},
					Advice:       []string{"Great job"},
				},
			},
		}
		mux := newMux(deps, 0)
		clip := []byte("GIF89a-fake-clip")

		Convey("When the analysis succeeds", func() {
			w := do(mux, http.MethodPost, "/analyses?sync=true", clip, "image/gif")

			Convey("Then the attributed result is returned inline", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body struct {
					Provider string               `json:"provider"`
					Result   serve.AnalysisResult `json:"result"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Provider, ShouldEqual, "local")
				So(body.Result.Similarities[0].Player, ShouldEqual, "Federer")
				So(deps.submitCalls, ShouldEqual, 0)
			})
		})

		Convey("When the analysis fails", func() {
			deps.analyzeErr = serve.ErrEmptySignal
			w := do(mux, http.MethodPost, "/analyses?sync=true", clip, "image/gif")

			Convey("Then it is unprocessable", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				body := decodeError(w)
				So(body["code"], ShouldEqual, "analysis_failed")
				So(body["message"], ShouldContainSubstring, serve.ErrEmptySignal.Error())
			})
		})

		Convey("When the clip exceeds the decode limits", func() {
			deps.analyzeErr = fmt.Errorf("local: %w", video.ErrTooLarge)
			w := do(mux, http.MethodPost, "/analyses?sync=true", clip, "image/gif")

			Convey("Then it is too large rather than unprocessable", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
				So(decodeError(w)["code"], ShouldEqual, "too_large")
			})
		})

		Convey("When the sync flag is malformed", func() {
			w := do(mux, http.MethodPost, "/analyses?sync=maybe", clip, "image/gif")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When sync is explicitly off", func() {
			deps.submission = types.Submission{ID: "job-9", Status: model.StatusQueued}
			w := do(mux, http.MethodPost, "/analyses?sync=false", clip, "image/gif")

			Convey("Then the clip is queued", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.submitCalls, ShouldEqual, 1)
			})
		})
	})
}

func TestGetAnalysis(t *testing.T) {
	Convey("Given stored jobs", t, func() {
		deps := &mockDependencies{jobs: map[string]types.JobView{
			"job-1": {ID: "job-1", Status: model.StatusDone, Provider: "local"},
		}}
		mux := newMux(deps, 0)

		Convey("When fetching a known job", func() {
			w := do(mux, http.MethodGet, "/analyses/job-1", nil, "")

			Convey("Then its view is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var view types.JobView
				So(json.Unmarshal(w.Body.Bytes(), &view), ShouldBeNil)
				So(view.Status, ShouldEqual, model.StatusDone)
				So(view.Provider, ShouldEqual, "local")
			})
		})

		Convey("When fetching an unknown job", func() {
			w := do(mux, http.MethodGet, "/analyses/nope", nil, "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decodeError(w)["code"], ShouldEqual, "not_found")
			})
		})

		Convey("When the id is missing or nested", func() {
			So(do(mux, http.MethodGet, "/analyses/", nil, "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/analyses/a/b", nil, "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When posting to a job path", func() {
			w := do(mux, http.MethodPost, "/analyses/job-1", []byte("x"), "image/gif")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestKindErrors(t *testing.T) {
	Convey("Given a wrapped kind error", t, func() {
		cause := errors.New("boom")
		err := api.WrapKind("api.op", api.ErrBadRequest, cause)

		Convey("Then both the kind and the cause match", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("Then a bare kind carries only the kind", func() {
			bare := api.NewKind("api.op", api.ErrNotFound)
			So(errors.Is(bare, api.ErrNotFound), ShouldBeTrue)
			So(strings.Count(bare.Error(), ":"), ShouldEqual, 1)
		})
	})
}
