package api_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/okian/prefrank/internal/adapters/http/api"
	service "github.com/okian/prefrank/internal/app"
	"github.com/okian/prefrank/internal/domain/model"
	"github.com/okian/prefrank/internal/domain/types"
	"github.com/okian/prefrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

func newMux(svc *service.Service) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

type errBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func TestAPI_Judgments(t *testing.T) {
	Convey("Given an API over a fresh service", t, func() {
		svc := service.New()
		defer svc.Close()
		mux := newMux(svc)

		Convey("When a judgment is posted", func() {
			w := do(mux, http.MethodPost, "/users/u1/liked/judgments", `{"item_a":1,"item_b":2,"winner":2}`)

			Convey("Then the recorded edge should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				var resp struct {
					Edge model.Edge `json:"edge"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Edge, ShouldResemble, model.Edge{Winner: 2, Loser: 1})
				So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)
			})
		})

		Convey("When a cycle-forming judgment is posted", func() {
			do(mux, http.MethodPost, "/users/u1/liked/judgments", `{"item_a":1,"item_b":2,"winner":1}`)
			do(mux, http.MethodPost, "/users/u1/liked/judgments", `{"item_a":2,"item_b":3,"winner":2}`)
			w := do(mux, http.MethodPost, "/users/u1/liked/judgments", `{"item_a":3,"item_b":1,"winner":3}`)

			Convey("Then it should conflict", func() {
				So(w.Code, ShouldEqual, http.StatusConflict)
				var body errBody
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Code, ShouldEqual, "cycle_rejected")
				So(body.RequestID, ShouldNotBeEmpty)
			})
		})

		Convey("When malformed judgments are posted", func() {
			cases := []string{
				`{"item_a":1,"item_b":1,"winner":1}`,
				`{"item_a":1,"item_b":2}`,
				`{"item_a":1,"item_b":2,"winner":9}`,
				`{"item_a":1,"item_b":2,"winner":1,"extra":true}`,
				`not json`,
			}

			Convey("Then each should be a bad request", func() {
				for _, c := range cases {
					So(do(mux, http.MethodPost, "/users/u1/liked/judgments", c).Code, ShouldEqual, http.StatusBadRequest)
				}
			})
		})

		Convey("When the polarity is unknown", func() {
			w := do(mux, http.MethodPost, "/users/u1/meh/judgments", `{"item_a":1,"item_b":2,"winner":1}`)

			Convey("Then it should be a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestAPI_Rankings(t *testing.T) {
	Convey("Given a user with two judgments", t, func() {
		svc := service.New()
		defer svc.Close()
		mux := newMux(svc)
		do(mux, http.MethodPost, "/users/u1/liked/judgments", `{"item_a":100,"item_b":102,"winner":100}`)
		do(mux, http.MethodPost, "/users/u1/liked/judgments", `{"item_a":102,"item_b":101,"winner":102}`)

		Convey("When rankings are requested with candidates", func() {
			w := do(mux, http.MethodGet, "/users/u1/liked/rankings?candidates=7,100", "")

			Convey("Then ranked items come first and candidates are unranked", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Entries []types.Entry `json:"entries"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Entries, ShouldResemble, []types.Entry{
					types.RankedEntry(1, 100, 1),
					types.RankedEntry(2, 102, 2),
					types.RankedEntry(3, 101, 3),
					types.UnrankedEntry(4, 7),
				})
			})
		})

		Convey("When a bad candidate list is sent", func() {
			w := do(mux, http.MethodGet, "/users/u1/liked/rankings?candidates=x", "")

			Convey("Then it should be a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When 101 is placed below 100", func() {
			w := do(mux, http.MethodPost, "/users/u1/liked/placements", `{"item_id":101,"above":100}`)

			Convey("Then the edges to persist and remove should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Persist []model.Edge `json:"persist"`
					Removed []model.Edge `json:"removed"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Persist, ShouldResemble, []model.Edge{{Winner: 100, Loser: 101}})
				So(resp.Removed, ShouldResemble, []model.Edge{{Winner: 102, Loser: 101}})
			})
		})

		Convey("When a placement has no anchor", func() {
			w := do(mux, http.MethodPost, "/users/u1/liked/placements", `{"item_id":101}`)

			Convey("Then it should be a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a placement names item 0 as an anchor", func() {
			above := do(mux, http.MethodPost, "/users/u1/liked/placements", `{"item_id":101,"above":0}`)
			below := do(mux, http.MethodPost, "/users/u1/liked/placements", `{"item_id":101,"below":0,"above":100}`)
			ranks := do(mux, http.MethodGet, "/users/u1/liked/rankings", "")

			Convey("Then it should be a bad request and 0 should never enter the graph", func() {
				So(above.Code, ShouldEqual, http.StatusBadRequest)
				So(below.Code, ShouldEqual, http.StatusBadRequest)
				So(ranks.Body.String(), ShouldNotContainSubstring, `"item_id":0`)
			})
		})

		Convey("When a placement would cycle", func() {
			w := do(mux, http.MethodPost, "/users/u1/liked/placements", `{"item_id":102,"above":101,"below":100}`)

			Convey("Then it should conflict", func() {
				So(w.Code, ShouldEqual, http.StatusConflict)
			})
		})

		Convey("When the cycle endpoint is probed", func() {
			w := do(mux, http.MethodGet, "/users/u1/liked/cycle?a=101&b=100", "")

			Convey("Then both answers should be reported", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"has_cycle":false`)
				So(w.Body.String(), ShouldContainSubstring, `"will_create_cycle":true`)
			})
		})

		Convey("When matchup and anchor are requested", func() {
			m := do(mux, http.MethodGet, "/users/u1/liked/matchup", "")
			a := do(mux, http.MethodGet, "/users/u1/liked/anchor", "")
			empty := do(mux, http.MethodGet, "/users/u2/liked/anchor", "")

			Convey("Then the chain should have no safe matchup left", func() {
				So(m.Code, ShouldEqual, http.StatusNoContent)
				So(a.Code, ShouldEqual, http.StatusOK)
				So(a.Body.String(), ShouldContainSubstring, `"item_id":`)
				So(empty.Code, ShouldEqual, http.StatusNoContent)
			})
		})

		Convey("When the cache is dropped", func() {
			w := do(mux, http.MethodDelete, "/users/u1/liked/cache", "")
			after := do(mux, http.MethodGet, "/users/u1/liked/rankings", "")

			Convey("Then rankings should be rebuilt from the store", func() {
				So(w.Code, ShouldEqual, http.StatusNoContent)
				So(after.Code, ShouldEqual, http.StatusOK)
				So(after.Body.String(), ShouldContainSubstring, `"item_id":101`)
			})
		})
	})
}

func TestAPI_Operational(t *testing.T) {
	Convey("Given an API", t, func() {
		svc := service.New()
		defer svc.Close()
		mux := newMux(svc)

		Convey("Then health, stats and metrics should answer", func() {
			So(do(mux, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)

			stats := do(mux, http.MethodGet, "/stats", "")
			So(stats.Code, ShouldEqual, http.StatusOK)
			So(stats.Body.String(), ShouldContainSubstring, "cachedGraphs")

			do(mux, http.MethodGet, "/users/u1/liked/rankings", "")
			m := do(mux, http.MethodGet, "/metrics", "")
			So(m.Code, ShouldEqual, http.StatusOK)
			So(m.Body.String(), ShouldContainSubstring, "prefrank_")
		})

		Convey("Then a valid incoming request id should be echoed", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
			id := "8d3c6f1e-2b7a-4c1e-9f1a-0c2d3e4f5a6b"
			req.Header.Set(api.RequestIDHeader, id)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Header().Get(api.RequestIDHeader), ShouldEqual, id)
		})

		Convey("Then the wrong method should not be routed", func() {
			So(do(mux, http.MethodPut, "/users/u1/liked/judgments", "{}").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

// failingDeps reports a store failure for every write.
type failingDeps struct{ *service.Service }

func (failingDeps) RecordJudgment(context.Context, model.UserID, model.ItemID, model.ItemID, model.ItemID, model.Polarity) (model.Edge, error) {
	return model.Edge{}, errors.Join(service.ErrPersist, errors.New("disk full"))
}

func TestAPI_InternalErrors(t *testing.T) {
	Convey("Given a dependency that fails to persist", t, func() {
		svc := service.New()
		defer svc.Close()
		mux := http.NewServeMux()
		api.NewServer(failingDeps{svc}, svc).Register(context.Background(), mux)

		Convey("When a judgment is posted", func() {
			w := do(mux, http.MethodPost, "/users/u1/liked/judgments", `{"item_a":1,"item_b":2,"winner":1}`)

			Convey("Then it should be a server error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(strings.Contains(w.Body.String(), "internal_error"), ShouldBeTrue)
			})
		})
	})
}
