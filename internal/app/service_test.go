package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/plusolver/internal/adapters/easyplu"
	"github.com/okian/plusolver/internal/adapters/easyplu/easyplutest"
	"github.com/okian/plusolver/internal/adapters/mq/queue"
	"github.com/okian/plusolver/internal/adapters/repository"
	service "github.com/okian/plusolver/internal/app"
	"github.com/okian/plusolver/internal/domain/inflight"
	"github.com/okian/plusolver/internal/domain/model"
	"github.com/okian/plusolver/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func intPtr(v int) *int { return &v }

type recorder struct {
	mu     sync.Mutex
	events []model.ProgressEvent
}

func (r *recorder) Emit(_ context.Context, e model.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) stages() []model.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Stage, len(r.events))
	for i, e := range r.events {
		out[i] = e.Stage
	}
	return out
}

func (r *recorder) last(n int) model.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1-n]
}

type fixture struct {
	srv    *easyplutest.Server
	client *easyplu.Client
	cache  repository.Cache
	svc    *service.Service
	auth   service.Authenticator
}

func newFixture(catalog int, opts ...service.Option) *fixture {
	srv := easyplutest.NewServer(catalog)
	client := easyplu.New(easyplu.WithBaseURL(srv.URL), easyplu.WithSettleDelay(0))
	cache := repository.NewMemoryStore()
	svc := service.New(append([]service.Option{service.WithCache(cache)}, opts...)...)
	return &fixture{
		srv:    srv,
		client: client,
		cache:  cache,
		svc:    svc,
		auth: service.PasswordAuth(client, model.Credentials{
			Identifier: easyplutest.Email, Secret: easyplutest.Password,
		}),
	}
}

func (f *fixture) close() {
	f.svc.Stop()
	f.srv.Close()
}

func drain(q queue.Queue) []model.ProgressEvent {
	var out []model.ProgressEvent
	ctx := context.Background()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		e, ok, err := q.Poll(ctx, 50*time.Millisecond)
		if err != nil {
			return out
		}
		if ok {
			out = append(out, e)
		}
	}
	return out
}

func stagesOf(events []model.ProgressEvent) []model.Stage {
	out := make([]model.Stage, len(events))
	for i, e := range events {
		out[i] = e.Stage
	}
	return out
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service without a cache", t, func() {
		svc := service.New()

		Convey("Start refuses to run", func() {
			So(errors.Is(svc.Start(context.Background()), service.ErrNoCache), ShouldBeTrue)
		})

		Convey("Runs fail fast instead of touching the missing cache", func() {
			srv := easyplutest.NewServer(1)
			defer srv.Close()
			auth := service.PasswordAuth(easyplu.New(easyplu.WithBaseURL(srv.URL), easyplu.WithSettleDelay(0)),
				model.Credentials{Identifier: easyplutest.Email, Secret: easyplutest.Password})

			_, err := svc.Solve(context.Background(), auth, service.RunOptions{}, nil)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)

			_, err = svc.RunAttempt(context.Background(), auth, nil)
			So(errors.Is(err, service.ErrNoCache), ShouldBeTrue)

			So(errors.Is(svc.EnsureCatalog(context.Background(), nil), service.ErrNoCache), ShouldBeTrue)
			So(srv.Calls("login"), ShouldEqual, 0)
		})

		Convey("Stop and GetStats are safe before Start", func() {
			So(func() { svc.Stop() }, ShouldNotPanic)
			stats := svc.GetStats(context.Background())
			So(stats.ActiveRuns, ShouldEqual, 0)
			So(stats.UptimeSeconds, ShouldEqual, 0)
		})
	})

	Convey("Given a service with a cache", t, func() {
		f := newFixture(3, service.WithMaxAttempts(7), service.WithPollInterval(20*time.Millisecond))
		defer f.close()

		So(f.svc.Start(context.Background()), ShouldBeNil)
		So(f.svc.Start(context.Background()), ShouldBeNil)

		Convey("Options are applied", func() {
			So(f.svc.MaxAttempts(), ShouldEqual, 7)
			So(f.svc.PollInterval(), ShouldEqual, 20*time.Millisecond)
			So(f.svc.Cache(), ShouldEqual, f.cache)
		})

		Convey("Stream and Solve are refused after Stop", func() {
			f.svc.Stop()
			_, err := f.svc.Stream(context.Background(), f.auth, service.RunOptions{})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = f.svc.Solve(context.Background(), f.auth, service.RunOptions{}, nil)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestService_RunAttempt(t *testing.T) {
	Convey("Given a vendor with a ten item catalog", t, func() {
		f := newFixture(10)
		defer f.close()
		ctx := context.Background()

		Convey("With no target every answer is correct", func() {
			res, err := f.svc.RunAttempt(ctx, f.auth, nil)
			So(err, ShouldBeNil)
			So(res.TotalItems, ShouldEqual, 10)
			So(res.CorrectItems, ShouldEqual, 10)
			So(res.IncorrectItems, ShouldEqual, 0)
			So(res.AverageScore, ShouldEqual, 100.0)
			So(res.FinalResult.Float64(), ShouldEqual, 100)
			So(res.IntegrityGaps, ShouldEqual, 0)
			So(len(res.Details), ShouldEqual, 10)

			for _, a := range f.srv.Answers() {
				So(a.Right, ShouldBeTrue)
				So(a.Correct, ShouldBeTrue)
			}

			Convey("and the cache is populated once", func() {
				populated, err := f.cache.IsPopulated(ctx)
				So(err, ShouldBeNil)
				So(populated, ShouldBeTrue)
				n, _ := f.cache.Count(ctx)
				So(n, ShouldEqual, 10)
				So(f.srv.Calls("product_categories"), ShouldEqual, 1)

				_, err = f.svc.RunAttempt(ctx, f.auth, nil)
				So(err, ShouldBeNil)
				// one browse session plus two graded sessions
				So(f.srv.Calls("create_session"), ShouldEqual, 3)
				So(f.srv.Calls("product_categories"), ShouldEqual, 1)
			})
		})

		Convey("A target of 70 answers three items wrong", func() {
			res, err := f.svc.RunAttempt(ctx, f.auth, intPtr(70))
			So(err, ShouldBeNil)
			So(res.CorrectItems, ShouldEqual, 7)
			So(res.IncorrectItems, ShouldEqual, 3)
			So(res.AverageScore, ShouldAlmostEqual, 70, 0.0001)
			So(res.FinalResult.Float64(), ShouldAlmostEqual, 70, 0.0001)

			wrong := 0
			for _, a := range f.srv.Answers() {
				if a.Given == "0000" {
					wrong++
					So(a.Correct, ShouldBeFalse)
				}
			}
			So(wrong, ShouldEqual, 3)
		})

		Convey("A target of 0 answers everything wrong", func() {
			res, err := f.svc.RunAttempt(ctx, f.auth, intPtr(0))
			So(err, ShouldBeNil)
			So(res.CorrectItems, ShouldEqual, 0)
			So(res.AverageScore, ShouldEqual, 0.0)
		})

		Convey("Catalog ids missing from the cache degrade to empty answers", func() {
			_, err := f.cache.Populate(ctx, easyplutest.Catalog(8))
			So(err, ShouldBeNil)

			res, err := f.svc.RunAttempt(ctx, f.auth, nil)
			So(err, ShouldBeNil)
			So(res.IntegrityGaps, ShouldEqual, 2)
			So(res.CorrectItems, ShouldEqual, 10)
			So(res.FinalResult.Float64(), ShouldEqual, 80)

			empty := 0
			for _, d := range res.Details {
				if d.Given == "" {
					empty++
					So(d.Correct, ShouldBeTrue)
				}
			}
			So(empty, ShouldEqual, 2)
		})

		Convey("An out of range target never reaches the vendor", func() {
			_, err := f.svc.RunAttempt(ctx, f.auth, intPtr(150))
			So(errors.Is(err, service.ErrInvalidTarget), ShouldBeTrue)
			So(f.srv.Calls("login"), ShouldEqual, 0)
		})

		Convey("A rejected login is an auth error", func() {
			bad := service.PasswordAuth(f.client, model.Credentials{Identifier: easyplutest.Email, Secret: "wrong"})
			_, err := f.svc.RunAttempt(ctx, bad, nil)
			So(errors.Is(err, easyplu.ErrAuth), ShouldBeTrue)
			So(f.svc.GetStats(ctx).AttemptsFailed, ShouldEqual, 1)
		})
	})
}

func TestService_RunUntilFullKnowledge(t *testing.T) {
	Convey("Given a vendor", t, func() {
		f := newFixture(5, service.WithMaxAttempts(3))
		defer f.close()
		ctx := context.Background()
		rec := &recorder{}

		Convey("A single run emits start, complete, final, closed", func() {
			f.srv.Knowledge = []float64{40}
			res, err := f.svc.RunUntilFullKnowledge(ctx, f.auth, service.RunOptions{Target: intPtr(80)}, rec)
			So(err, ShouldBeNil)
			So(res.Attempt, ShouldEqual, 1)
			So(rec.stages(), ShouldResemble, []model.Stage{
				model.StageAttemptStart, model.StageAttemptComplete, model.StageFinal, model.StageClosed,
			})
			final := rec.last(1)
			So(final.Progress, ShouldEqual, 100)
			So(*final.UserKnowledge, ShouldEqual, 40.0)
			So(final.Result, ShouldNotBeNil)
		})

		Convey("Convergence on the second attempt retries once", func() {
			f.srv.Knowledge = []float64{80, 100}
			res, err := f.svc.RunUntilFullKnowledge(ctx, f.auth, service.RunOptions{FullKnowledge: true}, rec)
			So(err, ShouldBeNil)
			So(res.Attempt, ShouldEqual, 2)
			So(res.UserKnowledge, ShouldEqual, 100.0)
			So(rec.stages(), ShouldResemble, []model.Stage{
				model.StageAttemptStart, model.StageAttemptComplete, model.StageRetrying,
				model.StageAttemptStart, model.StageAttemptComplete, model.StageFinal, model.StageClosed,
			})
			So(rec.events[2].Progress, ShouldEqual, 95)
			So(rec.events[1].Progress, ShouldEqual, 90)
		})

		Convey("Full knowledge on the first attempt never retries", func() {
			f.srv.Knowledge = []float64{100}
			_, err := f.svc.RunUntilFullKnowledge(ctx, f.auth, service.RunOptions{FullKnowledge: true}, rec)
			So(err, ShouldBeNil)
			So(rec.stages(), ShouldNotContain, model.StageRetrying)
		})

		Convey("The safety bound ends in error after exactly max attempts", func() {
			f.srv.Knowledge = []float64{55.5}
			res, err := f.svc.RunUntilFullKnowledge(ctx, f.auth, service.RunOptions{FullKnowledge: true}, rec)
			So(errors.Is(err, service.ErrSafetyBound), ShouldBeTrue)
			var bound *service.SafetyBoundError
			So(errors.As(err, &bound), ShouldBeTrue)
			So(bound.Attempts, ShouldEqual, 3)
			So(bound.LastKnowledge, ShouldEqual, 55.5)
			So(res.Attempt, ShouldEqual, 3)
			So(f.srv.Results(), ShouldEqual, 3)

			starts := 0
			for _, s := range rec.stages() {
				if s == model.StageAttemptStart {
					starts++
				}
			}
			So(starts, ShouldEqual, 3)

			errEv := rec.last(1)
			So(errEv.Stage, ShouldEqual, model.StageError)
			So(errEv.Error, ShouldEqual, "Max attempts reached")
			So(*errEv.UserKnowledge, ShouldEqual, 55.5)
			So(rec.last(2).Stage, ShouldEqual, model.StageAttemptComplete)
			So(rec.last(0).Stage, ShouldEqual, model.StageClosed)
		})

		Convey("A per-run bound overrides the service bound", func() {
			f.srv.Knowledge = []float64{10}
			_, err := f.svc.RunUntilFullKnowledge(ctx, f.auth, service.RunOptions{FullKnowledge: true, MaxAttempts: 1}, rec)
			So(errors.Is(err, service.ErrSafetyBound), ShouldBeTrue)
			So(f.srv.Results(), ShouldEqual, 1)
		})

		Convey("A failing attempt ends the run with error then closed", func() {
			f.srv.Fail["result"] = 500
			_, err := f.svc.RunUntilFullKnowledge(ctx, f.auth, service.RunOptions{FullKnowledge: true}, rec)
			So(errors.Is(err, easyplu.ErrUpstream), ShouldBeTrue)
			So(rec.stages(), ShouldResemble, []model.Stage{
				model.StageAttemptStart, model.StageError, model.StageClosed,
			})
			So(rec.last(1).Error, ShouldContainSubstring, "status 500")
		})

		Convey("A nil emitter is allowed", func() {
			_, err := f.svc.RunUntilFullKnowledge(ctx, f.auth, service.RunOptions{}, nil)
			So(err, ShouldBeNil)
		})
	})
}

func TestService_Stream(t *testing.T) {
	Convey("Given a started service", t, func() {
		f := newFixture(4)
		defer f.close()
		ctx := context.Background()
		So(f.svc.Start(ctx), ShouldBeNil)

		Convey("A streamed run ends with final then closed", func() {
			run, err := f.svc.Stream(ctx, f.auth, service.RunOptions{Target: intPtr(50)})
			So(err, ShouldBeNil)
			So(run.ID, ShouldNotBeEmpty)

			events := drain(run.Events)
			So(stagesOf(events), ShouldResemble, []model.Stage{
				model.StageAttemptStart, model.StageAttemptComplete, model.StageFinal, model.StageClosed,
			})
			for _, e := range events[:3] {
				So(e.RunID, ShouldEqual, run.ID)
			}
			So(events[3].RunID, ShouldBeEmpty)
			So(run.Events.IsClosed(), ShouldBeTrue)
		})

		Convey("A second run for the same operator is refused while the first runs", func() {
			slow := easyplu.New(easyplu.WithBaseURL(f.srv.URL), easyplu.WithSettleDelay(300*time.Millisecond))
			auth := service.PasswordAuth(slow, model.Credentials{Identifier: easyplutest.Email, Secret: easyplutest.Password})
			again := service.PasswordAuth(slow, model.Credentials{Identifier: strings.ToUpper(easyplutest.Email), Secret: easyplutest.Password})

			run, err := f.svc.Stream(ctx, auth, service.RunOptions{})
			So(err, ShouldBeNil)
			_, err = f.svc.Stream(ctx, again, service.RunOptions{})
			So(errors.Is(err, inflight.ErrBusy), ShouldBeTrue)
			So(f.svc.GetStats(ctx).ActiveRuns, ShouldEqual, 1)

			drain(run.Events)
			f.svc.Stop()
			So(f.svc.GetStats(ctx).ActiveRuns, ShouldEqual, 0)
		})

		Convey("Stop cancels a running stream which still closes cleanly", func() {
			slow := easyplu.New(easyplu.WithBaseURL(f.srv.URL), easyplu.WithSettleDelay(time.Hour))
			auth := service.PasswordAuth(slow, model.Credentials{Identifier: easyplutest.Email, Secret: easyplutest.Password})

			run, err := f.svc.Stream(ctx, auth, service.RunOptions{})
			So(err, ShouldBeNil)
			time.Sleep(100 * time.Millisecond)
			f.svc.Stop()

			events := drain(run.Events)
			So(len(events), ShouldBeGreaterThanOrEqualTo, 2)
			So(events[len(events)-2].Stage, ShouldEqual, model.StageError)
			So(events[len(events)-1].Stage, ShouldEqual, model.StageClosed)
		})

		Convey("An invalid target is refused before admission", func() {
			_, err := f.svc.Stream(ctx, f.auth, service.RunOptions{Target: intPtr(-1)})
			So(errors.Is(err, service.ErrInvalidTarget), ShouldBeTrue)
			So(f.svc.GetStats(ctx).ActiveRuns, ShouldEqual, 0)
		})
	})
}

func TestService_Solve(t *testing.T) {
	Convey("Given a service", t, func() {
		f := newFixture(4)
		defer f.close()
		ctx := context.Background()
		rec := &recorder{}
		So(f.svc.Start(ctx), ShouldBeNil)

		Convey("Solve runs the loop and releases the operator slot", func() {
			res, err := f.svc.Solve(ctx, f.auth, service.RunOptions{}, rec)
			So(err, ShouldBeNil)
			So(res.AverageScore, ShouldEqual, 100.0)
			So(rec.last(0).Stage, ShouldEqual, model.StageClosed)
			So(f.svc.GetStats(ctx).ActiveRuns, ShouldEqual, 0)
			So(f.svc.GetStats(ctx).RunsStarted, ShouldEqual, 1)
		})
	})
}

func TestAuthenticators(t *testing.T) {
	Convey("Given the vendor fake", t, func() {
		srv := easyplutest.NewServer(1)
		defer srv.Close()
		client := easyplu.New(easyplu.WithBaseURL(srv.URL))

		Convey("PasswordAuth logs in on every call", func() {
			auth := service.PasswordAuth(client, model.Credentials{Identifier: easyplutest.Email, Secret: easyplutest.Password})
			s, err := auth.Authenticate(context.Background())
			So(err, ShouldBeNil)
			So(s.UserID(), ShouldEqual, model.ID(easyplutest.UserID))
			_, _ = auth.Authenticate(context.Background())
			So(srv.Calls("login"), ShouldEqual, 2)
		})

		Convey("TokenAuth never logs in", func() {
			auth := service.TokenAuth(client, "garbage")
			_, err := auth.Authenticate(context.Background())
			So(errors.Is(err, easyplu.ErrAuth), ShouldBeTrue)
			So(srv.Calls("login"), ShouldEqual, 0)
		})

		Convey("AuthenticatorFunc adapts a function", func() {
			want := errors.New("boom")
			auth := service.AuthenticatorFunc(func(context.Context) (service.Session, error) { return nil, want })
			_, err := auth.Authenticate(context.Background())
			So(err, ShouldEqual, want)
		})
	})
}

func TestEmitters(t *testing.T) {
	Convey("MultiEmitter fans out in order and skips nil", t, func() {
		a, b := &recorder{}, &recorder{}
		m := service.MultiEmitter(a, nil, b, service.Discard, service.LogEmitter(nil))
		m.Emit(context.Background(), model.ProgressEvent{Stage: model.StageAttemptStart})
		m.Emit(context.Background(), model.Closed())
		So(a.stages(), ShouldResemble, []model.Stage{model.StageAttemptStart, model.StageClosed})
		So(b.stages(), ShouldResemble, a.stages())
	})

	Convey("QueueEmitter tags events with the run id", t, func() {
		q := queue.NewInMemoryQueue()
		e := service.QueueEmitter(q, "run-1")
		e.Emit(context.Background(), model.ProgressEvent{Stage: model.StageFinal})
		e.Emit(context.Background(), model.Closed())
		_ = q.Close()

		events := drain(q)
		So(len(events), ShouldEqual, 2)
		So(events[0].RunID, ShouldEqual, "run-1")
		So(events[1].RunID, ShouldBeEmpty)

		Convey("and drops silently once the queue is closed", func() {
			So(func() { e.Emit(context.Background(), model.ProgressEvent{Stage: model.StageFinal}) }, ShouldNotPanic)
		})
	})
}
