package cli_test

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/plusolver/internal/adapters/easyplu"
	"github.com/okian/plusolver/internal/adapters/easyplu/easyplutest"
	"github.com/okian/plusolver/internal/adapters/http/api"
	"github.com/okian/plusolver/internal/adapters/repository"
	service "github.com/okian/plusolver/internal/app"
	"github.com/okian/plusolver/internal/cli"
	"github.com/okian/plusolver/internal/domain/model"
	"github.com/okian/plusolver/internal/domain/targeting"
	"github.com/okian/plusolver/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := cli.NewRootCommand(strings.NewReader(stdin), &out, &errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PLUSOLVER_CONFIG", "")
	t.Setenv("PLUSOLVER_PASSWORD", "")
	t.Setenv("PLUSOLVER_API_KEY", "")
	t.Setenv("PLUSOLVER_CACHE_DRIVER", "memory")
	t.Setenv("PLUSOLVER_SETTLE_DELAY_MS", "0")
}

func TestConsole(t *testing.T) {
	Convey("Given a console sink", t, func() {
		var out bytes.Buffer
		c := cli.NewConsole(&out)
		ctx := context.Background()
		res := model.AttemptResult{
			FinalResult:   model.NumberPtr(80),
			UserKnowledge: 92.5,
			TotalItems:    10,
			CorrectItems:  8,
			AverageScore:  80,
			Attempt:       1,
		}

		Convey("A successful run prints each stage and a summary", func() {
			So(c.Send(ctx, model.ProgressEvent{Stage: model.StageAttemptStart, Message: "Attempt 1..."}), ShouldBeNil)
			So(c.Send(ctx, model.ProgressEvent{Stage: model.StageFinal, Progress: 100, Message: "Done", Result: &res}), ShouldBeNil)
			So(c.Send(ctx, model.Closed()), ShouldBeNil)
			So(c.Finish(), ShouldBeNil)

			s := out.String()
			So(s, ShouldContainSubstring, "attempt_start")
			So(s, ShouldContainSubstring, "Attempt 1...")
			So(s, ShouldContainSubstring, "100%")
			So(s, ShouldContainSubstring, "User knowledge")
			So(s, ShouldContainSubstring, "92.50%")
			So(s, ShouldContainSubstring, "8 / 10")

			last, ok := c.Last()
			So(ok, ShouldBeTrue)
			So(last.CorrectItems, ShouldEqual, 8)
		})

		Convey("An error event makes Finish fail", func() {
			So(c.Send(ctx, model.ProgressEvent{Stage: model.StageError, Message: "Error: boom", Error: "boom"}), ShouldBeNil)
			err := c.Finish()
			So(errors.Is(err, cli.ErrRunFailed), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "boom")
		})

		Convey("A stream without a result is reported", func() {
			So(c.Send(ctx, model.Closed()), ShouldBeNil)
			So(c.Finish(), ShouldEqual, cli.ErrNoResult)
		})
	})
}

func TestSummary(t *testing.T) {
	Convey("Summary renders missing vendor figures as dashes", t, func() {
		s := cli.Summary(model.AttemptResult{TotalItems: 3, CorrectItems: 3, IntegrityGaps: 2})
		So(s, ShouldContainSubstring, "Ranking in store")
		So(s, ShouldContainSubstring, "-")
		So(s, ShouldContainSubstring, "Integrity gaps")
	})
}

func TestReadEvents(t *testing.T) {
	Convey("Given an SSE body", t, func() {
		body := strings.Join([]string{
			`data: {"stage":"attempt_start","progress":0,"message":"Attempt 1...","attempt":1,"user_knowledge":null}`,
			``,
			`: keep-alive`,
			`data: {"stage":"final","progress":100,"message":"Done","attempt":1,"user_knowledge":100,"result":{"user_knowledge":100,"final_result":"100"}}`,
			``,
			`data: {"stage":"closed"}`,
			``,
			`data: {"stage":"attempt_start"}`,
			``,
		}, "\n")

		Convey("Events are decoded in order up to closed", func() {
			var got []model.ProgressEvent
			err := cli.ReadEvents(context.Background(), strings.NewReader(body), func(_ context.Context, e model.ProgressEvent) error {
				got = append(got, e)
				return nil
			})
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 3)
			So(got[0].Stage, ShouldEqual, model.StageAttemptStart)
			So(got[0].UserKnowledge, ShouldBeNil)
			So(got[1].Result, ShouldNotBeNil)
			So(got[1].Result.FinalResult.Float64(), ShouldEqual, 100.0)
			So(got[2].Stage, ShouldEqual, model.StageClosed)
		})

		Convey("A handler error stops reading", func() {
			stop := errors.New("stop")
			err := cli.ReadEvents(context.Background(), strings.NewReader(body), func(context.Context, model.ProgressEvent) error {
				return stop
			})
			So(err, ShouldEqual, stop)
		})

		Convey("Malformed frames fail", func() {
			err := cli.ReadEvents(context.Background(), strings.NewReader("data: {nope\n\n"), func(context.Context, model.ProgressEvent) error {
				return nil
			})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestPrompter(t *testing.T) {
	Convey("Given piped input", t, func() {
		var out bytes.Buffer
		p := cli.NewPrompter(strings.NewReader(" ana@example.com \nsecret\n"), &out)

		Convey("Lines and secrets are read in order", func() {
			id, err := p.Line("Email: ")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "ana@example.com")

			secret, err := p.Secret("Password: ")
			So(err, ShouldBeNil)
			So(secret, ShouldEqual, "secret")
			So(out.String(), ShouldEqual, "Email: Password: ")

			_, err = p.Line("More: ")
			So(err, ShouldEqual, cli.ErrEmptyInput)
		})

		Convey("Presets skip the prompt", func() {
			v, err := p.LineOr("preset", "Email: ")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "preset")
			So(out.Len(), ShouldEqual, 0)
		})
	})
}

func TestRunCommand(t *testing.T) {
	Convey("Given the fake vendor", t, func() {
		isolateEnv(t)
		srv := easyplutest.NewServer(10)
		defer srv.Close()
		t.Setenv("PLUSOLVER_VENDOR_BASE_URL", srv.URL)

		Convey("run answers to the target and prints the summary", func() {
			out, err := execute(t, easyplutest.Password+"\n", "run", "--email", easyplutest.Email, "--target", "50")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "attempt_start")
			So(out, ShouldContainSubstring, "final")
			So(out, ShouldContainSubstring, "5 / 10")

			answers := srv.Answers()
			So(answers, ShouldHaveLength, 10)
			wrong := 0
			for _, a := range answers {
				if !a.Right {
					wrong++
				}
			}
			So(wrong, ShouldEqual, 5)
		})

		Convey("run with full knowledge retries", func() {
			srv.Knowledge = []float64{90, 100}
			out, err := execute(t, easyplutest.Password+"\n", "run", "--email", easyplutest.Email, "--full-knowledge")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "retrying")
			So(srv.Results(), ShouldEqual, 2)
		})

		Convey("run stops at --max-attempts", func() {
			srv.Knowledge = []float64{10}
			_, err := execute(t, easyplutest.Password+"\n", "run", "--email", easyplutest.Email, "--full-knowledge", "--max-attempts", "2")
			So(errors.Is(err, cli.ErrRunFailed), ShouldBeTrue)
			So(srv.Results(), ShouldEqual, 2)
		})

		Convey("a wrong password fails the run", func() {
			_, err := execute(t, "wrong\n", "run", "--email", easyplutest.Email)
			So(errors.Is(err, cli.ErrRunFailed), ShouldBeTrue)
		})

		Convey("an invalid target is rejected before login", func() {
			_, err := execute(t, easyplutest.Password+"\n", "run", "--email", easyplutest.Email, "--target", "120")
			So(errors.Is(err, targeting.ErrInvalidTarget), ShouldBeTrue)
			So(srv.Calls("login"), ShouldEqual, 0)
		})

		Convey("cache status reports an empty memory cache", func() {
			out, err := execute(t, "", "cache", "status")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "populated: false")
			So(out, ShouldContainSubstring, "entries:   0")
		})

		Convey("cache populate logs in and fills the cache", func() {
			out, err := execute(t, easyplutest.Password+"\n", "cache", "populate", "--email", easyplutest.Email)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "cache holds 10 entries")
		})
	})
}

func TestWatchCommand(t *testing.T) {
	Convey("Given a relay in front of the fake vendor", t, func() {
		isolateEnv(t)
		fake := easyplutest.NewServer(4)
		defer fake.Close()

		client := easyplu.New(easyplu.WithBaseURL(fake.URL), easyplu.WithSettleDelay(0))
		svc := service.New(service.WithCache(repository.NewMemoryStore()))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		router := api.NewRouter(nil)
		api.NewServer(svc, svc, func(creds model.Credentials) service.Authenticator {
			return service.PasswordAuth(client, creds)
		}).Register(context.Background(), router)
		relay := httptest.NewServer(router)
		defer relay.Close()

		Convey("watch follows the stream to the final result", func() {
			out, err := execute(t, easyplutest.Password+"\n", "watch", "--url", relay.URL, "--email", easyplutest.Email)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "final")
			So(out, ShouldContainSubstring, "4 / 4")
		})

		Convey("watch surfaces admission errors", func() {
			_, err := execute(t, easyplutest.Password+"\n", "watch", "--url", relay.URL, "--email", easyplutest.Email, "--target=-5")
			So(errors.Is(err, cli.ErrRelay), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "400")
		})
	})
}
