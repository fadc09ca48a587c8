package model_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	model "github.com/okian/plusolver/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestID(t *testing.T) {
	convey.Convey("Given vendor ids in mixed encodings", t, func() {
		var v struct {
			A model.ID `json:"a"`
			B model.ID `json:"b"`
			C model.ID `json:"c"`
		}
		err := json.Unmarshal([]byte(`{"a": 4711, "b": "ab-12", "c": null}`), &v)

		convey.Convey("Then numbers and strings both decode", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(v.A, convey.ShouldEqual, model.ID("4711"))
			convey.So(v.B, convey.ShouldEqual, model.ID("ab-12"))
			convey.So(v.C.IsZero(), convey.ShouldBeTrue)
		})

		convey.Convey("Then numeric ids encode back as numbers", func() {
			out, err := json.Marshal(v)
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(out), convey.ShouldEqual, `{"a":4711,"b":"ab-12","c":null}`)
		})

		convey.Convey("When a string id is not a canonical integer", func() {
			var w struct {
				ID   model.ID `json:"id"`
				Sign model.ID `json:"sign"`
			}
			convey.So(json.Unmarshal([]byte(`{"id":"007","sign":"+5"}`), &w), convey.ShouldBeNil)

			convey.Convey("Then it encodes back as the same string", func() {
				out, err := json.Marshal(w)
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(out), convey.ShouldEqual, `{"id":"007","sign":"+5"}`)
			})
		})

		convey.Convey("When the id is neither a number nor a string", func() {
			var id model.ID
			err := json.Unmarshal([]byte(`{"x":1}`), &id)
			convey.So(errors.Is(err, model.ErrInvalidID), convey.ShouldBeTrue)
		})
	})
}

func TestNumber(t *testing.T) {
	convey.Convey("Given vendor numbers in mixed encodings", t, func() {
		var v struct {
			A *model.Number `json:"a"`
			B *model.Number `json:"b"`
			C *model.Number `json:"c"`
			D *model.Number `json:"d"`
		}
		err := json.Unmarshal([]byte(`{"a": 97.5, "b": "88.25", "c": null}`), &v)

		convey.Convey("Then each decodes to a float or stays nil", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(v.A.Float64(), convey.ShouldEqual, 97.5)
			convey.So(v.B.Float64(), convey.ShouldEqual, 88.25)
			convey.So(v.C, convey.ShouldBeNil)
			convey.So(v.D.Float64(), convey.ShouldEqual, 0)
		})

		convey.Convey("When a string is not numeric", func() {
			var n model.Number
			err := json.Unmarshal([]byte(`"lots"`), &n)
			convey.So(errors.Is(err, model.ErrInvalidNumber), convey.ShouldBeTrue)
		})
	})
}

func TestCredentials(t *testing.T) {
	convey.Convey("Given operator credentials", t, func() {
		creds := model.Credentials{Identifier: "ana@example.com", Secret: "hunter2"}

		convey.Convey("Then formatting never reveals the secret", func() {
			convey.So(fmt.Sprint(creds), convey.ShouldNotContainSubstring, "hunter2")
			convey.So(fmt.Sprintf("%v", creds), convey.ShouldContainSubstring, "ana@example.com")
			convey.So(creds.LogValue().String(), convey.ShouldNotContainSubstring, "hunter2")
		})

		convey.Convey("Then validation requires both halves", func() {
			convey.So(creds.Validate(), convey.ShouldBeNil)
			convey.So(model.Credentials{Identifier: "ana"}.Validate(), convey.ShouldEqual, model.ErrMissingCredentials)
			convey.So(model.Credentials{Secret: "x"}.Validate(), convey.ShouldEqual, model.ErrMissingCredentials)
		})
	})
}

func TestProgressEvent(t *testing.T) {
	convey.Convey("Given progress events", t, func() {
		convey.Convey("When the closed sentinel is encoded", func() {
			ev := model.Closed()
			ev.RunID = "r-1"
			out, err := json.Marshal(ev)

			convey.Convey("Then only the stage name is written", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(out), convey.ShouldEqual, `{"stage":"closed"}`)
			})
		})

		convey.Convey("When an attempt_start event is encoded", func() {
			out, err := json.Marshal(model.ProgressEvent{
				Stage:    model.StageAttemptStart,
				Progress: model.ProgressAttemptStart,
				Message:  "Attempt 1...",
				Attempt:  1,
			})

			convey.Convey("Then knowledge is null and result is omitted", func() {
				convey.So(err, convey.ShouldBeNil)
				var m map[string]any
				convey.So(json.Unmarshal(out, &m), convey.ShouldBeNil)
				convey.So(m["stage"], convey.ShouldEqual, "attempt_start")
				convey.So(m["user_knowledge"], convey.ShouldBeNil)
				_, hasResult := m["result"]
				convey.So(hasResult, convey.ShouldBeFalse)
			})
		})

		convey.Convey("Then only final and error are terminal", func() {
			convey.So(model.StageFinal.Terminal(), convey.ShouldBeTrue)
			convey.So(model.StageError.Terminal(), convey.ShouldBeTrue)
			convey.So(model.StageRetrying.Terminal(), convey.ShouldBeFalse)
			convey.So(model.StageClosed.Terminal(), convey.ShouldBeFalse)
			convey.So(model.Stage("paused").Valid(), convey.ShouldBeFalse)
		})
	})
}

func TestAttemptResult(t *testing.T) {
	convey.Convey("Given attempt results", t, func() {
		convey.So(model.AttemptResult{UserKnowledge: 100}.FullKnowledge(), convey.ShouldBeTrue)
		convey.So(model.AttemptResult{UserKnowledge: 99.99}.FullKnowledge(), convey.ShouldBeFalse)
	})
}
