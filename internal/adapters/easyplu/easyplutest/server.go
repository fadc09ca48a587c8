// Package easyplutest provides an in-process fake of the quiz vendor API for tests.
package easyplutest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/okian/plusolver/internal/domain/model"
)

// Fixed credentials accepted by the fake.
const (
	Email    = "operator@example.com"
	Password = "s3cret"
	Token    = "fake-api-token"
	UserID   = "4242"
)

// Answer is one recorded answer submission.
type Answer struct {
	SessionID   string
	ItemID      string
	PLUNumberID string
	Given       string
	Correct     bool // what the client claimed
	Right       bool // what the fake graded
}

// Server is a fake vendor. Configure the exported fields before the first request.
type Server struct {
	*httptest.Server

	// Catalog is the question bank returned by browse sessions.
	Catalog []model.CatalogItem
	// QuizSize is how many catalog entries a graded session asks; 0 means all.
	QuizSize int
	// Knowledge is returned as user_knowledge by successive results; the last
	// value repeats. Empty means the graded score of the session.
	Knowledge []float64
	// Fail forces a status code for the named call (login, create_session,
	// execution_items, start_execution, update_answer, result).
	Fail map[string]int

	mu        sync.Mutex
	nextID    int
	sessions  map[string]int
	items     map[string][]quizItem
	answers   []Answer
	results   int
	calls     map[string]int
	lastBody  map[string]map[string]any
	authFails int
}

type quizItem struct {
	ID      string
	Catalog model.CatalogItem
}

// NewServer starts a fake with a catalog of n entries.
func NewServer(n int) *Server {
	s := &Server{
		Catalog:  Catalog(n),
		Fail:     map[string]int{},
		sessions: map[string]int{},
		items:    map[string][]quizItem{},
		calls:    map[string]int{},
		lastBody: map[string]map[string]any{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", s.handle("login", s.login))
	mux.HandleFunc("POST /plu-learn/product-categories", s.authed("product_categories", s.categories))
	mux.HandleFunc("POST /plu-learn/create-new-session", s.authed("create_session", s.createSession))
	mux.HandleFunc("POST /plu-learn/{sid}/execution-items", s.authed("execution_items", s.executionItems))
	mux.HandleFunc("POST /plu-learn/{sid}/start-execution", s.authed("start_execution", s.startExecution))
	mux.HandleFunc("PUT /plu-learn/{item}/update", s.authed("update_answer", s.updateAnswer))
	mux.HandleFunc("POST /plu-learn/{sid}/result", s.authed("result", s.result))
	s.Server = httptest.NewServer(mux)
	return s
}

// Catalog builds n deterministic catalog entries.
func Catalog(n int) []model.CatalogItem {
	out := make([]model.CatalogItem, n)
	for i := range out {
		out[i] = model.CatalogItem{
			CatalogID:    model.ID(strconv.Itoa(100 + i)),
			Answer:       fmt.Sprintf("%04d", 3000+i),
			Title:        fmt.Sprintf("Item %d", i),
			ImageRef:     fmt.Sprintf("/img/%d.png", i),
			SourceItemID: model.ID(fmt.Sprintf("src-%d", i)),
		}
	}
	return out
}

// Calls returns how many times a call was received.
func (s *Server) Calls(call string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[call]
}

// LastBody returns the last decoded JSON body of a call.
func (s *Server) LastBody(call string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBody[call]
}

// Answers returns every recorded answer in arrival order.
func (s *Server) Answers() []Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Answer(nil), s.answers...)
}

// Results returns how many sessions were finalized.
func (s *Server) Results() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// AuthFailures returns how many requests carried a bad bearer token.
func (s *Server) AuthFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authFails
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, body map[string]any)

func (s *Server) handle(call string, h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{}
		if r.ContentLength != 0 {
			dec := json.NewDecoder(r.Body)
			dec.UseNumber()
			_ = dec.Decode(&body)
		}
		s.mu.Lock()
		s.calls[call]++
		s.lastBody[call] = body
		status := s.Fail[call]
		s.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]any{"message": "forced failure"})
			return
		}
		h(w, r, body)
	}
}

func (s *Server) authed(call string, h handlerFunc) http.HandlerFunc {
	inner := s.handle(call, h)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+Token {
			s.mu.Lock()
			s.authFails++
			s.mu.Unlock()
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
			return
		}
		inner(w, r)
	}
}

func (s *Server) login(w http.ResponseWriter, _ *http.Request, body map[string]any) {
	if body["email"] != Email || body["password"] != Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "invalid credentials"})
		return
	}
	uid, _ := strconv.Atoi(UserID)
	writeJSON(w, http.StatusOK, map[string]any{
		"api_token": Token,
		"user":      map[string]any{"id": uid, "email": Email},
	})
}

func (s *Server) categories(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
	writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
}

func (s *Server) createSession(w http.ResponseWriter, _ *http.Request, body map[string]any) {
	execType := 0
	if n, ok := body["execution_type"].(json.Number); ok {
		v, _ := n.Int64()
		execType = int(v)
	}

	s.mu.Lock()
	s.nextID++
	sid := strconv.Itoa(900 + s.nextID)
	s.sessions[sid] = execType
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"session_id": sid,
			"session":    map[string]any{"created_at": "2025-01-01T00:00:00Z"},
		},
	})
}

func (s *Server) startExecution(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{}})
}

func (s *Server) executionItems(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	sid := r.PathValue("sid")

	s.mu.Lock()
	execType, ok := s.sessions[sid]
	if !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "no such session"})
		return
	}
	var items []map[string]any
	if execType == 1 {
		for _, c := range s.Catalog {
			items = append(items, map[string]any{
				"id":          c.SourceItemID.String(),
				"pluNumberId": c.CatalogID.String(),
				"pluNumber":   pluNumber(c),
			})
		}
	} else {
		qs := s.items[sid]
		if qs == nil {
			n := s.QuizSize
			if n <= 0 || n > len(s.Catalog) {
				n = len(s.Catalog)
			}
			for i := 0; i < n; i++ {
				qs = append(qs, quizItem{ID: fmt.Sprintf("%s-%d", sid, i), Catalog: s.Catalog[i]})
			}
			s.items[sid] = qs
		}
		for _, q := range qs {
			id, _ := strconv.Atoi(q.Catalog.CatalogID.String())
			items = append(items, map[string]any{"id": q.ID, "pluNumberId": id})
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"items": items}})
}

func (s *Server) updateAnswer(w http.ResponseWriter, r *http.Request, body map[string]any) {
	itemID := r.PathValue("item")
	given, _ := body["given_plu_number"].(string)
	pluID := fmt.Sprint(body["plu_number_id"])
	claimed := false
	if a, ok := body["answer"].(map[string]any); ok {
		claimed, _ = a["correct"].(bool)
	}
	sid, _, _ := strings.Cut(itemID, "-")

	s.mu.Lock()
	right := false
	for _, q := range s.items[sid] {
		if q.ID == itemID {
			right = q.Catalog.Answer == given
			break
		}
	}
	s.answers = append(s.answers, Answer{
		SessionID: sid, ItemID: itemID, PLUNumberID: pluID,
		Given: given, Correct: claimed, Right: right,
	})
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": itemID}})
}

func (s *Server) result(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	sid := r.PathValue("sid")

	s.mu.Lock()
	total := len(s.items[sid])
	right := 0
	for _, a := range s.answers {
		if a.SessionID == sid && a.Right {
			right++
		}
	}
	score := 0.0
	if total > 0 {
		score = float64(right) / float64(total) * 100
	}
	knowledge := score
	if len(s.Knowledge) > 0 {
		i := s.results
		if i >= len(s.Knowledge) {
			i = len(s.Knowledge) - 1
		}
		knowledge = s.Knowledge[i]
	}
	s.results++
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"final_result":          score,
			"user_knowledge":        strconv.FormatFloat(knowledge, 'f', -1, 64),
			"user_ranking_in_store": 7,
			"earned_gold_plus":      1,
			"total_gold_plus":       nil,
			"result": map[string]any{
				"total_user_points":    right,
				"max_points":           total,
				"required_points":      total * 8 / 10,
				"total_execution_time": "12",
			},
			"executionSession": map[string]any{
				"plu_execution_session_item_count": total,
			},
		},
	})
}

func pluNumber(c model.CatalogItem) map[string]any {
	id, _ := strconv.Atoi(c.CatalogID.String())
	return map[string]any{
		"id":        id,
		"pluNumber": c.Answer,
		"imageSrc":  c.ImageRef,
		"translations": map[string]any{
			"SI": map[string]any{"name": c.Title},
			"EN": map[string]any{"name": "en " + c.Title},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
