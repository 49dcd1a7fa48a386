package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	marketplace "github.com/huykn/course-marketplace"
	"github.com/huykn/course-marketplace/cache"
	"github.com/huykn/course-marketplace/reqctx"
	"github.com/huykn/course-marketplace/store"
	"github.com/huykn/course-marketplace/types"
)

const (
	maxBodyBytes = 1 << 20

	// Topics published on the pub/sub handle.
	topicCourses  = "courses"
	topicSessions = "sessions"
)

type server struct {
	core     *marketplace.Core
	memory   *store.Memory
	logger   *slog.Logger
	frontend string
}

type httpErrorResponse struct {
	Error string `json:"error"`
}

type courseView struct {
	*types.Course
	Instructor *types.Instructor `json:"instructor,omitempty"`
	Duration   *types.Duration   `json:"duration,omitempty"`
}

type loginRequest struct {
	UserID string `json:"userId"`
}

type courseEvent struct {
	Action string `json:"action"`
	ID     string `json:"id"`
	By     string `json:"by,omitempty"`
}

func (s *server) routes() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /courses", s.handleList(cache.CourseCacheKey))
	api.HandleFunc("POST /courses", s.handleCreateCourse)
	api.HandleFunc("GET /courses/{id}", s.handleCourse)
	api.HandleFunc("GET /instructors", s.handleList(cache.InstructorCacheKey))
	api.HandleFunc("GET /users/{id}", s.handleUser)
	api.HandleFunc("POST /login", s.handleLogin)
	api.HandleFunc("POST /logout", s.handleLogout)
	api.HandleFunc("GET /me", s.handleMe)

	root := http.NewServeMux()
	root.HandleFunc("GET /health", s.handleHealth)
	root.Handle("/", s.core.Handler(api))
	return s.cors(root)
}

func (s *server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.frontend)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")
		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleList serves the pre-serialized snapshot of key without decoding it.
func (s *server) handleList(key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := requestContext(r)
		vals, err := rc.Lists.ReadAll(r.Context(), key)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		warm, err := rc.Lists.IsWarm(r.Context(), key)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-List-Warm", strconv.FormatBool(warm))
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "["+strings.Join(vals, ",")+"]")
	}
}

func (s *server) handleCourse(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	ctx := r.Context()

	course, err := rc.Loaders.Courses.Load(ctx, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if course == nil {
		writeJSON(w, http.StatusNotFound, httpErrorResponse{Error: "course not found"})
		return
	}

	// Both handles join their loaders' batches before either is awaited.
	instructor := rc.Loaders.Instructors.Thunk(course.InstructorID)
	duration := rc.Loaders.Durations.Thunk(course.DurationID)

	view := courseView{Course: course}
	if view.Instructor, err = instructor(ctx); err != nil {
		s.writeError(w, r, err)
		return
	}
	if view.Duration, err = duration(ctx); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	if rc.UserID() == "" {
		writeJSON(w, http.StatusUnauthorized, httpErrorResponse{Error: "not authenticated"})
		return
	}

	var course types.Course
	if err := decodeJSON(w, r, &course); err != nil || course.Title == "" {
		writeJSON(w, http.StatusBadRequest, httpErrorResponse{Error: "invalid course"})
		return
	}
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	course.CreatedAt = time.Now().UTC()

	// Save refreshes the course list snapshot through OnMutate. A failed
	// refresh is reported there and does not undo the create.
	if err := s.memory.Courses.Save(r.Context(), &course); err != nil {
		s.writeError(w, r, err)
		return
	}
	rc.Loaders.Courses.Prime(course.ID, &course)

	event := courseEvent{Action: "created", ID: course.ID, By: rc.UserID()}
	if err := rc.PubSub.Publish(r.Context(), topicCourses, event); err != nil {
		s.logger.Warn("publish failed", "topic", topicCourses, "error", err)
	}
	writeJSON(w, http.StatusCreated, &course)
}

func (s *server) handleUser(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	user, err := rc.Loaders.Users.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusNotFound, httpErrorResponse{Error: "user not found"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, httpErrorResponse{Error: "userId is required"})
		return
	}
	user, err := rc.Loaders.Users.Load(r.Context(), req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, httpErrorResponse{Error: "unknown user"})
		return
	}

	if err := rc.SignIn(r.Context(), user.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := rc.PubSub.Publish(r.Context(), topicSessions, map[string]string{"userId": user.ID, "action": "login"}); err != nil {
		s.logger.Warn("publish failed", "topic", topicSessions, "error", err)
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	if err := rc.SignOut(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	if rc.UserID() == "" {
		writeJSON(w, http.StatusUnauthorized, httpErrorResponse{Error: "not authenticated"})
		return
	}
	user, err := rc.Loaders.Users.Load(r.Context(), rc.UserID())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, httpErrorResponse{Error: "not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.core.Healthy(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": marketplace.Version,
		"lists":   s.core.Lists.Stats(),
	})
}

// requestContext returns the context attached by the core handler. Every
// api route runs behind it.
func requestContext(r *http.Request) *reqctx.Context {
	rc, ok := reqctx.FromContext(r.Context())
	if !ok {
		panic("request context missing: route not wrapped by Core.Handler")
	}
	return rc
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, marketplace.ErrUnavailable) {
		status = http.StatusServiceUnavailable
	}
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	writeJSON(w, status, httpErrorResponse{Error: http.StatusText(status)})
}
