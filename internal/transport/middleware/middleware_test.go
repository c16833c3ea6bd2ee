package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/frahmantamala/thesis-repository/internal/observability"
	"github.com/go-chi/chi"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ = Describe("RequestID", func() {
	It("generates a trace id and exposes it on the response", func() {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = TraceID(r.Context())
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(seen).NotTo(BeEmpty())
		_, err := uuid.Parse(seen)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Header().Get(TraceHeader)).To(Equal(seen))
	})

	It("keeps an incoming trace id", func() {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = TraceID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(TraceHeader, "abc-123")
		h.ServeHTTP(httptest.NewRecorder(), req)

		Expect(seen).To(Equal("abc-123"))
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("answers 500 without leaking the panic value", func() {
		var logs bytes.Buffer
		lg := slog.New(slog.NewTextHandler(&logs, nil))
		h := RecoveryMiddleware(lg)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("db password is hunter2")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).NotTo(ContainSubstring("hunter2"))
		Expect(logs.String()).To(ContainSubstring("panic recovered"))
	})
})

var _ = Describe("CORS", func() {
	It("allows a configured origin on preflight", func() {
		h := CORS([]string{"https://thesis.example.edu"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		req := httptest.NewRequest(http.MethodOptions, "/api/v1/thesis", nil)
		req.Header.Set("Origin", "https://thesis.example.edu")
		req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://thesis.example.edu"))
		Expect(rec.Header().Get("Access-Control-Allow-Credentials")).To(Equal("true"))
	})

	It("does not echo an unknown origin", func() {
		h := CORS([]string{"https://thesis.example.edu"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})
})

var _ = Describe("LoggingMiddleware", func() {
	var (
		logs *bytes.Buffer
		lg   *slog.Logger
	)

	BeforeEach(func() {
		logs = &bytes.Buffer{}
		lg = slog.New(slog.NewTextHandler(logs, nil))
	})

	It("filters credentials but leaves the body readable downstream", func() {
		var got map[string]string
		h := LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"tok-secret","user":"alice"}`))
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username":"alice","password":"S3cret!pass"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer tok-header")
		h.ServeHTTP(httptest.NewRecorder(), req)

		Expect(got["password"]).To(Equal("S3cret!pass"))
		Expect(logs.String()).NotTo(ContainSubstring("S3cret!pass"))
		Expect(logs.String()).NotTo(ContainSubstring("tok-secret"))
		Expect(logs.String()).NotTo(ContainSubstring("tok-header"))
		Expect(logs.String()).To(ContainSubstring("alice"))
	})

	It("does not read multipart bodies", func() {
		var n int
		h := LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			n = len(b)
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/thesis", strings.NewReader("--x\r\n%PDF-1.4 body"))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
		h.ServeHTTP(httptest.NewRecorder(), req)

		Expect(n).To(BeNumerically(">", 0))
		Expect(logs.String()).NotTo(ContainSubstring("%PDF"))
		Expect(logs.String()).To(ContainSubstring("omitted"))
	})

	It("filters nested keys", func() {
		out := filterSensitiveBody([]byte(`{"data":[{"new_password":"x1","first_name":"Al"}]}`))
		Expect(out).To(ContainSubstring(`"new_password":"[FILTERED]"`))
		Expect(out).To(ContainSubstring(`"first_name":"Al"`))
	})
})

var _ = Describe("UserContext", func() {
	It("passes through without a principal", func() {
		called := false
		h := UserContext(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(called).To(BeTrue())
	})

	It("keeps the principal on the context", func() {
		p := &internal.Principal{ID: uuid.New(), Username: "alice"}
		var got *internal.Principal
		h := UserContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = internal.PrincipalFromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		h.ServeHTTP(httptest.NewRecorder(), req.WithContext(internal.ContextWithPrincipal(req.Context(), p)))

		Expect(got).To(Equal(p))
	})
})

var _ = Describe("Metrics", func() {
	It("labels requests by route pattern", func() {
		r := chi.NewRouter()
		r.Use(Metrics)
		r.Get("/metrics-test/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		for _, id := range []string{"a", "b"} {
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics-test/"+id, nil))
		}

		counter := observability.HTTPRequests().WithLabelValues(http.MethodGet, "/metrics-test/{id}", "404")
		Expect(testutil.ToFloat64(counter)).To(Equal(2.0))
	})
})
