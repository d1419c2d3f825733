package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Commitments *CommitmentHandler
	Evaluations *EvaluationHandler
	Evidence    *EvidenceHandler
	// Protect wraps mutating routes, typically with RequireToken.
	Protect    func(http.Handler) http.Handler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	protect := cfg.Protect
	if protect == nil {
		protect = func(next http.Handler) http.Handler { return next }
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
	})

	if cfg.Commitments != nil {
		connect := protect(http.HandlerFunc(cfg.Commitments.Connect))
		mux.HandleFunc("/commitment", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Commitments.Get(w, r)
			case http.MethodPut:
				connect.ServeHTTP(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut)
			}
		})
		updateCutoff := protect(http.HandlerFunc(cfg.Commitments.UpdateCutoff))
		mux.HandleFunc("/commitment/cutoff", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut {
				methodNotAllowed(w, http.MethodPut)
				return
			}
			updateCutoff.ServeHTTP(w, r)
		})
	}

	if cfg.Evaluations != nil {
		evaluate := protect(http.HandlerFunc(cfg.Evaluations.Evaluate))
		mux.HandleFunc("/evaluations", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			evaluate.ServeHTTP(w, r)
		})
		mux.HandleFunc("/scorecard", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Evaluations.Scorecard(w, r)
		})
	}

	if cfg.Evidence != nil {
		attach := protect(http.HandlerFunc(cfg.Evidence.Attach))
		mux.HandleFunc("/weeks/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/weeks/")
			raw, ok := strings.CutSuffix(rest, "/evidence")
			if !ok || raw == "" || strings.Contains(raw, "/") {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodPut {
				methodNotAllowed(w, http.MethodPut)
				return
			}
			start, err := parseWeekStart(raw)
			if err != nil {
				cfg.Evidence.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
				return
			}
			r = r.WithContext(ContextWithWeekStart(r.Context(), start))
			attach.ServeHTTP(w, r)
		})
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
