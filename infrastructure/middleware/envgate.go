package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/lattice-data/gateway/infrastructure/httputil"
	sllogging "github.com/lattice-data/gateway/infrastructure/logging"
)

type auditEvent struct {
	ctx       context.Context
	reason    string
	method    string
	path      string
	clientIP  string
	userAgent string
	wantEnv   string
	gotEnv    string
}

var (
	auditLogger = sllogging.NewFromEnv("gateway")
	auditOnce   sync.Once
	auditQueue  chan *auditEvent
)

func enqueueAudit(event *auditEvent) {
	if event == nil {
		return
	}
	auditOnce.Do(func() {
		auditQueue = make(chan *auditEvent, 256)
		go func() {
			for auditEvent := range auditQueue {
				if auditEvent == nil {
					continue
				}
				fields := map[string]interface{}{
					"audit":      true,
					"event_type": "env_gate_reject",
					"reason":     auditEvent.reason,
					"method":     auditEvent.method,
					"path":       auditEvent.path,
					"client_ip":  auditEvent.clientIP,
					"user_agent": auditEvent.userAgent,
					"want_env":   auditEvent.wantEnv,
					"got_env":    auditEvent.gotEnv,
				}
				auditLogger.WithContext(auditEvent.ctx).WithFields(fields).Warn("Environment gate rejected request")
			}
		}()
	})

	select {
	case auditQueue <- event:
	default:
		// Never block request processing for audit logging.
	}
}

// envBreachBody is the fixed error envelope the environment-validation filter
// returns on mismatch. It deliberately does not use the generic ErrorResponse
// shape: callers rely on this exact body to detect environment breaches.
type envBreachBody struct {
	Error string `json:"error"`
}

// EnvValidationMiddleware rejects any request whose "env" header does not
// case-insensitively match configuredEnv. When disabled it is a no-op
// passthrough. The configured environment is echoed back in the "env"
// response header on every response, success or rejection, so the caller
// can always tell what environment it actually reached.
func EnvValidationMiddleware(configuredEnv string, enabled bool) func(http.Handler) http.Handler {
	configuredEnv = strings.TrimSpace(configuredEnv)

	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("env", configuredEnv)

			got := r.Header.Get("env")
			if strings.EqualFold(got, configuredEnv) {
				next.ServeHTTP(w, r)
				return
			}

			enqueueAudit(&auditEvent{
				ctx:       r.Context(),
				reason:    "env_mismatch",
				method:    r.Method,
				path:      r.URL.Path,
				clientIP:  httputil.ClientIP(r),
				userAgent: r.UserAgent(),
				wantEnv:   configuredEnv,
				gotEnv:    got,
			})

			httputil.WriteJSON(w, http.StatusForbidden, envBreachBody{
				Error: "Fatal attempt of a breach of environments.",
			})
		})
	}
}
