// Command shieldd serves a small demo app behind the shield guard chain.
package main

import (
	"context"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aatuh/shield/bootstrap"
	"github.com/aatuh/shield/config"
	"github.com/aatuh/shield/encryption"
	"github.com/aatuh/shield/envvar"
	"github.com/aatuh/shield/guards/csrf"
	"github.com/aatuh/shield/httpx"
	"github.com/aatuh/shield/idgen"
	"github.com/aatuh/shield/logzap"
	"github.com/aatuh/shield/ports"
	"github.com/aatuh/shield/secure"
	"github.com/aatuh/shield/session"
	"github.com/aatuh/shield/tokens"
	"github.com/aatuh/shield/view"
)

const pages = `
{{define "form"}}<!doctype html>
<html><head>{{with .csrfMeta}}{{call .}}{{end}}</head>
<body>
<form method="POST" action="/notes">
{{with .csrfField}}{{call .}}{{end}}
<input name="note" value="{{with .old}}{{.note}}{{end}}">
<button>Save</button>
</form>
{{with .errors}}<p class="error">{{.E_BAD_CSRF_TOKEN}}</p>{{end}}
{{with .saved}}<p>Saved: {{.}}</p>{{end}}
<script nonce="{{.cspNonce}}">document.forms[0].note.focus()</script>
</body></html>{{end}}
`

func main() {
	cfg := config.MustLoadFromEnv()
	log, err := logzap.NewWithLevel(cfg.LogLevel)
	if err != nil {
		panic(err)
	}

	log.Debug("shieldd: environment", "vars", envvar.New().DumpRedacted("API_", "APP_", "ENV", "LOG_", "SESSION_", "CORS_", "SHIELD_"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("shieldd: exiting", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log ports.Logger) error {
	enc, err := encryption.NewFromAppKey(cfg.AppKey)
	if err != nil {
		return err
	}

	sessions, err := bootstrap.OpenSessionStore(ctx, cfg.SessionDSN, 10*time.Minute, log)
	if err != nil {
		return err
	}
	defer sessions.Close()

	sopts := session.DefaultOptions()
	sopts.TTL = cfg.SessionTTL
	sopts.Secure = cfg.Production()
	mgr := session.NewManager(sessions.Store, sopts, idgen.NewULIDGen(), log)

	views := view.New(template.Must(template.New("shield").Parse(pages)))

	rt, err := bootstrap.NewDefaultRouter(bootstrap.Options{
		Logger:   log,
		Sessions: mgr,
		Shield:   cfg.Shield,
		Deps: secure.Deps{
			Tokens:       tokens.New(),
			Encrypter:    enc,
			Views:        views,
			ErrorHandler: secure.NegotiatedErrorHandler,
		},
		CORSOrigins: cfg.CORSOrigins,
		Health:      sessions.Checks,
	})
	if err != nil {
		return err
	}
	log.Info("shieldd: guards", "chain", rt.Shield.Guards())

	rt.App.Get("/", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{}
		if s := session.FromContext(r.Context()); s != nil {
			for _, k := range []string{"old", "errors", "saved"} {
				if v, ok := s.Flashed(k); ok {
					data[k] = v
				}
			}
		}
		if err := views.Render(w, r, "form", data); err != nil {
			log.Error("shieldd: render", "err", err)
			httpx.WriteSimpleProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		}
	})
	rt.App.Post("/notes", func(w http.ResponseWriter, r *http.Request) {
		if s := session.FromContext(r.Context()); s != nil {
			s.Flash("saved", r.PostFormValue("note"))
		}
		http.Redirect(w, r, "/", http.StatusFound)
	})
	rt.App.Get("/api/token", func(w http.ResponseWriter, r *http.Request) {
		tok, _ := csrf.Token(r)
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"token": tok})
	})

	return bootstrap.StartServer(ctx, cfg.Addr, rt, log)
}
