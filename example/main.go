package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/Morditux/kvsession"
)

func main() {
	// The .env file is optional.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg, err := kvsession.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load session config: %v", err)
	}
	cfg.Logger = logger

	storeCfg, err := kvsession.LoadStoreConfig()
	if err != nil {
		log.Fatalf("failed to load store config: %v", err)
	}

	// SESSION_STORE selects redis (default), memcached, postgres or sqlite.
	store, err := kvsession.OpenStore(context.Background(), storeCfg)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	factory, err := kvsession.NewFactory(store, cfg)
	if err != nil {
		log.Fatalf("failed to create session factory: %v", err)
	}
	defer factory.Close()

	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		session := kvsession.FromContext(ctx)

		count := 0
		if val, ok, err := session.Get(ctx, "count"); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		} else if ok {
			count = toInt(val)
		}
		count++
		if err := session.Set(ctx, "count", count); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		msgs, err := session.PopFlash(ctx, "")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		fmt.Fprintf(w, "Hello! You have visited this page %d times. Messages: %v", count, msgs)
	})

	mux.HandleFunc("/remember", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		session := kvsession.FromContext(ctx)
		if err := session.DontExpire(ctx); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := session.Flash(ctx, "this session will not expire", "", false); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})

	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := kvsession.FromContext(ctx).Invalidate(ctx); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "Logged out!")
	})

	logger.Info("server starting", slog.String("addr", ":8080"))
	log.Fatal(http.ListenAndServe(":8080", factory.Middleware(mux)))
}

// toInt accepts the integer shapes a codec may hand back.
func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
