/*
Package kvsession provides server-side sessions kept in a key-value store and
tied to the client through a signed cookie.

Each session is one blob in the store under a random ID. The cookie carries
base32(HMAC-SHA1(secret, id)) followed by the ID, so a client can neither forge
nor alter it. The payload itself never leaves the server.

Key Features:

  - Pluggable stores: Redis, Memcached, PostgreSQL and SQLite (CGO-free), all
    behind one small Store contract (Get, Set, SetEx, SetNX, Expire, Exists).
  - Write-through sessions: every mutating call persists the whole payload
    before it returns.
  - Sliding expiration: every read pushes the store TTL forward, optionally
    throttled by a refresh period.
  - Indefinite mode: DontExpire keeps a session until SetTimeout is called.
  - Collision-free IDs: 160-bit random IDs reserved with SetNX.
  - CSRF tokens and named flash message queues.

Usage:

	store := kvsession.NewRedisStore(redis.NewClient(&redis.Options{Addr: "localhost:6379"}), "session:")

	factory, err := kvsession.NewFactory(store, kvsession.Config{
		Secret:  os.Getenv("SESSION_SECRET"),
		Timeout: 20 * time.Minute,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer factory.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s := kvsession.FromContext(r.Context())
		if err := s.Set(r.Context(), "user_id", 42); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	http.ListenAndServe(":8080", factory.Middleware(mux))

Frameworks with their own response hooks can call Factory.Open directly and
pass anything implementing Callbacks.

Concurrency:

A Session belongs to the request that opened it and is not safe for concurrent
use. Two requests sharing a session ID each write their full payload, so the
last writer wins; there is no merging of concurrent updates. Stores and the
Factory are safe for concurrent use.
*/
package kvsession
