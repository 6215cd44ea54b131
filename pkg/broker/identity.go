package broker

import (
	"net/http"
	"strings"
)

// resolveUserID implements spec.md §4.6's identity resolution: a
// Bearer token shaped "zk_<user_id>_<random>" wins if present (the
// user_id is the unverified substring between "zk_" and the final
// underscore), else the X-Zakuro-User header, else "anonymous".
func resolveUserID(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		key := strings.TrimPrefix(auth, "Bearer ")
		if uid, ok := userIDFromAPIKey(key); ok {
			return uid
		}
	}
	if u := r.Header.Get("X-Zakuro-User"); u != "" {
		return u
	}
	return "anonymous"
}

func userIDFromAPIKey(key string) (string, bool) {
	if !strings.HasPrefix(key, "zk_") {
		return "", false
	}
	rest := key[len("zk_"):]
	idx := strings.LastIndex(rest, "_")
	if idx <= 0 {
		return "", false
	}
	return rest[:idx], true
}
