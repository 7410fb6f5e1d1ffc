package upstream

import "net/http"

// HandlePrecheck is mounted by the generation plane at /__vertexcheck.
func HandlePrecheck(client *Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := client.Precheck(r.Context()); err != nil {
			http.Error(w, `{"ok":false,"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}
}
