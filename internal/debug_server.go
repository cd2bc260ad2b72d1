package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dgraph-io/badger/v4"
)

type InspectRow struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type PageData struct {
	Prefix string         `json:"prefix"`
	Count  int            `json:"count"`
	Items  []InspectRow   `json:"items"`
	Stats  map[string]any `json:"stats"`
}

type StatsProvider func() map[string]any

// StartDebugServer exposes the raw message log and relay counters on a
// local port. Values are stored as JSON, so rows are returned verbatim.
// Bind this to localhost only; it has no auth.
func StartDebugServer(db *badger.DB, log *slog.Logger, port int, statsProvider StatsProvider) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/messages", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}

		data := PageData{Prefix: prefix, Stats: make(map[string]any)}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		err := db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()

			prefixBytes := []byte(prefix)
			for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
				item := it.Item()
				value, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				data.Items = append(data.Items, InspectRow{
					Key:   string(item.Key()),
					Value: value,
				})
			}
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		data.Count = len(data.Items)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(data)
	})

	srv := &http.Server{Addr: fmt.Sprintf("localhost:%d", port), Handler: mux}
	go func() {
		log.Info("Debug server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Debug server failed", "error", err)
		}
	}()
	return srv
}
