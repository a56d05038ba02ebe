package internal

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

const defaultPrefix = "visited:"

type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	Detail    string
}

type RowMapper func(key string, val []byte) InspectRow

type PageData struct {
	Prefix string
	Items  []InspectRow
}

// NewDebugHandler renders every badger entry under the "prefix" query
// parameter through mapper.
func NewDebugHandler(db *badger.DB, endpoint string, mapper RowMapper) http.Handler {
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))
	if mapper == nil {
		mapper = DefaultMapper
	}

	mux := http.NewServeMux()
	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = defaultPrefix
		}
		data := PageData{Prefix: prefix}

		err := db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				if err := item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapper(string(item.Key()), val))
					return nil
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})
	return mux
}

// StartDebugServer serves the inspector on addr until ctx is canceled. It
// only listens on the address given, which should stay on loopback.
func StartDebugServer(ctx context.Context, log *slog.Logger, db *badger.DB, addr, endpoint string, mapper RowMapper) {
	srv := &http.Server{Addr: addr, Handler: NewDebugHandler(db, endpoint, mapper), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Debug server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()
}

func DefaultMapper(key string, val []byte) InspectRow {
	return InspectRow{
		Key:       key,
		Type:      "RAW",
		Timestamp: "-",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}
}
