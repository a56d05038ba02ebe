package internal

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestDebugHandler_Lists_Prefix(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })
	req.NoError(db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte("visited:abc"), []byte{1, 2, 3}); err != nil {
			return err
		}
		return txn.Set([]byte("nickname"), []byte{4})
	}))

	ts := httptest.NewServer(NewDebugHandler(db, "/inspect", nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/inspect")
	req.NoError(err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	req.NoError(err)

	req.Equal(http.StatusOK, resp.StatusCode)
	req.Contains(string(body), "visited:abc")
	req.Contains(string(body), "Size: 3 bytes")
	req.NotContains(string(body), "<td>nickname</td>")
}
