package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/allo-protocol/allo-deployer/deploy"
	"github.com/allo-protocol/allo-deployer/framework"
)

func newTestService(t *testing.T) (*BookService, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deployments.json")
	srv, err := NewBookService(logrus.NewEntry(logrus.New()), "localhost:0", path)
	require.NoError(t, err)
	return srv, path
}

func serve(t *testing.T, srv *BookService, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	srv.getRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestNewBookServiceNeedsPath(t *testing.T) {
	_, err := NewBookService(logrus.NewEntry(logrus.New()), "localhost:0", "")
	require.ErrorIs(t, err, errMissingBookPath)
}

func TestHandleDeployments(t *testing.T) {
	srv, path := newTestService(t)

	rr := serve(t, srv, "/")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = serve(t, srv, "/deployments")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{}`, rr.Body.String())

	dep := deploy.Deployment{
		Contract:    "Allo",
		Address:     common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"),
		TxHash:      common.HexToHash("0x02"),
		BlockNumber: 2,
		DeployedAt:  time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, framework.NewDeploymentBook(path).Record(31337, dep))

	rr = serve(t, srv, "/deployments")
	require.Equal(t, http.StatusOK, rr.Code)
	var book framework.Book
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &book))
	rec, ok := book.Lookup(31337, "Allo")
	require.True(t, ok)
	require.Equal(t, dep.Address, rec.Address)

	rr = serve(t, srv, "/deployments/31337/Allo")
	require.Equal(t, http.StatusOK, rr.Code)
	var got framework.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, dep.TxHash, got.TxHash)
	require.Equal(t, uint64(2), got.BlockNumber)
}

func TestHandleDeploymentErrors(t *testing.T) {
	srv, path := newTestService(t)

	rr := serve(t, srv, "/deployments/31337/Allo")
	require.Equal(t, http.StatusNotFound, rr.Code)
	var resp httpErrorResp
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Equal(t, errUnknownDeployment.Error(), resp.Message)

	rr = serve(t, srv, "/deployments/99999999999999999999999/Allo")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(t, srv, "/deployments/mainnet/Allo")
	require.Equal(t, http.StatusNotFound, rr.Code)

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	rr = serve(t, srv, "/deployments")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}
