package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/allo-protocol/allo-deployer/framework"
)

const (
	pathDeployments = "/deployments"
	pathDeployment  = "/deployments/{chain_id:[0-9]+}/{name}"
)

var (
	errServerAlreadyRunning = errors.New("server already running")
	errMissingBookPath      = errors.New("missing deployments file path")
	errUnknownDeployment    = errors.New("no deployment recorded")
	errInvalidChainID       = errors.New("invalid chain id")
	errBookUnreadable       = errors.New("deployments file unreadable")
)

// BookService - read-only HTTP view of a deployments file written by the deploy script.
// The file is re-read on every request, so it always shows the latest deployments.
type BookService struct {
	listenAddr string
	bookPath   string
	log        *logrus.Entry
	srv        *http.Server
}

func NewBookService(log *logrus.Entry, listenAddr, bookPath string) (*BookService, error) {
	if bookPath == "" {
		return nil, errMissingBookPath
	}
	return &BookService{
		listenAddr: listenAddr,
		bookPath:   bookPath,
		log:        log,
	}, nil
}

// StartHTTPServer blocks until the server stops.
func (m *BookService) StartHTTPServer() error {
	if m.srv != nil {
		return errServerAlreadyRunning
	}

	m.srv = &http.Server{
		Addr:    m.listenAddr,
		Handler: m.getRouter(),
	}

	err := m.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (m *BookService) getRouter() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", m.handleRoot)
	r.HandleFunc(pathDeployments, m.handleDeployments).Methods(http.MethodGet)
	r.HandleFunc(pathDeployment, m.handleDeployment).Methods(http.MethodGet)

	r.Use(mux.CORSMethodMiddleware(r))
	loggedRouter := httplogger.LoggingMiddlewareLogrus(m.log, r)
	return loggedRouter
}

func (m *BookService) handleRoot(w http.ResponseWriter, req *http.Request) {
	m.respondOK(w, nilResponse)
}

func (m *BookService) handleDeployments(w http.ResponseWriter, req *http.Request) {
	book, err := framework.LoadBook(m.bookPath)
	if err != nil {
		m.log.WithError(err).Error("failed to load deployments")
		m.respondError(w, http.StatusInternalServerError, errBookUnreadable.Error())
		return
	}
	m.respondOK(w, book)
}

func (m *BookService) handleDeployment(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	log := m.log.WithField("chainID", vars["chain_id"]).WithField("name", vars["name"])

	chainID, err := strconv.ParseUint(vars["chain_id"], 10, 64)
	if err != nil {
		m.respondError(w, http.StatusBadRequest, errInvalidChainID.Error())
		return
	}

	book, err := framework.LoadBook(m.bookPath)
	if err != nil {
		log.WithError(err).Error("failed to load deployments")
		m.respondError(w, http.StatusInternalServerError, errBookUnreadable.Error())
		return
	}

	rec, ok := book.Lookup(chainID, vars["name"])
	if !ok {
		m.respondError(w, http.StatusNotFound, errUnknownDeployment.Error())
		return
	}
	m.respondOK(w, rec)
}

func (m *BookService) respondError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := httpErrorResp{code, message}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		m.log.WithField("response", resp).WithError(err).Error("Couldn't write error response")
		http.Error(w, "", http.StatusInternalServerError)
	}
}

func (m *BookService) respondOK(w http.ResponseWriter, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		m.log.WithField("response", response).WithError(err).Error("Couldn't write OK response")
		http.Error(w, "", http.StatusInternalServerError)
	}
}

type httpErrorResp struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

var nilResponse = struct{}{}
