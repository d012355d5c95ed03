/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

// go-hostif API
//
// # RESTful APIs to access device registers through the go-hostif control server
//
// Terms Of Service:
//
// Schemes: http
// Host: localhost:8000
// Version: 1.0.0
// Contact:
//
//	Consumes:
//	- application/json
//
//	Produces:
//	- application/json
//
// swagger:meta
package control

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/loads"
	"github.com/go-openapi/runtime/middleware"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"jinr.ru/greenlab/go-hostif/pkg/config"
	"jinr.ru/greenlab/go-hostif/pkg/engine"
	"jinr.ru/greenlab/go-hostif/pkg/log"
	"jinr.ru/greenlab/go-hostif/pkg/regmap"
	"jinr.ru/greenlab/go-hostif/pkg/srv/control/ifc"
	"jinr.ru/greenlab/go-hostif/pkg/stream"
)

const (
	shutdownTimeout = 5 * time.Second

	OpGet = "get"
	OpSet = "set"
)

//go:embed swagger.json
var swaggerJSON []byte

// Error Bad Request
// swagger:response badReq
type ReqBadRequest struct {
	// in:body
	Body struct {
		// HTTP status code 400 - Bad Request
		Code int `json:"code"`
	}
}

// RegHex is a single register element. Value is hexadecimal.
type RegHex struct {
	Index *int   `json:"index,omitempty"`
	Value string `json:"value"`
}

// ValuesHex is a sequence of register elements starting at Index
type ValuesHex struct {
	Index  *int     `json:"index,omitempty"`
	Values []string `json:"values"`
}

// RawHex is a sequence of beats starting at a terminal address
type RawHex struct {
	Addr   string   `json:"addr"`
	Values []string `json:"values"`
}

type RegisterView struct {
	Name    string `json:"name"`
	Comment string `json:"comment,omitempty"`
	Addr    string `json:"addr"`
	Width   int    `json:"width"`
	Mode    string `json:"mode"`
	Array   int    `json:"array"`
	Stride  int    `json:"stride"`
	Fifo    bool   `json:"fifo,omitempty"`
	Init    string `json:"init,omitempty"`
}

type TerminalView struct {
	Name      string         `json:"name"`
	Comment   string         `json:"comment,omitempty"`
	ID        int            `json:"id"`
	Class     string         `json:"class"`
	AddrWidth int            `json:"addr_width"`
	DataWidth int            `json:"data_width"`
	Registers []RegisterView `json:"registers"`
}

type MapView struct {
	Name      string         `json:"name"`
	Terminals []TerminalView `json:"terminals"`
}

func NewMapView(m *regmap.Map) *MapView {
	view := &MapView{Name: m.Name, Terminals: []TerminalView{}}
	for _, t := range m.Terminals() {
		tv := TerminalView{
			Name:      t.Name,
			Comment:   t.Comment,
			ID:        int(t.ID),
			Class:     t.Class.String(),
			AddrWidth: t.AddrWidth,
			DataWidth: t.DataWidth,
			Registers: []RegisterView{},
		}
		for _, r := range t.Registers {
			rv := RegisterView{
				Name:    r.Name,
				Comment: r.Comment,
				Addr:    fmt.Sprintf("0x%x", r.Addr),
				Width:   r.Width,
				Mode:    r.Mode.String(),
				Array:   r.Array,
				Stride:  r.Stride,
				Fifo:    r.Fifo,
			}
			if r.Init != nil {
				rv.Init = BigToHex(r.Init)
			}
			tv.Registers = append(tv.Registers, rv)
		}
		view.Terminals = append(view.Terminals, tv)
	}
	return view
}

func ToHex(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}

func BigToHex(v *big.Int) string {
	return "0x" + v.Text(16)
}

func ParseHex(s string) (uint64, error) {
	v, err := strconv.ParseUint(trimHex(s), 16, 64)
	if err != nil {
		return 0, ErrBadRequest{What: fmt.Sprintf("not a 64 bit hexadecimal value: %q", s)}
	}
	return v, nil
}

func ParseBigHex(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(trimHex(s), 16)
	if !ok || v.Sign() < 0 {
		return nil, ErrBadRequest{What: fmt.Sprintf("not a hexadecimal value: %q", s)}
	}
	return v, nil
}

func trimHex(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}

func ParseHexValues(ss []string) ([]uint64, error) {
	values := make([]uint64, len(ss))
	for i, s := range ss {
		v, err := ParseHex(s)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func ParseBigHexValues(ss []string) ([]*big.Int, error) {
	values := make([]*big.Int, len(ss))
	for i, s := range ss {
		v, err := ParseBigHex(s)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func BigToHexValues(values []*big.Int) []string {
	ss := make([]string, len(values))
	for i, v := range values {
		ss[i] = BigToHex(v)
	}
	return ss
}

func ToHexValues(values []uint64) []string {
	ss := make([]string, len(values))
	for i, v := range values {
		ss[i] = ToHex(v)
	}
	return ss
}

// StatusCode maps a device access error to the HTTP status reported to clients
func StatusCode(err error) int {
	var (
		unknownTerminal regmap.ErrUnknownTerminal
		unknownRegister regmap.ErrUnknownRegister
		noState         ErrNoState
		noBucket        ErrBucketNotFound
		index           regmap.ErrIndexOutOfRange
		addr            regmap.ErrAddressOutOfRange
		readOnly        engine.ErrWriteToReadOnly
		value           engine.ErrValueOutOfRange
		wide            stream.ErrWideRegister
		bad             ErrBadRequest
		timeout         engine.ErrTimeout
	)
	switch {
	case errors.As(err, &unknownTerminal), errors.As(err, &unknownRegister),
		errors.As(err, &noState), errors.As(err, &noBucket):
		return http.StatusNotFound
	case errors.As(err, &index), errors.As(err, &addr), errors.As(err, &readOnly),
		errors.As(err, &value), errors.As(err, &wide), errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

type ApiServer struct {
	context.Context
	*config.Config
	*mux.Router
	ctrl ifc.ControlServer
}

var _ ifc.ApiServer = &ApiServer{}

func NewApiServer(ctx context.Context, cfg *config.Config, ctrl ifc.ControlServer) (ifc.ApiServer, error) {
	log.Info("Initializing API server with address: %s port: %d", cfg.Api.IP, cfg.Api.Port)

	s := &ApiServer{
		Context: ctx,
		Config:  cfg,
		ctrl:    ctrl,
	}
	if err := s.configureRouter(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ApiServer) Handler() http.Handler {
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(
		handlers.LoggingHandler(log.Writer(), s.Router))
}

// Run serves the API until the context is done
func (s *ApiServer) Run() error {
	log.Info("Starting API server: address: %s port: %d", s.Api.IP, s.Api.Port)
	httpServer := &http.Server{
		Handler: s.Handler(),
		Addr:    fmt.Sprintf("%s:%d", s.Api.IP, s.Api.Port),
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.ListenAndServe()
	}()

	select {
	case <-s.Context.Done():
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (s *ApiServer) configureRouter() error {
	doc, err := loads.Analyzed(json.RawMessage(swaggerJSON), "")
	if err != nil {
		return fmt.Errorf("load API spec: %w", err)
	}
	log.Debug("API spec version %s loaded", doc.Version())

	s.Router = mux.NewRouter()
	subRouter := s.Router.PathPrefix("/api").Subrouter()
	// swagger:operation GET /reg/{terminal}/{register} get register
	// ---
	// summary: read a register element
	// responses:
	//   "400":
	//     "$ref": "#/responses/badReq"
	subRouter.HandleFunc("/reg/{terminal}/{register}", s.handleRegGet()).Methods("GET")
	// swagger:operation POST /reg/{terminal}/{register} set register
	// ---
	// summary: write a register element
	// responses:
	//   "400":
	//     "$ref": "#/responses/badReq"
	subRouter.HandleFunc("/reg/{terminal}/{register}", s.handleRegSet()).Methods("POST")
	subRouter.HandleFunc("/read/{terminal}/{register}/{length:[0-9]+}", s.handleRead()).Methods("GET")
	subRouter.HandleFunc("/write/{terminal}/{register}", s.handleWrite()).Methods("POST")
	subRouter.HandleFunc("/raw/{terminal}/{addr}/{length:[0-9]+}", s.handleRawRead()).Methods("GET")
	subRouter.HandleFunc("/raw/{terminal}", s.handleRawWrite()).Methods("POST")
	subRouter.HandleFunc("/state/{terminal}", s.handleStateAll()).Methods("GET")
	subRouter.HandleFunc("/state/{terminal}/{register}", s.handleState()).Methods("GET")
	subRouter.HandleFunc("/map", s.handleMap()).Methods("GET")
	subRouter.HandleFunc("/init", s.handleInit()).Methods("POST")

	s.Router.Handle("/swagger.json", middleware.Spec("/", doc.Raw(), http.NotFoundHandler()))
	s.Router.Handle("/docs", middleware.Redoc(middleware.RedocOpts{
		BasePath: "/",
		Path:     "docs",
		SpecURL:  "/swagger.json",
		Title:    "go-hostif API",
	}, http.NotFoundHandler()))
	return nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Error while encoding response: %s", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), StatusCode(err))
}

// queryIndex returns the element index given in the query string, if any
func queryIndex(r *http.Request) (*int, error) {
	q := r.URL.Query().Get("index")
	if q == "" {
		return nil, nil
	}
	index, err := strconv.Atoi(q)
	if err != nil {
		return nil, ErrBadRequest{What: fmt.Sprintf("index %q is not a number", q)}
	}
	return &index, nil
}

func refAt(vars map[string]string, index *int) regmap.Ref {
	ref := regmap.NewRef(vars["terminal"], vars["register"])
	if index != nil {
		return ref.At(*index)
	}
	return ref
}

func (s *ApiServer) record(ref regmap.Ref, index *int, value, op string) {
	rec := &ifc.RegRecord{
		Register: ref.Register,
		Index:    index,
		Value:    value,
		Op:       op,
		Updated:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.ctrl.State().SetReg(ref.Terminal, rec); err != nil {
		log.Warning("Error while recording state of %s: %s", ref, err)
	}
}

func (s *ApiServer) handleRegGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		index, err := queryIndex(r)
		if err != nil {
			writeError(w, err)
			return
		}
		ref := refAt(vars, index)
		log.Debug("Handling reg get request: %s", ref)

		value, err := s.ctrl.Device().GetBig(r.Context(), ref)
		if err != nil {
			writeError(w, err)
			return
		}
		regHex := &RegHex{Index: index, Value: BigToHex(value)}
		s.record(ref, index, regHex.Value, OpGet)
		writeJSON(w, regHex)
	}
}

func (s *ApiServer) handleRegSet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		regHex := &RegHex{}
		if err := json.NewDecoder(r.Body).Decode(regHex); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ref := refAt(vars, regHex.Index)
		log.Debug("Handling reg set request: %s value: %s", ref, regHex.Value)

		value, err := ParseBigHex(regHex.Value)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := s.ctrl.Device().SetBig(r.Context(), ref, value); err != nil {
			writeError(w, err)
			return
		}
		s.record(ref, regHex.Index, BigToHex(value), OpSet)
	}
}

func (s *ApiServer) handleRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		index, err := queryIndex(r)
		if err != nil {
			writeError(w, err)
			return
		}
		length, err := strconv.Atoi(vars["length"])
		if err != nil || length < 1 {
			http.Error(w, fmt.Sprintf("invalid length %q", vars["length"]), http.StatusBadRequest)
			return
		}
		ref := refAt(vars, index)
		log.Debug("Handling read request: %s length: %d", ref, length)

		values, err := s.ctrl.Device().ReadBig(r.Context(), ref, length)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, &ValuesHex{Index: index, Values: BigToHexValues(values)})
	}
}

func (s *ApiServer) handleWrite() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		valuesHex := &ValuesHex{}
		if err := json.NewDecoder(r.Body).Decode(valuesHex); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ref := refAt(vars, valuesHex.Index)
		log.Debug("Handling write request: %s length: %d", ref, len(valuesHex.Values))

		values, err := ParseBigHexValues(valuesHex.Values)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := s.ctrl.Device().WriteBig(r.Context(), ref, values); err != nil {
			writeError(w, err)
			return
		}
	}
}

func (s *ApiServer) handleRawRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		log.Debug("Handling raw read request: terminal: %s addr: %s length: %s",
			vars["terminal"], vars["addr"], vars["length"])

		addr, err := strconv.ParseUint(vars["addr"], 0, 32)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		length, err := strconv.Atoi(vars["length"])
		if err != nil || length < 1 {
			http.Error(w, fmt.Sprintf("invalid length %q", vars["length"]), http.StatusBadRequest)
			return
		}
		values, err := s.ctrl.Device().ReadAddr(r.Context(), vars["terminal"], uint32(addr), length)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, &RawHex{Addr: ToHex(addr), Values: ToHexValues(values)})
	}
}

func (s *ApiServer) handleRawWrite() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		rawHex := &RawHex{}
		if err := json.NewDecoder(r.Body).Decode(rawHex); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Debug("Handling raw write request: terminal: %s addr: %s length: %d",
			vars["terminal"], rawHex.Addr, len(rawHex.Values))

		addr, err := strconv.ParseUint(rawHex.Addr, 0, 32)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		values, err := ParseHexValues(rawHex.Values)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := s.ctrl.Device().WriteAddr(r.Context(), vars["terminal"], uint32(addr), values); err != nil {
			writeError(w, err)
			return
		}
	}
}

func (s *ApiServer) handleStateAll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		log.Debug("Handling state request: terminal: %s", vars["terminal"])

		if _, err := s.ctrl.Device().Map().Terminal(vars["terminal"]); err != nil {
			writeError(w, err)
			return
		}
		recs, err := s.ctrl.State().GetRegAll(vars["terminal"])
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, recs)
	}
}

func (s *ApiServer) handleState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		index, err := queryIndex(r)
		if err != nil {
			writeError(w, err)
			return
		}
		log.Debug("Handling state request: %s", refAt(vars, index))

		rec, err := s.ctrl.State().GetReg(vars["terminal"], vars["register"], index)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, rec)
	}
}

func (s *ApiServer) handleMap() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Handling map request")
		writeJSON(w, NewMapView(s.ctrl.Device().Map()))
	}
}

func (s *ApiServer) handleInit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Handling init request")
		if err := s.ctrl.Device().Init(r.Context()); err != nil {
			writeError(w, err)
			return
		}
	}
}
