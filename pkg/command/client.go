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

package command

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/imroc/req"

	"jinr.ru/greenlab/go-hostif/pkg/config"
	"jinr.ru/greenlab/go-hostif/pkg/srv/control"
	"jinr.ru/greenlab/go-hostif/pkg/srv/control/ifc"
)

// ErrApi returned when the control server answers with a status other than 200
type ErrApi struct {
	Code    int
	Status  string
	Message string
}

func (e ErrApi) Error() string {
	if e.Message == "" {
		return e.Status
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

type ApiClient struct {
	*config.Config
	ApiPrefix string
}

func NewApiClient(cfg *config.Config) *ApiClient {
	return &ApiClient{
		Config:    cfg,
		ApiPrefix: fmt.Sprintf("http://%s:%d/api", cfg.Api.IP, cfg.Api.Port),
	}
}

func check(r *req.Resp) error {
	resp := r.Response()
	if resp.StatusCode != http.StatusOK {
		return ErrApi{
			Code:    resp.StatusCode,
			Status:  resp.Status,
			Message: strings.TrimSpace(r.String()),
		}
	}
	return nil
}

func indexParam(index *int) req.QueryParam {
	if index == nil {
		return req.QueryParam{}
	}
	return req.QueryParam{"index": *index}
}

func (c *ApiClient) regUrl(terminal, register string) string {
	return fmt.Sprintf("%s/reg/%s/%s", c.ApiPrefix, terminal, register)
}

// RegGet sends request to read a register element, the value is hexadecimal
func (c *ApiClient) RegGet(terminal, register string, index *int) (string, error) {
	r, err := req.Get(c.regUrl(terminal, register), indexParam(index))
	if err != nil {
		return "", err
	}
	if err := check(r); err != nil {
		return "", err
	}
	reg := &control.RegHex{}
	if err := r.ToJSON(reg); err != nil {
		return "", err
	}
	return reg.Value, nil
}

// RegSet sends request to write a hexadecimal value to a register element
func (c *ApiClient) RegSet(terminal, register string, index *int, value string) error {
	reg := &control.RegHex{
		Index: index,
		Value: value,
	}
	r, err := req.Post(c.regUrl(terminal, register), req.BodyJSON(reg))
	if err != nil {
		return err
	}
	return check(r)
}

// Read sends request to read length consecutive register elements
func (c *ApiClient) Read(terminal, register string, index *int, length int) ([]string, error) {
	r, err := req.Get(fmt.Sprintf("%s/read/%s/%s/%d", c.ApiPrefix, terminal, register, length), indexParam(index))
	if err != nil {
		return nil, err
	}
	if err := check(r); err != nil {
		return nil, err
	}
	values := &control.ValuesHex{}
	if err := r.ToJSON(values); err != nil {
		return nil, err
	}
	return values.Values, nil
}

// Write sends request to write consecutive register elements
func (c *ApiClient) Write(terminal, register string, index *int, values []string) error {
	body := &control.ValuesHex{
		Index:  index,
		Values: values,
	}
	r, err := req.Post(fmt.Sprintf("%s/write/%s/%s", c.ApiPrefix, terminal, register), req.BodyJSON(body))
	if err != nil {
		return err
	}
	return check(r)
}

// RawRead sends request to read beats at a terminal address
func (c *ApiClient) RawRead(terminal, addr string, length int) ([]string, error) {
	r, err := req.Get(fmt.Sprintf("%s/raw/%s/%s/%d", c.ApiPrefix, terminal, addr, length))
	if err != nil {
		return nil, err
	}
	if err := check(r); err != nil {
		return nil, err
	}
	raw := &control.RawHex{}
	if err := r.ToJSON(raw); err != nil {
		return nil, err
	}
	return raw.Values, nil
}

// RawWrite sends request to write beats at a terminal address
func (c *ApiClient) RawWrite(terminal, addr string, values []string) error {
	body := &control.RawHex{
		Addr:   addr,
		Values: values,
	}
	r, err := req.Post(fmt.Sprintf("%s/raw/%s", c.ApiPrefix, terminal), req.BodyJSON(body))
	if err != nil {
		return err
	}
	return check(r)
}

// State sends request to get the last known register values of a terminal
func (c *ApiClient) State(terminal string) ([]*ifc.RegRecord, error) {
	r, err := req.Get(fmt.Sprintf("%s/state/%s", c.ApiPrefix, terminal))
	if err != nil {
		return nil, err
	}
	if err := check(r); err != nil {
		return nil, err
	}
	var recs []*ifc.RegRecord
	if err := r.ToJSON(&recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Map sends request to get the register map the server works with
func (c *ApiClient) Map() (*control.MapView, error) {
	r, err := req.Get(fmt.Sprintf("%s/map", c.ApiPrefix))
	if err != nil {
		return nil, err
	}
	if err := check(r); err != nil {
		return nil, err
	}
	view := &control.MapView{}
	if err := r.ToJSON(view); err != nil {
		return nil, err
	}
	return view, nil
}

// Init sends request to write init values to every writable register
func (c *ApiClient) Init() error {
	r, err := req.Post(fmt.Sprintf("%s/init", c.ApiPrefix))
	if err != nil {
		return err
	}
	return check(r)
}
