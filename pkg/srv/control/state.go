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

package control

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"
	"sigs.k8s.io/yaml"

	"jinr.ru/greenlab/go-hostif/pkg/log"
	"jinr.ru/greenlab/go-hostif/pkg/regmap"
	"jinr.ru/greenlab/go-hostif/pkg/srv/control/ifc"
)

const (
	BucketNamePrefix = "term_"
)

// RegState keeps the last known value of every register touched through the
// control server, one bucket per terminal
type RegState struct {
	context.Context
	DB *bbolt.DB
}

var _ ifc.State = &RegState{}

func NewRegState(ctx context.Context, path string, m *regmap.Map) (*RegState, error) {
	log.Debug("Opening register state database: %s", path)
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	// create buckets for all terminals of the map
	if err = db.Update(func(tx *bbolt.Tx) error {
		for _, t := range m.Terminals() {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucketName(t.Name))); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &RegState{
		Context: ctx,
		DB:      db,
	}, nil
}

func bucketName(terminal string) string {
	return fmt.Sprintf("%s%s", BucketNamePrefix, terminal)
}

func regKey(register string, index *int) []byte {
	if index == nil {
		return []byte(register)
	}
	return []byte(fmt.Sprintf("%s[%d]", register, *index))
}

func (s *RegState) Close() error {
	return s.DB.Close()
}

func (s *RegState) SetReg(terminal string, rec *ifc.RegRecord) error {
	log.Debug("Setting register state: %s.%s value: %s", terminal, regKey(rec.Register, rec.Index), rec.Value)
	data, err := yaml.Marshal(rec)
	if err != nil {
		return err
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName(terminal)))
		if b == nil {
			return ErrBucketNotFound{Bucket: bucketName(terminal)}
		}
		return b.Put(regKey(rec.Register, rec.Index), data)
	})
}

func (s *RegState) GetReg(terminal, register string, index *int) (*ifc.RegRecord, error) {
	key := regKey(register, index)
	log.Debug("Getting register state: %s.%s", terminal, key)
	rec := &ifc.RegRecord{}
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName(terminal)))
		if b == nil {
			return ErrBucketNotFound{Bucket: bucketName(terminal)}
		}
		data := b.Get(key)
		if data == nil {
			return ErrNoState{Terminal: terminal, Key: string(key)}
		}
		return yaml.Unmarshal(data, rec)
	}); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetRegAll returns the records of a terminal ordered by key
func (s *RegState) GetRegAll(terminal string) ([]*ifc.RegRecord, error) {
	log.Debug("Getting all register states: %s", terminal)
	recs := []*ifc.RegRecord{}
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName(terminal)))
		if b == nil {
			return ErrBucketNotFound{Bucket: bucketName(terminal)}
		}
		return b.ForEach(func(k, v []byte) error {
			rec := &ifc.RegRecord{}
			if err := yaml.Unmarshal(v, rec); err != nil {
				return fmt.Errorf("record %s: %w", k, err)
			}
			recs = append(recs, rec)
			return nil
		})
	}); err != nil {
		return nil, err
	}
	return recs, nil
}
