// Package store keeps a definition table in a LevelDB database so that an
// indexed source tree can be expanded against without re-reading it.
//
// Keys:
//
//	def/<name>/<seq>     JSON macro.Definition, seq orders redefinitions
//	fail/<name>/<seq>    JSON macro.Diagnostic
//	type/<name>/<file>   empty
//	file/<file>          JSON list of the keys above contributed by file
//	active/<name>        selected definition index
//	meta/seq             last sequence number
package store

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"
	"sync"

	"github.com/fwessels/macroexp/internal/macro"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defPrefix    = "def/"
	failPrefix   = "fail/"
	typePrefix   = "type/"
	filePrefix   = "file/"
	activePrefix = "active/"
	seqKey       = "meta/seq"
)

// DB is a macro.Table backed by LevelDB. Reads may run concurrently;
// writes are serialized.
type DB struct {
	db  *leveldb.DB
	mu  sync.Mutex
	log logrus.FieldLogger
}

type fileRecord struct {
	Keys []string `json:"keys"`
}

// Open opens or creates the database in dir.
func Open(dir string) (*DB, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open definition store %s", dir)
	}
	return &DB{db: db, log: logrus.WithField("store", dir)}, nil
}

func (s *DB) Close() error {
	return errors.Wrap(s.db.Close(), "close definition store")
}

func seqString(seq uint64) string {
	return strconv.FormatUint(seq|1<<63, 16)
}

func (s *DB) nextSeq() (uint64, error) {
	v, err := s.db.Get([]byte(seqKey), nil)
	switch {
	case err == leveldb.ErrNotFound:
		return 1, nil
	case err != nil:
		return 0, errors.Wrap(err, "read sequence")
	case len(v) != 8:
		return 0, errors.Errorf("corrupt sequence value of %d bytes", len(v))
	}
	return binary.BigEndian.Uint64(v) + 1, nil
}

// ReplaceFile drops everything previously stored for file and stores the
// new extraction results after all existing definitions.
func (s *DB) ReplaceFile(file string, defs []macro.Definition, types []string, failures []macro.Diagnostic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := new(leveldb.Batch)
	if err := s.removeFile(batch, file); err != nil {
		return err
	}
	seq, err := s.nextSeq()
	if err != nil {
		return err
	}

	var rec fileRecord
	put := func(key string, v interface{}) error {
		data, err := json.Marshal(v)
		if err != nil {
			return errors.Wrapf(err, "encode %s", key)
		}
		batch.Put([]byte(key), data)
		rec.Keys = append(rec.Keys, key)
		return nil
	}
	for _, d := range defs {
		if err := put(defPrefix+d.Name+"/"+seqString(seq), d); err != nil {
			return err
		}
		seq++
	}
	for _, d := range failures {
		if d.Macro == "" {
			continue
		}
		if err := put(failPrefix+d.Macro+"/"+seqString(seq), d); err != nil {
			return err
		}
		seq++
	}
	for _, t := range types {
		key := typePrefix + t + "/" + file
		batch.Put([]byte(key), nil)
		rec.Keys = append(rec.Keys, key)
	}
	if err := put(filePrefix+file, rec); err != nil {
		return err
	}

	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	batch.Put([]byte(seqKey), seqBuf[:])

	if err := s.db.Write(batch, nil); err != nil {
		return errors.Wrapf(err, "store definitions of %s", file)
	}
	s.log.WithFields(logrus.Fields{
		"file":        file,
		"definitions": len(defs),
		"types":       len(types),
		"failures":    len(failures),
	}).Debug("stored file")
	return nil
}

// RemoveFile forgets everything stored for file.
func (s *DB) RemoveFile(file string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := new(leveldb.Batch)
	if err := s.removeFile(batch, file); err != nil {
		return err
	}
	return errors.Wrapf(s.db.Write(batch, nil), "remove %s", file)
}

func (s *DB) removeFile(batch *leveldb.Batch, file string) error {
	data, err := s.db.Get([]byte(filePrefix+file), nil)
	if err == leveldb.ErrNotFound {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "read file record of %s", file)
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return errors.Wrapf(err, "decode file record of %s", file)
	}
	for _, key := range rec.Keys {
		batch.Delete([]byte(key))
		if strings.HasPrefix(key, defPrefix) {
			// the selection indexes into a list that changes now
			batch.Delete([]byte(activePrefix + keyName(key, defPrefix)))
		}
	}
	batch.Delete([]byte(filePrefix + file))
	return nil
}

// keyName extracts <name> from "<prefix><name>/...".
func keyName(key, prefix string) string {
	rest := strings.TrimPrefix(key, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i]
	}
	return rest
}

// each calls fn for every value under prefix, in key order.
func (s *DB) each(prefix string, fn func(key, value []byte) error) error {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()
	for iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Definitions returns every definition of name in the order stored.
func (s *DB) Definitions(name string) ([]macro.Definition, error) {
	var out []macro.Definition
	err := s.each(defPrefix+name+"/", func(key, value []byte) error {
		var d macro.Definition
		if err := json.Unmarshal(value, &d); err != nil {
			return errors.Wrapf(err, "decode %s", key)
		}
		out = append(out, d)
		return nil
	})
	return out, errors.Wrapf(err, "lookup %s", name)
}

func (s *DB) Lookup(name string) []macro.Definition {
	defs, err := s.Definitions(name)
	if err != nil {
		s.log.WithError(err).WithField("macro", name).Error("lookup failed")
	}
	return defs
}

func (s *DB) Active(name string) (macro.Definition, bool) {
	defs := s.Lookup(name)
	if len(defs) == 0 {
		return macro.Definition{}, false
	}
	i := len(defs) - 1
	if v, err := s.db.Get([]byte(activePrefix+name), nil); err == nil {
		if n, err := strconv.Atoi(string(v)); err == nil && n >= 0 && n < len(defs) {
			i = n
		}
	}
	return defs[i], true
}

// SetActive selects the index-th definition of name (in Lookup order).
func (s *DB) SetActive(name string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defs, err := s.Definitions(name)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(defs) {
		return errors.Errorf("macro %s has %d definition(s), cannot select #%d", name, len(defs), index)
	}
	return errors.Wrapf(s.db.Put([]byte(activePrefix+name), []byte(strconv.Itoa(index)), nil), "select %s", name)
}

func (s *DB) IsKnownType(name string) bool {
	found := false
	err := s.each(typePrefix+name+"/", func(_, _ []byte) error {
		found = true
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithField("type", name).Error("type lookup failed")
	}
	return found
}

func (s *DB) ParseFailures(name string) []macro.Diagnostic {
	var out []macro.Diagnostic
	err := s.each(failPrefix+name+"/", func(key, value []byte) error {
		var d macro.Diagnostic
		if err := json.Unmarshal(value, &d); err != nil {
			return errors.Wrapf(err, "decode %s", key)
		}
		out = append(out, d)
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithField("macro", name).Error("failure lookup failed")
	}
	return out
}

// Names returns all macro names in sorted order.
func (s *DB) Names() []string {
	var names []string
	var last []byte
	err := s.each(defPrefix, func(key, _ []byte) error {
		name := []byte(keyName(string(key), defPrefix))
		if !bytes.Equal(name, last) {
			names = append(names, string(name))
			last = name
		}
		return nil
	})
	if err != nil {
		s.log.WithError(err).Error("listing names failed")
	}
	return names
}

// Files returns the indexed files in sorted order.
func (s *DB) Files() ([]string, error) {
	var files []string
	err := s.each(filePrefix, func(key, _ []byte) error {
		files = append(files, strings.TrimPrefix(string(key), filePrefix))
		return nil
	})
	return files, errors.Wrap(err, "list files")
}

// Len returns the number of stored definitions, redefinitions included.
func (s *DB) Len() int {
	n := 0
	err := s.each(defPrefix, func(_, _ []byte) error {
		n++
		return nil
	})
	if err != nil {
		s.log.WithError(err).Error("counting definitions failed")
	}
	return n
}
