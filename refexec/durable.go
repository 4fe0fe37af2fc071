package refexec

import (
	"bytes"

	"github.com/dgraph-io/badger/v4"

	"github.com/sqilrun/sqil/sqil"
	"github.com/sqilrun/sqil/value"
	"github.com/sqilrun/sqil/wire"
)

// DurableCatalog pairs an in-memory Catalog with a BadgerDB-backed
// snapshot on disk: the CLI demo's "-db" flag and integration tests want
// a catalog that survives a process restart, but the reference executor
// itself only ever operates on the in-memory Catalog (spec.md §4.5 is
// explicit that refexec is not a production engine). Grounded on the
// teacher's storage.NewDatabase/BadgerStore (datalog/storage/database.go,
// datalog/storage/badger_store.go): same badger.DefaultOptions/Logger=nil
// open pattern, restyled as a load-once/save-on-close snapshot rather
// than badger being the system of record for every write.
type DurableCatalog struct {
	*Catalog
	db *badger.DB
}

// rowKey is the badger key one entity's row snapshot is stored under.
func rowKey(id sqil.EntityId) []byte { return []byte("rows:" + string(id)) }

// OpenDurable opens (creating if necessary) a badger store at path,
// builds a Catalog for configs, and seeds it from any snapshot found at
// path. Call Close to persist the catalog's current contents back to
// disk and release the store.
func OpenDurable(path string, configs []sqil.EntityConfig) (*DurableCatalog, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	cat := NewCatalog(configs)
	dc := &DurableCatalog{Catalog: cat, db: db}
	for _, cfg := range configs {
		if err := dc.load(cfg); err != nil {
			db.Close()
			return nil, err
		}
	}
	return dc, nil
}

func rowStructure(cfg sqil.EntityConfig) []value.Type {
	structure := make([]value.Type, len(cfg.Attributes)+1)
	for i, a := range cfg.Attributes {
		structure[i] = a.Type
	}
	structure[len(cfg.Attributes)] = value.UInt64Type() // ROWIDX
	return structure
}

func (dc *DurableCatalog) load(cfg sqil.EntityConfig) error {
	structure := rowStructure(cfg)
	var blob []byte
	err := dc.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(rowKey(cfg.Id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			blob = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil || len(blob) == 0 {
		return err
	}

	r := wire.NewReader(bytes.NewReader(blob), structure)
	var row Row
	for {
		v, ok, err := r.ReadValue()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		row = append(row, v)
		if len(row) == len(structure) {
			dc.Seed(cfg.Id, row)
			row = nil
		}
	}
	return nil
}

// Close snapshots every entity's current rows to badger and closes the
// store. The in-memory Catalog remains usable afterward; only the
// backing store is released.
func (dc *DurableCatalog) Close() error {
	for id := range dc.configsSnapshot() {
		cfg, _ := dc.Config(id)
		structure := rowStructure(cfg)
		var buf bytes.Buffer
		w := wire.NewWriter(&buf, structure)
		var writeErr error
		dc.WithData(id, func(rows []Row) {
			for _, row := range rows {
				for _, v := range row {
					if err := w.WriteValue(v); err != nil {
						writeErr = err
						return
					}
				}
			}
		})
		if writeErr != nil {
			return writeErr
		}
		err := dc.db.Update(func(txn *badger.Txn) error {
			return txn.Set(rowKey(id), buf.Bytes())
		})
		if err != nil {
			return err
		}
	}
	return dc.db.Close()
}

// configsSnapshot exposes the set of known entity ids without leaking the
// configs map itself.
func (dc *DurableCatalog) configsSnapshot() map[sqil.EntityId]struct{} {
	out := make(map[sqil.EntityId]struct{})
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	for id := range dc.configs {
		out[id] = struct{}{}
	}
	return out
}
