// Package historian durably logs accepted publications, grounded on
// devicedb's historian package and its LevelDB-backed event log -- the
// core Store itself is in-memory only (spec.md's explicit non-goal),
// but an embedder that wants an audit trail subscribes a Historian to
// the Store's PubQueue instead of changing the core's storage model.
package historian

import (
	"encoding/json"
	"fmt"

	openr "github.com/robertprast/openr"
	"github.com/robertprast/openr/storage"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

var log = openr.Logger("historian")

// entry is the on-disk shape of one logged publication.
type entry struct {
	Area        string                    `json:"area"`
	KeyVals     map[string]openr.Record   `json:"keyVals"`
	SenderID    string                    `json:"senderId"`
	NodeIDsPath []string                  `json:"nodeIdsPath"`
}

// Historian consumes a Store's PubQueue on its own goroutine and appends
// every Publication to a LevelDB log, keyed by an incrementing sequence
// number so the log preserves arrival order.
type Historian struct {
	driver *storage.LevelDBStorageDriver
	seq    uint64
	done   chan struct{}
}

// Open opens (creating if necessary) a LevelDB-backed history log at
// dir.
func Open(dir string) (*Historian, error) {
	driver := storage.NewLevelDBStorageDriver(dir, &opt.Options{})

	if err := driver.Open(); err != nil {
		return nil, err
	}

	return &Historian{driver: driver, done: make(chan struct{})}, nil
}

// Run blocks, draining store's PubQueue until it closes, logging every
// Publication it sees (InitializationEvent items are not logged --
// they carry no content worth persisting). Intended to be run on its
// own goroutine.
func (historian *Historian) Run(store *openr.Store) {
	for {
		publication, err := store.RecvPublication()

		if err != nil {
			close(historian.done)
			return
		}

		if err := historian.append(publication); err != nil {
			log.Warningf("historian: failed to log publication for area %s: %v", publication.Area, err)
		}
	}
}

// Wait blocks until Run has observed the queue close.
func (historian *Historian) Wait() {
	<-historian.done
}

func (historian *Historian) append(publication *openr.Publication) error {
	historian.seq++

	body, err := json.Marshal(entry{
		Area:        publication.Area,
		KeyVals:     publication.KeyVals,
		SenderID:    publication.SenderID,
		NodeIDsPath: publication.NodeIDsPath,
	})

	if err != nil {
		return err
	}

	key := []byte(fmt.Sprintf("%020d", historian.seq))

	batch := storage.NewBatch()
	batch.Put(key, body)

	return historian.driver.Batch(batch)
}

// Close releases the underlying LevelDB handle.
func (historian *Historian) Close() error {
	return historian.driver.Close()
}
