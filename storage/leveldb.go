package storage

import (
	"errors"
	"sort"
	"strings"

	openr "github.com/robertprast/openr"
	"github.com/syndtr/goleveldb/leveldb"
	levelErrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var log = openr.Logger("storage")

// ErrCorrupted is returned by Open when the underlying LevelDB files are
// corrupted beyond what the driver will attempt to recover from
// automatically; the caller is expected to call Recover explicitly.
var ErrCorrupted = errors.New("storage: database is corrupted")

type LevelDBIterator struct {
	snapshot  *leveldb.Snapshot
	it        iterator.Iterator
	ranges    []*util.Range
	prefix    []byte
	err       error
	direction int
}

func (it *LevelDBIterator) Next() bool {
	if it.it == nil {
		if len(it.ranges) == 0 {
			return false
		}

		it.prefix = it.ranges[0].Start
		it.it = it.snapshot.NewIterator(it.ranges[0], nil)
		it.ranges = it.ranges[1:]

		if it.direction == BACKWARD {
			if it.it.Last() {
				return true
			}

			if it.it.Error() != nil {
				it.err = it.it.Error()
				it.ranges = []*util.Range{}
			}

			it.it.Release()
			it.it = nil
			it.prefix = nil

			return false
		}
	}

	if it.direction == BACKWARD {
		if it.it.Prev() {
			return true
		}
	} else {
		if it.it.Next() {
			return true
		}
	}

	if it.it.Error() != nil {
		it.err = it.it.Error()
		it.ranges = []*util.Range{}
	}

	it.it.Release()
	it.it = nil
	it.prefix = nil

	return it.Next()
}

func (it *LevelDBIterator) Prefix() []byte {
	return it.prefix
}

func (it *LevelDBIterator) Key() []byte {
	if it.it == nil || it.err != nil {
		return nil
	}

	return it.it.Key()
}

func (it *LevelDBIterator) Value() []byte {
	if it.it == nil || it.err != nil {
		return nil
	}

	return it.it.Value()
}

func (it *LevelDBIterator) Release() {
	it.prefix = nil
	it.ranges = []*util.Range{}
	it.snapshot.Release()

	if it.it == nil {
		return
	}

	it.it.Release()
	it.it = nil
}

func (it *LevelDBIterator) Error() error {
	return it.err
}

// LevelDBStorageDriver is the only StorageDriver implementation in this
// module, backing the historian package's durable publication log
// (spec.md's core is explicitly in-memory-only; this is the supplemental
// audit log that sits outside the core's non-goals).
type LevelDBStorageDriver struct {
	file    string
	options *opt.Options
	db      *leveldb.DB
}

func NewLevelDBStorageDriver(file string, options *opt.Options) *LevelDBStorageDriver {
	return &LevelDBStorageDriver{file, options, nil}
}

func (levelDriver *LevelDBStorageDriver) Open() error {
	levelDriver.Close()

	db, err := leveldb.OpenFile(levelDriver.file, levelDriver.options)

	if err != nil {
		if levelErrors.IsCorrupted(err) {
			log.Criticalf("LevelDB database is corrupted: %v", err)

			return ErrCorrupted
		}

		return err
	}

	levelDriver.db = db

	return nil
}

func (levelDriver *LevelDBStorageDriver) Close() error {
	if levelDriver.db == nil {
		return nil
	}

	err := levelDriver.db.Close()

	levelDriver.db = nil

	return err
}

func (levelDriver *LevelDBStorageDriver) Recover() error {
	levelDriver.Close()

	db, err := leveldb.RecoverFile(levelDriver.file, levelDriver.options)

	if err != nil {
		return err
	}

	levelDriver.db = db

	return nil
}

func (levelDriver *LevelDBStorageDriver) Compact() error {
	if levelDriver.db == nil {
		return errors.New("driver is closed")
	}

	return levelDriver.db.CompactRange(util.Range{})
}

func (levelDriver *LevelDBStorageDriver) Get(keys [][]byte) ([][]byte, error) {
	if levelDriver.db == nil {
		return nil, errors.New("driver is closed")
	}

	if keys == nil {
		return [][]byte{}, nil
	}

	snapshot, err := levelDriver.db.GetSnapshot()

	if err != nil {
		return nil, err
	}

	defer snapshot.Release()

	values := make([][]byte, len(keys))

	for i, key := range keys {
		if key == nil {
			values[i] = nil
			continue
		}

		values[i], err = snapshot.Get(key, nil)

		if err != nil {
			if err != leveldb.ErrNotFound {
				return nil, err
			}

			values[i] = nil
		}
	}

	return values, nil
}

func consolidateKeys(keys [][]byte) [][]byte {
	if keys == nil {
		return [][]byte{}
	}

	s := make([]string, 0, len(keys))

	for _, key := range keys {
		if key == nil {
			continue
		}

		s = append(s, string(key))
	}

	sort.Strings(s)

	result := make([][]byte, 0, len(s))

	for i := 0; i < len(s); i++ {
		if i == 0 {
			result = append(result, []byte(s[i]))
			continue
		}

		if !strings.HasPrefix(s[i], s[i-1]) {
			result = append(result, []byte(s[i]))
		} else {
			s[i] = s[i-1]
		}
	}

	return result
}

func (levelDriver *LevelDBStorageDriver) GetMatches(keys [][]byte) (StorageIterator, error) {
	if levelDriver.db == nil {
		return nil, errors.New("driver is closed")
	}

	keys = consolidateKeys(keys)
	snapshot, err := levelDriver.db.GetSnapshot()

	if err != nil {
		return nil, err
	}

	ranges := make([]*util.Range, 0, len(keys))

	for _, key := range keys {
		ranges = append(ranges, util.BytesPrefix(key))
	}

	return &LevelDBIterator{snapshot: snapshot, ranges: ranges, direction: FORWARD}, nil
}

func (levelDriver *LevelDBStorageDriver) GetRange(min, max []byte) (StorageIterator, error) {
	if levelDriver.db == nil {
		return nil, errors.New("driver is closed")
	}

	snapshot, err := levelDriver.db.GetSnapshot()

	if err != nil {
		return nil, err
	}

	ranges := []*util.Range{{Start: min, Limit: max}}

	return &LevelDBIterator{snapshot: snapshot, ranges: ranges, direction: FORWARD}, nil
}

func (levelDriver *LevelDBStorageDriver) GetRanges(ranges [][2][]byte, direction int) (StorageIterator, error) {
	if levelDriver.db == nil {
		return nil, errors.New("driver is closed")
	}

	snapshot, err := levelDriver.db.GetSnapshot()

	if err != nil {
		return nil, err
	}

	levelRanges := make([]*util.Range, len(ranges))

	for i := range ranges {
		levelRanges[i] = &util.Range{Start: ranges[i][0], Limit: ranges[i][1]}
	}

	return &LevelDBIterator{snapshot: snapshot, ranges: levelRanges, direction: direction}, nil
}

func (levelDriver *LevelDBStorageDriver) Batch(batch *Batch) error {
	if levelDriver.db == nil {
		return errors.New("driver is closed")
	}

	if batch == nil {
		return nil
	}

	b := new(leveldb.Batch)

	for _, op := range batch.Ops() {
		if op.OpType == PUT {
			b.Put(op.Key(), op.Value())
		} else if op.OpType == DEL {
			b.Delete(op.Key())
		}
	}

	return levelDriver.db.Write(b, nil)
}

func (levelDriver *LevelDBStorageDriver) Snapshot(snapshotDirectory string, metadataPrefix []byte, metadata map[string]string) error {
	if levelDriver.db == nil {
		return errors.New("driver is closed")
	}

	snapshotDB, err := leveldb.OpenFile(snapshotDirectory, &opt.Options{})

	if err != nil {
		log.Errorf("Can't create snapshot because %s could not be opened for writing: %v", snapshotDirectory, err)

		return err
	}

	if err := levelCopy(snapshotDB, levelDriver.db); err != nil {
		log.Errorf("Can't create snapshot because there was an error while copying the keys: %v", err)

		return err
	}

	metaBatch := &leveldb.Batch{}

	for metaKey, metaValue := range metadata {
		key := make([]byte, len(metadataPrefix)+len(metaKey))

		copy(key, metadataPrefix)
		copy(key[len(metadataPrefix):], []byte(metaKey))

		metaBatch.Put(key, []byte(metaValue))
	}

	if err := snapshotDB.Write(metaBatch, &opt.WriteOptions{Sync: true}); err != nil {
		log.Errorf("Can't create snapshot because there was a problem recording the snapshot metadata: %v", err)

		return err
	}

	return snapshotDB.Close()
}

func levelCopy(dest *leveldb.DB, src *leveldb.DB) error {
	iter := src.NewIterator(&util.Range{}, &opt.ReadOptions{DontFillCache: true})

	defer iter.Release()

	batch := &leveldb.Batch{}
	var batchSizeBytes int

	for iter.Next() {
		batch.Put(iter.Key(), iter.Value())
		batchSizeBytes += len(iter.Key()) + len(iter.Value())

		if batchSizeBytes >= CopyBatchMaxBytes || batch.Len() >= CopyBatchSize {
			if err := dest.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
				return err
			}

			batchSizeBytes = 0
			batch.Reset()
		}
	}

	if iter.Error() != nil {
		return iter.Error()
	}

	if batch.Len() > 0 {
		return dest.Write(batch, &opt.WriteOptions{Sync: true})
	}

	return nil
}

func (levelDriver *LevelDBStorageDriver) OpenSnapshot(snapshotDirectory string) (StorageDriver, error) {
	snapshotDB := NewLevelDBStorageDriver(snapshotDirectory, &opt.Options{ErrorIfMissing: true, ReadOnly: true})

	if err := snapshotDB.Open(); err != nil {
		return nil, err
	}

	return snapshotDB, nil
}

func (levelDriver *LevelDBStorageDriver) Restore(storageDriver StorageDriver) error {
	otherLevelDriver, ok := storageDriver.(*LevelDBStorageDriver)

	if !ok {
		return errors.New("snapshot source format not supported")
	}

	return levelCopy(levelDriver.db, otherLevelDriver.db)
}
