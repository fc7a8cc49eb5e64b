package openr

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("AreaDb", func() {
	var db *AreaDb

	BeforeEach(func() {
		db = NewAreaDb()
	})

	It("accepts the first write to a key", func() {
		Expect(db.Set("k1", NewRecord(1, "a", []byte("v1")))).To(BeTrue())

		record, ok := db.Get("k1")
		Expect(ok).To(BeTrue())
		Expect(record.Value).To(Equal([]byte("v1")))
	})

	It("rejects a non-dominant write and keeps the dominant record", func() {
		Expect(db.Set("k1", NewRecord(5, "a", []byte("v5")))).To(BeTrue())
		Expect(db.Set("k1", NewRecord(3, "a", []byte("v3")))).To(BeFalse())

		record, _ := db.Get("k1")
		Expect(record.Version).To(Equal(uint64(5)))
	})

	It("accepts the same delta regardless of delivery order (commutativity)", func() {
		other := NewAreaDb()

		deltas := []Record{
			NewRecord(1, "a", []byte("x")),
			NewRecord(3, "b", []byte("y")),
			NewRecord(2, "a", []byte("z")),
		}

		for _, record := range deltas {
			db.Set("k", record)
		}

		for i := len(deltas) - 1; i >= 0; i-- {
			other.Set("k", deltas[i])
		}

		a, _ := db.Get("k")
		b, _ := other.Get("k")
		Expect(a).To(Equal(b))
	})

	It("DumpHashes strips Value but preserves an equality-comparable fingerprint", func() {
		db.Set("k1", NewRecord(1, "a", []byte("v1")))

		hashes := db.DumpHashes("")
		Expect(hashes["k1"].Value).To(BeNil())

		full, _ := db.Get("k1")
		Expect(hashes["k1"].EffectiveHash()).To(Equal(full.Hash()))
	})

	It("DumpHashes respects a prefix filter", func() {
		db.Set("a/1", NewRecord(1, "n", []byte("x")))
		db.Set("b/1", NewRecord(1, "n", []byte("x")))

		hashes := db.DumpHashes("a/")
		Expect(hashes).To(HaveKey("a/1"))
		Expect(hashes).NotTo(HaveKey("b/1"))
	})

	It("DumpSelfOriginated filters by originator id", func() {
		db.Set("k1", NewRecord(1, "self", []byte("x")))
		db.Set("k2", NewRecord(1, "other", []byte("y")))

		own := db.DumpSelfOriginated("self")
		Expect(own).To(HaveKey("k1"))
		Expect(own).NotTo(HaveKey("k2"))
	})

	It("Merge returns exactly the accepted subset of a delta", func() {
		db.Set("k1", NewRecord(5, "a", []byte("old")))

		delta := map[string]Record{
			"k1": NewRecord(3, "a", []byte("stale")), // rejected
			"k2": NewRecord(1, "a", []byte("new")),   // accepted
		}

		accepted := db.Merge(delta)

		Expect(accepted).To(HaveKey("k2"))
		Expect(accepted).NotTo(HaveKey("k1"))
		Expect(db.Size()).To(Equal(2))
	})
})
