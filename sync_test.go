package openr

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func hashOnly(record Record) Record {
	stripped := record
	stripped.Fingerprint = record.Hash()
	stripped.Value = nil

	return stripped
}

var _ = Describe("computeSyncDiff", func() {
	It("requests keys present only on the peer", func() {
		local := map[string]Record{}
		peer := map[string]Record{"k1": hashOnly(NewRecord(1, "a", []byte("x")))}

		diff := computeSyncDiff(local, peer)

		Expect(diff.NeedFromPeer).To(ConsistOf("k1"))
		Expect(diff.GiveToPeer).To(BeEmpty())
	})

	It("offers keys present only locally", func() {
		local := map[string]Record{"k1": hashOnly(NewRecord(1, "a", []byte("x")))}
		peer := map[string]Record{}

		diff := computeSyncDiff(local, peer)

		Expect(diff.GiveToPeer).To(ConsistOf("k1"))
		Expect(diff.NeedFromPeer).To(BeEmpty())
	})

	It("skips a key where both sides agree", func() {
		record := hashOnly(NewRecord(1, "a", []byte("x")))
		local := map[string]Record{"k1": record}
		peer := map[string]Record{"k1": record}

		diff := computeSyncDiff(local, peer)

		Expect(diff.GiveToPeer).To(BeEmpty())
		Expect(diff.NeedFromPeer).To(BeEmpty())
	})

	It("gives when the local record dominates", func() {
		local := map[string]Record{"k1": hashOnly(NewRecord(5, "a", []byte("x")))}
		peer := map[string]Record{"k1": hashOnly(NewRecord(3, "a", []byte("x")))}

		diff := computeSyncDiff(local, peer)

		Expect(diff.GiveToPeer).To(ConsistOf("k1"))
		Expect(diff.NeedFromPeer).To(BeEmpty())
	})

	It("needs when the peer record dominates", func() {
		local := map[string]Record{"k1": hashOnly(NewRecord(3, "a", []byte("x")))}
		peer := map[string]Record{"k1": hashOnly(NewRecord(5, "a", []byte("x")))}

		diff := computeSyncDiff(local, peer)

		Expect(diff.NeedFromPeer).To(ConsistOf("k1"))
		Expect(diff.GiveToPeer).To(BeEmpty())
	})

	It("exchanges both ways on an ambiguous (version, originator) tie with differing value hash", func() {
		local := map[string]Record{"k1": hashOnly(NewRecord(5, "a", []byte("x")))}
		peer := map[string]Record{"k1": hashOnly(NewRecord(5, "a", []byte("y")))}

		diff := computeSyncDiff(local, peer)

		Expect(diff.GiveToPeer).To(ConsistOf("k1"))
		Expect(diff.NeedFromPeer).To(ConsistOf("k1"))
	})
})

type stubCapability struct {
	hashes         map[string]Record
	syncResult     map[string]Record
	dumpHashesErr  error
	syncKeyValsErr error
	setKeyValsErr  error
	setKeyValsSeen map[string]Record
}

func (stub *stubCapability) DumpHashes(area string, prefix string) (map[string]Record, error) {
	return stub.hashes, stub.dumpHashesErr
}

func (stub *stubCapability) SyncKeyVals(area string, selfHashes map[string]Record) (map[string]Record, error) {
	return stub.syncResult, stub.syncKeyValsErr
}

func (stub *stubCapability) SetKeyVals(area string, keyVals map[string]Record, senderID string) error {
	stub.setKeyValsSeen = keyVals
	return stub.setKeyValsErr
}

var _ = Describe("runFullSync", func() {
	It("merges what the peer sends and reports success", func() {
		db := NewAreaDb()
		db.Set("local-only", NewRecord(1, "self", []byte("v")))

		stub := &stubCapability{
			hashes:     map[string]Record{},
			syncResult: map[string]Record{"peer-only": NewRecord(1, "peer", []byte("w"))},
		}

		outcome := runFullSync(db, "area1", "self", stub, "")

		Expect(outcome.success).To(BeTrue())
		Expect(outcome.accepted).To(HaveKey("peer-only"))

		_, ok := db.Get("peer-only")
		Expect(ok).To(BeTrue())
	})

	It("pushes locally-dominant keys to the peer", func() {
		db := NewAreaDb()
		db.Set("mine", NewRecord(5, "self", []byte("v")))

		stub := &stubCapability{
			hashes:     map[string]Record{"mine": hashOnly(NewRecord(3, "self", []byte("old")))},
			syncResult: map[string]Record{},
		}

		runFullSync(db, "area1", "self", stub, "")

		Expect(stub.setKeyValsSeen).To(HaveKey("mine"))
	})

	It("reports failure without merging anything when DumpHashes errors", func() {
		db := NewAreaDb()

		stub := &stubCapability{dumpHashesErr: EInternal}

		outcome := runFullSync(db, "area1", "self", stub, "")

		Expect(outcome.success).To(BeFalse())
		Expect(db.Size()).To(Equal(0))
	})

	It("reports failure when SyncKeyVals errors, after DumpHashes already succeeded", func() {
		db := NewAreaDb()

		stub := &stubCapability{hashes: map[string]Record{}, syncKeyValsErr: EInternal}

		outcome := runFullSync(db, "area1", "self", stub, "")

		Expect(outcome.success).To(BeFalse())
	})
})
