package openr_test

import (
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	openr "github.com/robertprast/openr"
	"github.com/robertprast/openr/client"
)

// newLocalCluster builds a map of named Stores wired to reach each
// other via client.NewLocalDialer, matching the in-process topology the
// scenario tests in spec.md §8 assume.
func newLocalCluster(names ...string) map[string]*openr.Store {
	peers := make(map[string]*openr.Store, len(names))

	dialer := openr.Dialer(client.NewLocalDialer(peers))

	for _, name := range names {
		peers[name] = openr.NewStore(name, dialer, nil)
		peers[name].Run()
	}

	return peers
}

func waitForPeerState(store *openr.Store, area, peerName string, want openr.PeerState, timeout time.Duration) {
	Eventually(func() openr.PeerState {
		state, _ := store.GetPeerState(area, peerName)
		return state
	}, timeout, 5*time.Millisecond).Should(Equal(want))
}

var _ = Describe("Store scenarios", func() {
	AfterEach(func() {
		// best-effort cleanup; individual specs own their own stores
	})

	It("S1: initial full sync between 2 nodes converges both ways", func() {
		cluster := newLocalCluster("A", "B")
		defer cluster["A"].Stop()
		defer cluster["B"].Stop()

		cluster["A"].SetKey("area1", "key1", openr.NewRecord(1, "A", []byte("value1")))
		cluster["B"].SetKey("area1", "key2", openr.NewRecord(2, "B", []byte("value2")))

		cluster["A"].AddPeer("area1", "B", openr.PeerSpec{Host: "B"})
		cluster["B"].AddPeer("area1", "A", openr.PeerSpec{Host: "A"})

		waitForPeerState(cluster["A"], "area1", "B", openr.PeerInitialized, time.Second)
		waitForPeerState(cluster["B"], "area1", "A", openr.PeerInitialized, time.Second)

		dumpA := cluster["A"].DumpAll("area1", openr.DumpFilter{})
		dumpB := cluster["B"].DumpAll("area1", openr.DumpFilter{})

		Expect(dumpA).To(HaveLen(2))
		Expect(dumpB).To(HaveLen(2))
		Expect(dumpA["key1"].Value).To(Equal([]byte("value1")))
		Expect(dumpA["key2"].Value).To(Equal([]byte("value2")))
	})

	It("S2: an unreachable peer never reaches INITIALIZED", func() {
		storeA := openr.NewStore("A", openr.Dialer(func(spec openr.PeerSpec) (openr.PeerCapability, error) {
			return nil, openr.EClosed
		}), nil)
		storeA.Run()
		defer storeA.Stop()

		storeA.SetKey("area1", "key1", openr.NewRecord(1, "A", []byte("value1")))
		storeA.AddPeer("area1", "B", openr.PeerSpec{Host: "unreachable", Port: 1})

		Consistently(func() openr.PeerState {
			state, _ := storeA.GetPeerState("area1", "B")
			return state
		}, 200*time.Millisecond, 10*time.Millisecond).Should(Equal(openr.PeerIdle))

		dump := storeA.DumpAll("area1", openr.DumpFilter{})
		Expect(dump).To(HaveLen(1))
	})

	It("S3: a one-way add_peer still converges both ways and reports sync success", func() {
		peers := map[string]*openr.Store{}
		dialer := openr.Dialer(client.NewLocalDialer(peers))

		counters := &openr.MemoryCounters{}

		storeA := openr.NewStore("A", dialer, counters)
		storeB := openr.NewStore("B", dialer, nil)
		peers["A"] = storeA
		peers["B"] = storeB

		storeA.Run()
		storeB.Run()
		defer storeA.Stop()
		defer storeB.Stop()

		storeA.SetKey("area1", "ka", openr.NewRecord(1, "A", []byte("va")))
		storeB.SetKey("area1", "kb", openr.NewRecord(1, "B", []byte("vb")))

		// Only A adds B as a peer; B never adds A. A's full sync must
		// still push its dominant records into B and report success.
		storeA.AddPeer("area1", "B", openr.PeerSpec{Host: "B"})

		waitForPeerState(storeA, "area1", "B", openr.PeerInitialized, time.Second)

		Eventually(func() int {
			return len(storeB.DumpAll("area1", openr.DumpFilter{}))
		}, time.Second, 5*time.Millisecond).Should(Equal(2))

		dumpA := storeA.DumpAll("area1", openr.DumpFilter{})
		Expect(dumpA).To(HaveLen(2))

		Expect(atomic.LoadUint64(&counters.FullSyncSuccess)).To(Equal(uint64(1)))
		Expect(atomic.LoadUint64(&counters.FullSyncFailure)).To(Equal(uint64(0)))
		Expect(atomic.LoadUint64(&counters.FinalizedSyncSuccess)).To(Equal(uint64(1)))

		// B never registered A as a peer, so B's own peer table for A
		// stays absent -- the one-way-ness is real, not a test artifact.
		_, ok := storeB.GetPeerState("area1", "A")
		Expect(ok).To(BeFalse())
	})

	It("S4: flooding after sync propagates a new key from B to A", func() {
		cluster := newLocalCluster("A", "B")
		defer cluster["A"].Stop()
		defer cluster["B"].Stop()

		cluster["A"].AddPeer("area1", "B", openr.PeerSpec{Host: "B"})
		cluster["B"].AddPeer("area1", "A", openr.PeerSpec{Host: "A"})

		waitForPeerState(cluster["A"], "area1", "B", openr.PeerInitialized, time.Second)
		waitForPeerState(cluster["B"], "area1", "A", openr.PeerInitialized, time.Second)

		cluster["B"].SetKey("area1", "key3", openr.NewRecord(3, "B", []byte("value3")))

		Eventually(func() int {
			return len(cluster["A"].DumpAll("area1", openr.DumpFilter{}))
		}, time.Second, 5*time.Millisecond).Should(Equal(1))

		dumpA := cluster["A"].DumpAll("area1", openr.DumpFilter{})
		Expect(dumpA["key3"].Value).To(Equal([]byte("value3")))
	})

	It("S5: ring flooding across 3 nodes reaches full convergence", func() {
		cluster := newLocalCluster("A", "B", "C")
		defer cluster["A"].Stop()
		defer cluster["B"].Stop()
		defer cluster["C"].Stop()

		// "A->B->C->A peering" is a ring of pairwise peerings: each edge
		// is configured from both ends, since invariant 2 requires a
		// receiver to know the sender as a configured peer before it
		// will accept a flood from them.
		cluster["A"].AddPeer("ring", "B", openr.PeerSpec{Host: "B"})
		cluster["B"].AddPeer("ring", "A", openr.PeerSpec{Host: "A"})
		cluster["B"].AddPeer("ring", "C", openr.PeerSpec{Host: "C"})
		cluster["C"].AddPeer("ring", "B", openr.PeerSpec{Host: "B"})
		cluster["C"].AddPeer("ring", "A", openr.PeerSpec{Host: "A"})
		cluster["A"].AddPeer("ring", "C", openr.PeerSpec{Host: "C"})

		waitForPeerState(cluster["A"], "ring", "B", openr.PeerInitialized, time.Second)
		waitForPeerState(cluster["B"], "ring", "A", openr.PeerInitialized, time.Second)
		waitForPeerState(cluster["B"], "ring", "C", openr.PeerInitialized, time.Second)
		waitForPeerState(cluster["C"], "ring", "B", openr.PeerInitialized, time.Second)
		waitForPeerState(cluster["C"], "ring", "A", openr.PeerInitialized, time.Second)
		waitForPeerState(cluster["A"], "ring", "C", openr.PeerInitialized, time.Second)

		cluster["A"].SetKey("ring", "ka", openr.NewRecord(1, "A", []byte("va")))
		cluster["B"].SetKey("ring", "kb", openr.NewRecord(1, "B", []byte("vb")))
		cluster["C"].SetKey("ring", "kc", openr.NewRecord(1, "C", []byte("vc")))

		Eventually(func() int {
			return len(cluster["A"].DumpAll("ring", openr.DumpFilter{}))
		}, 2*time.Second, 10*time.Millisecond).Should(Equal(3))

		Eventually(func() int {
			return len(cluster["B"].DumpAll("ring", openr.DumpFilter{}))
		}, 2*time.Second, 10*time.Millisecond).Should(Equal(3))

		Eventually(func() int {
			return len(cluster["C"].DumpAll("ring", openr.DumpFilter{}))
		}, 2*time.Second, 10*time.Millisecond).Should(Equal(3))
	})

	It("emits KVSTORE_SYNCED for a Store with zero peers", func() {
		store := openr.NewStore("solo", openr.Dialer(func(spec openr.PeerSpec) (openr.PeerCapability, error) {
			return nil, openr.EClosed
		}), nil)
		store.Run()
		defer store.Stop()

		Expect(store.RecvKVStoreSyncedSignal()).NotTo(HaveOccurred())
	})

	It("rejects a peer publication from a name not configured in that area", func() {
		store := openr.NewStore("A", openr.Dialer(func(spec openr.PeerSpec) (openr.PeerCapability, error) {
			return nil, openr.EClosed
		}), nil)
		store.Run()
		defer store.Stop()

		ok := store.RecvPeerPublication("area1", "unknown-peer", openr.Publication{
			Area:    "area1",
			KeyVals: map[string]openr.Record{"k": openr.NewRecord(1, "unknown-peer", []byte("v"))},
		})

		Expect(ok).To(BeFalse())
		Expect(store.DumpAll("area1", openr.DumpFilter{})).To(BeEmpty())
	})
})
