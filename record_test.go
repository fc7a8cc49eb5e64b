package openr

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Record", func() {
	Describe("Dominates", func() {
		It("prefers the larger version", func() {
			older := NewRecord(1, "a", []byte("x"))
			newer := NewRecord(2, "a", []byte("y"))

			Expect(newer.Dominates(older)).To(BeTrue())
			Expect(older.Dominates(newer)).To(BeFalse())
		})

		It("breaks a version tie on originator id", func() {
			a := NewRecord(5, "a", []byte("x"))
			b := NewRecord(5, "b", []byte("x"))

			Expect(b.Dominates(a)).To(BeTrue())
			Expect(a.Dominates(b)).To(BeFalse())
		})

		It("breaks a (version, originator) tie on value bytes", func() {
			low := NewRecord(5, "a", []byte("aaa"))
			high := NewRecord(5, "a", []byte("aab"))

			Expect(high.Dominates(low)).To(BeTrue())
			Expect(low.Dominates(high)).To(BeFalse())
		})

		It("treats a tombstone as smaller than any present value", func() {
			tombstone := Tombstone(5, "a")
			present := NewRecord(5, "a", []byte(""))

			Expect(present.Dominates(tombstone)).To(BeTrue())
			Expect(tombstone.Dominates(present)).To(BeFalse())
		})

		It("is totally defined: exactly one of dominates/dominated/equal holds", func() {
			pairs := [][2]Record{
				{NewRecord(1, "a", []byte("x")), NewRecord(2, "a", []byte("x"))},
				{NewRecord(3, "a", []byte("x")), NewRecord(3, "b", []byte("x"))},
				{NewRecord(3, "a", []byte("x")), NewRecord(3, "a", []byte("y"))},
				{NewRecord(3, "a", []byte("x")), NewRecord(3, "a", []byte("x"))},
			}

			for _, pair := range pairs {
				r1, r2 := pair[0], pair[1]

				outcomes := 0

				if r1.Dominates(r2) {
					outcomes++
				}

				if r2.Dominates(r1) {
					outcomes++
				}

				if r1.Equal(r2) {
					outcomes++
				}

				Expect(outcomes).To(Equal(1))
			}
		})

		It("never dominates an exactly equal record", func() {
			a := NewRecord(5, "a", []byte("x"))
			b := NewRecord(5, "a", []byte("x"))

			Expect(a.Dominates(b)).To(BeFalse())
			Expect(b.Dominates(a)).To(BeFalse())
			Expect(a.Equal(b)).To(BeTrue())
		})
	})

	Describe("EffectiveHash", func() {
		It("matches Hash() when no fingerprint is set", func() {
			record := NewRecord(1, "a", []byte("x"))

			Expect(record.EffectiveHash()).To(Equal(record.Hash()))
		})

		It("prefers a set Fingerprint over recomputing from Value", func() {
			full := NewRecord(1, "a", []byte("x"))
			stripped := full
			stripped.Fingerprint = full.Hash()
			stripped.Value = nil

			Expect(stripped.EffectiveHash()).To(Equal(full.Hash()))
			Expect(stripped.EffectiveHash()).NotTo(Equal(stripped.Hash()))
		})
	})
})
