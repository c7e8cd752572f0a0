package span

import (
	"iter"
)

// InstrumentSeq wraps a sequence so that every pass over it runs inside
// its own span. The span is active while seq computes values and inactive
// while the consumer handles them. A nil sequence is returned as is.
func InstrumentSeq[V any](site *Callsite, fields []Field, seq iter.Seq[V]) iter.Seq[V] {
	if seq == nil {
		return nil
	}

	return func(yield func(V) bool) {
		r := NewResumable(site, fields)
		defer r.Complete()

		r.Resume()
		seq(func(v V) bool {
			r.Suspend()
			ok := yield(v)
			r.Resume()
			return ok
		})
	}
}

// InstrumentSeq2 is InstrumentSeq for iter.Seq2.
func InstrumentSeq2[K, V any](site *Callsite, fields []Field, seq iter.Seq2[K, V]) iter.Seq2[K, V] {
	if seq == nil {
		return nil
	}

	return func(yield func(K, V) bool) {
		r := NewResumable(site, fields)
		defer r.Complete()

		r.Resume()
		seq(func(k K, v V) bool {
			r.Suspend()
			ok := yield(k, v)
			r.Resume()
			return ok
		})
	}
}

// InstrumentSeq2Err is InstrumentSeq2 for sequences yielding errors. The first
// non-nil error of a pass is recorded into the error field.
func InstrumentSeq2Err[V any](site *Callsite, fields []Field, seq iter.Seq2[V, error]) iter.Seq2[V, error] {
	if seq == nil {
		return nil
	}

	return func(yield func(V, error) bool) {
		r := NewResumable(site, fields)
		defer r.Complete()

		var failed bool
		r.Resume()
		seq(func(v V, err error) bool {
			if err != nil && !failed {
				failed = true
				r.Span().RecordError(err)
			}

			r.Suspend()
			ok := yield(v, err)
			r.Resume()
			return ok
		})
	}
}
