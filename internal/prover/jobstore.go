// Package prover implements the standalone prover service (C10): a job
// store tracking pending and completed proving jobs, and a worker that
// drains pending jobs through a proving backend and posts signed results
// back to the originating sequencer.
package prover

import (
	"encoding/json"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/0xkanth/mojave-sequencer/internal/chainstore"
	"github.com/0xkanth/mojave-sequencer/internal/mjerr"
	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// jobEntry is the bbolt-persisted durability record: a job that hasn't
// completed carries only Record; one that has also carries Proof.
type jobEntry struct {
	Record rolluptypes.JobRecord    `json:"record"`
	Proof  *rolluptypes.ProofResponse `json:"proof,omitempty"`
}

// JobStore holds pending job ids and completed proof responses behind
// two mutexes locked pending-then-proofs, matching spec.md's fixed lock
// order to avoid deadlock.
type JobStore struct {
	db *bbolt.DB

	pendingMu sync.Mutex
	pending   map[rolluptypes.JobId]rolluptypes.JobRecord

	proofsMu sync.Mutex
	proofs   map[rolluptypes.JobId]rolluptypes.ProofResponse
}

// NewJobStore constructs an empty store, or, if db is non-nil, replays
// previously persisted jobs from its "jobs" bucket first (the teacher's
// checkpoint.go replay-on-open pattern applied to job durability, a gap
// spec.md's in-memory-only design otherwise leaves on restart).
func NewJobStore(db *bbolt.DB) (*JobStore, error) {
	s := &JobStore{
		db:      db,
		pending: make(map[rolluptypes.JobId]rolluptypes.JobRecord),
		proofs:  make(map[rolluptypes.JobId]rolluptypes.ProofResponse),
	}
	if db == nil {
		return s, nil
	}

	err := db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(chainstore.BucketJobs())
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var entry jobEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			id := rolluptypes.JobId(k)
			if entry.Proof != nil {
				s.proofs[id] = *entry.Proof
			} else {
				s.pending[id] = entry.Record
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// AlreadyRequested reports whether id is tracked in either set.
func (s *JobStore) AlreadyRequested(id rolluptypes.JobId) bool {
	s.pendingMu.Lock()
	_, inPending := s.pending[id]
	s.pendingMu.Unlock()
	if inPending {
		return true
	}

	s.proofsMu.Lock()
	defer s.proofsMu.Unlock()
	_, inProofs := s.proofs[id]
	return inProofs
}

// Insert records a newly accepted job as pending and persists it.
func (s *JobStore) Insert(record rolluptypes.JobRecord) error {
	s.pendingMu.Lock()
	s.pending[record.JobId] = record
	s.pendingMu.Unlock()

	return s.persist(record.JobId, jobEntry{Record: record})
}

// Complete moves a job from pending to proofs and persists the result.
// Both maps are held together under the fixed pending-then-proofs lock
// order so a concurrent AlreadyRequested/PendingIds call never observes
// the job missing from both sets.
func (s *JobStore) Complete(record rolluptypes.JobRecord, resp rolluptypes.ProofResponse) error {
	s.pendingMu.Lock()
	s.proofsMu.Lock()
	delete(s.pending, record.JobId)
	s.proofs[record.JobId] = resp
	s.proofsMu.Unlock()
	s.pendingMu.Unlock()

	return s.persist(record.JobId, jobEntry{Record: record, Proof: &resp})
}

// PendingIds returns every currently pending job id.
func (s *JobStore) PendingIds() []rolluptypes.JobId {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	ids := make([]rolluptypes.JobId, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	return ids
}

// Proof returns the stored proof response for id, if any.
func (s *JobStore) Proof(id rolluptypes.JobId) (rolluptypes.ProofResponse, bool) {
	s.proofsMu.Lock()
	defer s.proofsMu.Unlock()
	resp, ok := s.proofs[id]
	return resp, ok
}

func (s *JobStore) persist(id rolluptypes.JobId, entry jobEntry) error {
	if s.db == nil {
		return nil
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return mjerr.Internal(err, "encode job entry")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(chainstore.BucketJobs())
		return b.Put([]byte(id), raw)
	})
}
