package chainstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.etcd.io/bbolt"

	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

var (
	bucketBlocks          = []byte("blocks")
	bucketForkChoice      = []byte("forkchoice")
	bucketBatches         = []byte("batches")
	bucketBatchBlockNums  = []byte("batch_block_numbers")
	bucketBlobs           = []byte("blobs")
	bucketAccountUpdates  = []byte("account_updates")
	bucketCheckpoints     = []byte("checkpoints")
	bucketJobs            = []byte("jobs")

	forkChoiceKey    = []byte("head")
	checkpointNextKey = []byte("next_expected")
)

// BoltStore implements ChainStore, RollupStore and CheckpointStore over a
// single bbolt database file, the same storage engine and bucket-per-
// concern layout the teacher uses for its checkpoint database.
type BoltStore struct {
	db *bbolt.DB
}

func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}

	buckets := [][]byte{
		bucketBlocks, bucketForkChoice, bucketBatches, bucketBatchBlockNums,
		bucketBlobs, bucketAccountUpdates, bucketCheckpoints, bucketJobs,
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

func blockKey(number uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, number)
	return key
}

func (s *BoltStore) AddBlock(ctx context.Context, block *rolluptypes.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("marshal block: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBlocks).Put(blockKey(block.Number()), data)
	})
}

func (s *BoltStore) GetBlockByNumber(ctx context.Context, number uint64) (*rolluptypes.Block, bool, error) {
	var block rolluptypes.Block
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketBlocks).Get(blockKey(number))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &block)
	})
	if err != nil || !found {
		return nil, found, err
	}
	return &block, true, nil
}

func (s *BoltStore) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var number uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketBlocks).Cursor()
		k, _ := c.Last()
		if k == nil {
			return nil
		}
		number = binary.BigEndian.Uint64(k)
		return nil
	})
	return number, err
}

type forkChoiceRecord struct {
	Number uint64      `json:"number"`
	Hash   common.Hash `json:"hash"`
}

func (s *BoltStore) UpdateEarliestBlock(ctx context.Context, number uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketForkChoice).Put([]byte("earliest"), blockKey(number))
	})
}

func (s *BoltStore) UpdateForkChoice(ctx context.Context, number uint64, hash common.Hash) error {
	data, err := json.Marshal(forkChoiceRecord{Number: number, Hash: hash})
	if err != nil {
		return fmt.Errorf("marshal fork choice: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketForkChoice).Put(forkChoiceKey, data)
	})
}

func (s *BoltStore) ForkChoiceHead(ctx context.Context) (uint64, common.Hash, error) {
	var rec forkChoiceRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketForkChoice).Get(forkChoiceKey)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &rec)
	})
	return rec.Number, rec.Hash, err
}

func (s *BoltStore) LastSealedBatch(ctx context.Context) (*rolluptypes.Batch, bool, error) {
	var batch rolluptypes.Batch
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketBatches).Cursor()
		k, v := c.Last()
		if k == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &batch)
	})
	if err != nil || !found {
		return nil, found, err
	}
	return &batch, true, nil
}

func (s *BoltStore) SealBatch(ctx context.Context, batch *rolluptypes.Batch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, batch.Number)
		return tx.Bucket(bucketBatches).Put(key, data)
	})
}

func (s *BoltStore) GetBatchBlockNumbers(ctx context.Context, batchNumber uint64) ([]uint64, error) {
	var numbers []uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, batchNumber)
		data := tx.Bucket(bucketBatchBlockNums).Get(key)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &numbers)
	})
	return numbers, err
}

func (s *BoltStore) putBatchBlockNumbers(ctx context.Context, batchNumber uint64, numbers []uint64) error {
	data, err := json.Marshal(numbers)
	if err != nil {
		return fmt.Errorf("marshal batch block numbers: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, batchNumber)
		return tx.Bucket(bucketBatchBlockNums).Put(key, data)
	})
}

// PutBatchBlockNumbers records which block numbers a sealed batch covers,
// used later by the proof coordinator to look blocks back up by batch.
func (s *BoltStore) PutBatchBlockNumbers(ctx context.Context, batchNumber uint64, numbers []uint64) error {
	return s.putBatchBlockNumbers(ctx, batchNumber, numbers)
}

func (s *BoltStore) GetAccountUpdatesByBlockNumber(ctx context.Context, blockNumber uint64) ([]rolluptypes.AccountUpdate, bool, error) {
	var updates []rolluptypes.AccountUpdate
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAccountUpdates).Get(blockKey(blockNumber))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &updates)
	})
	return updates, found, err
}

func (s *BoltStore) PutAccountUpdatesByBlockNumber(ctx context.Context, blockNumber uint64, updates []rolluptypes.AccountUpdate) error {
	data, err := json.Marshal(updates)
	if err != nil {
		return fmt.Errorf("marshal account updates: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAccountUpdates).Put(blockKey(blockNumber), data)
	})
}

func (s *BoltStore) GetBlobsByBatch(ctx context.Context, batchNumber uint64) (*rolluptypes.BlobsBundle, bool, error) {
	var bundle rolluptypes.BlobsBundle
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, batchNumber)
		data := tx.Bucket(bucketBlobs).Get(key)
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &bundle)
	})
	if err != nil || !found {
		return nil, found, err
	}
	return &bundle, true, nil
}

func (s *BoltStore) PutBlobsByBatch(ctx context.Context, batchNumber uint64, bundle *rolluptypes.BlobsBundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("marshal blobs bundle: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, batchNumber)
		return tx.Bucket(bucketBlobs).Put(key, data)
	})
}

func (s *BoltStore) GetNextExpected(ctx context.Context) (uint64, bool, error) {
	var next uint64
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketCheckpoints).Get(checkpointNextKey)
		if data == nil {
			return nil
		}
		found = true
		next = binary.BigEndian.Uint64(data)
		return nil
	})
	return next, found, err
}

func (s *BoltStore) SetNextExpected(ctx context.Context, blockNumber uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCheckpoints).Put(checkpointNextKey, blockKey(blockNumber))
	})
}

// DB exposes the underlying bbolt handle so the prover package can
// manage its own durability in the jobs bucket without this package
// needing to know the shape of a JobRecord/ProofResponse.
func (s *BoltStore) DB() *bbolt.DB { return s.db }

var _ ChainStore = (*BoltStore)(nil)
var _ RollupStore = (*BoltStore)(nil)
var _ CheckpointStore = (*BoltStore)(nil)

// BucketJobs is the bucket name the prover's JobStore durability
// addendum writes into (see internal/prover).
func BucketJobs() []byte { return bucketJobs }
