package chainstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// PostgresStore is a relational alternative to BoltStore for full-node
// scale deployments, wired against the teacher's own pgx dependency. It
// implements the same ChainStore/RollupStore contracts so a sequencer
// can be pointed at either backend via configuration.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS blocks (
	number BIGINT PRIMARY KEY,
	data JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS fork_choice (
	id INT PRIMARY KEY DEFAULT 1,
	number BIGINT NOT NULL,
	hash TEXT NOT NULL,
	earliest BIGINT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS batches (
	number BIGINT PRIMARY KEY,
	data JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS batch_block_numbers (
	batch_number BIGINT PRIMARY KEY,
	numbers JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS blobs_bundles (
	batch_number BIGINT PRIMARY KEY,
	data JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS account_updates (
	block_number BIGINT PRIMARY KEY,
	data JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS checkpoints (
	id INT PRIMARY KEY DEFAULT 1,
	next_expected BIGINT NOT NULL
);
`

// OpenPostgresStore connects to dsn and ensures the schema exists.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

func (s *PostgresStore) AddBlock(ctx context.Context, block *rolluptypes.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("marshal block: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO blocks (number, data) VALUES ($1, $2)
		 ON CONFLICT (number) DO UPDATE SET data = EXCLUDED.data`,
		block.Number(), data)
	return err
}

func (s *PostgresStore) GetBlockByNumber(ctx context.Context, number uint64) (*rolluptypes.Block, bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM blocks WHERE number = $1`, number).Scan(&data)
	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var block rolluptypes.Block
	if err := json.Unmarshal(data, &block); err != nil {
		return nil, false, fmt.Errorf("unmarshal block: %w", err)
	}
	return &block, true, nil
}

func (s *PostgresStore) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var number uint64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(number), 0) FROM blocks`).Scan(&number)
	return number, err
}

func (s *PostgresStore) UpdateEarliestBlock(ctx context.Context, number uint64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO fork_choice (id, number, hash, earliest) VALUES (1, 0, '', $1)
		 ON CONFLICT (id) DO UPDATE SET earliest = EXCLUDED.earliest`,
		number)
	return err
}

func (s *PostgresStore) UpdateForkChoice(ctx context.Context, number uint64, hash common.Hash) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO fork_choice (id, number, hash, earliest) VALUES (1, $1, $2, 0)
		 ON CONFLICT (id) DO UPDATE SET number = EXCLUDED.number, hash = EXCLUDED.hash`,
		number, hash.Hex())
	return err
}

func (s *PostgresStore) ForkChoiceHead(ctx context.Context) (uint64, common.Hash, error) {
	var number uint64
	var hashStr string
	err := s.pool.QueryRow(ctx, `SELECT number, hash FROM fork_choice WHERE id = 1`).Scan(&number, &hashStr)
	if err != nil {
		if isNoRows(err) {
			return 0, common.Hash{}, nil
		}
		return 0, common.Hash{}, err
	}
	return number, common.HexToHash(hashStr), nil
}

func (s *PostgresStore) LastSealedBatch(ctx context.Context) (*rolluptypes.Batch, bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM batches ORDER BY number DESC LIMIT 1`).Scan(&data)
	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var batch rolluptypes.Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, false, fmt.Errorf("unmarshal batch: %w", err)
	}
	return &batch, true, nil
}

func (s *PostgresStore) SealBatch(ctx context.Context, batch *rolluptypes.Batch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO batches (number, data) VALUES ($1, $2)
		 ON CONFLICT (number) DO UPDATE SET data = EXCLUDED.data`,
		batch.Number, data)
	return err
}

func (s *PostgresStore) GetBatchBlockNumbers(ctx context.Context, batchNumber uint64) ([]uint64, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT numbers FROM batch_block_numbers WHERE batch_number = $1`, batchNumber).Scan(&data)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	var numbers []uint64
	if err := json.Unmarshal(data, &numbers); err != nil {
		return nil, fmt.Errorf("unmarshal batch block numbers: %w", err)
	}
	return numbers, nil
}

func (s *PostgresStore) PutBatchBlockNumbers(ctx context.Context, batchNumber uint64, numbers []uint64) error {
	data, err := json.Marshal(numbers)
	if err != nil {
		return fmt.Errorf("marshal batch block numbers: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO batch_block_numbers (batch_number, numbers) VALUES ($1, $2)
		 ON CONFLICT (batch_number) DO UPDATE SET numbers = EXCLUDED.numbers`,
		batchNumber, data)
	return err
}

func (s *PostgresStore) GetAccountUpdatesByBlockNumber(ctx context.Context, blockNumber uint64) ([]rolluptypes.AccountUpdate, bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM account_updates WHERE block_number = $1`, blockNumber).Scan(&data)
	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var updates []rolluptypes.AccountUpdate
	if err := json.Unmarshal(data, &updates); err != nil {
		return nil, false, fmt.Errorf("unmarshal account updates: %w", err)
	}
	return updates, true, nil
}

func (s *PostgresStore) PutAccountUpdatesByBlockNumber(ctx context.Context, blockNumber uint64, updates []rolluptypes.AccountUpdate) error {
	data, err := json.Marshal(updates)
	if err != nil {
		return fmt.Errorf("marshal account updates: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO account_updates (block_number, data) VALUES ($1, $2)
		 ON CONFLICT (block_number) DO UPDATE SET data = EXCLUDED.data`,
		blockNumber, data)
	return err
}

func (s *PostgresStore) GetBlobsByBatch(ctx context.Context, batchNumber uint64) (*rolluptypes.BlobsBundle, bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM blobs_bundles WHERE batch_number = $1`, batchNumber).Scan(&data)
	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var bundle rolluptypes.BlobsBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, false, fmt.Errorf("unmarshal blobs bundle: %w", err)
	}
	return &bundle, true, nil
}

func (s *PostgresStore) PutBlobsByBatch(ctx context.Context, batchNumber uint64, bundle *rolluptypes.BlobsBundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("marshal blobs bundle: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO blobs_bundles (batch_number, data) VALUES ($1, $2)
		 ON CONFLICT (batch_number) DO UPDATE SET data = EXCLUDED.data`,
		batchNumber, data)
	return err
}

func (s *PostgresStore) GetNextExpected(ctx context.Context) (uint64, bool, error) {
	var next uint64
	err := s.pool.QueryRow(ctx, `SELECT next_expected FROM checkpoints WHERE id = 1`).Scan(&next)
	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return next, true, nil
}

func (s *PostgresStore) SetNextExpected(ctx context.Context, blockNumber uint64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO checkpoints (id, next_expected) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET next_expected = EXCLUDED.next_expected`,
		blockNumber)
	return err
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

var _ ChainStore = (*PostgresStore)(nil)
var _ RollupStore = (*PostgresStore)(nil)
var _ CheckpointStore = (*PostgresStore)(nil)
