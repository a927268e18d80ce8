package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"limitScope/internal/model"
)

//go:embed schema.sql
var schema string

// Store persists order book snapshots, engine events and replay progress.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SaveSnapshot replaces the snapshot stored under name in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, name string, snap model.Snapshot) error {
	if name == "" {
		return fmt.Errorf("snapshot name required")
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, table := range []string{"snapshots", "pool_ticks", "order_buckets", "claims", "claim_rounds", "claim_balances"} {
			if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE snapshot=$1`, name); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		batch := &pgx.Batch{}
		batch.Queue(`
			INSERT INTO snapshots (snapshot, last_block, updated_at) VALUES ($1, $2, now())
		`, name, int64(snap.Block))
		for _, p := range snap.Pools {
			batch.Queue(`
				INSERT INTO pool_ticks (snapshot, pool_id, currency0, currency1, fee, tick_spacing, hooks, last_tick, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			`,
				name,
				p.Key.ID().Hex(),
				p.Key.Currency0.Hex(),
				p.Key.Currency1.Hex(),
				int32(p.Key.Fee),
				p.Key.TickSpacing,
				p.Key.Hooks.Hex(),
				p.LastTick,
			)
		}
		for _, b := range snap.Buckets {
			batch.Queue(`
				INSERT INTO order_buckets (snapshot, pool_id, tick, zero_for_one, amount)
				VALUES ($1, $2, $3, $4, $5::numeric)
			`, name, b.PoolID, b.Tick, b.ZeroForOne, b.Amount)
		}
		for _, c := range snap.Claims {
			batch.Queue(`
				INSERT INTO claims (
					snapshot, claim_id, currency0, currency1, fee, tick_spacing, hooks,
					tick, zero_for_one, open_round
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`,
				name,
				c.ID,
				c.Pool.Currency0.Hex(),
				c.Pool.Currency1.Hex(),
				int32(c.Pool.Fee),
				c.Pool.TickSpacing,
				c.Pool.Hooks.Hex(),
				c.Tick,
				c.ZeroForOne,
				int64(c.OpenRound),
			)
			for _, rd := range c.Rounds {
				batch.Queue(`
					INSERT INTO claim_rounds (snapshot, claim_id, round, executed, total_supply, claimable)
					VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric)
				`, name, c.ID, int64(rd.Round), rd.Executed, rd.TotalSupply, rd.Claimable)
			}
		}
		for _, bal := range snap.Balances {
			batch.Queue(`
				INSERT INTO claim_balances (snapshot, claim_id, round, holder, amount)
				VALUES ($1, $2, $3, $4, $5::numeric)
			`, name, bal.ClaimID, int64(bal.Round), bal.Holder, bal.Amount)
		}

		queued := batch.Len()
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < queued; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert snapshot row %d: %w", i, err)
			}
		}
		return br.Close()
	})
}

// LoadSnapshot reads the snapshot stored under name.
func (s *Store) LoadSnapshot(ctx context.Context, name string) (model.Snapshot, bool, error) {
	var snap model.Snapshot
	if name == "" {
		return snap, false, fmt.Errorf("snapshot name required")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT currency0, currency1, fee, tick_spacing, hooks, last_tick
		FROM pool_ticks WHERE snapshot=$1 ORDER BY pool_id
	`, name)
	if err != nil {
		return snap, false, fmt.Errorf("query pools: %w", err)
	}
	snap.Pools, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.PoolState, error) {
		var (
			c0, c1, hooks string
			fee, spacing  int32
			p             model.PoolState
		)
		if err := row.Scan(&c0, &c1, &fee, &spacing, &hooks, &p.LastTick); err != nil {
			return p, err
		}
		p.Key = poolKey(c0, c1, fee, spacing, hooks)
		return p, nil
	})
	if err != nil {
		return snap, false, fmt.Errorf("scan pools: %w", err)
	}
	if len(snap.Pools) == 0 {
		return model.Snapshot{}, false, nil
	}

	var block int64
	err = s.pool.QueryRow(ctx, `SELECT last_block FROM snapshots WHERE snapshot=$1`, name).Scan(&block)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return snap, false, fmt.Errorf("query snapshot block: %w", err)
	}
	snap.Block = uint64(block)

	rows, err = s.pool.Query(ctx, `
		SELECT pool_id, tick, zero_for_one, amount::text
		FROM order_buckets WHERE snapshot=$1 ORDER BY pool_id, tick, zero_for_one
	`, name)
	if err != nil {
		return snap, false, fmt.Errorf("query buckets: %w", err)
	}
	snap.Buckets, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.BucketState, error) {
		var b model.BucketState
		err := row.Scan(&b.PoolID, &b.Tick, &b.ZeroForOne, &b.Amount)
		return b, err
	})
	if err != nil {
		return snap, false, fmt.Errorf("scan buckets: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT claim_id, currency0, currency1, fee, tick_spacing, hooks,
			tick, zero_for_one, open_round
		FROM claims WHERE snapshot=$1 ORDER BY claim_id
	`, name)
	if err != nil {
		return snap, false, fmt.Errorf("query claims: %w", err)
	}
	snap.Claims, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ClaimState, error) {
		var (
			c0, c1, hooks string
			fee, spacing  int32
			open          int64
			c             model.ClaimState
		)
		if err := row.Scan(&c.ID, &c0, &c1, &fee, &spacing, &hooks, &c.Tick, &c.ZeroForOne, &open); err != nil {
			return c, err
		}
		c.Pool = poolKey(c0, c1, fee, spacing, hooks)
		c.OpenRound = uint64(open)
		return c, nil
	})
	if err != nil {
		return snap, false, fmt.Errorf("scan claims: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT claim_id, round, executed, total_supply::text, claimable::text
		FROM claim_rounds WHERE snapshot=$1 ORDER BY claim_id, round
	`, name)
	if err != nil {
		return snap, false, fmt.Errorf("query rounds: %w", err)
	}
	type claimRound struct {
		claimID string
		round   model.RoundState
	}
	rounds, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (claimRound, error) {
		var (
			n  int64
			cr claimRound
		)
		if err := row.Scan(&cr.claimID, &n, &cr.round.Executed, &cr.round.TotalSupply, &cr.round.Claimable); err != nil {
			return cr, err
		}
		cr.round.Round = uint64(n)
		return cr, nil
	})
	if err != nil {
		return snap, false, fmt.Errorf("scan rounds: %w", err)
	}
	byClaim := make(map[string]int, len(snap.Claims))
	for i, c := range snap.Claims {
		byClaim[c.ID] = i
	}
	for _, cr := range rounds {
		if i, ok := byClaim[cr.claimID]; ok {
			snap.Claims[i].Rounds = append(snap.Claims[i].Rounds, cr.round)
		}
	}

	rows, err = s.pool.Query(ctx, `
		SELECT claim_id, round, holder, amount::text
		FROM claim_balances WHERE snapshot=$1 ORDER BY claim_id, round, holder
	`, name)
	if err != nil {
		return snap, false, fmt.Errorf("query balances: %w", err)
	}
	snap.Balances, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.BalanceState, error) {
		var (
			round int64
			b     model.BalanceState
		)
		if err := row.Scan(&b.ClaimID, &round, &b.Holder, &b.Amount); err != nil {
			return b, err
		}
		b.Round = uint64(round)
		return b, nil
	})
	if err != nil {
		return snap, false, fmt.Errorf("scan balances: %w", err)
	}
	return snap, true, nil
}

func poolKey(c0, c1 string, fee, spacing int32, hooks string) model.PoolKey {
	return model.PoolKey{
		Currency0:   common.HexToAddress(c0),
		Currency1:   common.HexToAddress(c1),
		Fee:         uint32(fee),
		TickSpacing: spacing,
		Hooks:       common.HexToAddress(hooks),
	}
}

// InsertEvents appends engine events.
func (s *Store) InsertEvents(ctx context.Context, events []model.EngineEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			INSERT INTO engine_events (kind, pool_id, claim_id, account, tick, zero_for_one, amount_in, amount_out, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::numeric, NULLIF($8, '')::numeric, now())
		`, ev.Kind, ev.PoolID, ev.ClaimID, ev.Account, ev.Tick, ev.ZeroForOne, ev.AmountIn, ev.AmountOut)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// EventSink adapts the store to the engine's event sink using ctx for every write.
func (s *Store) EventSink(ctx context.Context) *EventWriter {
	return &EventWriter{ctx: ctx, store: s}
}

// EventWriter writes event batches to Postgres.
type EventWriter struct {
	ctx   context.Context
	store *Store
}

func (w *EventWriter) PutEvents(events []model.EngineEvent) error {
	return w.store.InsertEvents(w.ctx, events)
}

// LoadState returns last_processed_block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts last_processed_block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}
