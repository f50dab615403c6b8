// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sigstore persists MinHash signatures in SQLite so they can be
// reused by the deduplication and decontamination passes.
//
// A store is bound to one (num_perm, seed, shingle_size) configuration,
// recorded in its meta table on first open. Opening it with any other
// configuration fails with ErrConfigMismatch.
package sigstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/corpus-clean/pkg/types"
)

// ErrConfigMismatch is returned when a store was written with different
// signature parameters.
var ErrConfigMismatch = errors.New("sigstore: signature configuration mismatch")

// Entry is one stored signature with the digest of the id and text it was
// built from.
type Entry struct {
	Signature types.Signature
	Digest    string
}

// Store manages the signature database.
type Store struct {
	db        *sql.DB
	cfg       types.MinHashConfig
	tokenizer string
}

// Open opens or creates the store at path. tokenizer identifies the
// segmentation (for example a dictionary fingerprint); a store is only
// reused with the signature parameters and tokenizer it was created with.
func Open(path string, cfg types.MinHashConfig, tokenizer string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Store{db: db, cfg: cfg, tokenizer: tokenizer}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if err := s.checkMeta(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS signatures (
			dataset TEXT NOT NULL,
			position INTEGER NOT NULL,
			id TEXT NOT NULL,
			digest TEXT NOT NULL,
			hashvalues BLOB NOT NULL,
			PRIMARY KEY (dataset, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signatures_id ON signatures(dataset, id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (s *Store) checkMeta() error {
	want := map[string]string{
		"num_perm":     strconv.Itoa(s.cfg.NumPerm),
		"seed":         strconv.FormatInt(s.cfg.Seed, 10),
		"shingle_size": strconv.Itoa(s.cfg.ShingleSize),
		"tokenizer":    s.tokenizer,
	}
	for key, value := range want {
		var stored string
		err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&stored)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := s.db.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, key, value); err != nil {
				return fmt.Errorf("writing meta %s: %w", key, err)
			}
		case err != nil:
			return fmt.Errorf("reading meta %s: %w", key, err)
		case stored != value:
			return fmt.Errorf("%w: %s is %s in store, %s configured", ErrConfigMismatch, key, stored, value)
		}
	}
	return nil
}

// Digest fingerprints a document's id and text. A stored signature is
// reused only when the digest is unchanged.
func Digest(doc types.Document) string {
	d := xxhash.New()
	d.WriteString(doc.ID)
	d.Write([]byte{0})
	d.WriteString(doc.Text)
	return strconv.FormatUint(d.Sum64(), 16)
}

// Put upserts signatures for dataset in one transaction. docs and sigs are
// parallel slices.
func (s *Store) Put(ctx context.Context, dataset string, docs []types.Document, sigs []types.Signature) error {
	if len(docs) != len(sigs) {
		return fmt.Errorf("put %s: %d documents but %d signatures", dataset, len(docs), len(sigs))
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO signatures (dataset, position, id, digest, hashvalues)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(dataset, position) DO UPDATE SET
			id=excluded.id, digest=excluded.digest, hashvalues=excluded.hashvalues`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, sig := range sigs {
		if len(sig.HashValues) != s.cfg.NumPerm || sig.Seed != s.cfg.Seed {
			return fmt.Errorf("%w: signature for %s has num_perm=%d seed=%d",
				ErrConfigMismatch, sig.OwnerID, len(sig.HashValues), sig.Seed)
		}
		doc := docs[i]
		if _, err := stmt.ExecContext(ctx, dataset, doc.Position, doc.ID, Digest(doc), encode(sig.HashValues)); err != nil {
			return fmt.Errorf("inserting signature %s: %w", doc.ID, err)
		}
	}
	return tx.Commit()
}

// Truncate deletes every signature of dataset at or after position n.
func (s *Store) Truncate(ctx context.Context, dataset string, n int) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM signatures WHERE dataset = ? AND position >= ?`, dataset, n); err != nil {
		return fmt.Errorf("truncating %s: %w", dataset, err)
	}
	return nil
}

// Load returns the entries of dataset ordered by position. Positions with
// no stored row are absent from the result.
func (s *Store) Load(ctx context.Context, dataset string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, id, digest, hashvalues FROM signatures WHERE dataset = ? ORDER BY position`, dataset)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", dataset, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			blob []byte
		)
		if err := rows.Scan(&e.Signature.Position, &e.Signature.OwnerID, &e.Digest, &blob); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dataset, err)
		}
		hv, err := decode(blob, s.cfg.NumPerm)
		if err != nil {
			return nil, fmt.Errorf("decoding signature %s/%s: %w", dataset, e.Signature.OwnerID, err)
		}
		e.Signature.HashValues = hv
		e.Signature.Seed = s.cfg.Seed
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", dataset, err)
	}
	return entries, nil
}

// Count returns the number of stored signatures for dataset.
func (s *Store) Count(ctx context.Context, dataset string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM signatures WHERE dataset = ?`, dataset).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", dataset, err)
	}
	return n, nil
}

func encode(hv []uint64) []byte {
	out := make([]byte, 8*len(hv))
	for i, v := range hv {
		binary.LittleEndian.PutUint64(out[8*i:], v)
	}
	return out
}

func decode(blob []byte, numPerm int) ([]uint64, error) {
	if len(blob) != 8*numPerm {
		return nil, fmt.Errorf("%w: blob holds %d bytes, want %d", ErrConfigMismatch, len(blob), 8*numPerm)
	}
	hv := make([]uint64, numPerm)
	for i := range hv {
		hv[i] = binary.LittleEndian.Uint64(blob[8*i:])
	}
	return hv, nil
}
