package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides database access for agent rows and raw events. It uses raw
// SQL with pgx; the registration path relies on Postgres row locks for its
// exactly-once guarantee.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const agentColumns = `id::text, name, COALESCE(registration_token, ''), COALESCE(device_identifier, ''),
	status, last_seen_at, COALESCE(ip_address, ''), COALESCE(os_name, ''), COALESCE(version, ''),
	config, created_at, updated_at`

func scanAgent(row pgx.Row) (*Agent, error) {
	var a Agent
	if err := row.Scan(
		&a.ID, &a.Name, &a.RegistrationToken, &a.DeviceIdentifier,
		&a.Status, &a.LastSeenAt, &a.IPAddress, &a.OSName, &a.Version,
		&a.Config, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAgent inserts a pending agent with its one-time registration token.
func (s *Store) CreateAgent(ctx context.Context, name, token string) (*Agent, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO agents (name, registration_token, status)
		VALUES ($1, $2, $3)
		RETURNING `+agentColumns,
		name, token, StatusNeverConnected,
	)
	agent, err := scanAgent(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	return agent, nil
}

// ClaimAgent consumes a registration token and binds the agent to a device,
// exactly once. The whole protocol runs in one transaction:
//
//  1. Lock the pending row matching the token (FOR UPDATE). Concurrent
//     attempts with the same token serialize here; losers see no row after
//     the winner commits and fail with ErrInvalidToken.
//  2. Reject the claim if any other agent already holds the device.
//  3. Write the credential hash and device, null the token, and force the
//     agent Online.
func (s *Store) ClaimAgent(ctx context.Context, token, deviceID, apiKeyHash string) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var agentID string
	err = tx.QueryRow(ctx, `
		SELECT id::text FROM agents
		WHERE registration_token = $1 AND device_identifier IS NULL
		FOR UPDATE
	`, token).Scan(&agentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up registration token: %w", err)
	}

	var claimedBy string
	err = tx.QueryRow(ctx, `SELECT id::text FROM agents WHERE device_identifier = $1`, deviceID).Scan(&claimedBy)
	if err == nil {
		return "", ErrDeviceAlreadyRegistered
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("failed to check device identifier: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE agents
		SET api_key_hash = $1,
		    device_identifier = $2,
		    registration_token = NULL,
		    status = $3,
		    last_seen_at = now(),
		    updated_at = now()
		WHERE id = $4
	`, apiKeyHash, deviceID, StatusOnline, agentID)
	if err != nil {
		// Unique violation on device_identifier: a concurrent claim with a
		// different token won the device between our check and this write.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", ErrDeviceAlreadyRegistered
		}
		return "", fmt.Errorf("failed to claim agent: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit registration: %w", err)
	}
	return agentID, nil
}

// RefreshByKeyHash authenticates a credential and refreshes liveness in a
// single statement, so a concurrently deleted agent can never report a
// spurious success. Empty vitals fields are stored as NULL.
func (s *Store) RefreshByKeyHash(ctx context.Context, apiKeyHash string, vitals Vitals) (string, error) {
	var agentID string
	err := s.pool.QueryRow(ctx, `
		UPDATE agents
		SET status = $2,
		    last_seen_at = now(),
		    ip_address = NULLIF($3, ''),
		    os_name = NULLIF($4, ''),
		    version = NULLIF($5, ''),
		    updated_at = now()
		WHERE api_key_hash = $1
		RETURNING id::text
	`, apiKeyHash, StatusOnline, vitals.IPAddress, vitals.OSName, vitals.Version).Scan(&agentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUnauthorized
	}
	if err != nil {
		return "", fmt.Errorf("failed to refresh agent: %w", err)
	}
	return agentID, nil
}

// IngestBatch authenticates the credential, refreshes liveness, and bulk
// inserts the whole batch, all inside one transaction. Either everything
// commits, including the liveness refresh, or nothing does.
func (s *Store) IngestBatch(ctx context.Context, apiKeyHash string, events []Event, receivedAt time.Time) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var agentID string
	err = tx.QueryRow(ctx, `
		UPDATE agents
		SET status = $2, last_seen_at = now(), updated_at = now()
		WHERE api_key_hash = $1
		RETURNING id::text
	`, apiKeyHash, StatusOnline).Scan(&agentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUnauthorized
	}
	if err != nil {
		return "", fmt.Errorf("failed to refresh agent: %w", err)
	}

	// COPY preserves slice order; the bigserial id keeps per-batch ordering
	// queryable.
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"raw_events"},
		[]string{"agent_id", "hostname", "data", "received_at"},
		pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
			return []any{agentID, events[i].Hostname, []byte(events[i].Data), receivedAt}, nil
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert event batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit event batch: %w", err)
	}
	return agentID, nil
}

// DemoteStale marks Online agents whose last heartbeat is older than the
// threshold as Offline and returns the number of rows changed. A single
// conditional update, so concurrent sweeps are harmless and a repeated sweep
// demotes nothing new. Never Connected agents are untouched by construction.
func (s *Store) DemoteStale(ctx context.Context, threshold time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agents
		SET status = $1, updated_at = now()
		WHERE status = $2 AND last_seen_at < now() - make_interval(secs => $3)
	`, StatusOffline, StatusOnline, threshold.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to demote stale agents: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetAgent retrieves an agent by ID.
func (s *Store) GetAgent(ctx context.Context, agentID string) (*Agent, error) {
	if _, err := uuid.Parse(agentID); err != nil {
		return nil, ErrInvalidAgentID
	}

	agent, err := scanAgent(s.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, agentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return agent, nil
}

// ListAgents returns all agents, newest first.
func (s *Store) ListAgents(ctx context.Context) ([]Agent, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, *agent)
	}
	return agents, rows.Err()
}

// DeleteAgent removes an agent; its raw events cascade.
func (s *Store) DeleteAgent(ctx context.Context, agentID string) error {
	if _, err := uuid.Parse(agentID); err != nil {
		return ErrInvalidAgentID
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM agents WHERE id = $1`, agentID)
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAgentNotFound
	}
	return nil
}

// GetConfigByKeyHash returns the configuration document for the agent owning
// the credential.
func (s *Store) GetConfigByKeyHash(ctx context.Context, apiKeyHash string) (json.RawMessage, error) {
	var config json.RawMessage
	err := s.pool.QueryRow(ctx, `SELECT config FROM agents WHERE api_key_hash = $1`, apiKeyHash).Scan(&config)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent config: %w", err)
	}
	return config, nil
}

// UpdateConfig replaces the agent's configuration document.
func (s *Store) UpdateConfig(ctx context.Context, agentID string, config json.RawMessage) error {
	if _, err := uuid.Parse(agentID); err != nil {
		return ErrInvalidAgentID
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE agents SET config = $2, updated_at = now() WHERE id = $1
	`, agentID, []byte(config))
	if err != nil {
		return fmt.Errorf("failed to update agent config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAgentNotFound
	}
	return nil
}

// RecentEvents returns the newest raw events for an agent.
func (s *Store) RecentEvents(ctx context.Context, agentID string, limit int) ([]StoredEvent, error) {
	if _, err := uuid.Parse(agentID); err != nil {
		return nil, ErrInvalidAgentID
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, agent_id::text, hostname, data, received_at
		FROM raw_events
		WHERE agent_id = $1
		ORDER BY received_at DESC, id DESC
		LIMIT $2
	`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var e StoredEvent
		if err := rows.Scan(&e.ID, &e.AgentID, &e.Hostname, &e.Data, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
