package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// memDB is an in-memory stand-in for Postgres that understands the exact
// statements the repositories issue. Transactions are serialized, which
// models the row locks the services take, and roll back to a snapshot.
type memDB struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	state *memState
	now   time.Time
}

type memState struct {
	users         map[int64]models.User
	conversations map[int64]models.Conversation
	quotas        map[int64]models.MessageQuota
	messages      map[int64]models.ChatMessage
	contracts     map[int64]models.Contract
	posts         map[int64]models.Post
	likes         map[int64]models.PostLike
	nextID        int64
}

func newMemDB(now time.Time) *memDB {
	return &memDB{
		now: now,
		state: &memState{
			users:         map[int64]models.User{},
			conversations: map[int64]models.Conversation{},
			quotas:        map[int64]models.MessageQuota{},
			messages:      map[int64]models.ChatMessage{},
			contracts:     map[int64]models.Contract{},
			posts:         map[int64]models.Post{},
			likes:         map[int64]models.PostLike{},
			nextID:        1000,
		},
	}
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s *memState) clone() *memState {
	return &memState{
		users:         cloneMap(s.users),
		conversations: cloneMap(s.conversations),
		quotas:        cloneMap(s.quotas),
		messages:      cloneMap(s.messages),
		contracts:     cloneMap(s.contracts),
		posts:         cloneMap(s.posts),
		likes:         cloneMap(s.likes),
		nextID:        s.nextID,
	}
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

// seeding helpers

func (m *memDB) addUser(id int64, role string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.users[id] = models.User{
		ID:        id,
		Email:     fmt.Sprintf("user%d@gym.test", id),
		Role:      role,
		CreatedAt: m.now,
		UpdatedAt: m.now,
	}
}

func (m *memDB) addConversation(conversation models.Conversation, quota *models.MessageQuota) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conversation.Status == "" {
		conversation.Status = models.ConversationStatusOpen
	}
	conversation.CreatedAt = m.now
	conversation.UpdatedAt = m.now
	m.state.conversations[conversation.ID] = conversation
	if quota != nil {
		quota.ConversationID = conversation.ID
		m.state.quotas[conversation.ID] = *quota
	}
}

func (m *memDB) addPost(post models.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post.CreatedAt = m.now
	post.UpdatedAt = m.now
	m.state.posts[post.ID] = post
}

func (m *memDB) conversation(id int64) (models.Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.state.conversations[id]
	return conversation, ok
}

func (m *memDB) quota(conversationID int64) (models.MessageQuota, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	quota, ok := m.state.quotas[conversationID]
	return quota, ok
}

func (m *memDB) post(id int64) models.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.posts[id]
}

func (m *memDB) likeCount(postID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, like := range m.state.likes {
		if like.PostID == postID {
			count++
		}
	}
	return count
}

func (m *memDB) messageCount(conversationID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, message := range m.state.messages {
		if message.ConversationID == conversationID {
			count++
		}
	}
	return count
}

// pgx surface

func (m *memDB) Begin(context.Context) (pgx.Tx, error) {
	m.txMu.Lock()
	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()
	return &memTx{db: m, snapshot: snapshot}, nil
}

func (m *memDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	affected, err := m.exec(normalizeSQL(sql), args)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", affected)), nil
}

func (m *memDB) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sql = normalizeSQL(sql)
	if !strings.HasPrefix(sql, "SELECT p.id FROM posts p LEFT JOIN post_likes") {
		return nil, errors.New("memdb: multi-row query not supported: " + sql)
	}

	counts := map[int64]int{}
	for _, like := range m.state.likes {
		counts[like.PostID]++
	}
	ids := make([]int64, 0)
	for id, post := range m.state.posts {
		if post.LikesCount != counts[id] {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	rows := &memRows{}
	for _, id := range ids {
		rows.values = append(rows.values, []any{id})
	}
	return rows, nil
}

func (m *memDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	values, err := m.queryRow(normalizeSQL(sql), args)
	return memRow{values: values, err: err}
}

type memTx struct {
	pgx.Tx
	db       *memDB
	snapshot *memState
	done     bool
}

func (t *memTx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.mu.Lock()
	t.db.state = t.snapshot
	t.db.mu.Unlock()
	t.db.txMu.Unlock()
	return nil
}

func (t *memTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.db.Query(ctx, sql, args...)
}

func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.db.QueryRow(ctx, sql, args...)
}

type memRows struct {
	pgx.Rows
	values [][]any
	pos    int
}

func (r *memRows) Next() bool {
	if r.pos >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

func (r *memRows) Scan(dest ...any) error {
	return memRow{values: r.values[r.pos-1]}.Scan(dest...)
}

func (r *memRows) Err() error { return nil }

func (r *memRows) Close() {}

type memRow struct {
	values []any
	err    error
}

func (r memRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("memdb: scan %d columns into %d targets", len(r.values), len(dest))
	}
	for i, target := range dest {
		elem := reflect.ValueOf(target).Elem()
		if r.values[i] == nil {
			elem.Set(reflect.Zero(elem.Type()))
			continue
		}
		value := reflect.ValueOf(r.values[i])
		if !value.Type().AssignableTo(elem.Type()) {
			return fmt.Errorf("memdb: column %d is %s, target is %s", i, value.Type(), elem.Type())
		}
		elem.Set(value)
	}
	return nil
}

func normalizeSQL(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func conversationRow(c models.Conversation) []any {
	return []any{
		c.ID, c.ClientID, c.TrainerID, c.Status, c.LastMessageAt, c.LastMessageText,
		c.ClientLastReadAt, c.TrainerLastReadAt, c.ContractValidUntil, c.CreatedAt, c.UpdatedAt,
	}
}

func quotaRow(q models.MessageQuota) []any {
	return []any{q.ConversationID, q.UsedCount, q.ResetAt, q.UpdatedAt}
}

func postRow(p models.Post) []any {
	return []any{p.ID, p.AuthorID, p.Title, p.Content, p.Status, p.LikesCount, p.PublishedAt, p.DeletedAt, p.CreatedAt, p.UpdatedAt}
}

func contractRow(c models.Contract) []any {
	return []any{c.ID, c.ConversationID, c.ClientID, c.TrainerID, c.Amount, c.DurationDays, c.Status, c.ValidUntil, c.CreatedAt, c.UpdatedAt}
}

func (m *memDB) queryRow(sql string, args []any) ([]any, error) {
	s := m.state
	switch {
	case strings.Contains(sql, "FROM users WHERE id = $1"):
		user, ok := s.users[args[0].(int64)]
		if !ok {
			return nil, pgx.ErrNoRows
		}
		return []any{user.ID, user.Email, user.PasswordHash, user.Role, user.CreatedAt, user.UpdatedAt}, nil

	case strings.HasPrefix(sql, "INSERT INTO conversations"):
		clientID, trainerID := args[0].(int64), args[1].(int64)
		for _, existing := range s.conversations {
			if existing.ClientID == clientID && existing.TrainerID == trainerID {
				return conversationRow(existing), nil
			}
		}
		conversation := models.Conversation{
			ID:        s.id(),
			ClientID:  clientID,
			TrainerID: trainerID,
			Status:    models.ConversationStatusOpen,
			CreatedAt: m.now,
			UpdatedAt: m.now,
		}
		s.conversations[conversation.ID] = conversation
		return conversationRow(conversation), nil

	case strings.Contains(sql, "FROM conversations WHERE id = $1"):
		conversation, ok := s.conversations[args[0].(int64)]
		if !ok {
			return nil, pgx.ErrNoRows
		}
		return conversationRow(conversation), nil

	case strings.Contains(sql, "FROM conversations WHERE client_id = $1 AND trainer_id = $2"):
		for _, existing := range s.conversations {
			if existing.ClientID == args[0].(int64) && existing.TrainerID == args[1].(int64) {
				return conversationRow(existing), nil
			}
		}
		return nil, pgx.ErrNoRows

	case strings.Contains(sql, "SET status = 'BLOCKED'"):
		conversation, ok := s.conversations[args[0].(int64)]
		if !ok {
			return nil, pgx.ErrNoRows
		}
		conversation.Status = models.ConversationStatusBlocked
		conversation.UpdatedAt = m.now
		s.conversations[conversation.ID] = conversation
		return conversationRow(conversation), nil

	case strings.Contains(sql, "SET status = 'CONTRACTED'"):
		conversation, ok := s.conversations[args[0].(int64)]
		if !ok || conversation.Blocked() {
			return nil, pgx.ErrNoRows
		}
		validUntil := args[1].(time.Time)
		if conversation.ContractValidUntil == nil || conversation.ContractValidUntil.Before(validUntil) {
			conversation.ContractValidUntil = timePtr(validUntil)
		}
		conversation.Status = models.ConversationStatusContracted
		s.conversations[conversation.ID] = conversation
		return conversationRow(conversation), nil

	case strings.Contains(sql, "FROM message_quotas WHERE conversation_id = $1"):
		quota, ok := s.quotas[args[0].(int64)]
		if !ok {
			return nil, pgx.ErrNoRows
		}
		return quotaRow(quota), nil

	case strings.HasPrefix(sql, "UPDATE message_quotas SET used_count = $2"):
		quota, ok := s.quotas[args[0].(int64)]
		if !ok {
			return nil, pgx.ErrNoRows
		}
		quota.UsedCount = args[1].(int)
		quota.ResetAt = args[2].(time.Time)
		quota.UpdatedAt = m.now
		s.quotas[quota.ConversationID] = quota
		return []any{quota.UpdatedAt}, nil

	case strings.HasPrefix(sql, "INSERT INTO messages"):
		message := models.ChatMessage{
			ID:             s.id(),
			ConversationID: args[0].(int64),
			SenderID:       args[1].(int64),
			Content:        args[2].(string),
			CreatedAt:      m.now,
		}
		s.messages[message.ID] = message
		return []any{message.ID, message.CreatedAt}, nil

	case strings.HasPrefix(sql, "INSERT INTO contracts"):
		contract := models.Contract{
			ID:             s.id(),
			ConversationID: args[0].(int64),
			ClientID:       args[1].(int64),
			TrainerID:      args[2].(int64),
			Amount:         args[3].(float64),
			DurationDays:   args[4].(int),
			Status:         models.ContractStatusPlaceholder,
			CreatedAt:      m.now,
			UpdatedAt:      m.now,
		}
		s.contracts[contract.ID] = contract
		return contractRow(contract), nil

	case strings.Contains(sql, "FROM contracts WHERE id = $1"):
		contract, ok := s.contracts[args[0].(int64)]
		if !ok {
			return nil, pgx.ErrNoRows
		}
		return contractRow(contract), nil

	case strings.Contains(sql, "SET status = 'paid'"):
		contract, ok := s.contracts[args[0].(int64)]
		if !ok || contract.Status != models.ContractStatusPlaceholder {
			return nil, pgx.ErrNoRows
		}
		contract.Status = models.ContractStatusPaid
		contract.ValidUntil = timePtr(args[1].(time.Time))
		s.contracts[contract.ID] = contract
		return contractRow(contract), nil

	case strings.HasPrefix(sql, "UPDATE contracts SET status = $3"):
		contract, ok := s.contracts[args[0].(int64)]
		if !ok || contract.Status != args[1].(string) {
			return nil, pgx.ErrNoRows
		}
		contract.Status = args[2].(string)
		s.contracts[contract.ID] = contract
		return contractRow(contract), nil

	case strings.HasPrefix(sql, "INSERT INTO posts"):
		post := models.Post{
			ID:        s.id(),
			AuthorID:  args[0].(int64),
			Title:     args[1].(string),
			Content:   args[2].(string),
			Status:    args[3].(string),
			CreatedAt: m.now,
			UpdatedAt: m.now,
		}
		if post.Status == models.PostStatusPublished {
			post.PublishedAt = timePtr(m.now)
		}
		s.posts[post.ID] = post
		return postRow(post), nil

	case strings.Contains(sql, "FROM posts WHERE id = $1"):
		post, ok := s.posts[args[0].(int64)]
		if !ok {
			return nil, pgx.ErrNoRows
		}
		return postRow(post), nil

	case strings.Contains(sql, "SET status = 'PUBLISHED'"):
		post, ok := s.posts[args[0].(int64)]
		if !ok || post.Status != models.PostStatusDraft || post.DeletedAt != nil {
			return nil, pgx.ErrNoRows
		}
		post.Status = models.PostStatusPublished
		post.PublishedAt = timePtr(m.now)
		s.posts[post.ID] = post
		return postRow(post), nil

	case strings.Contains(sql, "SET deleted_at = NOW()"):
		post, ok := s.posts[args[0].(int64)]
		if !ok || post.DeletedAt != nil {
			return nil, pgx.ErrNoRows
		}
		post.DeletedAt = timePtr(m.now)
		s.posts[post.ID] = post
		return postRow(post), nil

	case strings.Contains(sql, "likes_count = likes_count + 1"):
		post, ok := s.posts[args[0].(int64)]
		if !ok {
			return nil, pgx.ErrNoRows
		}
		post.LikesCount++
		s.posts[post.ID] = post
		return []any{post.LikesCount}, nil

	case strings.Contains(sql, "GREATEST(likes_count - 1, 0)"):
		post, ok := s.posts[args[0].(int64)]
		if !ok {
			return nil, pgx.ErrNoRows
		}
		if post.LikesCount > 0 {
			post.LikesCount--
		}
		s.posts[post.ID] = post
		return []any{post.LikesCount}, nil

	case strings.Contains(sql, "FROM post_likes WHERE post_id = $1 AND user_id = $2"):
		for _, like := range s.likes {
			if like.PostID == args[0].(int64) && like.UserID == args[1].(int64) {
				return []any{like.ID, like.PostID, like.UserID, like.CreatedAt}, nil
			}
		}
		return nil, pgx.ErrNoRows

	case strings.HasPrefix(sql, "INSERT INTO post_likes"):
		for _, like := range s.likes {
			if like.PostID == args[0].(int64) && like.UserID == args[1].(int64) {
				return nil, pgx.ErrNoRows
			}
		}
		like := models.PostLike{ID: s.id(), PostID: args[0].(int64), UserID: args[1].(int64), CreatedAt: args[2].(time.Time)}
		s.likes[like.ID] = like
		return []any{like.ID, like.PostID, like.UserID, like.CreatedAt}, nil
	}

	return nil, fmt.Errorf("memdb: unsupported query: %s", sql)
}

func (m *memDB) exec(sql string, args []any) (int64, error) {
	s := m.state
	switch {
	case strings.HasPrefix(sql, "INSERT INTO message_quotas"):
		conversationID := args[0].(int64)
		if _, ok := s.quotas[conversationID]; ok {
			return 0, nil
		}
		s.quotas[conversationID] = models.MessageQuota{
			ConversationID: conversationID,
			ResetAt:        args[1].(time.Time),
			UpdatedAt:      m.now,
		}
		return 1, nil

	case strings.HasPrefix(sql, "UPDATE message_quotas SET used_count = 0"):
		now, next := args[0].(time.Time), args[1].(time.Time)
		var affected int64
		for id, quota := range s.quotas {
			if !quota.ResetAt.After(now) {
				quota.UsedCount = 0
				quota.ResetAt = next
				s.quotas[id] = quota
				affected++
			}
		}
		return affected, nil

	case strings.HasPrefix(sql, "UPDATE conversations SET last_message_at"):
		conversation, ok := s.conversations[args[0].(int64)]
		if !ok {
			return 0, nil
		}
		text := args[2].(string)
		conversation.LastMessageAt = timePtr(args[1].(time.Time))
		conversation.LastMessageText = &text
		s.conversations[conversation.ID] = conversation
		return 1, nil

	case strings.HasPrefix(sql, "UPDATE conversations SET client_last_read_at"):
		conversation, ok := s.conversations[args[0].(int64)]
		if !ok {
			return 0, nil
		}
		readerID, readAt := args[1].(int64), args[2].(time.Time)
		stamp := func(current *time.Time) *time.Time {
			if current != nil && current.After(readAt) {
				return current
			}
			return timePtr(readAt)
		}
		switch readerID {
		case conversation.ClientID:
			conversation.ClientLastReadAt = stamp(conversation.ClientLastReadAt)
		case conversation.TrainerID:
			conversation.TrainerLastReadAt = stamp(conversation.TrainerLastReadAt)
		}
		s.conversations[conversation.ID] = conversation
		return 1, nil

	case strings.HasPrefix(sql, "DELETE FROM post_likes"):
		likeID := args[0].(int64)
		if _, ok := s.likes[likeID]; !ok {
			return 0, nil
		}
		delete(s.likes, likeID)
		return 1, nil

	case strings.HasPrefix(sql, "UPDATE posts SET likes_count = (SELECT COUNT(*) FROM post_likes"):
		post, ok := s.posts[args[0].(int64)]
		if !ok {
			return 0, nil
		}
		total := 0
		for _, like := range s.likes {
			if like.PostID == post.ID {
				total++
			}
		}
		if post.LikesCount == total {
			return 0, nil
		}
		post.LikesCount = total
		s.posts[post.ID] = post
		return 1, nil
	}

	return 0, fmt.Errorf("memdb: unsupported statement: %s", sql)
}
