package memory

import (
	"context"
	"time"

	"taxidispatch/pkg/models"
	"taxidispatch/storage"
)

type clientDoc = models.Client

type clientRepo struct {
	s *Store
}

// upsert inserts c or runs merge on the stored client under its lock.
func (r *clientRepo) upsert(c *models.Client, merge func(stored *models.Client)) *models.Client {
	coll := r.s.clients
	doc, ok := coll.getByTelegramID(c.TelegramID)
	if !ok {
		coll.mu.Lock()
		if id, exists := coll.byTelegramID[c.TelegramID]; exists {
			doc = coll.docs[id]
		} else {
			doc = coll.insertLocked(c.ID, *c)
			coll.byTelegramID[c.TelegramID] = c.ID
			coll.mu.Unlock()
			stored := doc.read()
			return &stored
		}
		coll.mu.Unlock()
	}

	doc.mu.Lock()
	defer doc.mu.Unlock()
	merge(&doc.val)
	stored := doc.val
	return &stored
}

func (r *clientRepo) Upsert(_ context.Context, c *models.Client) (*models.Client, error) {
	return r.upsert(c, func(stored *models.Client) {
		if c.Username != "" {
			stored.Username = c.Username
		}
		if c.FirstName != "" {
			stored.FirstName = c.FirstName
		}
		if c.LastName != "" {
			stored.LastName = c.LastName
		}
	}), nil
}

func (r *clientRepo) UpdatePhone(_ context.Context, c *models.Client) (*models.Client, error) {
	return r.upsert(c, func(stored *models.Client) {
		stored.Phone = c.Phone
	}), nil
}

func (r *clientRepo) GetByTelegramID(_ context.Context, telegramID int64) (*models.Client, error) {
	doc, ok := r.s.clients.getByTelegramID(telegramID)
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := doc.read()
	return &c, nil
}

func (r *clientRepo) List(_ context.Context, limit int) ([]*models.Client, error) {
	var clients []*models.Client
	for _, doc := range r.s.clients.snapshot() {
		c := doc.read()
		clients = append(clients, &c)
	}
	newestFirst(clients, func(c *models.Client) time.Time { return c.CreatedAt })
	if limit > 0 && len(clients) > limit {
		clients = clients[:limit]
	}
	return clients, nil
}

func (r *clientRepo) Count(_ context.Context) (int, error) {
	return len(r.s.clients.snapshot()), nil
}
