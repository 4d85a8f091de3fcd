package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/syncer"
)

// syncable is the pointer constraint of an endpoint: P is *E.
type syncable[E any] interface {
	*E
	domain.Syncable
}

// Endpoint is the syncer.Remote of one entity type, served under
// {base}/api/v1/{entityType}.
type Endpoint[E any, P syncable[E]] struct {
	client     *Client
	entityType string
}

// NewEndpoint returns the endpoint for entityType.
func NewEndpoint[E any, P syncable[E]](client *Client, entityType string) *Endpoint[E, P] {
	return &Endpoint[E, P]{client: client, entityType: entityType}
}

// changesPage is the body of a changes response.
type changesPage[E any] struct {
	Items     []E      `json:"items"`
	Deleted   []string `json:"deleted"`
	Timestamp int64    `json:"timestamp"`
	Etag      string   `json:"etag"`
}

func (e *Endpoint[E, P]) collection() string {
	return APIPrefix + "/" + e.entityType
}

func (e *Endpoint[E, P]) item(serverID string) string {
	return e.collection() + "/" + url.PathEscape(serverID)
}

// Create posts item with its local id as the idempotency key.
func (e *Endpoint[E, P]) Create(ctx context.Context, item P) (P, error) {
	var out E
	_, err := e.client.do(ctx, request{
		method:  http.MethodPost,
		path:    e.collection(),
		headers: map[string]string{"Idempotency-Key": item.LocalID()},
		body:    item,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *Endpoint[E, P]) Update(ctx context.Context, item P) (P, error) {
	serverID, ok := item.RemoteID()
	if !ok {
		return e.Create(ctx, item)
	}
	var out E
	if _, err := e.client.do(ctx, request{
		method: http.MethodPut,
		path:   e.item(serverID),
		body:   item,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *Endpoint[E, P]) Delete(ctx context.Context, serverID string) error {
	_, err := e.client.do(ctx, request{method: http.MethodDelete, path: e.item(serverID)}, nil)
	return err
}

// Changes fetches server changes. An EtagSync answered with 304 yields a
// NotModified change set.
func (e *Endpoint[E, P]) Changes(ctx context.Context, strategy syncer.Strategy) (*syncer.ChangeSet[P], error) {
	req := request{method: http.MethodGet, path: e.collection()}
	switch s := strategy.(type) {
	case syncer.IncrementalSync:
		req.query = map[string]string{"since": strconv.FormatInt(s.Since, 10)}
	case syncer.EtagSync:
		req.headers = map[string]string{"If-None-Match": s.Etag}
	case syncer.FullSync, nil:
	}

	var page changesPage[E]
	res, err := e.client.do(ctx, req, &page)
	if err != nil {
		return nil, err
	}
	if res.status == http.StatusNotModified {
		etag := res.etag
		if s, ok := strategy.(syncer.EtagSync); ok && etag == "" {
			etag = s.Etag
		}
		return &syncer.ChangeSet[P]{NotModified: true, Etag: etag}, nil
	}

	cs := &syncer.ChangeSet[P]{
		Items:     make([]P, len(page.Items)),
		Deleted:   page.Deleted,
		Timestamp: page.Timestamp,
		Etag:      page.Etag,
	}
	if cs.Etag == "" {
		cs.Etag = res.etag
	}
	for i := range page.Items {
		cs.Items[i] = &page.Items[i]
	}
	return cs, nil
}

var _ syncer.Remote[*domain.Payment] = (*Endpoint[domain.Payment, *domain.Payment])(nil)
