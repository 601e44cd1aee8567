package checkout

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/hcbookstore/storefront/internal/storage"
)

// DraftKey is the fixed key the checkout form is stored under.
const DraftKey = "hc_bookstore_checkout_form"

// DraftStore autosaves the checkout form in a session-scoped KV. Storage
// failures are logged and never returned.
type DraftStore struct {
	kv storage.KV
}

// NewDraftStore returns a DraftStore writing to kv.
func NewDraftStore(kv storage.KV) *DraftStore {
	return &DraftStore{kv: kv}
}

// Save writes the draft.
func (d *DraftStore) Save(ctx context.Context, draft Draft) {
	data, err := json.Marshal(draft)
	if err != nil {
		zctx.From(ctx).Error("Encode checkout draft", zap.Error(err))
		return
	}
	if err := d.kv.Set(ctx, DraftKey, data); err != nil {
		zctx.From(ctx).Warn("Save checkout draft", zap.Error(err))
	}
}

// Load returns the saved draft. Missing or unreadable drafts are absent.
func (d *DraftStore) Load(ctx context.Context) (Draft, bool) {
	data, err := d.kv.Get(ctx, DraftKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			zctx.From(ctx).Warn("Load checkout draft", zap.Error(err))
		}
		return Draft{}, false
	}

	var draft Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		zctx.From(ctx).Debug("Discard malformed checkout draft", zap.Error(err))
		return Draft{}, false
	}
	return draft, true
}

// Clear removes the saved draft.
func (d *DraftStore) Clear(ctx context.Context) {
	if err := d.kv.Delete(ctx, DraftKey); err != nil {
		zctx.From(ctx).Warn("Clear checkout draft", zap.Error(err))
	}
}
