package conversation

import (
	"context"
	"fmt"

	"clarifyai/internal/kvstore"
	"clarifyai/internal/storage"
)

// Backend families selectable through CONVERSATIONS_BACKEND.
const (
	BackendTable = "table"
	BackendKV    = "kv"
)

// New builds the conversation store for backend.
// "table" uses the shared database connection; "kv" uses the key-value store.
func New(ctx context.Context, backend string, store storage.Storage, kv kvstore.Store) (Store, error) {
	switch backend {
	case "", BackendTable:
		if store == nil {
			return nil, fmt.Errorf("conversation backend %q requires a storage connection", BackendTable)
		}
		return newTableStore(ctx, store)
	case BackendKV:
		s, err := NewKVStore(kv)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown conversation backend: %s (valid: table, kv)", backend)
	}
}

func newTableStore(ctx context.Context, store storage.Storage) (Store, error) {
	var (
		s   Store
		err error
	)
	switch store.Type() {
	case storage.TypeSQLite:
		s, err = NewSQLiteStore(store.SQLiteDB())
	case storage.TypePostgreSQL:
		s, err = NewPostgreSQLStore(ctx, store.PostgreSQLPool())
	case storage.TypeMongoDB:
		s, err = NewMongoDBStore(ctx, store.MongoDatabase())
	default:
		return nil, fmt.Errorf("unknown storage type: %s", store.Type())
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
