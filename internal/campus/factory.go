package campus

import (
	"context"
	"fmt"

	"clarifyai/internal/storage"
)

// NewStore builds the campus store on the shared database connection.
func NewStore(ctx context.Context, st storage.Storage) (Store, error) {
	if st == nil {
		return nil, fmt.Errorf("storage is required")
	}

	var (
		s   Store
		err error
	)
	switch st.Type() {
	case storage.TypeSQLite:
		s, err = NewSQLiteStore(st.SQLiteDB())
	case storage.TypePostgreSQL:
		s, err = NewPostgreSQLStore(ctx, st.PostgreSQLPool())
	case storage.TypeMongoDB:
		s, err = NewMongoDBStore(ctx, st.MongoDatabase())
	default:
		return nil, fmt.Errorf("unknown storage type: %s", st.Type())
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
