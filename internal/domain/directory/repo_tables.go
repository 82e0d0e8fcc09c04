package directory

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/ehr/medrecords/internal/platform/tables"
)

// Users are keyed by normalized email so lookups are point reads and the
// service enforces uniqueness on insert.
const profileRowKey = "profile"

type userEntity struct {
	aztables.Entity
	ID        string    `json:"ID"`
	Username  string    `json:"Username"`
	Age       int       `json:"Age"`
	Location  string    `json:"Location"`
	CreatedBy string    `json:"CreatedBy"`
	CreatedAt time.Time `json:"CreatedAt"`
}

type userRepoTables struct{ table *aztables.Client }

func NewUserRepoTables(table *aztables.Client) Repository {
	return &userRepoTables{table: table}
}

func (r *userRepoTables) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	u.CreatedAt = time.Now().UTC()

	ent := userEntity{
		Entity:    aztables.Entity{PartitionKey: NormalizeEmail(u.CreatedBy), RowKey: profileRowKey},
		ID:        u.ID.String(),
		Username:  u.Username,
		Age:       u.Age,
		Location:  u.Location,
		CreatedBy: u.CreatedBy,
		CreatedAt: u.CreatedAt,
	}
	payload, err := sonic.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = r.table.AddEntity(ctx, payload, nil)
	if tables.IsConflict(err) {
		return ErrAlreadyExists
	}
	return err
}

func (r *userRepoTables) GetByEmail(ctx context.Context, email string) (*User, error) {
	resp, err := r.table.GetEntity(ctx, NormalizeEmail(email), profileRowKey, nil)
	if tables.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var ent userEntity
	if err := sonic.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(ent.ID)
	if err != nil {
		return nil, err
	}
	return &User{
		ID:        id,
		Username:  ent.Username,
		Age:       ent.Age,
		Location:  ent.Location,
		CreatedBy: ent.CreatedBy,
		CreatedAt: ent.CreatedAt,
	}, nil
}
