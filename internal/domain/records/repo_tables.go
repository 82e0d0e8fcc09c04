package records

import (
	"context"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/ehr/medrecords/internal/platform/tables"
	"github.com/ehr/medrecords/pkg/pagination"
)

// Records are partitioned by owner; the row key is the record id.
type recordEntity struct {
	aztables.Entity
	RecordName     string    `json:"RecordName"`
	AnalysisResult string    `json:"AnalysisResult"`
	KanbanRecords  string    `json:"KanbanRecords"`
	CreatedBy      string    `json:"CreatedBy"`
	CreatedAt      time.Time `json:"CreatedAt"`
	UpdatedAt      time.Time `json:"UpdatedAt"`
}

type entityKeys struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

// recordPatch omits nil fields so a merge leaves them as stored.
type recordPatch struct {
	entityKeys
	AnalysisResult *string   `json:"AnalysisResult,omitempty"`
	KanbanRecords  *string   `json:"KanbanRecords,omitempty"`
	UpdatedAt      time.Time `json:"UpdatedAt"`
}

func newRecordPatch(current *Record, u RecordUpdate, now time.Time) recordPatch {
	return recordPatch{
		entityKeys:     entityKeys{PartitionKey: current.UserID.String(), RowKey: current.ID.String()},
		AnalysisResult: u.AnalysisResult,
		KanbanRecords:  u.KanbanRecords,
		UpdatedAt:      now,
	}
}

type recordRepoTables struct{ table *aztables.Client }

func NewRecordRepoTables(table *aztables.Client) Repository {
	return &recordRepoTables{table: table}
}

func (e *recordEntity) toRecord() (*Record, error) {
	id, err := uuid.Parse(e.RowKey)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(e.PartitionKey)
	if err != nil {
		return nil, err
	}
	return &Record{
		ID:             id,
		UserID:         userID,
		RecordName:     e.RecordName,
		AnalysisResult: e.AnalysisResult,
		KanbanRecords:  e.KanbanRecords,
		CreatedBy:      e.CreatedBy,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}, nil
}

func (r *recordRepoTables) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now

	ent := recordEntity{
		Entity:         aztables.Entity{PartitionKey: rec.UserID.String(), RowKey: rec.ID.String()},
		RecordName:     rec.RecordName,
		AnalysisResult: rec.AnalysisResult,
		KanbanRecords:  rec.KanbanRecords,
		CreatedBy:      rec.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	payload, err := sonic.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = r.table.AddEntity(ctx, payload, nil)
	return err
}

func (r *recordRepoTables) list(ctx context.Context, filter string) ([]*Record, error) {
	pager := r.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	var items []*Record
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent recordEntity
			if err := sonic.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			rec, err := ent.toRecord()
			if err != nil {
				return nil, err
			}
			items = append(items, rec)
		}
	}
	return items, nil
}

func (r *recordRepoTables) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	items, err := r.list(ctx, "RowKey eq "+tables.Quote(id.String()))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return items[0], nil
}

// ListByUser pages in memory; the table service has no offset queries.
func (r *recordRepoTables) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	items, err := r.list(ctx, "PartitionKey eq "+tables.Quote(userID.String()))
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(len(items))
	return items[start:end], len(items), nil
}

// Update is a single merge of the non-nil fields. The preceding read only
// locates the partition.
func (r *recordRepoTables) Update(ctx context.Context, u RecordUpdate) (*Record, error) {
	current, err := r.GetByID(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	patch := newRecordPatch(current, u, time.Now().UTC())
	payload, err := sonic.Marshal(patch)
	if err != nil {
		return nil, err
	}
	et := azcore.ETagAny
	_, err = r.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	if tables.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	updated := u.Apply(*current)
	updated.UpdatedAt = patch.UpdatedAt
	return &updated, nil
}
