package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/moto-intake/internal/domain/settings"
)

type memStore struct {
	saved *domain.Settings
}

func (m *memStore) Load(ctx context.Context) (domain.Settings, bool, error) {
	if m.saved == nil {
		return domain.Settings{}, false, nil
	}
	return *m.saved, true, nil
}

func (m *memStore) Save(ctx context.Context, s domain.Settings) error {
	m.saved = &s
	return nil
}

const dbID = "6335b6e7997a4097b08f2cba5feb5c6a"

func TestSave_TrimsAndStoresExtractedID(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, domain.Settings{}, nil)

	saved, err := svc.Save(context.Background(), domain.Settings{
		NotionToken:      "  ntn_abc  ",
		NotionDatabaseID: " https://www.notion.so/workspace/" + dbID + "?v=123 ",
		NotionTitleKey:   " Imię i Nazwisko ",
		ImgBBAPIKey:      "\tkey\n",
	})
	require.NoError(t, err)

	assert.Equal(t, "ntn_abc", saved.NotionToken)
	assert.Equal(t, dbID, saved.NotionDatabaseID)
	assert.Equal(t, "Imię i Nazwisko", saved.NotionTitleKey)
	assert.Equal(t, "key", saved.ImgBBAPIKey)
	require.NotNil(t, store.saved)
	assert.Equal(t, saved, *store.saved)
	assert.Equal(t, saved, svc.Get(context.Background()))
}

func TestSave_Validation(t *testing.T) {
	svc := NewService(&memStore{}, domain.Settings{}, nil)
	ctx := context.Background()

	_, err := svc.Save(ctx, domain.Settings{NotionToken: "   ", NotionDatabaseID: dbID, NotionTitleKey: "x"})
	assert.ErrorIs(t, err, domain.ErrTokenRequired)

	_, err = svc.Save(ctx, domain.Settings{NotionToken: "t", NotionDatabaseID: "ntn_" + dbID, NotionTitleKey: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidDatabaseID)

	_, err = svc.Save(ctx, domain.Settings{NotionToken: "t", NotionDatabaseID: dbID, NotionTitleKey: " "})
	assert.ErrorIs(t, err, domain.ErrTitleKeyRequired)
}

func TestLoad_StoredValuesOverrideDefaults(t *testing.T) {
	stored := domain.Settings{NotionToken: "stored-token", ImgBBAPIKey: "stored-img"}
	svc := NewService(&memStore{saved: &stored}, domain.Settings{
		NotionToken:      "default-token",
		NotionDatabaseID: dbID,
	}, nil)

	require.NoError(t, svc.Load(context.Background()))
	got := svc.Get(context.Background())
	assert.Equal(t, "stored-token", got.NotionToken)
	assert.Equal(t, dbID, got.NotionDatabaseID)
	assert.Equal(t, "stored-img", got.ImgBBAPIKey)
	assert.Equal(t, domain.DefaultTitleKey, got.NotionTitleKey)
}
