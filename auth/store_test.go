package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore("mem://localhost/tokens/roundtrip")

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	cred := &Credential{
		Account:     "user@contoso.com",
		AccessToken: "tok-1",
		ExpiresAt:   time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		AuthRecord:  json.RawMessage(`{"username":"user@contoso.com"}`),
	}
	require.NoError(t, store.Save(ctx, cred))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, cred.Account, loaded.Account)
	assert.Equal(t, cred.AccessToken, loaded.AccessToken)
	assert.True(t, cred.ExpiresAt.Equal(loaded.ExpiresAt))

	require.NoError(t, store.Delete(ctx))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
	require.NoError(t, store.Delete(ctx))
}

func TestStoreLoadIncomplete(t *testing.T) {
	ctx := context.Background()
	store := NewStore("mem://localhost/tokens/incomplete")
	data, _ := json.Marshal(&Credential{Account: "user@contoso.com"})
	require.NoError(t, store.fs.Upload(ctx, store.location, 0o600, bytes.NewReader(data)))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
