package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duetapp/duet/internal/common"
)

func TestDecode_BareString(t *testing.T) {
	m, err := Decode([]byte(`"SKIP_WAITING"`))
	require.NoError(t, err)
	assert.Equal(t, TypeSkipWaiting, m.Type)
}

func TestDecode_Object(t *testing.T) {
	m, err := Decode([]byte(`{"type":"OFFLINE_PUT","store":"notes","value":{"id":"n1"}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeOfflinePut, m.Type)
	assert.Equal(t, "notes", m.Store)
	assert.JSONEq(t, `{"id":"n1"}`, string(m.Value))
}

func TestDecode_UnknownTypeRejected(t *testing.T) {
	_, err := Decode([]byte(`"MAKE_COFFEE"`))
	assert.ErrorIs(t, err, common.ErrUnknownMessage)

	_, err = Decode([]byte(`{"type":"MAKE_COFFEE"}`))
	assert.ErrorIs(t, err, common.ErrUnknownMessage)
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte(`{`))
	assert.Error(t, err)
}

func TestEncode_StringFormForBareKinds(t *testing.T) {
	data, err := Encode(Message{Type: TypeFlushOutbox})
	require.NoError(t, err)
	assert.Equal(t, `"FLUSH_OUTBOX"`, string(data))

	data, err = Encode(Message{Type: TypeRefreshDone})
	require.NoError(t, err)
	assert.Equal(t, `"REFRESH_DONE"`, string(data))
}

func TestEncode_ObjectForm(t *testing.T) {
	ok := true
	data, err := Encode(Message{Type: TypeSubscriptionRenewed, OK: &ok})
	require.NoError(t, err)

	var round map[string]any
	require.NoError(t, json.Unmarshal(data, &round))
	assert.Equal(t, "SUBSCRIPTION_RENEWED", round["type"])
	assert.Equal(t, true, round["ok"])
}

func TestEncode_UnknownTypeRejected(t *testing.T) {
	_, err := Encode(Message{Type: "NOPE"})
	assert.ErrorIs(t, err, common.ErrUnknownMessage)
}

func TestRoundTrip(t *testing.T) {
	items, _ := json.Marshal([]map[string]string{{"id": "a"}, {"id": "b"}})
	in := Message{Type: TypeOfflineResult, Store: "events", Items: items}

	data, err := Encode(in)
	require.NoError(t, err)
	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in.Type, out.Type)
	assert.Equal(t, in.Store, out.Store)
	assert.JSONEq(t, string(in.Items), string(out.Items))
}
