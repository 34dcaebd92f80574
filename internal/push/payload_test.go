package push

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodePayload_PlainTextFallsBack(t *testing.T) {
	n := DecodePayload([]byte("dinner at 8?"))

	assert.Equal(t, DefaultTitle, n.Title)
	assert.Equal(t, "dinner at 8?", n.Body)
	assert.Equal(t, "/", n.TargetURL())
	assert.Nil(t, n.Options)
}

func TestDecodePayload_FullPayload(t *testing.T) {
	n := DecodePayload([]byte(`{
		"title": "New note",
		"body": "Anna added a note",
		"url": "/notes",
		"icon": "/icon.png",
		"tag": "notes",
		"renotify": true,
		"timestamp": 1756400000000,
		"actions": [{"action":"open","title":"Open"}],
		"data": {"noteId": "n42"}
	}`))

	assert.Equal(t, "New note", n.Title)
	assert.Equal(t, "Anna added a note", n.Body)
	assert.Equal(t, "/notes", n.TargetURL())
	assert.Equal(t, "n42", n.Data["noteId"])
	assert.Equal(t, "/icon.png", n.Options["icon"])
	assert.Equal(t, "notes", n.Options["tag"])
	assert.Equal(t, true, n.Options["renotify"])
	assert.Equal(t, float64(1756400000000), n.Options["timestamp"])
	assert.Len(t, n.Options["actions"], 1)
}

func TestDecodePayload_IllTypedFieldsDropped(t *testing.T) {
	n := DecodePayload([]byte(`{
		"body": "hello",
		"icon": 7,
		"silent": "yes",
		"timestamp": -5,
		"actions": "open"
	}`))

	assert.Equal(t, "hello", n.Body)
	assert.Nil(t, n.Options, "ill-typed optional fields must not pass through")
}

func TestDecodePayload_JSONButNotObject(t *testing.T) {
	n := DecodePayload([]byte(`[1,2,3]`))
	assert.Equal(t, DefaultTitle, n.Title)
	assert.Equal(t, "[1,2,3]", n.Body)
}

func TestDecodePayload_URLWinsOverDataURL(t *testing.T) {
	n := DecodePayload([]byte(`{"url":"/calendar","data":{"url":"/somewhere-else"}}`))
	assert.Equal(t, "/calendar", n.TargetURL())
}

func TestDecodePayload_EmptyBody(t *testing.T) {
	n := DecodePayload(nil)
	assert.Equal(t, DefaultTitle, n.Title)
	assert.Equal(t, "", n.Body)
	assert.Equal(t, "/", n.TargetURL())
}
