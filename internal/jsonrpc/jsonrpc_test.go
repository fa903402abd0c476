package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRequestFramesAsContentLength(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, nil)

	id, err := tr.SendRequest("initialize", map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, int32(1), id)

	assert.Contains(t, buf.String(), "Content-Length: ")
	assert.Contains(t, buf.String(), "\r\n\r\n")
	assert.Contains(t, buf.String(), `"method":"initialize"`)
	assert.Contains(t, buf.String(), `"id":1`)
}

func TestSendNotificationHasNoID(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, nil)

	require.NoError(t, tr.SendNotification("initialized", struct{}{}))
	assert.NotContains(t, buf.String(), `"id"`)
}

func TestFeedDispatchesReply(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, nil)

	id, err := tr.SendRequest("initialize", nil)
	require.NoError(t, err)

	body := []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":{"capabilities":{}}}`, id))
	tr.Feed(frame(body))

	assert.True(t, tr.HasReply(id))
	reply, err := tr.TakeReply(id)
	require.NoError(t, err)
	assert.True(t, reply.Success())
	assert.False(t, tr.HasReply(id))
}

func TestFeedDispatchesNotification(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, nil)

	body := []byte(`{"jsonrpc":"2.0","method":"textDocument/publishDiagnostics","params":{"uri":"file:///a"}}`)
	tr.Feed(frame(body))

	assert.True(t, tr.HasPendingNotifications())
	n, err := tr.TakeNextNotification()
	require.NoError(t, err)
	assert.Equal(t, "textDocument/publishDiagnostics", n.Method)
}

func TestFeedIncrementalSplitAcrossCalls(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, nil)

	body := []byte(`{"jsonrpc":"2.0","method":"textDocument/publishDiagnostics","params":{}}`)
	full := frame(body)

	tr.Feed(full[:10])
	assert.False(t, tr.HasPendingNotifications())
	tr.Feed(full[10:])
	assert.True(t, tr.HasPendingNotifications())
}

func TestFeedRejectsContentLengthZero(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, nil)

	tr.Feed([]byte("Content-Length: 0\r\n\r\n"))
	_, broken := tr.ProtocolError()
	assert.True(t, broken)
}

func TestFeedRejectsReplyForUnsentID(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, nil)

	body := []byte(`{"jsonrpc":"2.0","id":999,"result":null}`)
	tr.Feed(frame(body))

	msg, broken := tr.ProtocolError()
	assert.True(t, broken)
	assert.Contains(t, msg, "never sent")
}

func TestProtocolErrorLatches(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, nil)

	tr.Feed([]byte("garbage that is not a valid header block at all and never terminates"))
	first, broken := tr.ProtocolError()
	assert.False(t, broken)
	assert.Empty(t, first)

	tr.Feed([]byte("more garbage\r\nnot-a-length: x\r\n\r\n"))
	_, broken = tr.ProtocolError()
	assert.True(t, broken)

	_, err := tr.SendRequest("shutdown", nil)
	assert.Error(t, err)
}

func TestHandleChildTerminatedWithPartialMessageIsProtocolError(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, nil)

	tr.Feed([]byte("Content-Length: 100\r\n\r\n{\"partial"))
	tr.HandleChildTerminated()

	_, broken := tr.ProtocolError()
	assert.True(t, broken)
}

func TestHandleChildTerminatedWithEmptyBufferIsFine(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, nil)
	tr.HandleChildTerminated()
	_, broken := tr.ProtocolError()
	assert.False(t, broken)
}

func TestAllocateIDWrapsAroundSkippingLiveIDs(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, nil)
	tr.nextID = MaxRequestID
	tr.outstanding[1] = struct{}{}

	id1 := tr.allocateID()
	assert.Equal(t, MaxRequestID, id1)

	id2 := tr.allocateID()
	assert.Equal(t, int32(2), id2, "id 1 is in use, so allocation must skip it")
}

func TestCancelDiscardsArrivedReply(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, nil)

	id, err := tr.SendRequest("textDocument/hover", nil)
	require.NoError(t, err)

	tr.Cancel(id)
	assert.Contains(t, tr.CancelledIDs(), id)

	body := []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":null}`, id))
	tr.Feed(frame(body))

	assert.False(t, tr.HasReply(id))
	_, broken := tr.ProtocolError()
	assert.False(t, broken)
}

func TestSendLoggerReceivesFramedBytes(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, nil)

	var logged [][]byte
	tr.SetSendLogger(func(seq int, data []byte) {
		logged = append(logged, data)
	})

	_, err := tr.SendRequest("initialize", nil)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Contains(t, string(logged[0]), "Content-Length:")
}

func TestDecodeOneMessageRoundTrip(t *testing.T) {
	body := []byte(`{"jsonrpc":"2.0","method":"exit"}`)
	var buf bytes.Buffer
	buf.Write(frame(body))

	got, result, err := decodeOneMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, ParseOneMessage, result)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(got, &decoded))
	assert.Equal(t, "exit", decoded["method"])
	assert.Equal(t, 0, buf.Len())
}

func TestDecodeOneMessageIncompleteBody(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("Content-Length: 50\r\n\r\n{\"short\":true}")

	_, result, err := decodeOneMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, ParseIncompleteBody, result)
	assert.NotEqual(t, 0, buf.Len(), "an incomplete message must not be consumed")
}
