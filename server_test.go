package raleighsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClientNumberCASScenarios(t *testing.T) {
	srv := NewTestServer()
	c := NewMockClient(srv)

	require.NoError(t, c.CreateObject("n", "number"))
	require.NoError(t, c.NumberSet("n", 0, 10))

	v, err := c.NumberGet("n", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)

	resp, _ := srv.dispatch(MsgNumberCAS, []byte("n"), casBody(0, 10, 20), nil)
	require.NoError(t, statusErr(resp))
	assert.Equal(t, int64(10), getInt64(resp[1:]), "CAS returns the value observed before the swap")

	v, err = c.NumberGet("n", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(20), v)

	resp, _ = srv.dispatch(MsgNumberCAS, []byte("n"), casBody(0, 99, 30), nil)
	err = statusErr(resp)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeDataCAS))
	assert.Equal(t, int64(20), getInt64(resp[1:]), "mismatch returns current unchanged value")
}

func TestMockClientDequePushPopOrdering(t *testing.T) {
	srv := NewTestServer()
	c := NewMockClient(srv)

	require.NoError(t, c.CreateObject("q", "deque"))
	require.NoError(t, c.DequePush("q", 0, true, []byte("A")))
	require.NoError(t, c.DequePush("q", 0, true, []byte("B")))

	v, err := c.DequePop("q", 0, true)
	require.NoError(t, err)
	assert.Equal(t, "B", string(v))

	v, err = c.DequePop("q", 0, true)
	require.NoError(t, err)
	assert.Equal(t, "A", string(v))

	_, err = c.DequePop("q", 0, true)
	require.Error(t, err)
}

func TestMockClientTxnCommitVisibility(t *testing.T) {
	srv := NewTestServer()
	c := NewMockClient(srv)
	require.NoError(t, c.CreateObject("n", "number"))

	txID, err := c.BeginTxn()
	require.NoError(t, err)
	require.NoError(t, c.NumberSet("n", txID, 5))

	v, err := c.NumberGet("n", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v, "write not visible outside the owning txn before commit")

	require.NoError(t, c.CommitTxn(txID))

	v, err = c.NumberGet("n", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
}

func TestMockClientCallCounts(t *testing.T) {
	srv := NewTestServer()
	c := NewMockClient(srv)
	require.NoError(t, c.CreateObject("n", "number"))
	_, err := c.BeginTxn()
	require.NoError(t, err)

	counts := c.CallCounts()
	assert.Equal(t, 2, counts["requests"])
	assert.Equal(t, 1, counts["creates"])
	assert.Equal(t, 1, counts["txns"])
}

func TestDispatchUnknownObjectReturnsStatus(t *testing.T) {
	srv := NewTestServer()
	resp, _ := srv.dispatch(MsgNumberGet, []byte("missing"), make([]byte, bodyTxnID), nil)
	require.Error(t, statusErr(resp))
}

func casBody(txnID uint64, old, newV int64) []byte {
	b := make([]byte, bodyTxnID+16)
	putUint64(b, txnID)
	putInt64(b[bodyTxnID:], old)
	putInt64(b[bodyTxnID+8:], newV)
	return b
}
