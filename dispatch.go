package raleighsl

import (
	"sync"
	"time"

	"github.com/raleighsl/raleighsl/internal/objects"
	"github.com/raleighsl/raleighsl/internal/txn"
)

// txnTable is the server-wide map from the id a client was handed by
// MsgTxnBegin back to its *txn.Txn, keyed the same way the wire protocol's
// body-encoded txn_id fields reference it. A real stub layer would likely
// scope this per-connection; keeping it server-wide is simpler and still
// correct since ids are never reused (txn.Engine.Begin allocates
// monotonically) and a client only ever sees ids it was handed.
type txnTable struct {
	mu sync.Mutex
	m  map[uint64]*txn.Txn
}

func newTxnTable() *txnTable {
	return &txnTable{m: make(map[uint64]*txn.Txn)}
}

func (t *txnTable) put(tx *txn.Txn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[tx.ID] = tx
}

func (t *txnTable) get(id uint64) (*txn.Txn, bool) {
	if id == 0 {
		return nil, true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	tx, ok := t.m[id]
	return tx, ok
}

func (t *txnTable) remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, id)
}

// dispatch routes one parsed request to the object/txn engine and encodes
// its response body/data. It never returns an error itself: every failure
// mode surfaces as a status byte in respBody per protocol.go's contract, so
// a malformed or rejected request still gets a well-formed response frame
// rather than closing the connection.
func (s *Server) dispatch(mt MsgType, fwd, body, data []byte) (respBody, respData []byte) {
	t0 := time.Now()
	respBody, respData = s.dispatchInner(mt, fwd, body, data)
	success := len(respBody) > 0 && respBody[0] == statusNone
	s.metrics.RecordRequest(uint64(time.Since(t0).Nanoseconds()), success)
	return respBody, respData
}

func (s *Server) dispatchInner(mt MsgType, fwd, body, data []byte) (respBody, respData []byte) {
	label := string(fwd)

	switch mt {
	case MsgCreateObject:
		respBody, respData = s.handleCreate(label, body)
		if respBody[0] == statusNone {
			s.metrics.ObjectsCreated.Add(1)
		}
		return respBody, respData
	case MsgCloseObject:
		respBody, respData = s.handleCloseOrUnlink(label, false)
		if respBody[0] == statusNone {
			s.metrics.ObjectsClosed.Add(1)
		}
		return respBody, respData
	case MsgUnlinkObject:
		respBody, respData = s.handleCloseOrUnlink(label, true)
		if respBody[0] == statusNone {
			s.metrics.ObjectsUnlinked.Add(1)
		}
		return respBody, respData

	case MsgTxnBegin:
		tx := s.txns.Begin()
		s.openTxns.put(tx)
		s.metrics.TxnsBegun.Add(1)
		out := make([]byte, bodyTxnID)
		putUint64(out, tx.ID)
		return statusBody(statusNone, out), nil
	case MsgTxnCommit:
		respBody, respData = s.handleTxnEnd(body, true)
		if respBody[0] == statusNone {
			s.metrics.TxnsCommitted.Add(1)
		}
		return respBody, respData
	case MsgTxnRollback:
		respBody, respData = s.handleTxnEnd(body, false)
		if respBody[0] == statusNone {
			s.metrics.TxnsRolledBack.Add(1)
		}
		return respBody, respData

	case MsgNumberGet, MsgNumberSet, MsgNumberAdd, MsgNumberMul, MsgNumberDiv, MsgNumberCAS:
		return s.handleNumber(mt, label, body)
	case MsgCounterGet, MsgCounterSet, MsgCounterAdd, MsgCounterMul, MsgCounterCAS:
		return s.handleCounter(mt, label, body)
	case MsgDequePushFront, MsgDequePushBack, MsgDequePopFront, MsgDequePopBack:
		return s.handleDeque(mt, label, body, data)
	case MsgFlowAppend, MsgFlowSize:
		return s.handleFlow(mt, label, body, data)
	}
	return statusBody(statusBadRequest), nil
}

func statusBody(status uint8, rest ...[]byte) []byte {
	out := []byte{status}
	for _, r := range rest {
		out = append(out, r...)
	}
	return out
}

// errStatus maps a local package sentinel error (or a raleighsl.Error, via
// WrapError) to the one-byte wire status protocol.go defines.
func errStatus(err error) uint8 {
	switch err {
	case nil:
		return statusNone
	case objects.ErrTxnLocked:
		return statusTxnLocked
	case objects.ErrDataNoItems:
		return statusDataNoItems
	case objects.ErrDataCAS:
		return statusDataCAS
	case objects.ErrDivByZero:
		return statusDivByZero
	case objects.ErrNotImplemented:
		return statusNotImplemented
	}
	switch WrapError("dispatch", err).Code {
	case ErrCodeTxnLockedOperation:
		return statusTxnLocked
	case ErrCodeDataNoItems:
		return statusDataNoItems
	case ErrCodeDataCAS:
		return statusDataCAS
	case ErrCodeNumberDivModByZero:
		return statusDivByZero
	case ErrCodeNotImplemented:
		return statusNotImplemented
	default:
		return statusNoMemory
	}
}

func (s *Server) handleCreate(label string, body []byte) (respBody, respData []byte) {
	if len(body) < 1 {
		return statusBody(statusBadRequest), nil
	}
	n := int(body[0])
	if len(body) < 1+n {
		return statusBody(statusBadRequest), nil
	}
	typ := string(body[1 : 1+n])
	if _, err := s.registry.Create(label, typ); err != nil {
		return statusBody(statusBadRequest), nil
	}
	return statusBody(statusNone), nil
}

func (s *Server) handleCloseOrUnlink(label string, unlink bool) (respBody, respData []byte) {
	var err error
	if unlink {
		err = s.registry.Unlink(label)
	} else {
		err = s.registry.Close(label)
	}
	if err != nil {
		return statusBody(statusUnknownObject), nil
	}
	return statusBody(statusNone), nil
}

func (s *Server) handleTxnEnd(body []byte, commit bool) (respBody, respData []byte) {
	if len(body) < bodyTxnID {
		return statusBody(statusBadRequest), nil
	}
	id := getUint64(body)
	tx, ok := s.openTxns.get(id)
	if !ok || tx == nil {
		return statusBody(statusUnknownTxn), nil
	}
	var err error
	if commit {
		err = tx.Commit()
	} else {
		err = tx.Rollback()
	}
	s.openTxns.remove(id)
	if err != nil {
		return statusBody(statusNoMemory), nil
	}
	return statusBody(statusNone), nil
}

// resolveTxn reads the first 8 bytes of body as a txn id (0 == auto-commit)
// and returns the corresponding *txn.Txn, or a bad-request/unknown-txn
// response if it can't.
func (s *Server) resolveTxn(body []byte) (tx *txn.Txn, rest []byte, failResp []byte, ok bool) {
	if len(body) < bodyTxnID {
		return nil, nil, statusBody(statusBadRequest), false
	}
	id := getUint64(body)
	tx, found := s.openTxns.get(id)
	if !found {
		return nil, nil, statusBody(statusUnknownTxn), false
	}
	return tx, body[bodyTxnID:], nil, true
}

func (s *Server) handleNumber(mt MsgType, label string, body []byte) (respBody, respData []byte) {
	obj, err := s.registry.Open(label)
	if err != nil {
		return statusBody(statusUnknownObject), nil
	}
	n, ok := obj.Membuf.(*objects.Number)
	if !ok {
		return statusBody(statusBadRequest), nil
	}
	tx, rest, failResp, ok := s.resolveTxn(body)
	if !ok {
		return failResp, nil
	}
	switch mt {
	case MsgNumberGet:
		return statusBody(statusNone, i64Bytes(n.Get(tx))), nil
	case MsgNumberSet:
		if len(rest) < 8 {
			return statusBody(statusBadRequest), nil
		}
		if err := n.Set(tx, getInt64(rest)); err != nil {
			return statusBody(errStatus(err)), nil
		}
		return statusBody(statusNone), nil
	case MsgNumberAdd, MsgNumberMul, MsgNumberDiv:
		if len(rest) < 8 {
			return statusBody(statusBadRequest), nil
		}
		v := getInt64(rest)
		var cur int64
		switch mt {
		case MsgNumberAdd:
			cur, err = n.Add(tx, v)
		case MsgNumberMul:
			cur, err = n.Mul(tx, v)
		case MsgNumberDiv:
			cur, err = n.Div(tx, v)
		}
		if err != nil {
			return statusBody(errStatus(err)), nil
		}
		return statusBody(statusNone, i64Bytes(cur)), nil
	case MsgNumberCAS:
		if len(rest) < 16 {
			return statusBody(statusBadRequest), nil
		}
		old, newV := getInt64(rest[:8]), getInt64(rest[8:16])
		cur, err := n.CAS(tx, old, newV)
		if err != nil {
			return statusBody(errStatus(err), i64Bytes(cur)), nil
		}
		return statusBody(statusNone, i64Bytes(cur)), nil
	}
	return statusBody(statusBadRequest), nil
}

func (s *Server) handleCounter(mt MsgType, label string, body []byte) (respBody, respData []byte) {
	obj, err := s.registry.Open(label)
	if err != nil {
		return statusBody(statusUnknownObject), nil
	}
	c, ok := obj.Membuf.(*objects.Counter)
	if !ok {
		return statusBody(statusBadRequest), nil
	}
	switch mt {
	case MsgCounterGet:
		return statusBody(statusNone, i64Bytes(c.Get())), nil
	case MsgCounterSet:
		if len(body) < 8 {
			return statusBody(statusBadRequest), nil
		}
		c.Set(getInt64(body))
		return statusBody(statusNone), nil
	case MsgCounterAdd:
		if len(body) < 8 {
			return statusBody(statusBadRequest), nil
		}
		return statusBody(statusNone, i64Bytes(c.Add(getInt64(body)))), nil
	case MsgCounterMul:
		if len(body) < 8 {
			return statusBody(statusBadRequest), nil
		}
		return statusBody(statusNone, i64Bytes(c.Mul(getInt64(body)))), nil
	case MsgCounterCAS:
		if len(body) < 16 {
			return statusBody(statusBadRequest), nil
		}
		old, newV := getInt64(body[:8]), getInt64(body[8:16])
		cur, err := c.CAS(old, newV)
		if err != nil {
			return statusBody(errStatus(err), i64Bytes(cur)), nil
		}
		return statusBody(statusNone, i64Bytes(cur)), nil
	}
	return statusBody(statusBadRequest), nil
}

func (s *Server) handleDeque(mt MsgType, label string, body, data []byte) (respBody, respData []byte) {
	obj, err := s.registry.Open(label)
	if err != nil {
		return statusBody(statusUnknownObject), nil
	}
	d, ok := obj.Membuf.(*objects.Deque)
	if !ok {
		return statusBody(statusBadRequest), nil
	}
	tx, _, failResp, ok := s.resolveTxn(body)
	if !ok {
		return failResp, nil
	}
	switch mt {
	case MsgDequePushFront, MsgDequePushBack:
		front := mt == MsgDequePushFront
		if err := d.Push(tx, front, data); err != nil {
			return statusBody(errStatus(err)), nil
		}
		return statusBody(statusNone), nil
	case MsgDequePopFront, MsgDequePopBack:
		front := mt == MsgDequePopFront
		v, err := d.Pop(tx, front)
		if err != nil {
			return statusBody(errStatus(err)), nil
		}
		return statusBody(statusNone), v
	}
	return statusBody(statusBadRequest), nil
}

func (s *Server) handleFlow(mt MsgType, label string, body, data []byte) (respBody, respData []byte) {
	obj, err := s.registry.Open(label)
	if err != nil {
		return statusBody(statusUnknownObject), nil
	}
	f, ok := obj.Membuf.(*objects.Flow)
	if !ok {
		return statusBody(statusBadRequest), nil
	}
	switch mt {
	case MsgFlowSize:
		out := make([]byte, 8)
		putUint64(out, f.Size())
		return statusBody(statusNone, out), nil
	case MsgFlowAppend:
		tx, _, failResp, ok := s.resolveTxn(body)
		if !ok {
			return failResp, nil
		}
		if err := f.Append(tx, data); err != nil {
			return statusBody(errStatus(err)), nil
		}
		return statusBody(statusNone), nil
	}
	return statusBody(statusBadRequest), nil
}

func i64Bytes(v int64) []byte {
	b := make([]byte, 8)
	putInt64(b, v)
	return b
}
