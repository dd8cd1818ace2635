package raleighsl

import "sync"

// NewTestServer returns a Server with its object engine and transaction
// engine wired up exactly as NewServer would, with the result cache
// disabled and no sockets bound — for tests that want to exercise dispatch directly via
// MockClient rather than driving the wire protocol over a real connection.
func NewTestServer() *Server {
	srv, err := NewServer(ServerParams{PollEngines: 1, CacheCapacity: 0})
	if err != nil {
		panic(err) // unreachable: NewServer only fails on poll-engine setup
	}
	return srv
}

// MockClient drives a Server's dispatch directly, in-process, without a
// wire connection — the equivalent of the teacher's MockBackend for this
// package's request/response surface: it tracks call counts the same way,
// for tests asserting on how many requests of each kind were issued.
type MockClient struct {
	srv *Server

	mu           sync.Mutex
	requestCalls int
	createCalls  int
	txnCalls     int
}

// NewMockClient returns a MockClient bound to srv.
func NewMockClient(srv *Server) *MockClient {
	return &MockClient{srv: srv}
}

// CreateObject creates an object of typ under label.
func (c *MockClient) CreateObject(label, typ string) error {
	c.mu.Lock()
	c.requestCalls++
	c.createCalls++
	c.mu.Unlock()
	body := append([]byte{byte(len(typ))}, typ...)
	resp, _ := c.srv.dispatch(MsgCreateObject, []byte(label), body, nil)
	return statusErr(resp)
}

// CloseObject/UnlinkObject mirror Registry.Close/Unlink through dispatch.
func (c *MockClient) CloseObject(label string) error {
	c.mu.Lock()
	c.requestCalls++
	c.mu.Unlock()
	resp, _ := c.srv.dispatch(MsgCloseObject, []byte(label), nil, nil)
	return statusErr(resp)
}

func (c *MockClient) UnlinkObject(label string) error {
	c.mu.Lock()
	c.requestCalls++
	c.mu.Unlock()
	resp, _ := c.srv.dispatch(MsgUnlinkObject, []byte(label), nil, nil)
	return statusErr(resp)
}

// BeginTxn starts a transaction and returns the id a real client would use
// in subsequent request bodies.
func (c *MockClient) BeginTxn() (uint64, error) {
	c.mu.Lock()
	c.requestCalls++
	c.txnCalls++
	c.mu.Unlock()
	resp, _ := c.srv.dispatch(MsgTxnBegin, nil, nil, nil)
	if err := statusErr(resp); err != nil {
		return 0, err
	}
	return getUint64(resp[1:]), nil
}

func (c *MockClient) CommitTxn(id uint64) error {
	c.mu.Lock()
	c.requestCalls++
	c.mu.Unlock()
	body := make([]byte, bodyTxnID)
	putUint64(body, id)
	resp, _ := c.srv.dispatch(MsgTxnCommit, nil, body, nil)
	return statusErr(resp)
}

func (c *MockClient) RollbackTxn(id uint64) error {
	c.mu.Lock()
	c.requestCalls++
	c.mu.Unlock()
	body := make([]byte, bodyTxnID)
	putUint64(body, id)
	resp, _ := c.srv.dispatch(MsgTxnRollback, nil, body, nil)
	return statusErr(resp)
}

// NumberGet/NumberSet exercise the number object type through
// dispatch, the same path a real wire client's requests take.
func (c *MockClient) NumberGet(label string, txnID uint64) (int64, error) {
	c.trackRequest()
	body := make([]byte, bodyTxnID)
	putUint64(body, txnID)
	resp, _ := c.srv.dispatch(MsgNumberGet, []byte(label), body, nil)
	if err := statusErr(resp); err != nil {
		return 0, err
	}
	return getInt64(resp[1:]), nil
}

func (c *MockClient) NumberSet(label string, txnID uint64, value int64) error {
	c.trackRequest()
	body := make([]byte, bodyTxnID+8)
	putUint64(body, txnID)
	putInt64(body[bodyTxnID:], value)
	resp, _ := c.srv.dispatch(MsgNumberSet, []byte(label), body, nil)
	return statusErr(resp)
}

func (c *MockClient) DequePush(label string, txnID uint64, front bool, value []byte) error {
	c.trackRequest()
	body := make([]byte, bodyTxnID)
	putUint64(body, txnID)
	mt := MsgDequePushBack
	if front {
		mt = MsgDequePushFront
	}
	resp, _ := c.srv.dispatch(mt, []byte(label), body, value)
	return statusErr(resp)
}

func (c *MockClient) DequePop(label string, txnID uint64, front bool) ([]byte, error) {
	c.trackRequest()
	body := make([]byte, bodyTxnID)
	putUint64(body, txnID)
	mt := MsgDequePopBack
	if front {
		mt = MsgDequePopFront
	}
	resp, data := c.srv.dispatch(mt, []byte(label), body, nil)
	if err := statusErr(resp); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *MockClient) trackRequest() {
	c.mu.Lock()
	c.requestCalls++
	c.mu.Unlock()
}

// CallCounts returns the number of times each broad category of method has
// been invoked, for test assertions.
func (c *MockClient) CallCounts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]int{
		"requests": c.requestCalls,
		"creates":  c.createCalls,
		"txns":     c.txnCalls,
	}
}

// statusErr converts a dispatch response's leading status byte into an
// error, or nil for statusNone.
func statusErr(resp []byte) error {
	if len(resp) == 0 {
		return NewError("dispatch", ErrCodeNoMemory, "empty response")
	}
	code := statusToCode(resp[0])
	if code == ErrCodeNone {
		return nil
	}
	return NewError("dispatch", code, string(code))
}
