package notebooklm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anatolykoptev/go_nlm/internal/engine"
)

const tokenPage = `<html><script>WIZ_global_data = {"cfb2h":"sess-123","SNlM0e":"csrf-abc","other":1};</script></html>`

var fastRetry = engine.RetryConfig{MaxRetries: 2, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Multiplier: 2}

// rpcCall is one batchexecute request as seen by the fake server.
type rpcCall struct {
	RPCID string
	Args  []any
	Query map[string]string
	At    string
}

// rpcReply scripts the fake's answer; Status 0 means 200.
type rpcReply struct {
	Status  int
	Payload any
	Raw     string
}

// fakeNLM is an in-process NotebookLM stand-in.
type fakeNLM struct {
	t   *testing.T
	srv *httptest.Server

	mu          sync.Mutex
	calls       []rpcCall
	tokenProbes int
	tokenBody   string
	handlers    map[string]func(n int, args []any) rpcReply
	extra       map[string]http.HandlerFunc
}

func newFakeNLM(t *testing.T) *fakeNLM {
	t.Helper()
	f := &fakeNLM{
		t:         t,
		tokenBody: tokenPage,
		handlers:  map[string]func(int, []any) rpcReply{},
		extra:     map[string]http.HandlerFunc{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeNLM) client(opts ...Option) *Client {
	opts = append([]Option{WithRetryConfig(fastRetry), WithAccountsURL(f.srv.URL)}, opts...)
	return New(f.srv.URL, "SID=cookie", opts...)
}

func (f *fakeNLM) on(rpcID string, h func(n int, args []any) rpcReply) {
	f.mu.Lock()
	f.handlers[rpcID] = h
	f.mu.Unlock()
}

// handle routes an extra path (upload endpoints, accounts) to h.
func (f *fakeNLM) handle(path string, h http.HandlerFunc) {
	f.mu.Lock()
	f.extra[path] = h
	f.mu.Unlock()
}

func (f *fakeNLM) setTokenBody(body string) {
	f.mu.Lock()
	f.tokenBody = body
	f.mu.Unlock()
}

func (f *fakeNLM) probes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenProbes
}

func (f *fakeNLM) callsFor(rpcID string) []rpcCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callsForLocked(rpcID)
}

func (f *fakeNLM) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	if h, ok := f.extra[r.URL.Path]; ok {
		f.mu.Unlock()
		h(w, r)
		return
	}
	f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/":
		f.mu.Lock()
		f.tokenProbes++
		body := f.tokenBody
		f.mu.Unlock()
		fmt.Fprint(w, body)
	case r.Method == http.MethodPost && r.URL.Path == batchExecutePath:
		f.serveRPC(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeNLM) serveRPC(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var freq [][][]any
	if err := json.Unmarshal([]byte(r.PostForm.Get("f.req")), &freq); err != nil {
		http.Error(w, "bad f.req", http.StatusBadRequest)
		return
	}
	envelope := freq[0][0]
	rpcID, _ := envelope[0].(string)
	argsJSON, _ := envelope[1].(string)
	var args []any
	_ = json.Unmarshal([]byte(argsJSON), &args)

	q := map[string]string{}
	for k := range r.URL.Query() {
		q[k] = r.URL.Query().Get(k)
	}

	f.mu.Lock()
	f.calls = append(f.calls, rpcCall{RPCID: rpcID, Args: args, Query: q, At: r.PostForm.Get("at")})
	n := len(f.callsForLocked(rpcID))
	h := f.handlers[rpcID]
	f.mu.Unlock()

	reply := rpcReply{Payload: []any{}}
	if h != nil {
		reply = h(n, args)
	}
	if reply.Status != 0 && reply.Status != http.StatusOK {
		w.WriteHeader(reply.Status)
		return
	}
	if reply.Raw != "" {
		fmt.Fprint(w, reply.Raw)
		return
	}
	fmt.Fprint(w, frame(f.t, rpcID, reply.Payload))
}

func (f *fakeNLM) callsForLocked(rpcID string) []rpcCall {
	var out []rpcCall
	for _, c := range f.calls {
		if c.RPCID == rpcID {
			out = append(out, c)
		}
	}
	return out
}

// frame wraps payload the way batchexecute does: anti-XSSI prefix, length line,
// then an envelope whose [0][2] slot holds the payload as a JSON string.
func frame(t *testing.T, rpcID string, payload any) string {
	t.Helper()
	inner, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	outer, err := json.Marshal([]any{[]any{"wrb.fr", rpcID, string(inner), nil, nil, nil, "generic"}, []any{"di", 42}})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return ")]}'\n\n" + fmt.Sprint(len(outer)) + "\n" + string(outer) + "\n25\n[[\"e\",4,null,null,120]]\n"
}

// argString returns the JSON of v for compact shape assertions.
func argString(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return strings.TrimSpace(string(b))
}
