package notify

import (
	"strings"
	"testing"

	"github.com/vecmcp/mcpserver/internal/domain/jsonrpc"
	"github.com/vecmcp/mcpserver/internal/domain/session"
)

type recordingTransport struct {
	sent []jsonrpc.Message
	fail bool
}

func (r *recordingTransport) Send(sess *session.Session, msg jsonrpc.Message) error {
	if r.fail {
		return errRefused
	}
	r.sent = append(r.sent, msg)
	return nil
}

var errRefused = &refusedError{}

type refusedError struct{}

func (*refusedError) Error() string { return "refused" }

func TestProgressSendsWellFormedNotification(t *testing.T) {
	tr := &recordingTransport{}
	sess := &session.Session{ID: "s1"}

	if err := Progress(tr, sess, jsonrpc.NewNumberID(1), 0.5, 1, "halfway"); err != nil {
		t.Fatalf("Progress() error = %v", err)
	}
	if len(tr.sent) != 1 {
		t.Fatalf("sent = %d messages, want 1", len(tr.sent))
	}
	n, ok := tr.sent[0].(*jsonrpc.Notification)
	if !ok {
		t.Fatalf("sent message type = %T, want *jsonrpc.Notification", tr.sent[0])
	}
	if n.Method != "notifications/progress" {
		t.Errorf("Method = %q, want notifications/progress", n.Method)
	}
	if !strings.Contains(string(n.Params), `"message":"halfway"`) {
		t.Errorf("Params = %s, want message field", n.Params)
	}
}

func TestListChangedUsesKindSpecificMethod(t *testing.T) {
	tr := &recordingTransport{}
	sess := &session.Session{ID: "s1"}

	if err := ListChanged(tr, sess, KindResources); err != nil {
		t.Fatalf("ListChanged() error = %v", err)
	}
	n := tr.sent[0].(*jsonrpc.Notification)
	if n.Method != "notifications/resources/list_changed" {
		t.Errorf("Method = %q, want notifications/resources/list_changed", n.Method)
	}
}

func TestResourceUpdatedPropagatesTransportError(t *testing.T) {
	tr := &recordingTransport{fail: true}
	sess := &session.Session{ID: "s1"}

	if err := ResourceUpdated(tr, sess, "file:///a.txt"); err == nil {
		t.Error("ResourceUpdated() error = nil, want the transport's refusal")
	}
}
